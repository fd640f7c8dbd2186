package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/jpalmerr/rollcall"
)

// SimulateTeacher marks random students through the REST API every 2-6
// seconds until ctx is cancelled. Arrivals come first; a present student
// may later leave.
func SimulateTeacher(ctx context.Context, baseURL string) {
	client := &http.Client{Timeout: 5 * time.Second}

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(2+rand.Intn(5)) * time.Second):
		}

		if err := markRandomStudent(ctx, client, baseURL); err != nil {
			slog.Warn("simulated teacher failed", "error", err)
		}
	}
}

func markRandomStudent(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/classrooms", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var classrooms []rollcall.Classroom
	if err := json.NewDecoder(resp.Body).Decode(&classrooms); err != nil {
		return fmt.Errorf("decode classrooms: %w", err)
	}
	if len(classrooms) == 0 {
		return nil
	}

	c := classrooms[rand.Intn(len(classrooms))]
	if len(c.Students) == 0 {
		return nil
	}
	i := rand.Intn(len(c.Students))

	patch := map[string]any{"studentIndex": i}
	switch s := c.Students[i]; {
	case s.Left:
		patch["left"] = false
	case s.Present:
		patch["left"] = true
	default:
		patch["present"] = true
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPatch, baseURL+"/api/classrooms/"+c.ID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	patchResp, err := client.Do(req)
	if err != nil {
		return err
	}
	_ = patchResp.Body.Close()
	if patchResp.StatusCode != http.StatusOK {
		return fmt.Errorf("patch %s: status %d", c.ID, patchResp.StatusCode)
	}
	return nil
}

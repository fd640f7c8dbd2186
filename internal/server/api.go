package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/jpalmerr/rollcall/internal/gateway"
	"github.com/jpalmerr/rollcall/internal/store"
)

// maxBodyBytes caps request bodies. Sync carries the whole client state, so
// the cap is generous.
const maxBodyBytes = 8 << 20

// slugPattern matches paths that may name a classroom view.
var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

// classroomRequest is the body of create and update.
type classroomRequest struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Students []string `json:"students"`
}

func (r classroomRequest) input() gateway.Input {
	return gateway.Input{Name: r.Name, Path: r.Path, Students: r.Students}
}

// patchRequest is the body of a single-student attendance toggle.
type patchRequest struct {
	StudentIndex *int  `json:"studentIndex"`
	Present      *bool `json:"present"`
	Left         *bool `json:"left"`
}

// syncRequest is the body of a bulk replace.
type syncRequest struct {
	Classrooms []store.Classroom `json:"classrooms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
	Count   *int `json:"count,omitempty"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Classrooms int    `json:"classrooms"`
	Observers  int    `json:"observers"`
}

// handleList returns all classrooms as JSON.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.gateway.List())
}

// handleCreate adds a classroom.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req classroomRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.gateway.Create(req.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleSync replaces all classrooms with the client's copy.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decode(w, r, &req) {
		return
	}

	count := s.gateway.Sync(req.Classrooms)
	s.writeJSON(w, http.StatusOK, successResponse{Success: true, Count: &count})
}

// handleUpdate replaces a classroom's name, path and roster.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req classroomRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.gateway.Update(r.PathValue("id"), req.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleDelete removes a classroom.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handlePatch toggles one student's attendance.
func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.gateway.Patch(r.PathValue("id"), gateway.Patch{
		StudentIndex: req.StudentIndex,
		Present:      req.Present,
		Left:         req.Left,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// handleHealth reports liveness with store and observer counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Classrooms: len(s.gateway.List()),
		Observers:  s.gateway.Observers(),
	})
}

// handleClassroomView serves the classroom page for a known path slug.
func (s *Server) handleClassroomView(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if !slugPattern.MatchString(path) {
		http.NotFound(w, r)
		return
	}
	if _, ok := s.gateway.FindByPath(path); !ok {
		http.NotFound(w, r)
		return
	}
	s.servePage(w, "classroom.html")
}

// decode reads a JSON body into v, replying 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Debug("invalid request body", "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps gateway errors onto HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrPathConflict):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, gateway.ErrStudentNotFound):
		http.Error(w, "Student not found", http.StatusNotFound)
	case errors.Is(err, gateway.ErrNotFound):
		http.Error(w, "Classroom not found", http.StatusNotFound)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

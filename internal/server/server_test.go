package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/rollcall/internal/gateway"
	"github.com/jpalmerr/rollcall/internal/hub"
	"github.com/jpalmerr/rollcall/internal/metrics"
	"github.com/jpalmerr/rollcall/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAssets mimics the embedded pages.
var testAssets = fstest.MapFS{
	"assets/index.html":     {Data: []byte("<title>{{.Title}}</title><h1>index</h1>")},
	"assets/admin.html":     {Data: []byte("<title>{{.Title}}</title><h1>admin</h1>")},
	"assets/classroom.html": {Data: []byte("<title>{{.Title}}</title><h1>classroom</h1>")},
}

type testEnv struct {
	srv     *Server
	gw      *gateway.Gateway
	metrics *metrics.Metrics
	handler http.Handler
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	n := 0
	m := metrics.New(prometheus.NewRegistry())
	gw := gateway.New(store.NewMemoryStore(), hub.New(m, testLogger()),
		gateway.WithLogger(testLogger()),
		gateway.WithMetrics(m),
		gateway.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("I%d", n)
		}),
	)
	srv := NewServer(gw, m, cfg, testLogger())
	return &testEnv{srv: srv, gw: gw, metrics: m, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", rec.Body.String(), err)
	}
	return v
}

// --- API ---

func TestAPI_ListEmpty(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/api/classrooms", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestAPI_CreateAndList(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":["Bob"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[store.Classroom](t, rec)
	if created.ID != "I1" || created.Path != "a" {
		t.Errorf("created = %+v", created)
	}
	if created.Students[0] != (store.Student{Name: "Bob"}) {
		t.Errorf("created student = %+v", created.Students[0])
	}

	list := decodeBody[[]store.Classroom](t, env.do(t, http.MethodGet, "/api/classrooms", ""))
	if len(list) != 1 || list[0].ID != "I1" {
		t.Errorf("list = %+v", list)
	}
}

func TestAPI_CreatePathConflict(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":["Bob"]}`)

	rec := env.do(t, http.MethodPost, "/api/classrooms", `{"name":"B","path":"a","students":[]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"路徑已被使用"}` {
		t.Errorf("body = %s", got)
	}
	if n := len(env.gw.List()); n != 1 {
		t.Errorf("classrooms = %d, want 1", n)
	}
}

func TestAPI_MalformedBody(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a"}`)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/classrooms"},
		{http.MethodPost, "/api/classrooms/sync"},
		{http.MethodPut, "/api/classrooms/I1"},
		{http.MethodPatch, "/api/classrooms/I1"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, `{not json`)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if resp := decodeBody[errorResponse](t, rec); resp.Error == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestAPI_Update(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":["Bob"]}`)
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"B","path":"b","students":[]}`)
	env.do(t, http.MethodPatch, "/api/classrooms/I1", `{"studentIndex":0,"present":true}`)

	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{name: "unknown id", id: "nope", body: `{"name":"X","path":"x","students":[]}`, wantStatus: http.StatusNotFound},
		{name: "path conflict", id: "I1", body: `{"name":"A","path":"b","students":[]}`, wantStatus: http.StatusBadRequest},
		{name: "ok", id: "I1", body: `{"name":"A2","path":"a","students":["Bob","Eve"]}`, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/api/classrooms/"+tt.id, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	c, _ := env.gw.Get("I1")
	if c.Name != "A2" || len(c.Students) != 2 || c.Students[0].Present {
		t.Errorf("after update = %+v", c)
	}
}

func TestAPI_Delete(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":[]}`)

	rec := env.do(t, http.MethodDelete, "/api/classrooms/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if n := len(env.gw.List()); n != 1 {
		t.Errorf("classrooms = %d, want 1", n)
	}

	rec = env.do(t, http.MethodDelete, "/api/classrooms/I1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true}` {
		t.Errorf("body = %s", got)
	}
}

func TestAPI_Patch(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":["Bob"]}`)

	rec := env.do(t, http.MethodPatch, "/api/classrooms/I1", `{"studentIndex":0,"present":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	c := decodeBody[store.Classroom](t, rec)
	if s := c.Students[0]; !s.Present || s.Left {
		t.Errorf("after present = %+v", s)
	}

	c = decodeBody[store.Classroom](t, env.do(t, http.MethodPatch, "/api/classrooms/I1", `{"studentIndex":0,"left":true}`))
	if s := c.Students[0]; !s.Present || !s.Left {
		t.Errorf("after left = %+v", s)
	}

	for _, tt := range []struct {
		name string
		path string
		body string
	}{
		{"unknown classroom", "/api/classrooms/nope", `{"studentIndex":0,"present":true}`},
		{"index out of range", "/api/classrooms/I1", `{"studentIndex":5,"present":true}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, http.MethodPatch, tt.path, tt.body); rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
			}
		})
	}
}

func TestAPI_Sync(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":[]}`)

	body := `{"classrooms":[
		{"id":"k1","name":"K1","path":"k","students":[{"name":"Bob","present":true,"left":false}]},
		{"id":"k2","name":"K2","path":"k2","students":[{"name":"Eve","present":true}]}
	]}`
	rec := env.do(t, http.MethodPost, "/api/classrooms/sync", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"count":2}` {
		t.Errorf("body = %s", got)
	}

	list := env.gw.List()
	if len(list) != 2 || list[0].ID != "k1" || !list[0].Students[0].Present {
		t.Errorf("after sync = %+v", list)
	}
	// missing left flag defaults to false
	if list[1].Students[0].Left {
		t.Error("missing left flag decoded as true")
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodDelete, "/api/classrooms", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":[]}`)

	resp := decodeBody[healthResponse](t, env.do(t, http.MethodGet, "/healthz", ""))
	if resp.Status != "ok" || resp.Classrooms != 1 || resp.Observers != 0 {
		t.Errorf("health = %+v", resp)
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, Config{MetricsPath: "/metrics"})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":[]}`)
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"B","path":"a","students":[]}`)

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`rollcall_mutations_total{op="create",outcome="ok"} 1`,
		`rollcall_mutations_total{op="create",outcome="path_conflict"} 1`,
		`rollcall_classrooms 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsRoute_Disabled(t *testing.T) {
	env := newTestEnv(t, Config{})

	if rec := env.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- Pages ---

func TestPages(t *testing.T) {
	env := newTestEnv(t, Config{Assets: testAssets, Title: "Room & Board"})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"room_1-a","students":[]}`)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "<h1>index</h1>"},
		{"/index.html", http.StatusOK, "<h1>index</h1>"},
		{"/admin", http.StatusOK, "<h1>admin</h1>"},
		{"/admin.html", http.StatusOK, "<h1>admin</h1>"},
		{"/classroom.html", http.StatusOK, "<h1>classroom</h1>"},
		{"/room_1-a", http.StatusOK, "<h1>classroom</h1>"},
		{"/ROOM_1-A", http.StatusNotFound, ""},
		{"/unknown", http.StatusNotFound, ""},
		{"/has.dot", http.StatusNotFound, ""},
		{"/a/b", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantBody == "" {
				return
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.wantBody) {
				t.Errorf("body = %s, want %s", body, tt.wantBody)
			}
			if !strings.Contains(body, "<title>Room &amp; Board</title>") {
				t.Errorf("title not substituted and escaped: %s", body)
			}
		})
	}
}

func TestPages_DefaultTitle(t *testing.T) {
	env := newTestEnv(t, Config{Assets: testAssets})

	body := env.do(t, http.MethodGet, "/", "").Body.String()
	if !strings.Contains(body, "<title>"+defaultTitle+"</title>") {
		t.Errorf("expected default title, got: %s", body)
	}
}

func TestPages_TitleWithHTMLChars(t *testing.T) {
	env := newTestEnv(t, Config{Assets: testAssets, Title: "<script>alert('xss')</script>"})

	body := env.do(t, http.MethodGet, "/", "").Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("title should be HTML-escaped to prevent XSS")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("expected escaped HTML, got: %s", body)
	}
}

func TestPages_NoAssets(t *testing.T) {
	env := newTestEnv(t, Config{})

	if rec := env.do(t, http.MethodGet, "/", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPages_MissingFile(t *testing.T) {
	env := newTestEnv(t, Config{Assets: fstest.MapFS{}})

	if rec := env.do(t, http.MethodGet, "/admin", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --- Origin check ---

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no allow-list", origin: "https://evil.example", want: true},
		{name: "listed", allowed: []string{"https://school.example"}, origin: "https://school.example", want: true},
		{name: "case-insensitive", allowed: []string{"https://school.example"}, origin: "HTTPS://SCHOOL.EXAMPLE", want: true},
		{name: "not listed", allowed: []string{"https://school.example"}, origin: "https://evil.example", want: false},
		{name: "no origin header", allowed: []string{"https://school.example"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Config{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := env.srv.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- Start ---

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	env := newTestEnv(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() on available port returned error: %v", err)
	}
	if env.srv.Addr() == nil {
		t.Fatal("Addr() = nil after Start()")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", env.srv.Addr()))
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	// occupy a port
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port
	env := newTestEnv(t, Config{Port: port})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = env.srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	env := newTestEnv(t, Config{Port: -1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := env.srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

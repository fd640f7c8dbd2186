package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/rollcall/internal/event"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readEvent reads and decodes the next event, failing after a short timeout.
func readEvent(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	ev, err := event.Decode(data)
	if err != nil {
		t.Fatalf("event.Decode(%s) error = %v", data, err)
	}
	return ev
}

// waitObservers polls until the gateway reports n observers.
func waitObservers(t *testing.T, env *testEnv, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for env.gw.Observers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("observers = %d, want %d", env.gw.Observers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWS_InitFirst(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":["Bob"]}`)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dial(t, ts, nil)

	snap, ok := readEvent(t, conn).(event.Init)
	if !ok {
		t.Fatal("first message is not init")
	}
	if len(snap.Classrooms) != 1 || snap.Classrooms[0].ID != "I1" {
		t.Errorf("init classrooms = %+v", snap.Classrooms)
	}
}

func TestWS_EmptyInit(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dial(t, ts, nil)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got := string(data); got != `{"type":"init","classrooms":[]}` {
		t.Errorf("init = %s", got)
	}
}

func TestWS_BroadcastsMutations(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	a := dial(t, ts, nil)
	b := dial(t, ts, nil)
	readEvent(t, a)
	readEvent(t, b)
	waitObservers(t, env, 2)

	resp, err := http.Post(ts.URL+"/api/classrooms", "application/json",
		strings.NewReader(`{"name":"A","path":"a","students":["Bob"]}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	_ = resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/classrooms/I1",
		strings.NewReader(`{"studentIndex":0,"left":true}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH error = %v", err)
	}
	_ = resp.Body.Close()

	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		added, ok := readEvent(t, conn).(event.ClassroomAdded)
		if !ok || added.Classroom.ID != "I1" {
			t.Errorf("%s: first broadcast = %+v, want classroom_added", name, added)
		}
		upd, ok := readEvent(t, conn).(event.StudentUpdated)
		if !ok {
			t.Fatalf("%s: second broadcast is not student_updated", name)
		}
		want := event.StudentUpdated{ClassroomID: "I1", StudentIndex: 0, Present: true, Left: true}
		if upd != want {
			t.Errorf("%s: student_updated = %+v, want %+v", name, upd, want)
		}
	}
}

func TestWS_MalformedInboundKeepsConnection(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dial(t, ts, nil)
	readEvent(t, conn)
	waitObservers(t, env, 1)

	for _, msg := range []string{"not json", `{"type":"hello"}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
	}

	env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":[]}`)

	if _, ok := readEvent(t, conn).(event.ClassroomAdded); !ok {
		t.Error("expected classroom_added after malformed message")
	}
	if n := env.gw.Observers(); n != 1 {
		t.Errorf("observers = %d, want 1", n)
	}
}

func TestWS_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t, Config{})
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	conn := dial(t, ts, nil)
	readEvent(t, conn)
	waitObservers(t, env, 1)

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	waitObservers(t, env, 0)

	// broadcasting with no observers is a no-op
	if rec := env.do(t, http.MethodPost, "/api/classrooms", `{"name":"A","path":"a","students":[]}`); rec.Code != http.StatusOK {
		t.Errorf("create status = %d", rec.Code)
	}
}

func TestWS_NotUpgrade(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/ws", "")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "Expected WebSocket") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestWS_OriginRejected(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"https://school.example"}})
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	if err == nil {
		t.Fatal("Dial() with disallowed origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %+v, want 403", resp)
	}
	if n := env.gw.Observers(); n != 0 {
		t.Errorf("observers = %d, want 0", n)
	}
}

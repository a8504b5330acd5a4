package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/incidentdesk/internal/hashstate"
	"github.com/muurk/incidentdesk/internal/modal"
)

type fixedState modal.State

func (f fixedState) State() modal.State { return modal.State(f) }

func newTestBridge(t *testing.T, hash *hashstate.State, router StateSource) *httptest.Server {
	t.Helper()
	s := New(&Config{Addr: "127.0.0.1:0"}, hash, router)
	stop := s.hub.Run()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		stop()
		ts.Close()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestHealth(t *testing.T) {
	ts := newTestBridge(t, hashstate.New(""), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		name   string
		router StateSource
		want   StateResponse
	}{
		{
			name:   "hash only",
			router: nil,
			want:   StateResponse{Fragment: "signup"},
		},
		{
			name:   "closing modal",
			router: fixedState{Current: modal.None, Mounted: "signup"},
			want:   StateResponse{Fragment: "signup", Mounted: "signup"},
		},
		{
			name:   "open modal",
			router: fixedState{Current: "signup", Mounted: "signup"},
			want:   StateResponse{Fragment: "signup", Current: "signup", Mounted: "signup"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestBridge(t, hashstate.New("#signup"), tt.router)

			resp, err := http.Get(ts.URL + "/state")
			if err != nil {
				t.Fatalf("GET /state error = %v", err)
			}
			defer resp.Body.Close()

			var got StateResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GET /state = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIndexPage(t *testing.T) {
	ts := newTestBridge(t, hashstate.New(""), nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "hashchange") {
		t.Error("index page does not listen for hashchange")
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestBridgeSnapshotAndBroadcast(t *testing.T) {
	hash := hashstate.New("signin")
	ts := newTestBridge(t, hash, nil)
	conn := dial(t, ts)

	hello := readMessage(t, conn)
	if hello.Fragment != "signin" || hello.Source != "snapshot" {
		t.Fatalf("hello = %+v, want signin snapshot", hello)
	}

	hash.Set("report")
	msg := readMessage(t, conn)
	if msg.Fragment != "report" || msg.Source != string(hashstate.SourceProgrammatic) {
		t.Errorf("broadcast = %+v, want report programmatic", msg)
	}
}

func TestBridgeAppliesTabFragment(t *testing.T) {
	hash := hashstate.New("")
	ts := newTestBridge(t, hash, nil)
	sender := dial(t, ts)
	readMessage(t, sender)
	other := dial(t, ts)
	readMessage(t, other)

	changes := make(chan hashstate.Change, 4)
	unsubscribe := hash.Subscribe(func(c hashstate.Change) { changes <- c })
	defer unsubscribe()

	if err := sender.WriteJSON(Message{Fragment: "#settings:account"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	select {
	case c := <-changes:
		if c.Fragment != "settings:account" || c.Source != hashstate.SourceExternal {
			t.Errorf("change = %+v, want settings:account from external", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fragment from tab was not applied")
	}

	msg := readMessage(t, other)
	if msg.Fragment != "settings:account" || msg.Source != string(hashstate.SourceExternal) {
		t.Errorf("other tab got %+v, want settings:account from external", msg)
	}

	// the sender sees the next local change, not its own echo
	hash.Set("report")
	if msg := readMessage(t, sender); msg.Fragment != "report" {
		t.Errorf("sender got %+v, want report without an echo first", msg)
	}
}

func TestBridgeIgnoresMalformedFrames(t *testing.T) {
	hash := hashstate.New("role")
	ts := newTestBridge(t, hash, nil)
	conn := dial(t, ts)
	readMessage(t, conn)
	watcher := dial(t, ts)
	readMessage(t, watcher)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if err := conn.WriteJSON(Message{Fragment: "category"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	msg := readMessage(t, watcher)
	if msg.Fragment != "category" {
		t.Errorf("after malformed frame got %+v, want category", msg)
	}
	if hash.Get() != "category" {
		t.Errorf("hash = %q, want category", hash.Get())
	}
}

func TestHubStopDisconnects(t *testing.T) {
	hash := hashstate.New("")
	s := New(&Config{}, hash, nil)
	stop := s.hub.Run()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, ts)
	readMessage(t, conn)

	stop()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after stop")
	}
	if n := s.hub.Clients(); n != 0 {
		t.Errorf("Clients() = %d, want 0", n)
	}

	conn2 := dial(t, ts)
	_ = conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn2.ReadMessage(); err == nil {
		t.Error("stopped hub accepted a new client")
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin", "127.0.0.1:7420", "", true},
		{"same host", "127.0.0.1:7420", "http://127.0.0.1:7420", true},
		{"other host", "127.0.0.1:7420", "http://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := upgrader.CheckOrigin(r); got != tt.want {
				t.Errorf("CheckOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

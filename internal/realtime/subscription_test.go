package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/report"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError})
}

// feedServer fakes the platform's change-feed endpoint: it verifies the
// join frame, then plays the given frames to the client.
func feedServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime/v1/websocket" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "anon-key" {
			t.Errorf("apikey = %q", r.URL.Query().Get("apikey"))
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var join wireMessage
		if err := conn.ReadJSON(&join); err != nil {
			t.Errorf("read join: %v", err)
			return
		}
		if join.Event != "phx_join" {
			t.Errorf("join event = %q", join.Event)
		}
		if !strings.Contains(join.Topic, "realtime:public:messages:user_id=eq.user-1") {
			t.Errorf("join topic = %q", join.Topic)
		}
		var payload struct {
			AccessToken string `json:"access_token"`
			Config      struct {
				PostgresChanges []struct {
					Event  string `json:"event"`
					Schema string `json:"schema"`
					Table  string `json:"table"`
					Filter string `json:"filter"`
				} `json:"postgres_changes"`
			} `json:"config"`
		}
		if err := json.Unmarshal(join.Payload, &payload); err != nil {
			t.Errorf("decode join payload: %v", err)
			return
		}
		if payload.AccessToken != "jwt-token" {
			t.Errorf("access_token = %q", payload.AccessToken)
		}
		if len(payload.Config.PostgresChanges) != 2 {
			t.Errorf("postgres_changes = %+v", payload.Config.PostgresChanges)
		}
		for _, spec := range payload.Config.PostgresChanges {
			if spec.Schema != "public" || spec.Table != "messages" || spec.Filter != "user_id=eq.user-1" {
				t.Errorf("spec = %+v", spec)
			}
		}

		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Hold the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func changeFrame(t *testing.T, changeType ChangeType, record report.Record) string {
	t.Helper()
	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatal(err)
	}
	return `{"topic":"realtime:public:messages:user_id=eq.user-1","event":"postgres_changes",` +
		`"payload":{"data":{"type":"` + string(changeType) + `","record":` + string(raw) + `}},"ref":""}`
}

func recvChange(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case change, ok := <-sub.Changes():
		if !ok {
			t.Fatalf("changes closed early: %v", sub.Err())
		}
		return change
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}
	return Change{}
}

func TestSubscribeRefusesEmptyUser(t *testing.T) {
	d := NewDialer("http://platform.invalid", "anon-key", testLogger())
	if _, err := d.Subscribe(context.Background(), "", "jwt-token"); err == nil {
		t.Fatal("expected error for empty user ID")
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	frames := []string{
		// join reply and heartbeat ack must be skipped
		`{"topic":"realtime:public:messages:user_id=eq.user-1","event":"phx_reply","payload":{"status":"ok"},"ref":"1"}`,
		`{"topic":"phoenix","event":"phx_reply","payload":{"status":"ok"},"ref":"2"}`,
		changeFrame(t, ChangeInsert, report.Record{ID: "rec-1", Category: report.CategoryGarbage, Status: report.StatusPending}),
		changeFrame(t, ChangeUpdate, report.Record{ID: "rec-1", Status: report.StatusResolved}),
	}
	srv := feedServer(t, frames)
	defer srv.Close()

	d := NewDialer(srv.URL, "anon-key", testLogger())
	sub, err := d.Subscribe(context.Background(), "user-1", "jwt-token")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	insert := recvChange(t, sub)
	if insert.Type != ChangeInsert || insert.Record.ID != "rec-1" {
		t.Errorf("first change = %+v", insert)
	}
	update := recvChange(t, sub)
	if update.Type != ChangeUpdate || update.Record.Status != report.StatusResolved {
		t.Errorf("second change = %+v", update)
	}
}

func TestSubscribeSkipsUndecodableEvents(t *testing.T) {
	frames := []string{
		`{"topic":"x","event":"postgres_changes","payload":{"data":{"type":"DELETE","record":{}}},"ref":""}`,
		`{"topic":"x","event":"postgres_changes","payload":"not an object","ref":""}`,
		changeFrame(t, ChangeInsert, report.Record{ID: "rec-2"}),
	}
	srv := feedServer(t, frames)
	defer srv.Close()

	d := NewDialer(srv.URL, "anon-key", testLogger())
	sub, err := d.Subscribe(context.Background(), "user-1", "jwt-token")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	change := recvChange(t, sub)
	if change.Record.ID != "rec-2" {
		t.Errorf("change = %+v", change)
	}
}

func TestSubscriptionCloseIsClean(t *testing.T) {
	srv := feedServer(t, nil)
	defer srv.Close()

	d := NewDialer(srv.URL, "anon-key", testLogger())
	sub, err := d.Subscribe(context.Background(), "user-1", "jwt-token")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub.Close()
	sub.Close() // idempotent

	select {
	case _, ok := <-sub.Changes():
		if ok {
			t.Error("unexpected change after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("changes channel never closed")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("Err() = %v, want nil after clean close", err)
	}
}

func TestSubscriptionServerDropSurfacesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var join wireMessage
		conn.ReadJSON(&join)
		conn.Close()
	}))
	defer srv.Close()

	d := NewDialer(srv.URL, "anon-key", testLogger())
	sub, err := d.Subscribe(context.Background(), "user-1", "jwt-token")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	select {
	case _, ok := <-sub.Changes():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("changes channel never closed")
	}
	if sub.Err() == nil {
		t.Error("Err() = nil, want the read failure")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://abc.example.co", "wss://abc.example.co/realtime/v1/websocket?apikey=anon-key&vsn=1.0.0"},
		{"http://localhost:54321", "ws://localhost:54321/realtime/v1/websocket?apikey=anon-key&vsn=1.0.0"},
	}
	for _, tt := range tests {
		d := NewDialer(tt.base, "anon-key", testLogger())
		got, err := d.websocketURL()
		if err != nil {
			t.Fatalf("websocketURL(%q): %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

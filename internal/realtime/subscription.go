// Package realtime subscribes to the platform's row-level change feed
// over a websocket, the read half of the submission pipeline: the relay
// inserts, the platform fans the insert out, this package delivers it.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/civitas-labs/issue-relay/internal/platform"
	"github.com/civitas-labs/issue-relay/internal/report"
	"github.com/gorilla/websocket"
)

// ChangeType is the kind of row-level event delivered by the feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// Change is one delivered row-level event.
type Change struct {
	Type   ChangeType
	Record report.Record
}

// HeartbeatInterval keeps the platform from reaping the socket.
const HeartbeatInterval = 30 * time.Second

// Dialer opens change-feed subscriptions.
type Dialer struct {
	baseURL string // platform base URL, http(s) scheme
	anonKey string
	logger  *logger.Logger
}

func NewDialer(baseURL, anonKey string, logger *logger.Logger) *Dialer {
	return &Dialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		logger:  logger,
	}
}

// wire message envelope of the feed protocol.
type wireMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

type changePayload struct {
	Data struct {
		Type   ChangeType      `json:"type"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

// Subscription is a standing change-feed subscription scoped to one
// user's rows in the messages table.
type Subscription struct {
	conn    *websocket.Conn
	changes chan Change
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe joins the change feed for inserts and updates to the user's
// records. It refuses an empty user ID; a feed for nobody is a bug in
// the caller.
func (d *Dialer) Subscribe(ctx context.Context, userID, accessToken string) (*Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("realtime: empty user ID")
	}

	endpoint, err := d.websocketURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}

	sub := &Subscription{
		conn:    conn,
		changes: make(chan Change, 16),
		done:    make(chan struct{}),
	}

	if err := sub.join(userID, accessToken); err != nil {
		conn.Close()
		return nil, err
	}

	log := d.logger.WithComponent("realtime")
	log.Debug("subscribed to change feed", slog.String("user_id", userID))

	go sub.readLoop(log)
	go sub.heartbeatLoop()

	return sub, nil
}

func (d *Dialer) websocketURL() (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/websocket"
	q := u.Query()
	q.Set("apikey", d.anonKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// join sends the topic join frame asking for INSERT and UPDATE events on
// public.messages filtered to this user.
func (s *Subscription) join(userID, accessToken string) error {
	filter := "user_id=eq." + userID
	topic := "realtime:public:" + platform.MessagesTable + ":" + filter

	type changeSpec struct {
		Event  string `json:"event"`
		Schema string `json:"schema"`
		Table  string `json:"table"`
		Filter string `json:"filter"`
	}
	payload := map[string]any{
		"access_token": accessToken,
		"config": map[string]any{
			"postgres_changes": []changeSpec{
				{Event: string(ChangeInsert), Schema: "public", Table: platform.MessagesTable, Filter: filter},
				{Event: string(ChangeUpdate), Schema: "public", Table: platform.MessagesTable, Filter: filter},
			},
		},
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	join := wireMessage{Topic: topic, Event: "phx_join", Payload: rawPayload, Ref: "1"}
	if err := s.conn.WriteJSON(join); err != nil {
		return fmt.Errorf("realtime: join: %w", err)
	}
	return nil
}

// Changes delivers decoded insert/update events in commit order. The
// channel closes when the subscription ends; check Err afterwards.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

// Err reports why the subscription ended, nil for a clean Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *Subscription) readLoop(log *logger.Logger) {
	defer close(s.changes)

	for {
		var msg wireMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
				// clean shutdown
			default:
				s.fail(err)
				s.Close()
			}
			return
		}

		if msg.Event != "postgres_changes" {
			// join replies, heartbeat acks, presence noise
			continue
		}

		var payload changePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Warn("undecodable change event dropped", slog.String("error", err.Error()))
			continue
		}
		if payload.Data.Type != ChangeInsert && payload.Data.Type != ChangeUpdate {
			continue
		}

		var record report.Record
		if err := json.Unmarshal(payload.Data.Record, &record); err != nil {
			log.Warn("undecodable change record dropped", slog.String("error", err.Error()))
			continue
		}

		select {
		case s.changes <- Change{Type: payload.Data.Type, Record: record}:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) heartbeatLoop() {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	ref := 2
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			beat := wireMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage("{}"),
				Ref:     strconv.Itoa(ref),
			}
			ref++
			if err := s.conn.WriteJSON(beat); err != nil {
				s.fail(err)
				s.Close()
				return
			}
		}
	}
}

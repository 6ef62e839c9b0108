package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

const (
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
	eventChanges   = "postgres_changes"

	writeTimeout = 10 * time.Second
)

var ErrAlreadySubscribed = errors.New("collection already subscribed")

// envelope is one Phoenix channel message.
type envelope struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
	JoinRef string          `json:"join_ref,omitempty"`
}

// WebsocketFeed subscribes to collections over a single Phoenix-protocol
// websocket. Losing the socket drops every subscription on it; the next
// Subscribe dials again.
type WebsocketFeed struct {
	url       string
	heartbeat time.Duration
	dialer    websocket.Dialer
	logger    *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	ref    int
	topics map[string]*wsSubscription
}

func NewWebsocketFeed(cfg config.RealtimeConfig, logger *slog.Logger) *WebsocketFeed {
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &WebsocketFeed{
		url:       socketURL(cfg.URL, cfg.APIKey),
		heartbeat: heartbeat,
		dialer:    websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:    logger.With("component", "websocket_feed"),
		topics:    make(map[string]*wsSubscription),
	}
}

// socketURL turns the store's base URL into its realtime endpoint.
func socketURL(base, apiKey string) string {
	u := strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(u, "https"):
		u = "wss" + u[len("https"):]
	case strings.HasPrefix(u, "http"):
		u = "ws" + u[len("http"):]
	}
	return u + "/realtime/v1/websocket?apikey=" + url.QueryEscape(apiKey) + "&vsn=1.0.0"
}

func topicFor(collection string) string {
	return "realtime:public:" + collection
}

func (f *WebsocketFeed) Subscribe(ctx context.Context, collection string, handler func(domain.RawEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	topic := topicFor(collection)
	if _, ok := f.topics[topic]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, collection)
	}

	if err := f.connectLocked(ctx); err != nil {
		return nil, err
	}

	ref := f.nextRef()
	join := map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]any{
				{"event": "*", "schema": "public", "table": collection},
			},
		},
	}
	if err := f.sendLocked(topic, eventJoin, join, ref, ref); err != nil {
		return nil, fmt.Errorf("send join: %w", err)
	}

	sub := &wsSubscription{
		feed:       f,
		topic:      topic,
		collection: collection,
		joinRef:    ref,
		handler:    handler,
		dropped:    make(chan error, 1),
	}
	f.topics[topic] = sub

	f.logger.Debug("joined channel", "topic", topic)
	return sub, nil
}

// Close leaves the socket. Open subscriptions end without a drop signal.
func (f *WebsocketFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.topics = make(map[string]*wsSubscription)
	if f.conn == nil {
		return nil
	}

	close(f.done)
	conn := f.conn
	f.conn = nil

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	conn.Close()
	if err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return nil
}

func (f *WebsocketFeed) connectLocked(ctx context.Context) error {
	if f.conn != nil {
		return nil
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	f.done = make(chan struct{})

	go f.readLoop(conn)
	go f.heartbeatLoop(conn, f.done)

	f.logger.Info("connected")
	return nil
}

func (f *WebsocketFeed) nextRef() string {
	f.ref++
	return strconv.Itoa(f.ref)
}

func (f *WebsocketFeed) sendLocked(topic, event string, payload any, ref, joinRef string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := envelope{
		Topic:   topic,
		Event:   event,
		Payload: body,
		Ref:     ref,
		JoinRef: joinRef,
	}
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(msg)
}

func (f *WebsocketFeed) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			f.connectionLost(conn, err)
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.logger.Warn("dropping unreadable frame", "error", err)
			continue
		}
		f.dispatch(env)
	}
}

// dispatch runs on the read loop so a topic's events reach its handler in
// arrival order.
func (f *WebsocketFeed) dispatch(env envelope) {
	f.mu.Lock()
	sub := f.topics[env.Topic]
	f.mu.Unlock()

	if sub == nil {
		return
	}

	switch env.Event {
	case eventChanges:
		sub.handler(domain.RawEvent{Collection: sub.collection, Payload: env.Payload})
	case eventReply:
		if env.Ref != sub.joinRef {
			return
		}
		if status := gjson.GetBytes(env.Payload, "status").String(); status != "ok" {
			f.remove(sub)
			sub.drop(fmt.Errorf("join %s refused: %s", env.Topic, status))
		}
	case eventError, eventClose:
		f.remove(sub)
		sub.drop(fmt.Errorf("channel %s: %s", env.Topic, env.Event))
	}
}

func (f *WebsocketFeed) remove(sub *wsSubscription) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.topics[sub.topic] != sub {
		return false
	}
	delete(f.topics, sub.topic)
	return true
}

func (f *WebsocketFeed) connectionLost(conn *websocket.Conn, err error) {
	f.mu.Lock()
	if f.conn != conn {
		f.mu.Unlock()
		return
	}
	close(f.done)
	conn.Close()
	f.conn = nil
	lost := f.topics
	f.topics = make(map[string]*wsSubscription)
	f.mu.Unlock()

	f.logger.Warn("connection lost", "subscriptions", len(lost), "error", err)
	for _, sub := range lost {
		sub.drop(fmt.Errorf("connection lost: %w", err))
	}
}

func (f *WebsocketFeed) heartbeatLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(f.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			f.mu.Lock()
			if f.conn == conn {
				if err := f.sendLocked("phoenix", eventHeartbeat, map[string]any{}, f.nextRef(), ""); err != nil {
					f.logger.Warn("heartbeat failed", "error", err)
				}
			}
			f.mu.Unlock()
		}
	}
}

type wsSubscription struct {
	feed       *WebsocketFeed
	topic      string
	collection string
	joinRef    string
	handler    func(domain.RawEvent)
	dropped    chan error
	once       sync.Once
}

func (s *wsSubscription) Dropped() <-chan error {
	return s.dropped
}

func (s *wsSubscription) drop(err error) {
	s.once.Do(func() {
		s.dropped <- err
	})
}

func (s *wsSubscription) Unsubscribe(ctx context.Context) error {
	f := s.feed
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.topics[s.topic] != s {
		return nil
	}
	delete(f.topics, s.topic)

	if f.conn == nil {
		return nil
	}
	if err := f.sendLocked(s.topic, eventLeave, map[string]any{}, f.nextRef(), s.joinRef); err != nil {
		return fmt.Errorf("send leave: %w", err)
	}
	return nil
}

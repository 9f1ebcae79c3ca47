// Package messaging fans board events out over NATS so that relays attached
// to other processes can push new entries and presence changes to members.
package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/whisper/board/internal/entry"
)

// SubjectBoard is the subject root. Events for a session are published on
// board.<session_id>.
const SubjectBoard = "board"

// Event types.
const (
	EventEntryAdded   = "entry_added"
	EventEntryDeleted = "entry_deleted"
	EventPresence     = "presence"
)

// Event is the JSON payload published for every board change.
type Event struct {
	Type        string       `json:"type"`
	SessionID   string       `json:"session_id"`
	Entry       *entry.Entry `json:"entry,omitempty"`
	EntryID     string       `json:"entry_id,omitempty"`
	OnlineCount int          `json:"online_count,omitempty"`
	Timestamp   int64        `json:"ts"`
}

// SessionSubject returns the subject for one session.
func SessionSubject(sessionID string) string {
	return SubjectBoard + "." + sessionID
}

// Config holds connection settings.
type Config struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int // -1 for unlimited
}

// DefaultConfig returns defaults for a local broker.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "board",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// Client publishes and subscribes to board events.
type Client struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Connect dials NATS. The initial connection must succeed; later drops are
// retried according to cfg.
func Connect(cfg Config) (*Client, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats: reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	slog.Info("nats: connected", "url", nc.ConnectedUrl())

	return NewClient(nc), nil
}

// NewClient wraps an existing connection.
func NewClient(nc *nats.Conn) *Client {
	return &Client{conn: nc, subs: make(map[string]*nats.Subscription)}
}

// Publish sends ev on its session subject. A zero Timestamp is filled in.
func (c *Client) Publish(ev Event) error {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.conn.Publish(SessionSubject(ev.SessionID), data)
}

// SubscribeSession delivers every event for sessionID to handler until
// Unsubscribe or Close. Payloads that fail to decode are dropped.
func (c *Client) SubscribeSession(sessionID string, handler func(Event)) error {
	subject := SessionSubject(sessionID)
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Warn("nats: bad event payload", "subject", msg.Subject, "err", err)
			return
		}
		handler(ev)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	if old, ok := c.subs[subject]; ok {
		_ = old.Unsubscribe()
	}
	c.subs[subject] = sub
	c.mu.Unlock()
	return nil
}

// Unsubscribe stops delivery for sessionID.
func (c *Client) Unsubscribe(sessionID string) error {
	subject := SessionSubject(sessionID)

	c.mu.Lock()
	sub, ok := c.subs[subject]
	delete(c.subs, subject)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("nats: not subscribed to %s", subject)
	}
	return sub.Unsubscribe()
}

// Close drains subscriptions and the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			slog.Warn("nats: drain subscription", "subject", subject, "err", err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)
	c.mu.Unlock()

	if err := c.conn.Drain(); err != nil {
		slog.Warn("nats: drain connection", "err", err)
	}
}

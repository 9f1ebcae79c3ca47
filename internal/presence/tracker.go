// Package presence tracks which members of a session are online. A member is
// online while its last heartbeat is younger than the presence window, which
// is the client heartbeat interval plus a fixed grace period.
package presence

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/whisper/board/internal/metrics"
)

// ErrInvalidArgument is returned by Track for empty identifiers.
var ErrInvalidArgument = errors.New("invalid argument")

// Config holds presence window tuning parameters.
type Config struct {
	HeartbeatInterval time.Duration // how often clients send a heartbeat (default: 30s)
	Grace             time.Duration // slack on top of the interval (default: 10s)
}

// DefaultConfig returns the default heartbeat interval and grace.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		Grace:             10 * time.Second,
	}
}

// Window returns HeartbeatInterval + Grace, the staleness cutoff.
func (c Config) Window() time.Duration {
	return c.HeartbeatInterval + c.Grace
}

// Tracker records the last heartbeat of every member per session.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]map[string]time.Time // sessionID -> memberID -> lastSeenAt
	window   time.Duration                   // fixed at construction
	now      func() time.Time
}

// NewTracker creates an empty Tracker. The presence window is computed once
// from cfg. A now of nil means time.Now.
func NewTracker(cfg Config, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		sessions: make(map[string]map[string]time.Time),
		window:   cfg.Window(),
		now:      now,
	}
}

// Window returns the presence window used by this tracker.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Track marks the member as seen now. Safe to call on every heartbeat.
func (t *Tracker) Track(sessionID, memberID string) error {
	if sessionID == "" || memberID == "" {
		return fmt.Errorf("presence: session and member id are required: %w", ErrInvalidArgument)
	}

	t.mu.Lock()
	members, ok := t.sessions[sessionID]
	if !ok {
		members = make(map[string]time.Time)
		t.sessions[sessionID] = members
	}
	members[memberID] = t.now()
	t.mu.Unlock()

	metrics.HeartbeatsTotal.Inc()
	return nil
}

// OnlineCount returns how many members of the session are online. Stale
// records are left in place.
func (t *Tracker) OnlineCount(sessionID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	n := 0
	for _, seen := range t.sessions[sessionID] {
		if t.online(now, seen) {
			n++
		}
	}
	return n
}

// Online returns the sorted ids of the members currently online.
func (t *Tracker) Online(sessionID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	out := []string{}
	for member, seen := range t.sessions[sessionID] {
		if t.online(now, seen) {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return out
}

// LastSeen returns the member's last heartbeat, stale or not.
func (t *Tracker) LastSeen(sessionID, memberID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen, ok := t.sessions[sessionID][memberID]
	return seen, ok
}

// Prune drops records that have been stale for at least one more window,
// so a member that comes back shortly after going stale keeps its record.
// Returns the number of records removed.
func (t *Tracker) Prune(now time.Time) int {
	cutoff := 2 * t.window

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for sid, members := range t.sessions {
		for member, seen := range members {
			if now.Sub(seen) >= cutoff {
				delete(members, member)
				removed++
			}
		}
		if len(members) == 0 {
			delete(t.sessions, sid)
		}
	}
	return removed
}

// Sweep adapts Prune to the sweep.Target contract.
func (t *Tracker) Sweep(now time.Time) int {
	return t.Prune(now)
}

func (t *Tracker) online(now, seen time.Time) bool {
	return now.Sub(seen) < t.window
}

package entry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whisper/board/internal/metrics"
)

// DefaultMaxTTL is the upper bound applied to requested TTLs when no
// WithMaxTTL option is given.
const DefaultMaxTTL = 24 * time.Hour

// record is a stored entry plus its insertion sequence, used to break
// CreatedAt ties.
type record struct {
	entry Entry
	seq   uint64
}

// Store is a concurrency-safe in-memory entry store.
//
// Entries live in one map per session. A single mutex guards all state,
// including lazy eviction, so a Get racing a Delete on the same id always
// resolves to exactly one of them seeing the entry.
type Store struct {
	mu         sync.Mutex
	partitions map[string]map[string]*record // sessionID -> entryID -> record
	expiry     expiryHeap
	seq        uint64
	maxTTL     time.Duration
	now        func() time.Time // injectable for deterministic tests
	newID      func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the store's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMaxTTL sets the TTL ceiling. Values below one second are ignored.
func WithMaxTTL(d time.Duration) Option {
	return func(s *Store) {
		if d >= time.Second {
			s.maxTTL = d
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		partitions: make(map[string]map[string]*record),
		maxTTL:     DefaultMaxTTL,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTTL returns the current TTL ceiling.
func (s *Store) MaxTTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxTTL
}

// SetMaxTTL replaces the TTL ceiling for subsequent Add calls. Existing
// entries keep their expiry. Values below one second are ignored.
func (s *Store) SetMaxTTL(d time.Duration) {
	if d < time.Second {
		return
	}
	s.mu.Lock()
	s.maxTTL = d
	s.mu.Unlock()
}

// Add stores a new entry in the session and returns it.
//
// Rules:
//   - sessionID, memberID and text must be non-empty; text must pass ValidateText.
//   - ttlSeconds <= 0 is rejected with ErrInvalidArgument.
//   - ttlSeconds above MaxTTL is clamped; the bool result reports clamping.
func (s *Store) Add(sessionID, memberID, text string, ttlSeconds int, imageURL string) (Entry, bool, error) {
	if sessionID == "" {
		return Entry{}, false, fmt.Errorf("entry: session id is empty: %w", ErrInvalidArgument)
	}
	if memberID == "" {
		return Entry{}, false, fmt.Errorf("entry: member id is empty: %w", ErrInvalidArgument)
	}
	if err := ValidateText(text); err != nil {
		return Entry{}, false, err
	}
	if ttlSeconds <= 0 {
		return Entry{}, false, fmt.Errorf("entry: ttl %ds must be positive: %w", ttlSeconds, ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clamped := false
	if limit := int64(s.maxTTL / time.Second); int64(ttlSeconds) > limit {
		ttlSeconds = int(limit)
		clamped = true
	}

	now := s.now()
	e := Entry{
		ID:         s.newID(),
		SessionID:  sessionID,
		MemberID:   memberID,
		Text:       text,
		ImageURL:   imageURL,
		TTLSeconds: ttlSeconds,
		CreatedAt:  now,
		ExpiresAt:  now.Add(time.Duration(ttlSeconds) * time.Second),
	}

	s.seq++
	part, ok := s.partitions[sessionID]
	if !ok {
		part = make(map[string]*record)
		s.partitions[sessionID] = part
	}
	part[e.ID] = &record{entry: e, seq: s.seq}
	s.expiry.push(expiryItem{sessionID: sessionID, entryID: e.ID, seq: s.seq, expiresAt: e.ExpiresAt})

	metrics.EntriesTotal.WithLabelValues(metrics.EntryAdded).Inc()
	if clamped {
		metrics.EntriesTotal.WithLabelValues(metrics.EntryClamped).Inc()
	}

	return e, clamped, nil
}

// GetAll returns the live entries of a session, newest first. Entries with
// equal CreatedAt come back in reverse insertion order. Expired entries met
// during the scan are evicted. Returns an empty slice, never nil.
func (s *Store) GetAll(sessionID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.partitions[sessionID]
	if !ok {
		return []Entry{}
	}

	now := s.now()
	live := make([]*record, 0, len(part))
	for id, rec := range part {
		if !rec.entry.IsLive(now) {
			s.evictLocked(sessionID, id)
			continue
		}
		live = append(live, rec)
	}

	sort.Slice(live, func(i, j int) bool {
		a, b := live[i], live[j]
		if a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.seq > b.seq
		}
		return a.entry.CreatedAt.After(b.entry.CreatedAt)
	})

	out := make([]Entry, len(live))
	for i, rec := range live {
		out[i] = rec.entry
	}
	return out
}

// Get returns a single live entry. Missing and expired entries both yield
// ErrNotFound; an expired entry is evicted on the way out.
func (s *Store) Get(sessionID, entryID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookupLocked(sessionID, entryID)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return rec.entry, nil
}

// Delete removes a live entry and reports whether one was removed. Missing
// or already expired entries report false.
func (s *Store) Delete(sessionID, entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookupLocked(sessionID, entryID); !ok {
		return false
	}
	s.removeLocked(sessionID, entryID)
	metrics.EntriesTotal.WithLabelValues(metrics.EntryDeleted).Inc()
	return true
}

// Count returns the number of live entries in a session, evicting expired
// ones it meets.
func (s *Store) Count(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	part, ok := s.partitions[sessionID]
	if !ok {
		return 0
	}
	now := s.now()
	n := 0
	for id, rec := range part {
		if !rec.entry.IsLive(now) {
			s.evictLocked(sessionID, id)
			continue
		}
		n++
	}
	return n
}

// RemoveExpired drains every entry whose expiry is at or before now, in
// expiry order, and returns how many were removed. Entries already evicted
// lazily or deleted are skipped. Used by the background sweep.
func (s *Store) RemoveExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for {
		it, ok := s.expiry.popDue(now)
		if !ok {
			break
		}
		part, ok := s.partitions[it.sessionID]
		if !ok {
			continue
		}
		rec, ok := part[it.entryID]
		if !ok || rec.seq != it.seq {
			continue
		}
		s.removeLocked(it.sessionID, it.entryID)
		removed++
	}

	if removed > 0 {
		metrics.EntriesTotal.WithLabelValues(metrics.EntryExpired).Add(float64(removed))
	}
	return removed
}

// Sweep adapts RemoveExpired to the sweep.Target contract.
func (s *Store) Sweep(now time.Time) int {
	return s.RemoveExpired(now)
}

// lookupLocked returns the live record for an id, evicting it if expired.
// Caller must hold s.mu.
func (s *Store) lookupLocked(sessionID, entryID string) (*record, bool) {
	part, ok := s.partitions[sessionID]
	if !ok {
		return nil, false
	}
	rec, ok := part[entryID]
	if !ok {
		return nil, false
	}
	if !rec.entry.IsLive(s.now()) {
		s.evictLocked(sessionID, entryID)
		return nil, false
	}
	return rec, true
}

// evictLocked removes an expired entry and counts it. Caller must hold s.mu.
func (s *Store) evictLocked(sessionID, entryID string) {
	s.removeLocked(sessionID, entryID)
	metrics.EntriesTotal.WithLabelValues(metrics.EntryExpired).Inc()
}

// removeLocked deletes an entry and drops the partition once it is empty.
// Caller must hold s.mu. Deleting from a map while ranging over it is safe.
func (s *Store) removeLocked(sessionID, entryID string) {
	part, ok := s.partitions[sessionID]
	if !ok {
		return
	}
	delete(part, entryID)
	if len(part) == 0 {
		delete(s.partitions, sessionID)
	}
}

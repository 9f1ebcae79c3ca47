// Package entry holds short-lived board entries partitioned by session. Entries
// expire after their TTL and are evicted lazily when a read or delete runs into
// them. An optional sweep (RemoveExpired) drains expired entries in
// expiry order for long-running processes.
package entry

import "time"

// Entry is a single ephemeral piece of content posted to a session.
type Entry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	MemberID   string    `json:"member_id"`   // contributor, referential only
	Text       string    `json:"text"`
	ImageURL   string    `json:"image_url,omitempty"`
	TTLSeconds int       `json:"ttl_seconds"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"` // always CreatedAt + TTLSeconds
}

// IsLive reports whether the entry is still visible at now.
func (e Entry) IsLive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Remaining returns how long the entry stays live after now, or zero.
func (e Entry) Remaining(now time.Time) time.Duration {
	if !e.IsLive(now) {
		return 0
	}
	return e.ExpiresAt.Sub(now)
}

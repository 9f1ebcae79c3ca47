package entry

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/board/internal/testutil"
)

func newTestStore(opts ...Option) (*Store, *testutil.Clock) {
	clk := testutil.NewClock(time.Unix(1_700_000_000, 0))
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return NewStore(opts...), clk
}

func TestStoreAdd_Get(t *testing.T) {
	store, clk := newTestStore()

	e, clamped, err := store.Add("s1", "m1", "hello", 60, "")
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 60, e.TTLSeconds)
	assert.Equal(t, 60*time.Second, e.ExpiresAt.Sub(e.CreatedAt))

	got, err := store.Get("s1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, got)

	t.Run("expires after ttl", func(t *testing.T) {
		clk.Advance(61 * time.Second)

		_, err := store.Get("s1", e.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, store.GetAll("s1"))
	})
}

func TestStoreAdd_PreservesFields(t *testing.T) {
	store, _ := newTestStore()

	e, _, err := store.Add("s1", "m1", "with image", 30, "https://cdn.example/img.png")
	require.NoError(t, err)

	got, err := store.Get("s1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, "with image", got.Text)
	assert.Equal(t, "m1", got.MemberID)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "https://cdn.example/img.png", got.ImageURL)
	assert.Equal(t, 30, got.TTLSeconds)
}

func TestStoreAdd_InvalidArguments(t *testing.T) {
	store, _ := newTestStore()

	cases := []struct {
		name    string
		session string
		member  string
		text    string
		ttl     int
	}{
		{"empty session", "", "m1", "hi", 10},
		{"empty member", "s1", "", "hi", 10},
		{"empty text", "s1", "m1", "", 10},
		{"blank text", "s1", "m1", "   \n\t", 10},
		{"zero ttl", "s1", "m1", "hi", 0},
		{"negative ttl", "s1", "m1", "hi", -5},
		{"text too long", "s1", "m1", strings.Repeat("a", MaxTextBytes+1), 10},
		{"invalid utf8", "s1", "m1", "bad\xff", 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := store.Add(tc.session, tc.member, tc.text, tc.ttl, "")
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
		})
	}

	assert.Empty(t, store.GetAll("s1"), "rejected adds must not be stored")
}

func TestStoreAdd_ClampsToMaxTTL(t *testing.T) {
	store, clk := newTestStore(WithMaxTTL(time.Hour))

	e, clamped, err := store.Add("s1", "m1", "long lived", 7200, "")
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, 3600, e.TTLSeconds)
	assert.Equal(t, time.Hour, e.ExpiresAt.Sub(e.CreatedAt))

	_, clamped, err = store.Add("s1", "m1", "exactly max", 3600, "")
	require.NoError(t, err)
	assert.False(t, clamped, "ttl equal to max is not clamped")

	clk.Advance(time.Hour)
	_, err = store.Get("s1", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSetMaxTTL(t *testing.T) {
	store, _ := newTestStore()
	assert.Equal(t, DefaultMaxTTL, store.MaxTTL())

	store.SetMaxTTL(10 * time.Second)
	assert.Equal(t, 10*time.Second, store.MaxTTL())

	store.SetMaxTTL(0)
	assert.Equal(t, 10*time.Second, store.MaxTTL(), "sub-second values are ignored")

	e, clamped, err := store.Add("s1", "m1", "x", 60, "")
	require.NoError(t, err)
	assert.True(t, clamped)
	assert.Equal(t, 10, e.TTLSeconds)
}

func TestStoreGetAll_OrderingAndIsolation(t *testing.T) {
	store, clk := newTestStore()

	first, _, _ := store.Add("s1", "m1", "first", 60, "")
	clk.Advance(time.Second)
	second, _, _ := store.Add("s1", "m2", "second", 60, "")
	// same instant: later insertion comes first
	third, _, _ := store.Add("s1", "m1", "third", 60, "")
	other, _, _ := store.Add("s2", "m1", "other session", 60, "")

	all := store.GetAll("s1")
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID},
		[]string{all[0].ID, all[1].ID, all[2].ID})

	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "createdAt must be non-increasing")
	}
	for _, e := range all {
		assert.Equal(t, "s1", e.SessionID)
		assert.NotEqual(t, other.ID, e.ID)
	}

	assert.Len(t, store.GetAll("s2"), 1)
}

func TestStoreGetAll_EmptySession(t *testing.T) {
	store, _ := newTestStore()

	all := store.GetAll("nobody-here")
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestStoreGetAll_EvictsExpired(t *testing.T) {
	store, clk := newTestStore()

	short, _, _ := store.Add("s1", "m1", "short", 5, "")
	long, _, _ := store.Add("s1", "m1", "long", 60, "")

	clk.Advance(5 * time.Second) // now == short.ExpiresAt, so it is no longer live

	all := store.GetAll("s1")
	require.Len(t, all, 1)
	assert.Equal(t, long.ID, all[0].ID)

	store.mu.Lock()
	_, stillThere := store.partitions["s1"][short.ID]
	store.mu.Unlock()
	assert.False(t, stillThere, "expired entry should be evicted by the scan")
}

func TestStoreGet_NeverExisted(t *testing.T) {
	store, _ := newTestStore()
	store.Add("s1", "m1", "hello", 60, "")

	_, err := store.Get("s1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get("unknown-session", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreGet_WrongSession(t *testing.T) {
	store, _ := newTestStore()
	e, _, _ := store.Add("s1", "m1", "hello", 60, "")

	_, err := store.Get("s2", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	store, clk := newTestStore()

	e, _, _ := store.Add("s1", "m1", "bye", 60, "")

	assert.True(t, store.Delete("s1", e.ID))
	_, err := store.Get("s1", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.False(t, store.Delete("s1", e.ID), "second delete reports false")
	assert.False(t, store.Delete("s1", "never-existed"))

	expired, _, _ := store.Add("s1", "m1", "soon gone", 1, "")
	clk.Advance(2 * time.Second)
	assert.False(t, store.Delete("s1", expired.ID), "expired entries report false")
}

func TestStoreCount(t *testing.T) {
	store, clk := newTestStore()

	store.Add("s1", "m1", "a", 10, "")
	store.Add("s1", "m1", "b", 20, "")
	assert.Equal(t, 2, store.Count("s1"))
	assert.Equal(t, 0, store.Count("s2"))

	clk.Advance(15 * time.Second)
	assert.Equal(t, 1, store.Count("s1"))
}

func TestStoreRemoveExpired(t *testing.T) {
	store, clk := newTestStore()

	a, _, _ := store.Add("s1", "m1", "a", 10, "")
	b, _, _ := store.Add("s2", "m1", "b", 20, "")
	c, _, _ := store.Add("s1", "m2", "c", 30, "")
	store.Delete("s1", a.ID)

	assert.Equal(t, 0, store.RemoveExpired(clk.Now()))

	clk.Advance(25 * time.Second)
	assert.Equal(t, 1, store.RemoveExpired(clk.Now()), "deleted entry is skipped, b is removed")

	_, err := store.Get("s2", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get("s1", c.ID)
	assert.NoError(t, err)

	store.mu.Lock()
	_, hasS2 := store.partitions["s2"]
	heapLen := store.expiry.Len()
	store.mu.Unlock()
	assert.False(t, hasS2, "empty partitions are dropped")
	assert.Equal(t, 1, heapLen)
}

func TestStoreRemoveExpired_SkipsLazilyEvicted(t *testing.T) {
	store, clk := newTestStore()

	e, _, _ := store.Add("s1", "m1", "a", 5, "")
	clk.Advance(10 * time.Second)

	_, err := store.Get("s1", e.ID)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, store.Sweep(clk.Now()))
}

func TestStoreConcurrentAdds(t *testing.T) {
	store := NewStore()

	const n = 200
	var wg sync.WaitGroup
	ids := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _, err := store.Add("shared", "m", "concurrent", 60, "")
			if assert.NoError(t, err) {
				ids <- e.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Len(t, store.GetAll("shared"), n)
}

func TestStoreConcurrentGetDelete(t *testing.T) {
	store := NewStore()

	for i := 0; i < 100; i++ {
		e, _, err := store.Add("s1", "m1", "race", 60, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var deleted bool
		var getErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleted = store.Delete("s1", e.ID)
		}()
		go func() {
			defer wg.Done()
			_, getErr = store.Get("s1", e.ID)
		}()
		wg.Wait()

		assert.True(t, deleted)
		if getErr != nil {
			assert.ErrorIs(t, getErr, ErrNotFound)
		}
		_, err = store.Get("s1", e.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	}
}

func TestStoreInstancesAreIndependent(t *testing.T) {
	a := NewStore()
	b := NewStore()

	e, _, err := a.Add("s1", "m1", "only in a", 60, "")
	require.NoError(t, err)

	_, err = b.Get("s1", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, b.GetAll("s1"))
}

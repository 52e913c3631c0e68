package sync

import (
	"context"
	"io"
	"log/slog"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/storage"
)

var t0 = time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type clock struct {
	mu  stdsync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type device struct {
	db    *storage.DB
	store *storage.CardStore
}

func newDevice(t *testing.T) device {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := storage.NewCardStore(db,
		storage.WithFlushDelay(time.Hour),
		storage.WithClock(func() time.Time { return t0 }),
		storage.WithLogger(discard))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return device{db: db, store: store}
}

// study creates a reviewed card and marks the database changed at at.
func (d device) study(t *testing.T, lemma string, reps int, at time.Time) domain.Card {
	t.Helper()
	c := domain.NewCard(lemma, "", domain.EntryWord, at)
	c.Reps = reps
	c.State = domain.Review
	c.Stability = 3
	c.Difficulty = 5
	c.LastReview = at
	c.Due = at.Add(72 * time.Hour)
	require.NoError(t, d.store.Update(c))
	require.NoError(t, d.db.TouchLastUpdated(context.Background(), at))
	return c
}

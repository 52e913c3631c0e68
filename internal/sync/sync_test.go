package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/domain"
)

func reconcileCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(discard,
		&catalog.Entry{Lemma: "bank", Senses: []catalog.Sense{
			{ID: "river", POS: "noun", Definition: "the land beside a river"},
			{ID: "money", POS: "noun", Definition: "an institution that keeps money"},
		}},
		&catalog.Entry{Lemma: "affect", Senses: []catalog.Sense{{POS: "verb", Definition: "to influence"}}},
	)
	require.NoError(t, err)
	return cat
}

func addCard(t *testing.T, d device, lemma, sense string, reps int) domain.Key {
	t.Helper()
	c := domain.NewCard(lemma, sense, domain.EntryWord, t0)
	c.Reps = reps
	if reps > 0 {
		c.State = domain.Review
		c.LastReview = t0
	}
	require.NoError(t, d.store.Update(c))
	return c.Key()
}

func addLog(t *testing.T, d device, k domain.Key, at time.Time) {
	t.Helper()
	require.NoError(t, d.db.AppendReviewLog(context.Background(), domain.ReviewLog{
		Lemma: k.Lemma, SenseID: k.SenseID, Rating: domain.Good, ReviewedAt: at,
		StateBefore: domain.New, StateAfter: domain.Learning,
	}))
}

func TestReconcileMigratesStaleSense(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	stale := addCard(t, d, "bank", "finance", 3)
	addLog(t, d, stale, t0)

	rep, err := Reconcile(ctx, d.store, d.db, reconcileCatalog(t), discard)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Migrated: 1}, rep)

	_, ok := d.store.Get("bank", "finance")
	assert.False(t, ok)
	card, ok := d.store.Get("bank", "river")
	require.True(t, ok)
	assert.Equal(t, 3, card.Reps)

	logs, err := d.db.ReviewLogsFor(ctx, card.Key())
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	logs, err = d.db.ReviewLogsFor(ctx, stale)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestReconcileMergeKeepsMoreReviewedCard(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	addCard(t, d, "bank", "river", 1)
	stale := addCard(t, d, "bank", "finance", 5)
	addLog(t, d, stale, t0.Add(time.Minute))
	addLog(t, d, domain.NewKey("bank", "river"), t0)

	rep, err := Reconcile(ctx, d.store, d.db, reconcileCatalog(t), discard)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Merged)

	card, ok := d.store.Get("bank", "river")
	require.True(t, ok)
	assert.Equal(t, 5, card.Reps)
	assert.Len(t, d.store.CardsByLemma("bank"), 1)

	logs, err := d.db.ReviewLogsFor(ctx, card.Key())
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestReconcileDeletesOrphans(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	orphan := addCard(t, d, "zeitgeist", "", 2)
	addLog(t, d, orphan, t0)
	addCard(t, d, "affect", "", 1)
	require.NoError(t, d.store.ForceFlush(ctx))

	rep, err := Reconcile(ctx, d.store, d.db, reconcileCatalog(t), discard)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Orphaned)
	assert.Equal(t, 2, rep.Checked)

	_, ok := d.store.Get("zeitgeist", "")
	assert.False(t, ok)
	logs, err := d.db.ReviewLogsFor(ctx, orphan)
	require.NoError(t, err)
	assert.Empty(t, logs)

	records, err := d.db.LoadCards(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "affect", records[0].Lemma)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	addCard(t, d, "bank", "finance", 3)
	addCard(t, d, "bank", "money", 1)
	addCard(t, d, "zeitgeist", "", 2)
	addCard(t, d, "affect", "", 1)
	cat := reconcileCatalog(t)

	_, err := Reconcile(ctx, d.store, d.db, cat, discard)
	require.NoError(t, err)
	before := d.store.AllCards()

	rep, err := Reconcile(ctx, d.store, d.db, cat, discard)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 3}, rep)
	assert.Equal(t, before, d.store.AllCards())
}

func TestReconcileRefusesEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	k := addCard(t, d, "affect", "", 2)
	addLog(t, d, k, t0)
	require.NoError(t, d.store.ForceFlush(ctx))

	empty, err := catalog.New(discard)
	require.NoError(t, err)

	rep, err := Reconcile(ctx, d.store, d.db, empty, discard)
	require.ErrorIs(t, err, ErrEmptyCatalog)
	assert.Zero(t, rep)

	_, ok := d.store.Get("affect", "")
	assert.True(t, ok)
	logs, err := d.db.ReviewLogsFor(ctx, k)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexicard/internal/domain"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newDevice(t)
	src.study(t, "affect", 3, t0)
	require.NoError(t, src.db.AppendReviewLog(ctx, domain.ReviewLog{
		Lemma: "affect", SenseID: domain.PrimarySense, Rating: domain.Good, ReviewedAt: t0,
		StateBefore: domain.New, StateAfter: domain.Learning,
	}))

	b, err := Export(ctx, src.db, src.store, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0.UnixMilli(), b.TS)
	assert.Len(t, b.Cards, 1)
	assert.Len(t, b.Logs, 1)
	assert.NotEmpty(t, b.Device)

	blob, err := EncodeBundle(b)
	require.NoError(t, err)

	dst := newDevice(t)
	got, err := Import(ctx, dst.db, dst.store, blob, false)
	require.NoError(t, err)
	assert.Equal(t, b.TS, got.TS)

	card, ok := dst.store.Get("affect", "")
	require.True(t, ok)
	assert.Equal(t, 3, card.Reps)
	assert.Equal(t, domain.Review, card.State)

	logs, err := dst.db.ReviewLogsFor(ctx, card.Key())
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	updated, err := dst.db.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, updated.Equal(t0))

	srcID, err := src.db.DeviceID(ctx)
	require.NoError(t, err)
	dstID, err := dst.db.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, srcID, dstID, "import must keep the local device id")
}

func TestExportStampsUntouchedDatabase(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)

	b, err := Export(ctx, d.db, d.store, t0)
	require.NoError(t, err)
	assert.Equal(t, t0.UnixMilli(), b.TS)

	updated, err := d.db.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, updated.Equal(t0))
}

func TestExportIncludesPendingWrites(t *testing.T) {
	ctx := context.Background()
	d := newDevice(t)
	d.study(t, "affect", 1, t0)
	require.Equal(t, 1, d.store.Pending())

	b, err := Export(ctx, d.db, d.store, t0)
	require.NoError(t, err)
	assert.Len(t, b.Cards, 1)
	assert.Zero(t, d.store.Pending())
}

func TestImportOlderSnapshotIsConflict(t *testing.T) {
	ctx := context.Background()
	old := newDevice(t)
	old.study(t, "affect", 1, t0)
	b, err := Export(ctx, old.db, old.store, t0)
	require.NoError(t, err)
	blob, err := EncodeBundle(b)
	require.NoError(t, err)

	d := newDevice(t)
	d.study(t, "effect", 2, t0.Add(time.Hour))

	_, err = Import(ctx, d.db, d.store, blob, false)
	require.ErrorIs(t, err, ErrConflict)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Remote.Equal(t0))
	_, ok := d.store.Get("effect", "")
	assert.True(t, ok, "refused import must leave local data alone")

	_, err = Import(ctx, d.db, d.store, blob, true)
	require.NoError(t, err)
	_, ok = d.store.Get("effect", "")
	assert.False(t, ok)
	_, ok = d.store.Get("affect", "")
	assert.True(t, ok)
}

func TestDecodeBundleRejectsBadInput(t *testing.T) {
	_, err := DecodeBundle([]byte("not a snapshot"))
	assert.Error(t, err)

	blob, err := EncodeBundle(Bundle{Version: 2, TS: t0.UnixMilli()})
	require.NoError(t, err)
	_, err = DecodeBundle(blob)
	assert.ErrorContains(t, err, "invalid snapshot")

	blob, err = EncodeBundle(Bundle{Version: bundleVersion})
	require.NoError(t, err)
	_, err = DecodeBundle(blob)
	assert.ErrorContains(t, err, "invalid snapshot")
}

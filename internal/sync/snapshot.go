package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/storage"
)

const bundleVersion = 1

// maxBundleBytes caps the decompressed size of a snapshot.
const maxBundleBytes = 256 << 20

// Bundle is a full snapshot of the local database. TS is the local
// last-updated time in unix milliseconds.
type Bundle struct {
	Version  int                       `msgpack:"v" validate:"eq=1"`
	TS       int64                     `msgpack:"ts" validate:"gt=0"`
	Device   string                    `msgpack:"device"`
	Cards    []storage.CardRecord      `msgpack:"cards"`
	Logs     []storage.ReviewLogRecord `msgpack:"logs"`
	Stats    []domain.DailyStats       `msgpack:"stats"`
	Sessions []domain.SessionLog       `msgpack:"sessions"`
	Meta     map[string]string         `msgpack:"meta"`
}

// Time returns TS as a time.
func (b Bundle) Time() time.Time {
	return time.UnixMilli(b.TS).UTC()
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBundleBytes))
)

// EncodeBundle serializes b with msgpack and compresses it with zstd.
func EncodeBundle(b Bundle) ([]byte, error) {
	raw, err := msgpack.Marshal(&b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// DecodeBundle reverses EncodeBundle and validates the result.
func DecodeBundle(blob []byte) (Bundle, error) {
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to decompress snapshot: %w", err)
	}
	var b Bundle
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if err := validate.Struct(&b); err != nil {
		return Bundle{}, fmt.Errorf("invalid snapshot: %w", err)
	}
	for i := range b.Cards {
		if err := storage.ValidateRecord(&b.Cards[i]); err != nil {
			return Bundle{}, fmt.Errorf("invalid snapshot: %w", err)
		}
	}
	for i := range b.Logs {
		if err := storage.ValidateReviewLog(&b.Logs[i]); err != nil {
			return Bundle{}, fmt.Errorf("invalid snapshot: %w", err)
		}
	}
	return b, nil
}

// Database is the local data a snapshot is taken from and restored into.
type Database interface {
	Dump(ctx context.Context) (storage.Dump, error)
	Restore(ctx context.Context, d storage.Dump) error
	LastUpdated(ctx context.Context) (time.Time, error)
	TouchLastUpdated(ctx context.Context, t time.Time) error
	MetaTime(ctx context.Context, key string) (time.Time, error)
	SetMetaTime(ctx context.Context, key string, t time.Time) error
	DeviceID(ctx context.Context) (string, error)
}

// Cache is the in-memory card store in front of the database.
type Cache interface {
	ForceFlush(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Export flushes pending card writes and snapshots the database. A database
// that was never modified is stamped with now.
func Export(ctx context.Context, db Database, cache Cache, now time.Time) (Bundle, error) {
	if err := cache.ForceFlush(ctx); err != nil {
		return Bundle{}, fmt.Errorf("failed to flush cards before export: %w", err)
	}
	ts, err := db.LastUpdated(ctx)
	if err != nil {
		return Bundle{}, err
	}
	if ts.IsZero() {
		ts = now
		if err := db.TouchLastUpdated(ctx, ts); err != nil {
			return Bundle{}, err
		}
	}
	device, err := db.DeviceID(ctx)
	if err != nil {
		return Bundle{}, err
	}
	d, err := db.Dump(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("failed to dump database: %w", err)
	}
	return Bundle{
		Version:  bundleVersion,
		TS:       ts.UnixMilli(),
		Device:   device,
		Cards:    d.Cards,
		Logs:     d.Logs,
		Stats:    d.Stats,
		Sessions: d.Sessions,
		Meta:     d.Meta,
	}, nil
}

// Import replaces the local database with the snapshot in blob and reloads
// the card cache. Unless force is set, a snapshot older than the local
// last-updated time is refused with a *ConflictError.
func Import(ctx context.Context, db Database, cache Cache, blob []byte, force bool) (Bundle, error) {
	b, err := DecodeBundle(blob)
	if err != nil {
		return Bundle{}, err
	}
	local, err := db.LastUpdated(ctx)
	if err != nil {
		return Bundle{}, err
	}
	if !force && b.Time().Before(local) {
		return Bundle{}, &ConflictError{Local: local, Remote: b.Time()}
	}

	// Pending local writes would otherwise land on top of the restored data.
	if err := cache.ForceFlush(ctx); err != nil {
		return Bundle{}, fmt.Errorf("failed to flush cards before import: %w", err)
	}
	if err := db.Restore(ctx, storage.Dump{
		Cards:    b.Cards,
		Logs:     b.Logs,
		Stats:    b.Stats,
		Sessions: b.Sessions,
		Meta:     b.Meta,
	}); err != nil {
		return Bundle{}, err
	}
	if err := db.TouchLastUpdated(ctx, b.Time()); err != nil {
		return Bundle{}, err
	}
	if err := cache.Reload(ctx); err != nil {
		return Bundle{}, fmt.Errorf("failed to reload cards after import: %w", err)
	}
	return b, nil
}

package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	// DefaultCooldown is the minimum time between two sync attempts.
	DefaultCooldown = 30 * time.Second
	// DefaultRetries is how many times a network failure is tried in total.
	DefaultRetries = 3

	// MetaLastSynced records when this device last exchanged a snapshot.
	MetaLastSynced = "last_synced"
	// MetaConflictDeferred records the remote snapshot a user chose to ignore.
	MetaConflictDeferred = "conflict_deferred_ts"
)

// Action is what a sync did.
type Action int

const (
	UpToDate Action = iota
	Pushed
	Pulled
	Deferred
)

func (a Action) String() string {
	switch a {
	case Pushed:
		return "pushed"
	case Pulled:
		return "pulled"
	case Deferred:
		return "deferred"
	default:
		return "up_to_date"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Report describes a completed sync.
type Report struct {
	Action Action    `json:"action"`
	Local  time.Time `json:"local"`
	Remote time.Time `json:"remote,omitzero"`
}

// Resolution settles a conflict.
type Resolution int

const (
	// UseCloud replaces the local data with the remote snapshot.
	UseCloud Resolution = iota + 1
	// KeepLocal leaves both sides alone and remembers the decision.
	KeepLocal
)

// ParseResolution maps "use_cloud" and "keep_local" to a Resolution.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "use_cloud", "useCloud":
		return UseCloud, nil
	case "keep_local", "keepLocal":
		return KeepLocal, nil
	}
	return 0, fmt.Errorf("unknown resolution %q", s)
}

// Client syncs the local database with one remote.
type Client struct {
	remote  Remote
	db      Database
	cache   Cache
	limiter *rate.Limiter
	retries uint
	backoff func() backoff.BackOff
	now     func() time.Time
	logger  *slog.Logger

	mu sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCooldown sets the minimum time between sync attempts.
func WithCooldown(d time.Duration) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithRetries sets how many attempts a network failure gets.
func WithRetries(n uint) ClientOption {
	return func(c *Client) { c.retries = max(n, 1) }
}

// WithBackOff sets the delay policy between retries.
func WithBackOff(b func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.backoff = b }
}

// WithClock sets the client's clock.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client syncing db (behind cache) with remote.
func NewClient(remote Remote, db Database, cache Cache, opts ...ClientOption) *Client {
	c := &Client{
		remote:  remote,
		db:      db,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(DefaultCooldown), 1),
		retries: DefaultRetries,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("component", "sync")
	return c
}

// Sync exchanges snapshots with the remote.
//
// When the remote holds nothing, or something older than the local data,
// the local snapshot is pushed. When the remote is newer, a *ConflictError
// is returned unless force is set, in which case the local snapshot
// overwrites it. A device that has never changed anything pulls instead.
// Attempts closer together than the cooldown fail with an *Error of
// KindRateLimited carrying the remaining wait.
func (c *Client) Sync(ctx context.Context, force bool) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if wait := c.reserve(now); wait > 0 {
		return Report{}, &Error{Kind: KindRateLimited, Retryable: true, Wait: wait, Err: ErrRateLimited}
	}

	local, err := c.db.LastUpdated(ctx)
	if err != nil {
		return Report{}, c.fail("read local state", err)
	}
	type head struct {
		ts time.Time
		ok bool
	}
	h, err := retry(ctx, c, func() (head, error) {
		ts, ok, err := c.remote.Head(ctx)
		return head{ts, ok}, err
	})
	if err != nil {
		return Report{}, c.fail("read remote state", err)
	}
	report := Report{Local: local, Remote: h.ts}

	switch {
	case h.ok && !force && h.ts.Equal(local):
		report.Action = UpToDate
	case h.ok && !force && h.ts.After(local) && local.IsZero():
		if err := c.pull(ctx, now); err != nil {
			return Report{}, err
		}
		report.Action, report.Local = Pulled, h.ts
	case h.ok && !force && h.ts.After(local):
		c.logger.Warn("sync conflict", "local", local, "remote", h.ts)
		return report, &ConflictError{Local: local, Remote: h.ts}
	default:
		if force && h.ok && !h.ts.Before(local) {
			// Stamp the forced upload newer than what it replaces.
			local = now
			if !local.After(h.ts) {
				local = h.ts.Add(time.Millisecond)
			}
			if err := c.db.TouchLastUpdated(ctx, local); err != nil {
				return Report{}, c.fail("stamp local state", err)
			}
			report.Local = local
		}
		ts, err := c.push(ctx, now)
		if err != nil {
			return Report{}, err
		}
		report.Action, report.Local = Pushed, ts
	}

	if err := c.db.SetMetaTime(ctx, MetaLastSynced, now); err != nil {
		c.logger.Warn("failed to record sync time", "error", err)
	}
	c.logger.Info("sync complete", "action", report.Action.String(), "local", report.Local, "remote", report.Remote)
	return report, nil
}

// Resolve settles a conflict reported by Sync. UseCloud downloads the remote
// snapshot and replaces the local data with it; KeepLocal records the remote
// timestamp as deferred and changes nothing else. Resolve is not subject to
// the cooldown.
func (c *Client) Resolve(ctx context.Context, r Resolution) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	local, err := c.db.LastUpdated(ctx)
	if err != nil {
		return Report{}, c.fail("read local state", err)
	}

	switch r {
	case UseCloud:
		if err := c.pull(ctx, now); err != nil {
			return Report{}, err
		}
		ts, err := c.db.LastUpdated(ctx)
		if err != nil {
			return Report{}, c.fail("read local state", err)
		}
		if err := c.db.SetMetaTime(ctx, MetaLastSynced, now); err != nil {
			c.logger.Warn("failed to record sync time", "error", err)
		}
		c.logger.Info("conflict resolved with cloud snapshot", "remote", ts)
		return Report{Action: Pulled, Local: ts, Remote: ts}, nil
	case KeepLocal:
		ts, err := retry(ctx, c, func() (time.Time, error) {
			ts, _, err := c.remote.Head(ctx)
			return ts, err
		})
		if err != nil {
			return Report{}, c.fail("read remote state", err)
		}
		if err := c.db.SetMetaTime(ctx, MetaConflictDeferred, ts); err != nil {
			return Report{}, c.fail("record deferred conflict", err)
		}
		c.logger.Info("conflict deferred, keeping local data", "local", local, "remote", ts)
		return Report{Action: Deferred, Local: local, Remote: ts}, nil
	default:
		return Report{}, fmt.Errorf("unknown resolution %d", r)
	}
}

// reserve takes the cooldown token at now and returns how long the caller
// must still wait, zero if the attempt may proceed.
func (c *Client) reserve(now time.Time) time.Duration {
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return DefaultCooldown
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	return 0
}

func (c *Client) push(ctx context.Context, now time.Time) (time.Time, error) {
	b, err := Export(ctx, c.db, c.cache, now)
	if err != nil {
		return time.Time{}, c.fail("export snapshot", err)
	}
	blob, err := EncodeBundle(b)
	if err != nil {
		return time.Time{}, c.fail("encode snapshot", err)
	}
	_, err = retry(ctx, c, func() (struct{}, error) {
		return struct{}{}, c.remote.Put(ctx, blob, b.Time())
	})
	if err != nil {
		return time.Time{}, c.fail("upload snapshot", err)
	}
	c.logger.Debug("snapshot uploaded", "bytes", len(blob), "cards", len(b.Cards))
	return b.Time(), nil
}

func (c *Client) pull(ctx context.Context, now time.Time) error {
	type download struct {
		blob []byte
		ts   time.Time
	}
	d, err := retry(ctx, c, func() (download, error) {
		blob, ts, err := c.remote.Get(ctx)
		return download{blob, ts}, err
	})
	if err != nil {
		return c.fail("download snapshot", err)
	}
	b, err := Import(ctx, c.db, c.cache, d.blob, true)
	if err != nil {
		return c.fail("import snapshot", err)
	}
	c.logger.Debug("snapshot downloaded", "bytes", len(d.blob), "cards", len(b.Cards), "at", now)
	return nil
}

// fail logs err and returns it classified.
func (c *Client) fail(op string, err error) error {
	se := classify(fmt.Errorf("failed to %s: %w", op, err))
	c.logger.Error("sync failed", "op", op, "kind", se.Kind.String(), "error", err)
	return se
}

// retry runs op until it succeeds, fails with a non-network error, or has
// been tried c.retries times.
func retry[T any](ctx context.Context, c *Client, op func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !isNetwork(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(c.retries),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Warn("retrying sync request", "error", err, "in", d)
		}),
	)
}

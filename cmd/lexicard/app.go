package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"google.golang.org/api/option"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/config"
	"github.com/conorfennell/lexicard/internal/fsrs"
	"github.com/conorfennell/lexicard/internal/gitsource"
	"github.com/conorfennell/lexicard/internal/quiz"
	"github.com/conorfennell/lexicard/internal/review"
	"github.com/conorfennell/lexicard/internal/skills"
	"github.com/conorfennell/lexicard/internal/storage"
	"github.com/conorfennell/lexicard/internal/sync"
)

// app holds the components every command shares.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer

	db      *storage.DB
	store   *storage.CardStore
	catalog *catalog.Catalog
	engine  *review.Engine

	closers []func() error
}

func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdin io.Reader, stdout io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, stdin: stdin, stdout: stdout}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	logger.Info("database opened", "path", cfg.Database.Path)

	a.store = storage.NewCardStore(db,
		storage.WithFlushDelay(cfg.Store.FlushDelay),
		storage.WithLogger(logger))
	a.store.OnError = func(err error) { logger.Error("background flush failed", "error", err) }
	if err := a.store.Init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { return a.store.Close(context.Background()) })

	if a.catalog, err = loadCatalog(ctx, cfg.Catalog, logger); err != nil {
		a.Close()
		return nil, err
	}

	sched, err := fsrs.New(cfg.Scheduler.Algorithm, cfg.Scheduler.DesiredRetention, cfg.Scheduler.MaximumInterval)
	if err != nil {
		a.Close()
		return nil, err
	}
	gen := quiz.NewGenerator(a.catalog, quiz.WithOptionCount(cfg.Quiz.Options), quiz.WithLogger(logger))
	a.engine = review.NewEngine(a.store, db, a.catalog, skills.NewManager(sched, logger),
		review.WithLogger(logger),
		review.WithThresholds(review.Thresholds{Slow: cfg.Quiz.SlowThreshold, Fast: cfg.Quiz.FastThreshold}),
		review.WithSampler(quiz.NewSampler(nil).YieldEvery(cfg.Quiz.YieldEvery)),
		review.WithGenerator(gen),
	)
	return a, nil
}

func loadCatalog(ctx context.Context, cfg config.CatalogConfig, logger *slog.Logger) (*catalog.Catalog, error) {
	// A git catalog is loaded from the root of its checkout.
	dir := cfg.Path
	if cfg.GitURL != "" {
		local, err := gitsource.LocalPath(cfg.GitDir, cfg.GitURL)
		if err != nil {
			return nil, err
		}
		if err := gitsource.Sync(ctx, cfg.GitURL, local, logger); err != nil {
			return nil, err
		}
		dir = local
	}
	return catalog.LoadDir(ctx, dir, logger)
}

// syncClient connects to the configured remote. The remote is namespaced by
// the identity in sync.token when one is set.
func (a *app) syncClient(ctx context.Context) (*sync.Client, error) {
	sc := a.cfg.Sync
	if !a.cfg.SyncEnabled() {
		return nil, errors.New("sync is not configured (set sync.backend)")
	}

	namespace := "lexicard/default"
	if sc.Token != "" {
		id, err := sync.ParseIdentity(sc.Token, []byte(sc.JWTSecret), nil)
		if err != nil {
			return nil, err
		}
		namespace = id.Namespace()
		a.logger.Debug("syncing as", "user", id.UserID)
	}

	var remote sync.Remote
	switch sc.Backend {
	case "file":
		remote = sync.NewFileRemote(filepath.Join(sc.Dir, filepath.FromSlash(namespace)))
	case "redis":
		rdb, err := sync.DialRedis(ctx, sc.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		remote = sync.NewRedisRemote(rdb, namespace)
	case "gcs":
		object := sc.GCSObject
		if object == "" {
			object = namespace + "/snapshot.bin"
		}
		var opts []option.ClientOption
		if sc.GCSCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(sc.GCSCredentials))
		}
		g, err := sync.NewGCSRemote(ctx, sc.GCSBucket, object, opts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		remote = g
	default:
		return nil, fmt.Errorf("unknown sync backend %q", sc.Backend)
	}

	return sync.NewClient(remote, a.db, a.store,
		sync.WithCooldown(sc.Cooldown),
		sync.WithRetries(sc.Retries),
		sync.WithLogger(a.logger),
	), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

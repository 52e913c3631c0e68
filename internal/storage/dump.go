package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
)

// Dump is the full content of a database.
type Dump struct {
	Cards    []CardRecord
	Logs     []ReviewLogRecord
	Stats    []domain.DailyStats
	Sessions []domain.SessionLog
	Meta     map[string]string
}

// RecordReview appends the log of one answer, adds its stats and bumps
// last_updated, all in one transaction.
func (db *DB) RecordReview(ctx context.Context, l domain.ReviewLog, stats domain.DailyStats, at time.Time) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := appendReviewLog(ctx, tx, l); err != nil {
			return err
		}
		if err := addDailyStats(ctx, tx, stats); err != nil {
			return err
		}
		return setMeta(ctx, tx, MetaLastUpdated, fmt.Sprint(toMillis(at)))
	})
}

// Dump reads every table.
func (db *DB) Dump(ctx context.Context) (Dump, error) {
	var d Dump
	var err error
	if d.Cards, err = db.LoadCards(ctx); err != nil {
		return Dump{}, err
	}
	logs, err := db.ReviewLogs(ctx)
	if err != nil {
		return Dump{}, err
	}
	d.Logs = make([]ReviewLogRecord, len(logs))
	for i, l := range logs {
		d.Logs[i] = EncodeReviewLog(l)
	}
	if d.Stats, err = db.AllDailyStats(ctx); err != nil {
		return Dump{}, err
	}
	if d.Sessions, err = db.SessionLogs(ctx); err != nil {
		return Dump{}, err
	}
	if d.Meta, err = db.AllMeta(ctx); err != nil {
		return Dump{}, err
	}
	return d, nil
}

// Restore replaces the content of every table with d in one transaction.
// Card and log records are validated first; nothing is written if any is
// invalid.
// The local device id is kept.
func (db *DB) Restore(ctx context.Context, d Dump) error {
	for i := range d.Cards {
		if err := ValidateRecord(&d.Cards[i]); err != nil {
			return fmt.Errorf("failed to restore: %w", err)
		}
	}
	for i := range d.Logs {
		if err := ValidateReviewLog(&d.Logs[i]); err != nil {
			return fmt.Errorf("failed to restore: %w", err)
		}
	}
	deviceID, hasDevice, err := db.Meta(ctx, MetaDeviceID)
	if err != nil {
		return err
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"cards", "review_logs", "daily_stats", "session_logs", "meta"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		for _, r := range d.Cards {
			if err := saveCard(ctx, tx, r); err != nil {
				return err
			}
		}
		for _, r := range d.Logs {
			if err := appendReviewLog(ctx, tx, r.Log()); err != nil {
				return err
			}
		}
		for _, s := range d.Stats {
			if err := addDailyStats(ctx, tx, s); err != nil {
				return err
			}
		}
		for _, s := range d.Sessions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO session_logs (id, started_at, ended_at, cards_studied) VALUES (?, ?, ?, ?)
			`, s.ID, toMillis(s.StartedAt), toMillis(s.EndedAt), s.CardsStudied); err != nil {
				return fmt.Errorf("failed to restore session %d: %w", s.ID, err)
			}
		}
		for k, v := range d.Meta {
			if k == MetaDeviceID {
				continue
			}
			if err := setMeta(ctx, tx, k, v); err != nil {
				return err
			}
		}
		if hasDevice {
			return setMeta(ctx, tx, MetaDeviceID, deviceID)
		}
		return nil
	})
}

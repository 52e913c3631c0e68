package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/domain"
)

// ErrEmptyCatalog is returned by Reconcile when the catalog has no entries.
// Every card would otherwise count as an orphan.
var ErrEmptyCatalog = errors.New("sync: catalog is empty, refusing to reconcile")

// CardSet is the card cache reconciled against the catalog.
type CardSet interface {
	AllCards() []domain.Card
	Get(lemma, senseID string) (domain.Card, bool)
	Update(card domain.Card) error
	Delete(key domain.Key) error
	ForceFlush(ctx context.Context) error
}

// LogStore moves review history between card keys.
type LogStore interface {
	RekeyReviewLogs(ctx context.Context, from, to domain.Key) error
}

// ReconcileReport counts what Reconcile changed.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Migrated int `json:"migrated"`
	Merged   int `json:"merged"`
	Orphaned int `json:"orphaned"`
}

// Reconcile brings stored cards in line with the catalog. A card whose sense
// no longer exists moves to the entry's primary sense together with its
// review logs; if a card already sits there the one with more reviews wins.
// A card whose lemma left the catalog is deleted along with its logs.
// Running it again on reconciled data changes nothing. An empty catalog is
// refused with ErrEmptyCatalog before anything is touched.
func Reconcile(ctx context.Context, cards CardSet, logs LogStore, cat catalog.Lookup, logger *slog.Logger) (ReconcileReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconcile")

	var report ReconcileReport
	if len(cat.Entries()) == 0 {
		return report, ErrEmptyCatalog
	}
	for _, card := range cards.AllCards() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		entry, ok := cat.Entry(card.Lemma)
		if !ok {
			logger.Info("Orphaned card, deleting", "card", card.Key())
			if err := cards.Delete(card.Key()); err != nil {
				return report, fmt.Errorf("failed to delete orphaned card %s: %w", card.Key(), err)
			}
			report.Orphaned++
			continue
		}
		if _, ok := entry.Sense(card.SenseID); ok {
			continue
		}

		from := card.Key()
		to := domain.NewKey(card.Lemma, entry.PrimarySenseID())
		if from == to {
			continue
		}
		if err := logs.RekeyReviewLogs(ctx, from, to); err != nil {
			return report, err
		}

		moved := card.Clone()
		moved.SenseID = to.SenseID
		if existing, ok := cards.Get(to.Lemma, to.SenseID); ok {
			report.Merged++
			if existing.Reps >= moved.Reps {
				moved = existing
			}
		}
		if err := cards.Update(moved); err != nil {
			return report, fmt.Errorf("failed to migrate card %s: %w", from, err)
		}
		if err := cards.Delete(from); err != nil {
			return report, fmt.Errorf("failed to remove migrated card %s: %w", from, err)
		}
		logger.Info("Stale sense, migrating card", "from", from, "to", to)
		report.Migrated++
	}

	if err := cards.ForceFlush(ctx); err != nil {
		return report, fmt.Errorf("failed to persist reconciled cards: %w", err)
	}

	logger.Info("reconciliation complete",
		"checked", report.Checked,
		"migrated", report.Migrated,
		"merged", report.Merged,
		"orphaned_deleted", report.Orphaned,
	)
	return report, nil
}

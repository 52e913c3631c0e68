package fsrs

import (
	"time"

	gofsrs "github.com/open-spaced-repetition/go-fsrs"

	"github.com/conorfennell/lexicard/internal/domain"
)

// LibraryStrategy delegates to the go-fsrs implementation.
type LibraryStrategy struct {
	params gofsrs.Parameters
}

// NewLibraryStrategy returns the go-fsrs defaults with optional overrides.
// Zero values keep the library defaults.
func NewLibraryStrategy(desiredRetention float64, maximumInterval int) *LibraryStrategy {
	params := gofsrs.DefaultParam()
	if desiredRetention > 0 && desiredRetention < 1 {
		params.RequestRetention = desiredRetention
	}
	if maximumInterval > 0 {
		params.MaximumInterval = float64(maximumInterval)
	}
	return &LibraryStrategy{params: params}
}

// Next implements Strategy.
func (l *LibraryStrategy) Next(m Memory, rating domain.Rating, now time.Time) Memory {
	card := gofsrs.Card{
		Due:           m.Due,
		Stability:     m.Stability,
		Difficulty:    m.Difficulty,
		ElapsedDays:   uint64(max(m.ElapsedDays, 0)),
		ScheduledDays: uint64(max(m.ScheduledDays, 0)),
		Reps:          uint64(max(m.Reps, 0)),
		Lapses:        uint64(max(m.Lapses, 0)),
		State:         gofsrs.State(m.State),
		LastReview:    m.LastReview,
	}
	if card.Due.IsZero() {
		card.Due = now
	}

	info := l.params.Repeat(card, now)[gofsrs.Rating(rating)]
	next := info.Card

	return Memory{
		Due:           next.Due,
		Stability:     next.Stability,
		Difficulty:    next.Difficulty,
		ElapsedDays:   float64(next.ElapsedDays),
		ScheduledDays: float64(next.ScheduledDays),
		Reps:          int(next.Reps),
		Lapses:        int(next.Lapses),
		State:         domain.State(next.State),
		LastReview:    next.LastReview,
	}
}

// Package review turns quiz answers into ratings and applies them to cards.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/skills"
)

var (
	// ErrAlreadyRecorded is returned when a result for the same question
	// has already been applied.
	ErrAlreadyRecorded = errors.New("review: result already recorded")
	// ErrMissingQuestionID is returned for a result that cannot be deduplicated.
	ErrMissingQuestionID = errors.New("review: result has no question id")
)

// Thresholds are the response times that adjust a correct answer's rating.
type Thresholds struct {
	Slow time.Duration // slower than this is Hard
	Fast time.Duration // faster than this on a harder type is Easy
}

// DefaultThresholds are used unless configured otherwise.
var DefaultThresholds = Thresholds{Slow: 15 * time.Second, Fast: 5 * time.Second}

// Result is the outcome of one answered question.
type Result struct {
	QuestionID      string
	Type            domain.QuestionType
	Lemma           string
	SenseID         string
	EntryType       domain.EntryType
	Correct         bool
	HintUsed        bool
	ResponseTime    time.Duration
	ExactInflection bool // spelling only: the sentence's inflected form was typed
}

// MapResultToRating grades a result with DefaultThresholds.
func MapResultToRating(r Result) domain.Rating {
	return DefaultThresholds.Rating(r)
}

// Rating grades a result. Rules apply in order: wrong answers are Again, a
// hint or a slow answer is Hard, an exact inflected spelling is Easy, a fast
// answer on fill_blank, spelling or distinction is Easy, anything else Good.
func (t Thresholds) Rating(r Result) domain.Rating {
	switch {
	case !r.Correct:
		return domain.Again
	case r.HintUsed:
		return domain.Hard
	case r.ResponseTime > t.Slow:
		return domain.Hard
	case r.Type == domain.Spelling && r.ExactInflection:
		return domain.Easy
	case r.Type.Harder() && r.ResponseTime < t.Fast:
		return domain.Easy
	default:
		return domain.Good
	}
}

// Cards is the card store view the recorder needs.
type Cards interface {
	Ensure(lemma, senseID string, entryType domain.EntryType) (domain.Card, error)
	Update(card domain.Card) error
}

// Journal persists review history.
type Journal interface {
	RecordReview(ctx context.Context, l domain.ReviewLog, stats domain.DailyStats, at time.Time) error
	AppendSessionLog(ctx context.Context, s domain.SessionLog) (int64, error)
}

// Recorded is what Record did for one result.
type Recorded struct {
	Rating  domain.Rating
	Outcome skills.Outcome
}

// Recorder applies each quiz result exactly once: one card update, one
// review log and one daily stats increment per result.
type Recorder struct {
	cards      Cards
	journal    Journal
	skills     *skills.Manager
	thresholds Thresholds
	now        func() time.Time
	logger     *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewRecorder returns a recorder writing to cards and journal.
func NewRecorder(cards Cards, journal Journal, mgr *skills.Manager, opts ...Option) *Recorder {
	o := buildOptions(opts)
	return &Recorder{
		cards:      cards,
		journal:    journal,
		skills:     mgr,
		thresholds: o.thresholds,
		now:        o.now,
		logger:     o.logger.With("component", "recorder"),
		seen:       map[string]bool{},
	}
}

// Record rates r and applies it. A second call with the same QuestionID
// returns ErrAlreadyRecorded without touching the card. Once the card has
// been updated the result counts as recorded, even if writing the log fails.
func (rec *Recorder) Record(ctx context.Context, r Result) (Recorded, error) {
	if r.QuestionID == "" {
		return Recorded{}, ErrMissingQuestionID
	}
	if !rec.claim(r.QuestionID) {
		return Recorded{}, fmt.Errorf("%w: %s", ErrAlreadyRecorded, r.QuestionID)
	}

	now := rec.now()
	rating := rec.thresholds.Rating(r)

	card, err := rec.cards.Ensure(r.Lemma, r.SenseID, r.EntryType)
	if err != nil {
		rec.release(r.QuestionID)
		return Recorded{}, fmt.Errorf("failed to load card %s/%s: %w", r.Lemma, r.SenseID, err)
	}
	wasNew := card.State == domain.New

	out, err := rec.skills.Apply(card, r.Type, rating, now)
	if err != nil {
		rec.release(r.QuestionID)
		return Recorded{}, err
	}
	if err := rec.cards.Update(out.Card); err != nil {
		rec.release(r.QuestionID)
		return Recorded{}, fmt.Errorf("failed to update card %s: %w", out.Card.Key(), err)
	}

	stats := domain.DailyStats{Date: domain.DateKey(now), Reviews: 1, StudyTime: r.ResponseTime}
	if wasNew {
		stats.NewCards = 1
	}
	stats.CountRating(out.MainRating)

	res := Recorded{Rating: rating, Outcome: out}
	if err := rec.journal.RecordReview(ctx, out.Log, stats, now); err != nil {
		rec.logger.Error("failed to write review log", "card", out.Card.Key().String(), "error", err)
		return res, fmt.Errorf("failed to record review of %s: %w", out.Card.Key(), err)
	}

	rec.logger.Debug("review recorded",
		"card", out.Card.Key().String(),
		"type", r.Type.String(),
		"rating", rating.String(),
		"main_rating", out.MainRating.String(),
		"due", out.Card.Due)
	return res, nil
}

func (rec *Recorder) claim(id string) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.seen[id] {
		return false
	}
	rec.seen[id] = true
	return true
}

func (rec *Recorder) release(id string) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	delete(rec.seen, id)
}

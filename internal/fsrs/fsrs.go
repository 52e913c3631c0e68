package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
)

// DefaultMinInterval is the shortest delay the scheduler will ever hand out.
const DefaultMinInterval = time.Minute

// Memory is the scheduling state shared by cards and skill states.
type Memory struct {
	Due           time.Time
	Stability     float64
	Difficulty    float64
	ElapsedDays   float64
	ScheduledDays float64
	Reps          int
	Lapses        int
	State         domain.State
	LastReview    time.Time
}

// Strategy computes the raw next memory state for a rating. Implementations
// do not need to uphold the scheduler's invariants; Scheduler enforces them.
type Strategy interface {
	Next(m Memory, rating domain.Rating, now time.Time) Memory
}

// Scheduler applies ratings to cards and skill states.
//
// Whatever the strategy returns, a scheduled result always satisfies:
// Again adds exactly one lapse and leaves the item in Learning or Relearning,
// Easy never lowers stability, Reps grows by one, and Due is after now.
type Scheduler struct {
	strategy    Strategy
	minInterval time.Duration
}

// NewScheduler wraps strategy. A nil strategy selects the go-fsrs defaults.
func NewScheduler(strategy Strategy) *Scheduler {
	if strategy == nil {
		strategy = NewLibraryStrategy(0, 0)
	}
	return &Scheduler{strategy: strategy, minInterval: DefaultMinInterval}
}

// New builds a scheduler for a configured algorithm name ("fsrs" or "simple").
func New(algorithm string, desiredRetention float64, maximumInterval int) (*Scheduler, error) {
	switch algorithm {
	case "", "fsrs":
		return NewScheduler(NewLibraryStrategy(desiredRetention, maximumInterval)), nil
	case "simple":
		p := DefaultParams()
		if desiredRetention > 0 {
			p.DesiredRetention = desiredRetention
		}
		return NewScheduler(p), nil
	default:
		return nil, fmt.Errorf("unknown scheduling algorithm %q", algorithm)
	}
}

// Schedule rates card at now and returns the updated card plus the log entry
// describing the change. The input card is not modified.
func (s *Scheduler) Schedule(card domain.Card, rating domain.Rating, now time.Time) (domain.Card, domain.ReviewLog, error) {
	if !rating.IsValid() {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("failed to schedule %s: %w", card.Key(), domain.ErrInvalidRating)
	}

	before := cardMemory(card)
	after := s.next(before, rating, now)

	out := card.Clone()
	applyCardMemory(&out, after)

	log := domain.ReviewLog{
		Lemma:            card.Lemma,
		SenseID:          card.SenseID,
		Rating:           rating,
		ReviewedAt:       now,
		StateBefore:      before.State,
		StateAfter:       after.State,
		StabilityBefore:  before.Stability,
		StabilityAfter:   after.Stability,
		DifficultyBefore: before.Difficulty,
		DifficultyAfter:  after.Difficulty,
		ElapsedDays:      after.ElapsedDays,
		ScheduledDays:    after.ScheduledDays,
	}
	return out, log, nil
}

// ScheduleSkill rates one skill state independently of its card.
func (s *Scheduler) ScheduleSkill(st domain.SkillState, rating domain.Rating, now time.Time) (domain.SkillState, error) {
	if !rating.IsValid() {
		return domain.SkillState{}, fmt.Errorf("failed to schedule skill: %w", domain.ErrInvalidRating)
	}
	m := s.next(skillMemory(st), rating, now)
	return domain.SkillState{
		Due:        m.Due,
		Stability:  m.Stability,
		Difficulty: m.Difficulty,
		Reps:       m.Reps,
		Lapses:     m.Lapses,
		State:      m.State,
		LastReview: m.LastReview,
	}, nil
}

// Preview returns the card that each rating would produce.
func (s *Scheduler) Preview(card domain.Card, now time.Time) map[domain.Rating]domain.Card {
	out := make(map[domain.Rating]domain.Card, 4)
	for r := domain.Again; r <= domain.Easy; r++ {
		c, _, _ := s.Schedule(card, r, now)
		out[r] = c
	}
	return out
}

func (s *Scheduler) next(before Memory, rating domain.Rating, now time.Time) Memory {
	after := s.strategy.Next(before, rating, now)

	after.Reps = before.Reps + 1
	after.Lapses = before.Lapses
	if rating == domain.Again {
		after.Lapses++
		if before.State == domain.Review || before.State == domain.Relearning {
			after.State = domain.Relearning
		} else {
			after.State = domain.Learning
		}
	} else if before.State == domain.New || after.State == domain.New {
		// A first rating always enters Learning; graduation happens on a later review.
		after.State = domain.Learning
	}

	if rating == domain.Easy && after.Stability < before.Stability {
		after.Stability = before.Stability
	}
	if math.IsNaN(after.Stability) || after.Stability < 0 {
		after.Stability = before.Stability
	}
	if math.IsNaN(after.Difficulty) {
		after.Difficulty = before.Difficulty
	}

	if !after.Due.After(now) {
		after.Due = now.Add(s.minInterval)
	}
	after.LastReview = now
	after.ElapsedDays = 0
	if !before.LastReview.IsZero() {
		after.ElapsedDays = now.Sub(before.LastReview).Hours() / 24
	}
	after.ScheduledDays = after.Due.Sub(now).Hours() / 24
	return after
}

func cardMemory(c domain.Card) Memory {
	return Memory{
		Due:           c.Due,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   c.ElapsedDays,
		ScheduledDays: c.ScheduledDays,
		Reps:          c.Reps,
		Lapses:        c.Lapses,
		State:         c.State,
		LastReview:    c.LastReview,
	}
}

func applyCardMemory(c *domain.Card, m Memory) {
	c.Due = m.Due
	c.Stability = m.Stability
	c.Difficulty = m.Difficulty
	c.ElapsedDays = m.ElapsedDays
	c.ScheduledDays = m.ScheduledDays
	c.Reps = m.Reps
	c.Lapses = m.Lapses
	c.State = m.State
	c.LastReview = m.LastReview
}

func skillMemory(st domain.SkillState) Memory {
	return Memory{
		Due:        st.Due,
		Stability:  st.Stability,
		Difficulty: st.Difficulty,
		Reps:       st.Reps,
		Lapses:     st.Lapses,
		State:      st.State,
		LastReview: st.LastReview,
	}
}

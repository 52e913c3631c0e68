package fsrs

import (
	"math"
	"testing"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

var allRatings = []domain.Rating{domain.Again, domain.Hard, domain.Good, domain.Easy}

func strategies() map[string]*Scheduler {
	return map[string]*Scheduler{
		"fsrs":   NewScheduler(NewLibraryStrategy(0, 0)),
		"simple": NewScheduler(DefaultParams()),
	}
}

func sampleCards() []domain.Card {
	newCard := domain.NewCard("abandon", "", domain.EntryWord, t0)

	learning := newCard
	learning.State = domain.Learning
	learning.Stability = 1.2
	learning.Difficulty = 6
	learning.Reps = 1
	learning.LastReview = t0.Add(-10 * time.Minute)
	learning.Due = t0

	review := newCard
	review.State = domain.Review
	review.Stability = 25
	review.Difficulty = 4
	review.Reps = 12
	review.Lapses = 1
	review.LastReview = t0.Add(-25 * 24 * time.Hour)
	review.Due = t0

	relearning := review
	relearning.State = domain.Relearning
	relearning.Stability = 2
	relearning.LastReview = t0.Add(-10 * time.Minute)

	return []domain.Card{newCard, learning, review, relearning}
}

func TestScheduleInvariants(t *testing.T) {
	for name, s := range strategies() {
		for _, card := range sampleCards() {
			for _, r := range allRatings {
				got, log, err := s.Schedule(card, r, t0)
				if err != nil {
					t.Fatalf("%s: Schedule(%v, %v) returned error: %v", name, card.State, r, err)
				}
				if !got.Due.After(t0) {
					t.Errorf("%s: %v/%v: expected due after now, but got %v", name, card.State, r, got.Due)
				}
				if got.Reps != card.Reps+1 {
					t.Errorf("%s: %v/%v: expected reps %d, but got %d", name, card.State, r, card.Reps+1, got.Reps)
				}
				if r == domain.Again {
					if got.Lapses != card.Lapses+1 {
						t.Errorf("%s: %v/Again: expected lapses %d, but got %d", name, card.State, card.Lapses+1, got.Lapses)
					}
					if !got.State.InLearning() {
						t.Errorf("%s: %v/Again: expected a learning state, but got %v", name, card.State, got.State)
					}
				} else if got.Lapses != card.Lapses {
					t.Errorf("%s: %v/%v: lapses changed from %d to %d", name, card.State, r, card.Lapses, got.Lapses)
				}
				if r == domain.Easy && got.Stability < card.Stability {
					t.Errorf("%s: %v/Easy: stability decreased from %.2f to %.2f", name, card.State, card.Stability, got.Stability)
				}
				if log.Rating != r || !log.ReviewedAt.Equal(t0) || log.StateAfter != got.State {
					t.Errorf("%s: unexpected review log %+v", name, log)
				}
			}
		}
	}
}

func TestNewCardGoodEntersLearning(t *testing.T) {
	for name, s := range strategies() {
		card := domain.NewCard("abandon", "", domain.EntryWord, t0)
		got, _, err := s.Schedule(card, domain.Good, t0)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if got.State != domain.Learning || got.Reps != 1 || got.Lapses != 0 {
			t.Errorf("%s: expected Learning/reps=1/lapses=0, but got %v/%d/%d", name, got.State, got.Reps, got.Lapses)
		}
		if !got.Due.After(t0) {
			t.Errorf("%s: expected due after %v, but got %v", name, t0, got.Due)
		}
		if got.LastReview != t0 {
			t.Errorf("%s: expected last review %v, but got %v", name, t0, got.LastReview)
		}
	}
}

func TestScheduleRejectsInvalidRating(t *testing.T) {
	s := NewScheduler(nil)
	if _, _, err := s.Schedule(domain.NewCard("x", "", domain.EntryWord, t0), domain.Rating(9), t0); err == nil {
		t.Error("Expected an error for an invalid rating")
	}
}

func TestScheduleDoesNotMutateInput(t *testing.T) {
	s := NewScheduler(DefaultParams())
	card := sampleCards()[2]
	card.Skills.Set(domain.Reverse, domain.SkillState{Stability: 3, State: domain.Review})

	got, _, _ := s.Schedule(card, domain.Again, t0)
	got.Skills.Set(domain.Reverse, domain.SkillState{Stability: 99})

	st, _ := card.Skills.Get(domain.Reverse)
	if st.Stability != 3 || card.Reps != 12 {
		t.Error("Expected the input card to be left untouched")
	}
}

// misbehaving ignores every rule the scheduler promises to uphold.
type misbehaving struct{}

func (misbehaving) Next(m Memory, _ domain.Rating, now time.Time) Memory {
	m.Due = now.Add(-time.Hour)
	m.Stability = m.Stability / 2
	m.State = domain.Review
	m.Lapses = 0
	return m
}

func TestSchedulerEnforcesContract(t *testing.T) {
	s := NewScheduler(misbehaving{})
	review := sampleCards()[2]

	t.Run("Again", func(t *testing.T) {
		got, _, _ := s.Schedule(review, domain.Again, t0)
		if got.State != domain.Relearning {
			t.Errorf("Expected Relearning, but got %v", got.State)
		}
		if got.Lapses != review.Lapses+1 {
			t.Errorf("Expected lapses %d, but got %d", review.Lapses+1, got.Lapses)
		}
		if got.Due != t0.Add(DefaultMinInterval) {
			t.Errorf("Expected due to be clamped to %v, but got %v", t0.Add(DefaultMinInterval), got.Due)
		}
	})

	t.Run("Easy", func(t *testing.T) {
		got, _, _ := s.Schedule(review, domain.Easy, t0)
		if got.Stability != review.Stability {
			t.Errorf("Expected stability to stay at %.2f, but got %.2f", review.Stability, got.Stability)
		}
	})

	t.Run("New", func(t *testing.T) {
		got, _, _ := s.Schedule(sampleCards()[0], domain.Easy, t0)
		if got.State != domain.Learning {
			t.Errorf("Expected a new card to enter Learning, but got %v", got.State)
		}
	})
}

func TestScheduleSkill(t *testing.T) {
	s := NewScheduler(DefaultParams())
	st := domain.SkillState{Due: t0, State: domain.New}

	got, err := s.ScheduleSkill(st, domain.Again, t0)
	if err != nil {
		t.Fatalf("ScheduleSkill returned error: %v", err)
	}
	if got.Lapses != 1 || got.Reps != 1 || got.State != domain.Learning || !got.Due.After(t0) {
		t.Errorf("Unexpected skill state after Again: %+v", got)
	}
}

func TestPreviewCoversAllRatings(t *testing.T) {
	s := NewScheduler(nil)
	preview := s.Preview(sampleCards()[2], t0)
	if len(preview) != 4 {
		t.Fatalf("Expected 4 previews, but got %d", len(preview))
	}
	if preview[domain.Again].State != domain.Relearning {
		t.Errorf("Expected Again preview to relearn, but got %v", preview[domain.Again].State)
	}
}

func TestNewSelectsAlgorithm(t *testing.T) {
	if _, err := New("simple", 0.85, 0); err != nil {
		t.Errorf("Expected simple to be accepted, got %v", err)
	}
	if _, err := New("fsrs", 0, 365); err != nil {
		t.Errorf("Expected fsrs to be accepted, got %v", err)
	}
	if _, err := New("sm2", 0, 0); err == nil {
		t.Error("Expected an unknown algorithm to be rejected")
	}
}

func TestCalculateNewStability(t *testing.T) {
	params := DefaultParams()
	stability := 10.0
	difficulty := 5.0

	// S' = 10 * (1 + 0.2 * 5^(-0.5) * 10^0.1 * (e^(4 * (1-0.9)) - 1))
	// S' = 10 * (1 + 0.112 * 0.4918) = 10.55
	expected := 10.55

	newStability := params.calculateNewStability(stability, difficulty)

	if math.Abs(newStability-expected) > 0.01 {
		t.Errorf("Expected new stability to be around %.2f, but got %.2f", expected, newStability)
	}
}

func TestSimpleNext(t *testing.T) {
	params := DefaultParams()
	initial := Memory{
		Stability:  10,
		Difficulty: 5,
		State:      domain.Review,
		LastReview: t0.Add(-10 * 24 * time.Hour),
	}

	t.Run("Review with Again", func(t *testing.T) {
		next := params.Next(initial, domain.Again, t0)
		if next.Stability != 1 {
			t.Errorf("Expected stability to be reset to 1, but got %.2f", next.Stability)
		}
		if next.Difficulty <= initial.Difficulty {
			t.Errorf("Expected difficulty to increase, but it did not. Got %.2f", next.Difficulty)
		}
		if next.State != domain.Relearning {
			t.Errorf("Expected Relearning, but got %v", next.State)
		}
	})

	t.Run("Review with Good", func(t *testing.T) {
		next := params.Next(initial, domain.Good, t0)
		if next.Stability <= initial.Stability {
			t.Errorf("Expected stability to increase, but it did not. Got %.2f", next.Stability)
		}
		if next.Difficulty != initial.Difficulty {
			t.Errorf("Expected difficulty to remain the same for 'Good', but it changed to %.2f", next.Difficulty)
		}
	})

	t.Run("Review with Hard", func(t *testing.T) {
		next := params.Next(initial, domain.Hard, t0)
		if next.Stability <= initial.Stability {
			t.Errorf("Expected stability to increase, but it did not. Got %.2f", next.Stability)
		}
		if next.Difficulty <= initial.Difficulty {
			t.Errorf("Expected difficulty to increase for 'Hard', but it did not. Got %.2f", next.Difficulty)
		}
	})

	t.Run("Relearning with Good graduates", func(t *testing.T) {
		relearning := initial
		relearning.State = domain.Relearning
		next := params.Next(relearning, domain.Good, t0)
		if next.State != domain.Review {
			t.Errorf("Expected Review, but got %v", next.State)
		}
	})
}

func TestNextDueDate(t *testing.T) {
	stability := 15.5 // Should round to 16 days

	expectedDate := t0.Add(16 * 24 * time.Hour)
	actualDate := NextDueDate(t0, stability)

	if !actualDate.Equal(expectedDate) {
		t.Errorf("Expected due date to be %v, but got %v", expectedDate, actualDate)
	}
	if got := NextDueDate(t0, 0.2); !got.Equal(t0.Add(24 * time.Hour)) {
		t.Errorf("Expected a minimum of one day, but got %v", got)
	}
}

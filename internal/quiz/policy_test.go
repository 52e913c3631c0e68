package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/lexicard/internal/domain"
)

func TestChooseType(t *testing.T) {
	tests := []struct {
		name      string
		stability float64
		reps      int
		lapses    int
		state     domain.State
		want      domain.QuestionType
	}{
		{"new card", 0, 0, 0, domain.New, domain.Recognition},
		{"fragile after lapses", 30, 40, 3, domain.Review, domain.Recognition},
		{"below one day", 0.5, 10, 0, domain.Review, domain.Recognition},
		{"early learning", 2, 1, 0, domain.Learning, domain.Recognition},
		{"late relearning", 5, 8, 1, domain.Relearning, domain.Reverse},
		{"reverse band", 2, 10, 0, domain.Review, domain.Reverse},
		{"reverse band without reps", 2, 1, 0, domain.Review, domain.Recognition},
		{"fill blank band", 5, 10, 0, domain.Review, domain.FillBlank},
		{"spelling band", 8, 10, 0, domain.Review, domain.Spelling},
		{"mature", 25, 40, 0, domain.Review, domain.Distinction},
		{"distinction band, spelling reps", 25, 4, 0, domain.Review, domain.Spelling},
		{"distinction band, fill blank reps", 25, 3, 0, domain.Review, domain.FillBlank},
		{"band edge", 21, 5, 0, domain.Review, domain.Distinction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := domain.Card{Stability: tt.stability, Reps: tt.reps, Lapses: tt.lapses, State: tt.state}
			assert.Equal(t, tt.want, ChooseType(c))
		})
	}
}

func TestChooseTypeDependsOnlyOnMetrics(t *testing.T) {
	a := reviewCard("affect", 25, 40)
	b := a
	b.Lemma = "alter"
	b.Due = now.Add(48 * time.Hour)
	b.LastReview = now
	b.Difficulty = 9
	b.Skills.Set(domain.Spelling, domain.SkillState{Stability: 1})

	want := ChooseType(a)
	for range 10 {
		assert.Equal(t, want, ChooseType(a))
		assert.Equal(t, want, ChooseType(b))
	}
}

func TestEasier(t *testing.T) {
	assert.Equal(t, domain.Spelling, Easier(domain.Distinction))
	assert.Equal(t, domain.Recognition, Easier(domain.Reverse))
	assert.Equal(t, domain.Recognition, Easier(domain.Recognition))
}

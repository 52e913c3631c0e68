package skills

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/fsrs"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func reviewCard(stability float64, reps int) domain.Card {
	c := domain.NewCard("ubiquitous", "", domain.EntryWord, now.Add(-48*time.Hour))
	c.State = domain.Review
	c.Stability = stability
	c.Difficulty = 5
	c.Reps = reps
	c.LastReview = now.Add(-24 * time.Hour)
	c.Due = now
	return c
}

func TestThresholdsIncreaseWithDifficulty(t *testing.T) {
	prev := Threshold{}
	prevWeight := 0.0
	for _, st := range domain.SubSkills {
		th, ok := ThresholdFor(st)
		require.True(t, ok, st.String())
		assert.Greater(t, th.MinStability, prev.MinStability, st.String())
		assert.Greater(t, th.MinReps, prev.MinReps, st.String())
		assert.Greater(t, Influence(st), prevWeight, st.String())
		prev, prevWeight = th, Influence(st)
	}
	_, ok := ThresholdFor(domain.Recognition)
	assert.False(t, ok)
}

func TestNewSkillsForCard(t *testing.T) {
	tests := []struct {
		name      string
		stability float64
		reps      int
		present   []domain.SkillType
		want      []domain.SkillType
	}{
		{name: "fresh card", stability: 0.5, reps: 1, want: nil},
		{name: "reverse only", stability: 2, reps: 2, want: []domain.SkillType{domain.Reverse}},
		{name: "reps floor holds back", stability: 30, reps: 3, want: []domain.SkillType{domain.Reverse, domain.FillBlank}},
		{name: "everything", stability: 30, reps: 10, want: domain.SubSkills},
		{
			name: "skips present", stability: 8, reps: 4,
			present: []domain.SkillType{domain.Reverse},
			want:    []domain.SkillType{domain.FillBlank, domain.Spelling},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := reviewCard(tt.stability, tt.reps)
			for _, p := range tt.present {
				c.Skills.Set(p, domain.SkillState{Due: now})
			}
			assert.Equal(t, tt.want, NewSkillsForCard(c))
		})
	}
}

func TestBlend(t *testing.T) {
	tests := []struct {
		skill domain.SkillType
		in    domain.Rating
		want  domain.Rating
	}{
		{domain.Reverse, domain.Again, domain.Hard},
		{domain.FillBlank, domain.Again, domain.Again},
		{domain.Distinction, domain.Again, domain.Again},
		{domain.FillBlank, domain.Hard, domain.Good},
		{domain.Spelling, domain.Hard, domain.Hard},
		{domain.Reverse, domain.Easy, domain.Good},
		{domain.FillBlank, domain.Easy, domain.Easy},
		{domain.Spelling, domain.Good, domain.Good},
		{domain.Reverse, domain.Good, domain.Good},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Blend(tt.skill, tt.in), "%s/%s", tt.skill, tt.in)
	}
}

func TestApply(t *testing.T) {
	m := NewManager(fsrs.NewScheduler(fsrs.DefaultParams()), nil)

	t.Run("sub-skill is scheduled and blended", func(t *testing.T) {
		c := reviewCard(10, 6)
		c.Skills.Set(domain.Spelling, domain.SkillState{Due: now, State: domain.Review, Stability: 4, Difficulty: 5, Reps: 2})

		out, err := m.Apply(c, domain.Spelling, domain.Again, now)
		require.NoError(t, err)

		assert.Equal(t, domain.Again, out.MainRating)
		assert.Equal(t, domain.Spelling, out.Log.Skill)
		assert.Equal(t, domain.Again, out.Log.SkillRating)
		assert.Equal(t, c.Lapses+1, out.Card.Lapses)

		st, ok := out.Card.Skills.Get(domain.Spelling)
		require.True(t, ok)
		assert.Equal(t, 3, st.Reps)
		assert.Equal(t, 1, st.Lapses)
		assert.Equal(t, domain.Relearning, st.State)

		orig, _ := c.Skills.Get(domain.Spelling)
		assert.Equal(t, 2, orig.Reps, "input card must not change")
	})

	t.Run("locked skill rates main card", func(t *testing.T) {
		c := reviewCard(2, 2)
		out, err := m.Apply(c, domain.Distinction, domain.Hard, now)
		require.NoError(t, err)

		assert.Equal(t, domain.Hard, out.MainRating)
		assert.Equal(t, domain.SkillType(0), out.Skill)
		assert.False(t, out.Card.Skills.Has(domain.Distinction))
	})

	t.Run("recognition rates main card and unlocks", func(t *testing.T) {
		c := reviewCard(25, 9)
		out, err := m.Apply(c, domain.Recognition, domain.Good, now)
		require.NoError(t, err)

		assert.Equal(t, domain.Good, out.MainRating)
		assert.Equal(t, domain.SubSkills, out.Unlocked)
		for _, st := range domain.SubSkills {
			s, ok := out.Card.Skills.Get(st)
			require.True(t, ok)
			assert.Equal(t, domain.New, s.State)
			assert.Equal(t, now, s.Due)
		}
	})

	t.Run("invalid rating", func(t *testing.T) {
		_, err := m.Apply(reviewCard(5, 3), domain.Reverse, domain.Rating(0), now)
		assert.ErrorIs(t, err, domain.ErrInvalidRating)
	})
}

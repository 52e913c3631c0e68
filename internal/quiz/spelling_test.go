package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/lexicard/internal/domain"
)

func TestCheckSpelling(t *testing.T) {
	q := domain.QuizQuestion{
		Type:           domain.Spelling,
		Correct:        "judgment",
		InflectedForm:  "judgments",
		AcceptVariants: []string{"judgement"},
	}
	tests := []struct {
		answer         string
		correct, exact bool
	}{
		{"judgments", true, true},
		{"  Judgments ", true, true},
		{"judgment", true, false},
		{"judgement", true, false},
		{"judgemint", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			correct, exact := CheckSpelling(q, tt.answer)
			assert.Equal(t, tt.correct, correct)
			assert.Equal(t, tt.exact, exact)
		})
	}

	noSentence := domain.QuizQuestion{Type: domain.Spelling, Correct: "o'clock"}
	correct, exact := CheckSpelling(noSentence, "o’clock")
	assert.True(t, correct)
	assert.False(t, exact)
}

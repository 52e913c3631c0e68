package quiz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/inflect"
)

func newTestGenerator(t *testing.T, seed uint64) *Generator {
	t.Helper()
	return NewGenerator(testCatalog(t),
		WithRand(seeded(seed)),
		WithClock(func() time.Time { return now }),
		WithLogger(discard),
	)
}

func assertChoices(t *testing.T, q domain.QuizQuestion, n int) {
	t.Helper()
	require.Len(t, q.Options, n)
	correct, ok := q.CorrectOption()
	require.True(t, ok)
	assert.Equal(t, q.Correct, correct.Value)

	values := map[string]bool{}
	marked := 0
	for i, o := range q.Options {
		assert.Equal(t, string(rune('A'+i)), o.Label)
		assert.False(t, values[o.Value], "duplicate option %q", o.Value)
		values[o.Value] = true
		if o.Correct {
			marked++
		}
	}
	assert.Equal(t, 1, marked)
}

func TestRecognitionQuestion(t *testing.T) {
	g := newTestGenerator(t, 1)
	q, err := g.Question(context.Background(), reviewCard("affect", 1, 1), domain.Recognition)
	require.NoError(t, err)

	assert.Equal(t, domain.Recognition, q.Type)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "affect", q.Prompt)
	assert.Equal(t, "to have an influence on", q.Correct)
	assert.Equal(t, domain.EntryWord, q.EntryType)
	assertChoices(t, q, 4)
}

func TestReverseQuestion(t *testing.T) {
	g := newTestGenerator(t, 2)
	q, err := g.Question(context.Background(), reviewCard("alter", 2, 2), domain.Reverse)
	require.NoError(t, err)

	assert.Equal(t, "to change something slightly", q.Prompt)
	assert.Equal(t, "alter", q.Correct)
	assertChoices(t, q, 4)
}

func TestFillBlankQuestion(t *testing.T) {
	g := newTestGenerator(t, 3)
	q, err := g.Question(context.Background(), reviewCard("affect", 5, 5), domain.FillBlank)
	require.NoError(t, err)

	assert.Equal(t, domain.FillBlank, q.Type)
	assert.Contains(t, q.SentenceContext, inflect.BlankMarker)
	assert.Zero(t, inflect.NewMatcher("affect").Count(q.SentenceContext))
	assert.Equal(t, "affect", q.Correct)
	assertChoices(t, q, 4)
}

func TestFillBlankPhrase(t *testing.T) {
	g := newTestGenerator(t, 4)
	c := reviewCard("give up", 5, 5)
	c.EntryType = domain.EntryPhrase
	q, err := g.Question(context.Background(), c, domain.FillBlank)
	require.NoError(t, err)

	assert.Equal(t, "She _____ smoking last year.", q.SentenceContext)
	assert.Equal(t, domain.EntryPhrase, q.EntryType)
}

func TestSpellingQuestion(t *testing.T) {
	g := newTestGenerator(t, 5)
	q, err := g.Question(context.Background(), reviewCard("affect", 10, 10), domain.Spelling)
	require.NoError(t, err)

	assert.Equal(t, domain.Spelling, q.Type)
	assert.Empty(t, q.Options)
	assert.Equal(t, "to have an influence on", q.Prompt)
	assert.Equal(t, "The cold weather _____ the harvest.", q.SentenceContext)
	assert.Equal(t, "affected", q.InflectedForm)
	assert.Equal(t, "National Exam 2023", q.ExamSource)
}

func TestDistinctionQuestion(t *testing.T) {
	g := newTestGenerator(t, 6)
	q, err := g.Question(context.Background(), reviewCard("affect", 30, 30), domain.Distinction)
	require.NoError(t, err)

	assert.Equal(t, domain.Distinction, q.Type)
	assertChoices(t, q, 4)
	values := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		values = append(values, o.Value)
	}
	assert.Contains(t, values, "effect")
	assert.Contains(t, values, "impact")
	assert.Contains(t, q.Explanation.Note, "effect: a noun meaning the result of a change")
	assert.True(t, strings.Contains(q.SentenceContext, inflect.BlankMarker))
}

func TestQuestionFallsBack(t *testing.T) {
	g := newTestGenerator(t, 7)

	// alter has a sentence but nothing it is confused with.
	q, err := g.Question(context.Background(), reviewCard("alter", 30, 30), domain.Distinction)
	require.NoError(t, err)
	assert.Equal(t, domain.Spelling, q.Type)

	// modify has no sentences at all.
	q, err = g.Question(context.Background(), reviewCard("modify", 5, 5), domain.FillBlank)
	require.NoError(t, err)
	assert.Equal(t, domain.Reverse, q.Type)
}

func TestQuestionUnknownEntry(t *testing.T) {
	g := newTestGenerator(t, 8)
	_, err := g.Question(context.Background(), reviewCard("zephyr", 1, 1), domain.Recognition)
	assert.ErrorIs(t, err, ErrUnknownEntry)

	_, err = g.Question(context.Background(), reviewCard("affect", 1, 1), domain.QuestionType(9))
	assert.ErrorIs(t, err, domain.ErrInvalidQuestionType)
}

func TestQuiz(t *testing.T) {
	g := newTestGenerator(t, 9)
	units := []Unit{
		{Card: reviewCard("affect", 25, 40)},
		{Card: reviewCard("zephyr", 1, 1)},
		{Card: reviewCard("alter", 25, 40), Skill: domain.Reverse},
	}
	qs, err := g.Quiz(context.Background(), units)
	require.NoError(t, err)
	require.Len(t, qs, 2, "unknown lemma is skipped")
	assert.Equal(t, domain.Distinction, qs[0].Type)
	assert.Equal(t, domain.Reverse, qs[1].Type)
	assert.NotEqual(t, qs[0].ID, qs[1].ID)
}

func TestWithOptionCount(t *testing.T) {
	g := NewGenerator(testCatalog(t), WithRand(seeded(1)), WithOptionCount(3), WithLogger(discard))
	q, err := g.Question(context.Background(), reviewCard("affect", 1, 1), domain.Reverse)
	require.NoError(t, err)
	assertChoices(t, q, 3)
}

func TestSupports(t *testing.T) {
	g := newTestGenerator(t, 10)
	tests := []struct {
		lemma string
		typ   domain.QuestionType
		want  bool
	}{
		{"affect", domain.Distinction, true},
		{"affect", domain.FillBlank, true},
		{"alter", domain.Distinction, false},
		{"alter", domain.FillBlank, true},
		{"alter", domain.Spelling, true},
		{"give up", domain.Distinction, false},
		{"modify", domain.FillBlank, false},
		{"modify", domain.Reverse, true},
		{"zephyr", domain.Recognition, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.Supports(reviewCard(tt.lemma, 30, 10), tt.typ), "%s as %s", tt.lemma, tt.typ)
	}

	c := reviewCard("alter", 30, 10)
	assert.True(t, g.Askable(Unit{Card: c}))
	assert.True(t, g.Askable(Unit{Card: c, Skill: domain.Spelling}))
	assert.False(t, g.Askable(Unit{Card: c, Skill: domain.Distinction}))
}

package quiz

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/domain"
)

var now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func word(lemma, pos string, level int, def string, examples ...catalog.Example) *catalog.Entry {
	return &catalog.Entry{
		Lemma:  lemma,
		POS:    pos,
		Level:  level,
		Senses: []catalog.Sense{{POS: pos, Definition: def, Examples: examples}},
	}
}

// testCatalog is a small verb-heavy catalog with one curated confusion set.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	affect := word("affect", "verb", 3, "to have an influence on",
		catalog.Example{
			Text:         "The cold weather affected the harvest.",
			Role:         catalog.RoleCorrectAnswer,
			SentenceRole: catalog.SentenceCloze,
			Source:       "National Exam 2023",
			Official:     true,
			Year:         2023,
		},
		catalog.Example{Text: "Music can affect your mood."},
	)
	affect.Synonyms = []string{"influence"}
	affect.DerivedForms = []string{"affective"}
	affect.ConfusedWith = []string{"effect: a noun meaning the result of a change", "impact", "not a lemma!!"}

	giveUp := word("give up", "verb", 2, "to stop trying or doing something",
		catalog.Example{Text: "She gave up smoking last year."})
	giveUp.ConfusedWith = []string{"give in"}

	alter := word("alter", "verb", 3, "to change something slightly",
		catalog.Example{Text: "They altered the plan at the last minute."})

	c, err := catalog.New(discard,
		affect,
		giveUp,
		alter,
		word("effect", "noun", 3, "a result or consequence"),
		word("impact", "verb", 3, "to have a strong effect on"),
		word("influence", "verb", 3, "to affect how someone thinks"),
		word("affective", "adjective", 4, "relating to moods and feelings"),
		word("modify", "verb", 3, "to make partial changes to"),
		word("shape", "verb", 4, "to give a form to"),
		word("change", "verb", 2, "to make different"),
		word("adjust", "verb", 3, "to alter slightly to fit"),
		word("give in", "verb", 2, "to finally agree to something"),
		word("run", "verb", 1, "to move quickly on foot"),
	)
	require.NoError(t, err)
	return c
}

func reviewCard(lemma string, stability float64, reps int) domain.Card {
	c := domain.NewCard(lemma, domain.PrimarySense, domain.EntryWord, now.Add(-30*24*time.Hour))
	c.State = domain.Review
	c.Stability = stability
	c.Difficulty = 5
	c.Reps = reps
	c.LastReview = now.Add(-10 * 24 * time.Hour)
	c.Due = now.Add(-time.Hour)
	return c
}

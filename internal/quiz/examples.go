package quiz

import (
	"math/rand/v2"
	"time"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/inflect"
)

// roleWeights scores an example's role for each sentence-based question type.
// A correct_answer sentence from an exam suits distinction best; a sentence
// where the entry was a wrong option suits it least.
var roleWeights = map[catalog.ExampleRole]map[domain.QuestionType]float64{
	catalog.RoleCorrectAnswer: {domain.FillBlank: 1.0, domain.Spelling: 0.9, domain.Distinction: 1.0},
	catalog.RoleGeneral:       {domain.FillBlank: 0.7, domain.Spelling: 0.8, domain.Distinction: 0.5},
	catalog.RoleDefinition:    {domain.FillBlank: 0.5, domain.Spelling: 0.6, domain.Distinction: 0.3},
	catalog.RoleDistractor:    {domain.FillBlank: 0.3, domain.Spelling: 0.4, domain.Distinction: 0.2},
}

const (
	clozeBonus    = 0.3
	optionBonus   = 0.2
	officialBonus = 0.2
	recencyBonus  = 0.2

	// nearTie is the fraction of the top score an example needs to be picked.
	nearTie = 0.7
)

// ScoreExample rates how well ex serves a question of type t asked at now.
func ScoreExample(ex catalog.Example, t domain.QuestionType, now time.Time) float64 {
	role := ex.Role
	if role == "" {
		role = catalog.RoleGeneral
	}
	score := roleWeights[role][t]

	switch ex.SentenceRole {
	case catalog.SentenceCloze:
		score += clozeBonus
	case catalog.SentenceOption:
		score += optionBonus
	}
	if ex.Official {
		score += officialBonus
	}
	if ex.Year > 0 {
		years := now.Year() - ex.Year
		if years < 0 {
			years = -years
		}
		score += recencyBonus / float64(1+years)
	}
	return score
}

// SelectExample picks a sentence for a question of type t. Only sentences
// where m finds the answer are considered; among them, one is chosen
// uniformly from those scoring at least 70% of the best.
func SelectExample(rng *rand.Rand, examples []catalog.Example, m *inflect.Matcher, t domain.QuestionType, now time.Time) (catalog.Example, bool) {
	type scored struct {
		ex    catalog.Example
		score float64
	}
	var candidates []scored
	top := 0.0
	for _, ex := range examples {
		if m.Count(ex.Text) == 0 {
			continue
		}
		s := ScoreExample(ex, t, now)
		candidates = append(candidates, scored{ex, s})
		top = max(top, s)
	}
	if len(candidates) == 0 {
		return catalog.Example{}, false
	}

	var near []catalog.Example
	for _, c := range candidates {
		if c.score >= nearTie*top {
			near = append(near, c.ex)
		}
	}
	return near[rng.IntN(len(near))], true
}

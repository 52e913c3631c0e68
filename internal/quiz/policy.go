// Package quiz decides what to ask about which card and builds the questions.
package quiz

import (
	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/skills"
)

// ChooseType returns the question type a card should get next. It depends
// only on the card's stability, reps, lapses and state.
//
// Fragile memories (three or more lapses, or stability below one day) and
// cards in short-term learning get recognition, or reverse once a learning
// card is past three days. Otherwise the hardest type whose stability band
// and reps floor are both met is chosen.
func ChooseType(c domain.Card) domain.QuestionType {
	if c.Lapses >= 3 || c.Stability < 1 {
		return domain.Recognition
	}
	if c.State.InLearning() {
		if c.Stability < 3 {
			return domain.Recognition
		}
		return domain.Reverse
	}

	for i := len(domain.SubSkills) - 1; i >= 0; i-- {
		t := domain.SubSkills[i]
		th, _ := skills.ThresholdFor(t)
		if c.Stability < th.MinStability {
			continue
		}
		// Band met: step down until the reps floor is met too.
		for j := i; j >= 0; j-- {
			t = domain.SubSkills[j]
			th, _ = skills.ThresholdFor(t)
			if c.Reps >= th.MinReps {
				return t
			}
		}
		break
	}
	return domain.Recognition
}

// Easier returns the next easier question type, or Recognition.
func Easier(t domain.QuestionType) domain.QuestionType {
	if t <= domain.Recognition {
		return domain.Recognition
	}
	return t - 1
}

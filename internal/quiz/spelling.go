package quiz

import (
	"strings"

	"github.com/conorfennell/lexicard/internal/domain"
)

// CheckSpelling grades a free-text answer to a spelling question. The answer
// is correct if it matches the lemma, the inflected form used in the
// sentence, or an accepted variant, ignoring case and surrounding space.
// exact reports that the answer reproduced the sentence's inflected form.
func CheckSpelling(q domain.QuizQuestion, answer string) (correct, exact bool) {
	a := normalizeAnswer(answer)
	if a == "" {
		return false, false
	}
	if q.InflectedForm != "" && a == normalizeAnswer(q.InflectedForm) {
		return true, true
	}
	if a == normalizeAnswer(q.Correct) {
		return true, false
	}
	for _, v := range q.AcceptVariants {
		if a == normalizeAnswer(v) {
			return true, false
		}
	}
	return false, false
}

func normalizeAnswer(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

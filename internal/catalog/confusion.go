package catalog

import (
	"errors"
	"regexp"
	"strings"
)

// Confusion is a curated note naming a lemma that learners mix up with the
// entry, and optionally how the two differ.
type Confusion struct {
	Lemma       string
	Explanation string
}

// ErrMalformedConfusion is returned for notes that do not name a usable lemma.
var ErrMalformedConfusion = errors.New("malformed confusion note")

var confusionLemma = regexp.MustCompile(`^[\p{L}][\p{L}'\- ]{0,48}$`)

// ParseConfusion parses "lemma" or "lemma: explanation". The lemma part must
// be at most four words of letters, hyphens and apostrophes.
func ParseConfusion(raw string) (Confusion, error) {
	lemma, explanation, _ := strings.Cut(raw, ":")
	lemma = strings.Join(strings.Fields(lemma), " ")
	explanation = strings.TrimSpace(explanation)

	if lemma == "" || !confusionLemma.MatchString(lemma) || len(strings.Fields(lemma)) > 4 {
		return Confusion{}, ErrMalformedConfusion
	}
	return Confusion{Lemma: lemma, Explanation: explanation}, nil
}

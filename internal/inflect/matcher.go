package inflect

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:-\p{L}+)*`)

// Match is one surface occurrence in a text, as byte offsets.
type Match struct {
	Start int
	End   int
	Text  string
}

// Matcher finds a word or phrase and its inflections in text.
type Matcher struct {
	phrase *regexp.Regexp
	forms  map[string]bool
	stem   string
}

// NewMatcher builds a matcher for lemma. extra holds known inflections,
// derived forms or phrase variants from the catalog.
func NewMatcher(lemma string, extra ...string) *Matcher {
	lemma = strings.TrimSpace(lemma)
	if strings.ContainsAny(lemma, " \t") {
		return &Matcher{phrase: phraseRegexp(lemma, extra)}
	}

	m := &Matcher{forms: map[string]bool{}}
	for _, f := range Forms(lemma, extra...) {
		m.forms[f] = true
	}
	if len(lemma) >= minStemLen {
		m.stem = Stem(lemma)
	}
	return m
}

func phraseRegexp(phrase string, extra []string) *regexp.Regexp {
	words := strings.Fields(strings.ToLower(phrase))
	parts := make([]string, len(words))
	for i, w := range words {
		switch {
		case possessives[w]:
			parts[i] = possessivePattern
		case objects[w]:
			parts[i] = objectPattern
		case i == 0:
			parts[i] = alternation(Forms(w))
		default:
			parts[i] = regexp.QuoteMeta(w)
		}
	}

	alts := []string{strings.Join(parts, `\s+`)}
	for _, v := range PhraseVariants(phrase, extra...) {
		quoted := make([]string, 0, 4)
		for _, w := range strings.Fields(v) {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
		alts = append(alts, strings.Join(quoted, `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

func alternation(forms []string) string {
	quoted := make([]string, len(forms))
	for i, f := range forms {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

// Find returns every non-overlapping occurrence in text, in order.
func (m *Matcher) Find(text string) []Match {
	var out []Match
	if m.phrase != nil {
		for _, loc := range m.phrase.FindAllStringIndex(text, -1) {
			out = append(out, Match{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]})
		}
		return out
	}
	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		tok := text[loc[0]:loc[1]]
		if m.matchesToken(tok) {
			out = append(out, Match{Start: loc[0], End: loc[1], Text: tok})
		}
	}
	return out
}

func (m *Matcher) matchesToken(tok string) bool {
	lower := strings.ToLower(tok)
	if m.forms[lower] {
		return true
	}
	return m.stem != "" && len(lower) >= minStemLen && Stem(lower) == m.stem
}

// Count returns the number of occurrences in text.
func (m *Matcher) Count(text string) int {
	return len(m.Find(text))
}

// Blank replaces every occurrence in text with BlankMarker and returns the
// blanked text and the replaced surface forms.
func (m *Matcher) Blank(text string) (string, []string) {
	matches := m.Find(text)
	if len(matches) == 0 {
		return text, nil
	}
	var b strings.Builder
	surfaces := make([]string, 0, len(matches))
	prev := 0
	for _, mt := range matches {
		b.WriteString(text[prev:mt.Start])
		b.WriteString(BlankMarker)
		surfaces = append(surfaces, mt.Text)
		prev = mt.End
	}
	b.WriteString(text[prev:])
	return b.String(), surfaces
}

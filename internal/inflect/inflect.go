// Package inflect finds the surface forms of a word or phrase in a sentence,
// so that a quiz can blank every occurrence of the answer.
package inflect

import (
	"sort"
	"strings"

	"github.com/kljensen/snowball/english"
)

// BlankMarker replaces every match when a sentence is blanked.
const BlankMarker = "_____"

// minStemLen keeps short words from matching unrelated tokens by stem.
const minStemLen = 4

var irregular = map[string][]string{
	"be":         {"am", "is", "are", "was", "were", "been", "being"},
	"have":       {"has", "had", "having"},
	"do":         {"does", "did", "done", "doing"},
	"go":         {"goes", "went", "gone", "going"},
	"bear":       {"bore", "borne", "born"},
	"begin":      {"began", "begun"},
	"break":      {"broke", "broken"},
	"bring":      {"brought"},
	"buy":        {"bought"},
	"choose":     {"chose", "chosen"},
	"come":       {"came"},
	"drive":      {"drove", "driven"},
	"fall":       {"fell", "fallen"},
	"feel":       {"felt"},
	"find":       {"found"},
	"forbid":     {"forbade", "forbidden"},
	"get":        {"got", "gotten"},
	"give":       {"gave", "given"},
	"grow":       {"grew", "grown"},
	"hold":       {"held"},
	"keep":       {"kept"},
	"know":       {"knew", "known"},
	"lay":        {"laid"},
	"lead":       {"led"},
	"leave":      {"left"},
	"lose":       {"lost"},
	"make":       {"made"},
	"mean":       {"meant"},
	"meet":       {"met"},
	"overcome":   {"overcame"},
	"pay":        {"paid"},
	"rise":       {"rose", "risen"},
	"run":        {"ran"},
	"say":        {"said"},
	"see":        {"saw", "seen"},
	"seek":       {"sought"},
	"sell":       {"sold"},
	"send":       {"sent"},
	"set":        {"set"},
	"speak":      {"spoke", "spoken"},
	"spend":      {"spent"},
	"stand":      {"stood"},
	"take":       {"took", "taken"},
	"teach":      {"taught"},
	"tell":       {"told"},
	"think":      {"thought"},
	"undergo":    {"underwent", "undergone"},
	"understand": {"understood"},
	"undertake":  {"undertook", "undertaken"},
	"withdraw":   {"withdrew", "withdrawn"},
	"write":      {"wrote", "written"},
}

// Forms returns the base word with its regular and irregular inflections,
// lowercased and deduplicated. extra forms, such as catalog-provided
// inflections, are included as given.
func Forms(word string, extra ...string) []string {
	w := strings.ToLower(strings.TrimSpace(word))
	set := map[string]bool{}
	add := func(forms ...string) {
		for _, f := range forms {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				set[f] = true
			}
		}
	}
	add(w)
	add(extra...)
	if w == "" || strings.Contains(w, " ") {
		return sorted(set)
	}

	add(irregular[w]...)
	add(thirdPerson(w), pastTense(w), presentParticiple(w))
	if endsCVC(w) {
		last := w[len(w)-1:]
		add(w+last+"ed", w+last+"ing", w+last+"er", w+last+"est")
	}
	if strings.HasSuffix(w, "e") {
		add(w+"r", w+"st")
	} else if strings.HasSuffix(w, "y") && len(w) > 2 && !isVowel(w[len(w)-2]) {
		add(w[:len(w)-1]+"ier", w[:len(w)-1]+"iest")
	} else {
		add(w+"er", w+"est")
	}
	return sorted(set)
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	// Longest first so alternations prefer the fullest match.
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}

func thirdPerson(w string) string {
	switch {
	case strings.HasSuffix(w, "y") && len(w) > 1 && !isVowel(w[len(w)-2]):
		return w[:len(w)-1] + "ies"
	case strings.HasSuffix(w, "s"), strings.HasSuffix(w, "x"), strings.HasSuffix(w, "z"),
		strings.HasSuffix(w, "ch"), strings.HasSuffix(w, "sh"), strings.HasSuffix(w, "o"):
		return w + "es"
	default:
		return w + "s"
	}
}

func pastTense(w string) string {
	switch {
	case strings.HasSuffix(w, "e"):
		return w + "d"
	case strings.HasSuffix(w, "y") && len(w) > 1 && !isVowel(w[len(w)-2]):
		return w[:len(w)-1] + "ied"
	default:
		return w + "ed"
	}
}

func presentParticiple(w string) string {
	switch {
	case strings.HasSuffix(w, "ie"):
		return w[:len(w)-2] + "ying"
	case strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "ee") && !strings.HasSuffix(w, "ye") && !strings.HasSuffix(w, "oe") && len(w) > 2:
		return w[:len(w)-1] + "ing"
	default:
		return w + "ing"
	}
}

// endsCVC reports whether w ends consonant-vowel-consonant, where the final
// consonant may double before a suffix (stop, plan, occur).
func endsCVC(w string) bool {
	n := len(w)
	if n < 3 {
		return false
	}
	c1, v, c2 := w[n-3], w[n-2], w[n-1]
	return !isVowel(c1) && isVowel(v) && !isVowel(c2) && strings.IndexByte("wxy", c2) < 0
}

// Stem returns the English stem used to match derived forms.
func Stem(word string) string {
	return english.Stem(strings.ToLower(word), false)
}

var (
	possessives = map[string]bool{"one's": true, "someone's": true, "somebody's": true, "sb's": true}
	objects     = map[string]bool{"someone": true, "somebody": true, "something": true, "sb": true, "sth": true}
)

const (
	possessivePattern = `(?:my|your|his|her|its|our|their|one's|\p{L}+'s)`
	objectPattern     = `\p{L}+(?:\s+\p{L}+){0,2}`
)

// PhraseVariants lists the literal surface variants of a phrase obtained by
// inflecting its first word. Placeholders such as "someone" are kept as is.
func PhraseVariants(phrase string, extra ...string) []string {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) == 0 {
		return nil
	}
	set := map[string]bool{}
	rest := strings.Join(words[1:], " ")
	for _, head := range Forms(words[0]) {
		set[strings.TrimSpace(head+" "+rest)] = true
	}
	for _, e := range extra {
		if e = strings.Join(strings.Fields(strings.ToLower(e)), " "); e != "" {
			set[e] = true
		}
	}
	return sorted(set)
}

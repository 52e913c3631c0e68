package catalog

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name            string
		input           string
		expectedEntries int
		expectedLemma   string
		expectedDef     string
		expectedSenses  int
	}{
		{
			name:            "Simple entry",
			input:           "W: abandon\nS: to leave behind",
			expectedEntries: 1,
			expectedLemma:   "abandon",
			expectedDef:     "to leave behind",
			expectedSenses:  1,
		},
		{
			name: "Multiline definition",
			input: `
W: bear
P: verb
S: to carry
or to support
S: to tolerate
`,
			expectedEntries: 1,
			expectedLemma:   "bear",
			expectedDef:     "to carry\nor to support",
			expectedSenses:  2,
		},
		{
			name: "Two entries",
			input: `
W: first
S: one

W: second
S: two
`,
			expectedEntries: 2,
			expectedLemma:   "first",
			expectedDef:     "one",
			expectedSenses:  1,
		},
		{
			name:            "Separator",
			input:           "W: a\nS: x\n---\nW: b\nS: y",
			expectedEntries: 2,
			expectedLemma:   "a",
			expectedDef:     "x",
			expectedSenses:  1,
		},
		{
			name:            "No entries, just text",
			input:           "This is a file with no vocabulary.",
			expectedEntries: 0,
		},
		{
			name:            "Prefixes with no space",
			input:           "W:lemma\nS:meaning",
			expectedEntries: 1,
			expectedLemma:   "lemma",
			expectedDef:     "meaning",
			expectedSenses:  1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}
			if len(entries) != tc.expectedEntries {
				t.Fatalf("Expected %d entries, but got %d", tc.expectedEntries, len(entries))
			}
			if tc.expectedEntries == 0 {
				return
			}
			e := entries[0]
			if e.Lemma != tc.expectedLemma {
				t.Errorf("Expected lemma '%s', but got '%s'", tc.expectedLemma, e.Lemma)
			}
			if len(e.Senses) != tc.expectedSenses {
				t.Fatalf("Expected %d senses, but got %d", tc.expectedSenses, len(e.Senses))
			}
			if e.Senses[0].Definition != tc.expectedDef {
				t.Errorf("Expected definition '%s', but got '%s'", tc.expectedDef, e.Senses[0].Definition)
			}
		})
	}
}

func TestParseAllFields(t *testing.T) {
	input := `W: affect
T: word
L: 4
P: verb
S: to have an influence on
E: The weather affected our plans. || role=correct_answer; sentence=cloze; source=TOEIC; year=2021; official
E: It was a moving story
that affected everyone.
Y: influence, impact
D: affected, affecting
X: effect: a noun meaning result
V: affekt
I: affected
`
	entries, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, but got %d", len(entries))
	}
	e := entries[0]
	if e.Level != 4 || e.POS != "verb" || e.Type != "word" {
		t.Errorf("Unexpected header fields: level=%d pos=%s type=%s", e.Level, e.POS, e.Type)
	}
	if len(e.Senses[0].Examples) != 2 {
		t.Fatalf("Expected 2 examples, but got %d", len(e.Senses[0].Examples))
	}
	ex := e.Senses[0].Examples[0]
	if ex.Text != "The weather affected our plans." || ex.Role != RoleCorrectAnswer || ex.SentenceRole != SentenceCloze ||
		ex.Source != "TOEIC" || ex.Year != 2021 || !ex.Official {
		t.Errorf("Unexpected example metadata: %+v", ex)
	}
	if got := e.Senses[0].Examples[1]; got.Text != "It was a moving story\nthat affected everyone." || got.Role != RoleGeneral {
		t.Errorf("Unexpected multiline example: %+v", got)
	}
	if len(e.Synonyms) != 2 || len(e.DerivedForms) != 2 || len(e.ConfusedWith) != 1 || len(e.Variants) != 1 || len(e.Inflections) != 1 {
		t.Errorf("Unexpected list fields: %+v", e)
	}
	if e.Senses[0].POS != "verb" {
		t.Errorf("Expected sense to inherit pos 'verb', got '%s'", e.Senses[0].POS)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := map[string]string{
		"field before lemma":    "S: orphan definition",
		"example before sense":  "W: x\nE: sentence",
		"bad level":             "W: x\nL: three\nS: y",
		"unknown example field": "W: x\nS: y\nE: text || colour=blue",
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(input)); err == nil {
				t.Error("Expected an error, but got nil")
			}
		})
	}
}

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// QuestionType is the kind of quiz question. Every question type is also a
// skill: recognition is tracked by the main card, the other four get their
// own SkillState once unlocked.
type QuestionType int

// SkillType names the skill a question exercises.
type SkillType = QuestionType

const (
	Recognition QuestionType = iota + 1
	Reverse
	FillBlank
	Spelling
	Distinction
)

const numQuestionTypes = int(Distinction)

var questionTypeNames = [...]string{
	Recognition: "recognition",
	Reverse:     "reverse",
	FillBlank:   "fill_blank",
	Spelling:    "spelling",
	Distinction: "distinction",
}

// QuestionTypes lists every type from easiest to hardest.
var QuestionTypes = []QuestionType{Recognition, Reverse, FillBlank, Spelling, Distinction}

// SubSkills lists the skill types that carry their own SkillState.
var SubSkills = []SkillType{Reverse, FillBlank, Spelling, Distinction}

// IsValid reports whether t is a known question type.
func (t QuestionType) IsValid() bool {
	return t >= Recognition && t <= Distinction
}

func (t QuestionType) String() string {
	if t.IsValid() {
		return questionTypeNames[t]
	}
	if t == 0 {
		return "main"
	}
	return fmt.Sprintf("QuestionType(%d)", int(t))
}

// Harder reports whether t is one of the production-style types that earn
// an Easy grade when answered quickly.
func (t QuestionType) Harder() bool {
	return t == FillBlank || t == Spelling || t == Distinction
}

// MarshalText implements encoding.TextMarshaler.
func (t QuestionType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuestionType, int(t))
	}
	return []byte(questionTypeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *QuestionType) UnmarshalText(text []byte) error {
	v, err := ParseQuestionType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseQuestionType maps a name such as "fill_blank" to its type.
func ParseQuestionType(s string) (QuestionType, error) {
	for _, t := range QuestionTypes {
		if questionTypeNames[t] == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidQuestionType, s)
}

// SkillState is the independent schedule of one skill of a card.
type SkillState struct {
	Due        time.Time `json:"due"`
	Stability  float64   `json:"stability"`
	Difficulty float64   `json:"difficulty"`
	Reps       int       `json:"reps"`
	Lapses     int       `json:"lapses"`
	State      State     `json:"state"`
	LastReview time.Time `json:"last_review,omitzero"`
}

// SkillSet holds the unlocked skill states of a card, indexed by skill type.
// A nil slot means the skill is locked.
type SkillSet [numQuestionTypes + 1]*SkillState

// Get returns the state for t, if t is unlocked.
func (s SkillSet) Get(t SkillType) (SkillState, bool) {
	if !t.IsValid() || s[t] == nil {
		return SkillState{}, false
	}
	return *s[t], true
}

// Has reports whether t has a state.
func (s SkillSet) Has(t SkillType) bool {
	return t.IsValid() && s[t] != nil
}

// Set stores a copy of st under t. Invalid types are ignored.
func (s *SkillSet) Set(t SkillType, st SkillState) {
	if !t.IsValid() {
		return
	}
	v := st
	s[t] = &v
}

// Types returns the present skill types, easiest first.
func (s SkillSet) Types() []SkillType {
	var out []SkillType
	for _, t := range QuestionTypes {
		if s[t] != nil {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of present skill states.
func (s SkillSet) Len() int {
	n := 0
	for _, st := range s {
		if st != nil {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (s SkillSet) Clone() SkillSet {
	var out SkillSet
	for i, st := range s {
		if st != nil {
			v := *st
			out[i] = &v
		}
	}
	return out
}

// MarshalJSON encodes the set as an object keyed by skill name.
func (s SkillSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]SkillState, s.Len())
	for _, t := range s.Types() {
		m[questionTypeNames[t]] = *s[t]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by skill name. Unknown names are an error.
func (s *SkillSet) UnmarshalJSON(data []byte) error {
	var m map[string]SkillState
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out SkillSet
	for name, st := range m {
		t, err := ParseQuestionType(name)
		if err != nil {
			return err
		}
		out.Set(t, st)
	}
	*s = out
	return nil
}

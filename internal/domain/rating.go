package domain

import (
	"encoding"
	"fmt"
)

// Rating is the learner's recall grade for one review.
// Values match the FSRS grades:
// 1: Again (Incorrect)
// 2: Hard
// 3: Good
// 4: Easy
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// State is the learning stage of a card or skill.
type State int

const (
	New State = iota
	Learning
	Review
	Relearning
)

var (
	ratingNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}
	stateNames  = [...]string{New: "new", Learning: "learning", Review: "review", Relearning: "relearning"}
)

var (
	_ fmt.Stringer             = Rating(0)
	_ encoding.TextMarshaler   = Rating(0)
	_ encoding.TextUnmarshaler = (*Rating)(nil)
	_ fmt.Stringer             = State(0)
)

// IsValid reports whether r is one of Again..Easy.
func (r Rating) IsValid() bool {
	return r >= Again && r <= Easy
}

func (r Rating) String() string {
	if r.IsValid() {
		return ratingNames[r]
	}
	return fmt.Sprintf("Rating(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRating, int(r))
	}
	return []byte(ratingNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRating accepts a rating name ("good") or its numeric grade ("3").
func ParseRating(s string) (Rating, error) {
	for r := Again; r <= Easy; r++ {
		if s == ratingNames[r] || s == fmt.Sprint(int(r)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRating, s)
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	return s >= New && s <= Relearning
}

func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// InLearning reports whether s is one of the short-interval learning states.
func (s State) InLearning() bool {
	return s == Learning || s == Relearning
}

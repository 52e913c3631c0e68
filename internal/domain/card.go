package domain

import "time"

// PrimarySense is the sense id used when an entry has a single meaning or the
// caller does not know which sense was studied.
const PrimarySense = "primary"

// EntryType distinguishes single words from multi-word phrases.
type EntryType string

const (
	EntryWord   EntryType = "word"
	EntryPhrase EntryType = "phrase"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == EntryWord || t == EntryPhrase
}

// Key identifies a card. A card is unique per (lemma, sense id).
type Key struct {
	Lemma   string
	SenseID string
}

// NewKey builds a key, defaulting an empty sense id to PrimarySense.
func NewKey(lemma, senseID string) Key {
	if senseID == "" {
		senseID = PrimarySense
	}
	return Key{Lemma: lemma, SenseID: senseID}
}

func (k Key) String() string {
	return k.Lemma + "#" + k.SenseID
}

// Card is the scheduling record for one sense of one vocabulary entry.
// Reps and Lapses never decrease during a card's life, and a New card has
// Reps == 0 and a zero LastReview.
type Card struct {
	Lemma         string
	SenseID       string
	EntryType     EntryType
	Due           time.Time
	Stability     float64
	Difficulty    float64
	ElapsedDays   float64
	ScheduledDays float64
	Reps          int
	Lapses        int
	State         State
	LastReview    time.Time
	Skills        SkillSet
}

// NewCard returns a card in the New state that is due at now.
func NewCard(lemma, senseID string, entryType EntryType, now time.Time) Card {
	if senseID == "" {
		senseID = PrimarySense
	}
	if !entryType.Valid() {
		entryType = EntryWord
	}
	return Card{
		Lemma:     lemma,
		SenseID:   senseID,
		EntryType: entryType,
		Due:       now,
		State:     New,
	}
}

// Key returns the card's identity.
func (c Card) Key() Key {
	return Key{Lemma: c.Lemma, SenseID: c.SenseID}
}

// Reviewed reports whether the card has been rated at least once.
func (c Card) Reviewed() bool {
	return !c.LastReview.IsZero()
}

// Clone returns a copy whose skill states are not shared with c.
func (c Card) Clone() Card {
	out := c
	out.Skills = c.Skills.Clone()
	return out
}

// ReviewLog records a single rating event. Logs are append-only.
type ReviewLog struct {
	Lemma            string
	SenseID          string
	Skill            QuestionType // zero value means the main card was rated directly
	Rating           Rating
	SkillRating      Rating // rating given to the skill before blending, zero if none
	ReviewedAt       time.Time
	StateBefore      State
	StateAfter       State
	StabilityBefore  float64
	StabilityAfter   float64
	DifficultyBefore float64
	DifficultyAfter  float64
	ElapsedDays      float64
	ScheduledDays    float64
}

// DailyStats aggregates study activity for one calendar date (YYYY-MM-DD).
type DailyStats struct {
	Date      string
	NewCards  int
	Reviews   int
	Again     int
	Hard      int
	Good      int
	Easy      int
	StudyTime time.Duration
}

// Add accumulates other into s. Dates are not compared.
func (s *DailyStats) Add(other DailyStats) {
	s.NewCards += other.NewCards
	s.Reviews += other.Reviews
	s.Again += other.Again
	s.Hard += other.Hard
	s.Good += other.Good
	s.Easy += other.Easy
	s.StudyTime += other.StudyTime
}

// CountRating bumps the counter for r.
func (s *DailyStats) CountRating(r Rating) {
	switch r {
	case Again:
		s.Again++
	case Hard:
		s.Hard++
	case Good:
		s.Good++
	case Easy:
		s.Easy++
	}
}

// DateKey formats t as the daily stats key in t's location.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SessionLog records a completed study session.
type SessionLog struct {
	ID           int64
	StartedAt    time.Time
	EndedAt      time.Time
	CardsStudied int
}

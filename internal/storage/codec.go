package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/lexicard/internal/domain"
)

// MaxSkillsBytes bounds the encoded skills column of one card.
const MaxSkillsBytes = 64 << 10

var skillsLimit = MaxSkillsBytes

// CardRecord is the persisted form of a card. Times are unix milliseconds
// and Skills holds the JSON encoding of the skill set, empty when none.
type CardRecord struct {
	Lemma         string  `json:"lemma" msgpack:"lemma" validate:"required"`
	SenseID       string  `json:"sense_id" msgpack:"sense_id" validate:"required"`
	EntryType     string  `json:"entry_type" msgpack:"entry_type" validate:"oneof=word phrase"`
	Due           int64   `json:"due" msgpack:"due"`
	Stability     float64 `json:"stability" msgpack:"stability" validate:"gte=0"`
	Difficulty    float64 `json:"difficulty" msgpack:"difficulty" validate:"gte=0"`
	ElapsedDays   float64 `json:"elapsed_days" msgpack:"elapsed_days" validate:"gte=0"`
	ScheduledDays float64 `json:"scheduled_days" msgpack:"scheduled_days" validate:"gte=0"`
	Reps          int     `json:"reps" msgpack:"reps" validate:"gte=0"`
	Lapses        int     `json:"lapses" msgpack:"lapses" validate:"gte=0,ltefield=Reps"`
	State         int     `json:"state" msgpack:"state" validate:"gte=0,lte=3"`
	LastReview    int64   `json:"last_review,omitempty" msgpack:"last_review,omitempty" validate:"gte=0"`
	Skills        string  `json:"skills,omitempty" msgpack:"skills,omitempty"`
}

// Key returns the record's card key.
func (r CardRecord) Key() domain.Key {
	return domain.Key{Lemma: r.Lemma, SenseID: r.SenseID}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks r after legacy defaults have been applied.
func ValidateRecord(r *CardRecord) error {
	if r.SenseID == "" {
		r.SenseID = domain.PrimarySense
	}
	if r.EntryType == "" {
		r.EntryType = string(domain.EntryWord)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid card record %s#%s: %w", r.Lemma, r.SenseID, err)
	}
	return nil
}

// EncodeCard converts a card to its persisted form. It fails when the core
// fields are invalid or when the skills cannot be encoded within MaxSkillsBytes.
func EncodeCard(c domain.Card) (CardRecord, error) {
	r := encodeCore(c)
	if c.Skills.Len() > 0 {
		data, err := json.Marshal(c.Skills)
		if err != nil {
			return CardRecord{}, fmt.Errorf("failed to encode skills of %s: %w", c.Key(), err)
		}
		if len(data) > skillsLimit {
			return CardRecord{}, fmt.Errorf("skills of %s are %d bytes: %w", c.Key(), len(data), ErrRecordTooLarge)
		}
		r.Skills = string(data)
	}
	if err := ValidateRecord(&r); err != nil {
		return CardRecord{}, err
	}
	return r, nil
}

// EncodeCardWithoutSkills is EncodeCard with the skills column left empty.
func EncodeCardWithoutSkills(c domain.Card) (CardRecord, error) {
	r := encodeCore(c)
	if err := ValidateRecord(&r); err != nil {
		return CardRecord{}, err
	}
	return r, nil
}

func encodeCore(c domain.Card) CardRecord {
	return CardRecord{
		Lemma:         c.Lemma,
		SenseID:       c.SenseID,
		EntryType:     string(c.EntryType),
		Due:           toMillis(c.Due),
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   c.ElapsedDays,
		ScheduledDays: c.ScheduledDays,
		Reps:          c.Reps,
		Lapses:        c.Lapses,
		State:         int(c.State),
		LastReview:    toMillis(c.LastReview),
	}
}

// DecodeCard converts a persisted record into a card. Invalid core fields are
// an error. When only the skills column is malformed the card is still
// returned, without skills, together with an error wrapping ErrMalformedSkills.
func DecodeCard(r CardRecord) (domain.Card, error) {
	if err := ValidateRecord(&r); err != nil {
		return domain.Card{}, err
	}
	c := domain.Card{
		Lemma:         r.Lemma,
		SenseID:       r.SenseID,
		EntryType:     domain.EntryType(r.EntryType),
		Due:           fromMillis(r.Due),
		Stability:     r.Stability,
		Difficulty:    r.Difficulty,
		ElapsedDays:   r.ElapsedDays,
		ScheduledDays: r.ScheduledDays,
		Reps:          r.Reps,
		Lapses:        r.Lapses,
		State:         domain.State(r.State),
		LastReview:    fromMillis(r.LastReview),
	}
	if r.Skills != "" {
		if err := json.Unmarshal([]byte(r.Skills), &c.Skills); err != nil {
			c.Skills = domain.SkillSet{}
			return c, fmt.Errorf("%w: %s: %v", ErrMalformedSkills, c.Key(), err)
		}
	}
	return c, nil
}

// ReviewLogRecord is the persisted form of a review log, as carried by
// dumps and snapshots. Enums keep their integer values so that the main
// card's zero skill survives encoders that prefer text forms.
type ReviewLogRecord struct {
	Lemma            string  `json:"lemma" msgpack:"lemma" validate:"required"`
	SenseID          string  `json:"sense_id" msgpack:"sense_id" validate:"required"`
	ReviewedAt       int64   `json:"reviewed_at" msgpack:"reviewed_at" validate:"gt=0"`
	Skill            int     `json:"skill" msgpack:"skill" validate:"gte=0,lte=5"`
	Rating           int     `json:"rating" msgpack:"rating" validate:"gte=1,lte=4"`
	SkillRating      int     `json:"skill_rating" msgpack:"skill_rating" validate:"gte=0,lte=4"`
	StateBefore      int     `json:"state_before" msgpack:"state_before" validate:"gte=0,lte=3"`
	StateAfter       int     `json:"state_after" msgpack:"state_after" validate:"gte=0,lte=3"`
	StabilityBefore  float64 `json:"stability_before" msgpack:"stability_before"`
	StabilityAfter   float64 `json:"stability_after" msgpack:"stability_after"`
	DifficultyBefore float64 `json:"difficulty_before" msgpack:"difficulty_before"`
	DifficultyAfter  float64 `json:"difficulty_after" msgpack:"difficulty_after"`
	ElapsedDays      float64 `json:"elapsed_days" msgpack:"elapsed_days"`
	ScheduledDays    float64 `json:"scheduled_days" msgpack:"scheduled_days"`
}

// EncodeReviewLog converts a log to its persisted form.
func EncodeReviewLog(l domain.ReviewLog) ReviewLogRecord {
	return ReviewLogRecord{
		Lemma:            l.Lemma,
		SenseID:          l.SenseID,
		ReviewedAt:       toMillis(l.ReviewedAt),
		Skill:            int(l.Skill),
		Rating:           int(l.Rating),
		SkillRating:      int(l.SkillRating),
		StateBefore:      int(l.StateBefore),
		StateAfter:       int(l.StateAfter),
		StabilityBefore:  l.StabilityBefore,
		StabilityAfter:   l.StabilityAfter,
		DifficultyBefore: l.DifficultyBefore,
		DifficultyAfter:  l.DifficultyAfter,
		ElapsedDays:      l.ElapsedDays,
		ScheduledDays:    l.ScheduledDays,
	}
}

// Log converts r back into a review log.
func (r ReviewLogRecord) Log() domain.ReviewLog {
	return domain.ReviewLog{
		Lemma:            r.Lemma,
		SenseID:          r.SenseID,
		ReviewedAt:       fromMillis(r.ReviewedAt),
		Skill:            domain.QuestionType(r.Skill),
		Rating:           domain.Rating(r.Rating),
		SkillRating:      domain.Rating(r.SkillRating),
		StateBefore:      domain.State(r.StateBefore),
		StateAfter:       domain.State(r.StateAfter),
		StabilityBefore:  r.StabilityBefore,
		StabilityAfter:   r.StabilityAfter,
		DifficultyBefore: r.DifficultyBefore,
		DifficultyAfter:  r.DifficultyAfter,
		ElapsedDays:      r.ElapsedDays,
		ScheduledDays:    r.ScheduledDays,
	}
}

// ValidateReviewLog checks a log record read from outside the database.
func ValidateReviewLog(r *ReviewLogRecord) error {
	if r.SenseID == "" {
		r.SenseID = domain.PrimarySense
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid review log %s#%s: %w", r.Lemma, r.SenseID, err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

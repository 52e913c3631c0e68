// Package skills layers independent per-skill schedules on top of a card's
// main schedule and folds skill results back into the main card.
package skills

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/fsrs"
)

// Threshold is what a card's main schedule must reach before a skill unlocks.
type Threshold struct {
	MinStability float64
	MinReps      int
}

var thresholds = map[domain.SkillType]Threshold{
	domain.Reverse:     {MinStability: 1, MinReps: 2},
	domain.FillBlank:   {MinStability: 3, MinReps: 3},
	domain.Spelling:    {MinStability: 7, MinReps: 4},
	domain.Distinction: {MinStability: 21, MinReps: 5},
}

// Harder skills pull the main rating further.
var influence = map[domain.SkillType]float64{
	domain.Reverse:     0.4,
	domain.FillBlank:   0.5,
	domain.Spelling:    0.7,
	domain.Distinction: 0.8,
}

// ThresholdFor returns the unlock threshold of t. Recognition has none.
func ThresholdFor(t domain.SkillType) (Threshold, bool) {
	th, ok := thresholds[t]
	return th, ok
}

// Influence returns how strongly a rating on t affects the main card.
func Influence(t domain.SkillType) float64 {
	return influence[t]
}

// Unlocked reports whether the card's main schedule has reached t's threshold.
// Recognition is always unlocked.
func Unlocked(card domain.Card, t domain.SkillType) bool {
	if t == domain.Recognition {
		return true
	}
	th, ok := thresholds[t]
	if !ok {
		return false
	}
	return card.Stability >= th.MinStability && card.Reps >= th.MinReps
}

// NewSkillsForCard returns the sub-skills that are unlocked but not yet
// present on the card, easiest first.
func NewSkillsForCard(card domain.Card) []domain.SkillType {
	var out []domain.SkillType
	for _, t := range domain.SubSkills {
		if Unlocked(card, t) && !card.Skills.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Blend converts a rating on skill t into the rating applied to the main card.
func Blend(t domain.SkillType, r domain.Rating) domain.Rating {
	w := influence[t]
	switch r {
	case domain.Again:
		if w >= 0.5 {
			return domain.Again
		}
		return domain.Hard
	case domain.Hard:
		if w >= 0.7 {
			return domain.Hard
		}
		return domain.Good
	case domain.Easy:
		if w >= 0.5 {
			return domain.Easy
		}
		return domain.Good
	default:
		return domain.Good
	}
}

// Outcome describes what Apply did to a card.
type Outcome struct {
	Card       domain.Card
	MainRating domain.Rating
	Skill      domain.SkillType // zero if the main card was rated directly
	Unlocked   []domain.SkillType
	Log        domain.ReviewLog
}

// Manager schedules skills and the main card together.
type Manager struct {
	sched  *fsrs.Scheduler
	logger *slog.Logger
}

// NewManager returns a manager that schedules with sched.
func NewManager(sched *fsrs.Scheduler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{sched: sched, logger: logger.With("component", "skills")}
}

// Unlock creates fresh states, due at now, for every newly unlocked skill.
// The input card is not modified.
func (m *Manager) Unlock(card domain.Card, now time.Time) (domain.Card, []domain.SkillType) {
	added := NewSkillsForCard(card)
	if len(added) == 0 {
		return card, nil
	}
	out := card.Clone()
	for _, t := range added {
		out.Skills.Set(t, domain.SkillState{Due: now, State: domain.New})
	}
	return out, added
}

// Apply records rating r for the given skill of card.
//
// A sub-skill with a state is scheduled on its own with r, and the blended
// rating is applied to the main card. Recognition, a zero skill, or a skill
// that has not been unlocked yet rate the main card with r directly.
// Skills unlocked by the new main schedule are added to the result.
func (m *Manager) Apply(card domain.Card, skill domain.SkillType, r domain.Rating, now time.Time) (Outcome, error) {
	if !r.IsValid() {
		return Outcome{}, fmt.Errorf("failed to apply rating to %s: %w", card.Key(), domain.ErrInvalidRating)
	}

	mainRating := r
	out := card.Clone()
	st, hasSkill := card.Skills.Get(skill)
	isSub := skill != domain.Recognition && skill.IsValid()

	switch {
	case isSub && hasSkill:
		next, err := m.sched.ScheduleSkill(st, r, now)
		if err != nil {
			return Outcome{}, err
		}
		out.Skills.Set(skill, next)
		mainRating = Blend(skill, r)
	case isSub:
		m.logger.Debug("skill not unlocked, rating main card", "card", card.Key().String(), "skill", skill.String())
		skill = 0
	default:
		skill = 0
	}

	scheduled, log, err := m.sched.Schedule(out, mainRating, now)
	if err != nil {
		return Outcome{}, err
	}
	log.Skill = skill
	if skill != 0 {
		log.SkillRating = r
	}

	scheduled, unlocked := m.Unlock(scheduled, now)
	if len(unlocked) > 0 {
		m.logger.Debug("skills unlocked", "card", card.Key().String(), "count", len(unlocked))
	}

	return Outcome{
		Card:       scheduled,
		MainRating: mainRating,
		Skill:      skill,
		Unlocked:   unlocked,
		Log:        log,
	}, nil
}

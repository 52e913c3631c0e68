package fsrs

import (
	"math"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
)

// Params holds the parameters of the simple power-law strategy.
// These are hand-tuned rather than optimized from review history.
type Params struct {
	A                float64 // scales the overall memory increase
	B                float64 // difficulty exponent
	C                float64 // stability exponent
	D                float64 // retention effect scaler
	DesiredRetention float64 // desired retention rate (e.g., 0.9 for 90%)

	InitialStability [4]float64    // first-review stability per rating, Again..Easy
	LearningStep     time.Duration // delay between short-term learning reviews
	EasyBonus        float64       // stability multiplier for Easy on a successful review
}

// DefaultParams provides a set of sensible default parameters to start with.
func DefaultParams() *Params {
	return &Params{
		A:                0.2,
		B:                0.5,
		C:                0.1,
		D:                4.0,
		DesiredRetention: 0.9,
		InitialStability: [4]float64{0.4, 1.2, 3.0, 8.0},
		LearningStep:     10 * time.Minute,
		EasyBonus:        1.3,
	}
}

// Next implements Strategy.
func (p *Params) Next(m Memory, rating domain.Rating, now time.Time) Memory {
	out := m

	switch {
	case m.State == domain.New || m.Stability <= 0:
		out.Stability = p.InitialStability[rating-1]
		out.Difficulty = clampDifficulty(5 - float64(rating-domain.Good))
	case rating == domain.Again:
		// If the user forgot, reset stability. Difficulty increases, capped.
		out.Stability = math.Min(1, m.Stability)
		out.Difficulty = clampDifficulty(m.Difficulty + 0.5)
	default:
		out.Stability = p.calculateNewStability(m.Stability, m.Difficulty)
		switch rating {
		case domain.Hard:
			out.Difficulty = clampDifficulty(m.Difficulty + 0.1)
		case domain.Easy:
			out.Stability *= p.EasyBonus
			out.Difficulty = clampDifficulty(m.Difficulty - 0.1)
		}
	}

	switch {
	case rating == domain.Again:
		if m.State == domain.Review || m.State == domain.Relearning {
			out.State = domain.Relearning
		} else {
			out.State = domain.Learning
		}
		out.Due = now.Add(p.LearningStep)
	case m.State == domain.New:
		out.State = domain.Learning
		out.Due = now.Add(p.LearningStep)
	case m.State.InLearning() && rating == domain.Hard:
		out.Due = now.Add(p.LearningStep)
	default:
		out.State = domain.Review
		out.Due = NextDueDate(now, out.Stability)
	}
	return out
}

// calculateNewStability applies the power-law formula for a successful review.
func (p *Params) calculateNewStability(stability, difficulty float64) float64 {
	// Formula: S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1))
	if stability < 1 {
		stability = 1 // Ensure stability is at least 1 to avoid issues with pow
	}
	if difficulty < 1 {
		difficulty = 1 // Ensure difficulty is at least 1
	}

	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	exponent := p.D * (1 - p.DesiredRetention)
	multiplier := math.Exp(exponent) - 1

	return stability * (1 + factor*multiplier)
}

// NextDueDate schedules the next review 'stability' days after from, at least one day out.
func NextDueDate(from time.Time, stability float64) time.Time {
	days := math.Max(1, math.Round(stability))
	return from.Add(time.Duration(days) * 24 * time.Hour)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}

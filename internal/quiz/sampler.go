package quiz

import (
	"context"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
)

// Bucket classifies a study unit for sampling.
type Bucket int

const (
	BucketDue Bucket = iota
	BucketWeak
	BucketRecent
	BucketStrong
	numBuckets
)

var bucketNames = [...]string{"due", "weak", "recent", "strong"}

func (b Bucket) String() string {
	if b >= 0 && b < numBuckets {
		return bucketNames[b]
	}
	return "unknown"
}

// BucketWeights is the share of a draw each bucket gets while it has entries.
var BucketWeights = [numBuckets]float64{
	BucketDue:    0.4,
	BucketWeak:   0.3,
	BucketRecent: 0.1,
	BucketStrong: 0.2,
}

// DefaultYieldEvery is how many entries long loops process between yields.
const DefaultYieldEvery = 200

// Unit is one candidate for a quiz: a card's main schedule or one of its
// skills.
type Unit struct {
	Card   domain.Card
	Skill  domain.SkillType // zero for the main schedule
	Bucket Bucket
}

// UnitKey identifies a unit within a draw.
type UnitKey struct {
	Lemma   string
	SenseID string
	Skill   domain.SkillType
}

// Key returns the unit's dedupe key.
func (u Unit) Key() UnitKey {
	return UnitKey{Lemma: u.Card.Lemma, SenseID: u.Card.SenseID, Skill: u.Skill}
}

// Classify places a schedule into the first bucket it qualifies for: due,
// weak, recent, strong. It returns false when none applies.
func Classify(due time.Time, stability float64, lapses int, lastReview, now time.Time) (Bucket, bool) {
	switch {
	case !due.After(now):
		return BucketDue, true
	case lapses >= 2 || stability < 3:
		return BucketWeak, true
	case !lastReview.IsZero() && now.Sub(lastReview) < 24*time.Hour:
		return BucketRecent, true
	case stability >= 21:
		return BucketStrong, true
	default:
		return 0, false
	}
}

// Units expands a card into its main unit and one unit per skill that is
// due or new, dropping those that fit no bucket.
func Units(c domain.Card, now time.Time) []Unit {
	var out []Unit
	if b, ok := Classify(c.Due, c.Stability, c.Lapses, c.LastReview, now); ok {
		out = append(out, Unit{Card: c, Bucket: b})
	}
	for _, t := range c.Skills.Types() {
		st, _ := c.Skills.Get(t)
		if st.State != domain.New && st.Due.After(now) {
			continue
		}
		if b, ok := Classify(st.Due, st.Stability, st.Lapses, st.LastReview, now); ok {
			out = append(out, Unit{Card: c, Skill: t, Bucket: b})
		}
	}
	return out
}

// Sampler draws quiz units from weighted buckets.
type Sampler struct {
	rng        *rand.Rand
	yieldEvery int
	keep       func(Unit) bool
}

// NewSampler returns a sampler using rng. A nil rng is seeded randomly.
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng, yieldEvery: DefaultYieldEvery}
}

// YieldEvery sets how many entries Draw processes between cancellation
// checks and returns s. Values below one keep the default.
func (s *Sampler) YieldEvery(n int) *Sampler {
	if n > 0 {
		s.yieldEvery = n
	}
	return s
}

// Eligible restricts Draw to units keep accepts and returns s.
func (s *Sampler) Eligible(keep func(Unit) bool) *Sampler {
	s.keep = keep
	return s
}

// Draw selects up to n units from cards with at most one unit per lemma.
//
// Units are bucketed and shuffled, then drawn by repeatedly picking a bucket
// with probability proportional to its weight among the buckets that still
// have entries. Drawing stops at 2n units, or later if that many do not yet
// cover n lemmas, or when every bucket is empty. The result keeps the first
// unit drawn per lemma, in random order. No eligible units is not an error.
func (s *Sampler) Draw(ctx context.Context, cards []domain.Card, n int, now time.Time) ([]Unit, error) {
	if n <= 0 {
		return nil, nil
	}

	var buckets [numBuckets][]Unit
	seen := map[UnitKey]bool{}
	for i, c := range cards {
		if err := yieldPoint(ctx, i, s.yieldEvery); err != nil {
			return nil, err
		}
		for _, u := range Units(c, now) {
			if seen[u.Key()] || (s.keep != nil && !s.keep(u)) {
				continue
			}
			seen[u.Key()] = true
			buckets[u.Bucket] = append(buckets[u.Bucket], u)
		}
	}
	for b := range buckets {
		s.rng.Shuffle(len(buckets[b]), func(i, j int) {
			buckets[b][i], buckets[b][j] = buckets[b][j], buckets[b][i]
		})
	}

	target := 2 * n
	var drawn []Unit
	lemmas := map[string]bool{}
	for len(drawn) < target || len(lemmas) < n {
		b, ok := s.pickBucket(&buckets)
		if !ok {
			break
		}
		u := buckets[b][0]
		buckets[b] = buckets[b][1:]
		drawn = append(drawn, u)
		lemmas[u.Card.Lemma] = true
	}

	out := make([]Unit, 0, n)
	used := map[string]bool{}
	for _, u := range drawn {
		if used[u.Card.Lemma] {
			continue
		}
		used[u.Card.Lemma] = true
		out = append(out, u)
		if len(out) == n {
			break
		}
	}
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// pickBucket chooses a non-empty bucket, renormalizing the weights over the
// buckets that still have entries.
func (s *Sampler) pickBucket(buckets *[numBuckets][]Unit) (Bucket, bool) {
	total := 0.0
	for b := range buckets {
		if len(buckets[b]) > 0 {
			total += BucketWeights[b]
		}
	}
	if total == 0 {
		return 0, false
	}
	r := s.rng.Float64() * total
	last := Bucket(-1)
	for b := range buckets {
		if len(buckets[b]) == 0 {
			continue
		}
		last = Bucket(b)
		r -= BucketWeights[b]
		if r < 0 {
			return Bucket(b), true
		}
	}
	return last, true
}

// yieldPoint lets other goroutines run every `every` iterations and reports
// cancellation.
func yieldPoint(ctx context.Context, i, every int) error {
	if every <= 0 || i == 0 || i%every != 0 {
		return nil
	}
	runtime.Gosched()
	return ctx.Err()
}

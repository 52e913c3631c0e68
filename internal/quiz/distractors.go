package quiz

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/domain"
)

// Catalog is the catalog view the generators need.
type Catalog interface {
	catalog.Lookup
	ByPOS(pos string) []*catalog.Entry
	ByPOSLevel(pos string, level int) []*catalog.Entry
}

// Distractor is one wrong answer. Entry is nil for a confusion note that
// names a lemma missing from the catalog.
type Distractor struct {
	Lemma string
	Entry *catalog.Entry
	Note  string
}

type pickRequest struct {
	target       *catalog.Entry
	n            int
	requireEntry bool
	exclude      map[string]bool
}

// Distractors picks wrong answers for a target entry.
type Distractors struct {
	cat        Catalog
	rng        *rand.Rand
	yieldEvery int
}

// NewDistractors returns a picker over cat.
func NewDistractors(cat Catalog, rng *rand.Rand) *Distractors {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Distractors{cat: cat, rng: rng, yieldEvery: DefaultYieldEvery}
}

// Pick returns up to n distractors for target, filled in priority order:
// curated confusion notes (for word entries only), entries sharing part of
// speech and level, entries sharing part of speech, then any entry. The
// target's lemma, synonyms and derived forms, anything in exclude, and
// repeats are never returned. With requireEntry, confusion notes naming
// lemmas outside the catalog are skipped.
func (d *Distractors) Pick(ctx context.Context, target *catalog.Entry, n int, requireEntry bool, exclude ...string) ([]Distractor, error) {
	if n <= 0 {
		return nil, nil
	}
	req := pickRequest{target: target, n: n, requireEntry: requireEntry, exclude: target.Related()}
	for _, e := range exclude {
		req.exclude[catalog.Key(e)] = true
	}

	var out []Distractor
	add := func(dst Distractor) bool {
		k := catalog.Key(dst.Lemma)
		if k == "" || req.exclude[k] {
			return false
		}
		if req.requireEntry && dst.Entry == nil {
			return false
		}
		req.exclude[k] = true
		out = append(out, dst)
		return len(out) == n
	}

	if target.Type == domain.EntryWord {
		for _, c := range target.Confusions {
			if strings.Contains(c.Lemma, " ") {
				continue
			}
			e, _ := d.cat.Entry(c.Lemma)
			if add(Distractor{Lemma: c.Lemma, Entry: e, Note: c.Explanation}) {
				return out, nil
			}
		}
	}

	pos := target.PartOfSpeech()
	pools := [][]*catalog.Entry{
		d.cat.ByPOSLevel(pos, target.Level),
		d.cat.ByPOS(pos),
		d.cat.Entries(),
	}
	for _, pool := range pools {
		done, err := d.fromPool(ctx, pool, add)
		if err != nil || done {
			return out, err
		}
	}
	return out, nil
}

// fromPool offers pool entries to add in random order until add reports the
// request is full.
func (d *Distractors) fromPool(ctx context.Context, pool []*catalog.Entry, add func(Distractor) bool) (bool, error) {
	order := d.rng.Perm(len(pool))
	for i, idx := range order {
		if err := yieldPoint(ctx, i, d.yieldEvery); err != nil {
			return false, err
		}
		e := pool[idx]
		if add(Distractor{Lemma: e.Lemma, Entry: e}) {
			return true, nil
		}
	}
	return false, nil
}

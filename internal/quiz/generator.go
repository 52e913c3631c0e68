package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/lexicard/internal/catalog"
	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/inflect"
)

// DefaultOptionCount is the number of choices on a multiple-choice question.
const DefaultOptionCount = 4

var labels = [...]string{"A", "B", "C", "D", "E", "F"}

var (
	// ErrUnknownEntry is returned for a card whose lemma is not in the catalog.
	ErrUnknownEntry = errors.New("quiz: entry not in catalog")
	// ErrInsufficientCatalog is returned when even a recognition question
	// cannot get a single distractor.
	ErrInsufficientCatalog = errors.New("quiz: not enough catalog entries for distractors")

	// errCannotBuild makes Question fall back to an easier type.
	errCannotBuild = errors.New("cannot build question")
)

// Generator turns cards into quiz questions.
type Generator struct {
	cat         Catalog
	distractors *Distractors
	rng         *rand.Rand
	now         func() time.Time
	logger      *slog.Logger
	options     int
	yieldEvery  int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRand makes the generator use rng for every random choice.
func WithRand(rng *rand.Rand) GeneratorOption {
	return func(g *Generator) { g.rng = rng }
}

// WithClock sets the clock used for example recency.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger for skipped cards and fallbacks.
func WithLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithOptionCount sets how many choices a multiple-choice question has,
// between 2 and 6.
func WithOptionCount(n int) GeneratorOption {
	return func(g *Generator) { g.options = min(max(n, 2), len(labels)) }
}

// NewGenerator returns a generator over cat.
func NewGenerator(cat Catalog, opts ...GeneratorOption) *Generator {
	g := &Generator{
		cat:        cat,
		now:        time.Now,
		logger:     slog.Default(),
		options:    DefaultOptionCount,
		yieldEvery: DefaultYieldEvery,
	}
	for _, o := range opts {
		o(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g.distractors = NewDistractors(cat, g.rng)
	return g
}

// Quiz builds one question per unit. A unit tied to a skill is asked as that
// skill; a main unit gets the type ChooseType picks. Cards that no longer
// have a catalog entry, or for which no question can be built, are logged
// and skipped.
func (g *Generator) Quiz(ctx context.Context, units []Unit) ([]domain.QuizQuestion, error) {
	out := make([]domain.QuizQuestion, 0, len(units))
	for i, u := range units {
		if err := yieldPoint(ctx, i, g.yieldEvery); err != nil {
			return out, err
		}
		t := u.Skill
		if t == 0 {
			t = ChooseType(u.Card)
		}
		q, err := g.Question(ctx, u.Card, t)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			g.logger.Warn("skipping card", "card", u.Card.Key(), "type", t, "error", err)
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// Question builds a question of type t for card, stepping down to easier
// types while the catalog cannot support t (no usable example sentence or
// no confusable words).
func (g *Generator) Question(ctx context.Context, card domain.Card, t domain.QuestionType) (domain.QuizQuestion, error) {
	if !t.IsValid() {
		return domain.QuizQuestion{}, fmt.Errorf("%w: %d", domain.ErrInvalidQuestionType, int(t))
	}
	entry, ok := g.cat.Entry(card.Lemma)
	if !ok {
		return domain.QuizQuestion{}, fmt.Errorf("%w: %q", ErrUnknownEntry, card.Lemma)
	}
	sense, ok := entry.Sense(card.SenseID)
	if !ok {
		sense = entry.Senses[0]
	}

	for {
		q, err := g.build(ctx, entry, sense, t)
		if err == nil {
			q.ID = uuid.NewString()
			q.Lemma = card.Lemma
			q.SenseID = card.SenseID
			q.EntryType = entry.Type
			return q, nil
		}
		if !errors.Is(err, errCannotBuild) || t == domain.Recognition {
			return domain.QuizQuestion{}, err
		}
		g.logger.Debug("falling back to easier question", "lemma", card.Lemma, "from", t, "reason", err)
		t = Easier(t)
	}
}

// Supports reports whether a question of type t can be built for card
// without stepping down to an easier type.
func (g *Generator) Supports(card domain.Card, t domain.QuestionType) bool {
	entry, ok := g.cat.Entry(card.Lemma)
	if !ok || !t.IsValid() {
		return false
	}
	switch t {
	case domain.FillBlank:
		return hasSentence(entry)
	case domain.Distinction:
		return hasSentence(entry) && hasConfusable(entry)
	default:
		return true
	}
}

// Askable reports whether u can be asked as itself. Main units always can;
// a skill unit only when its own question type can be built.
func (g *Generator) Askable(u Unit) bool {
	return u.Skill == 0 || g.Supports(u.Card, u.Skill)
}

func hasSentence(e *catalog.Entry) bool {
	m := matcherFor(e)
	for _, s := range e.Senses {
		for _, ex := range s.Examples {
			if m.Count(ex.Text) > 0 {
				return true
			}
		}
	}
	return false
}

// hasConfusable mirrors the confusion filter of Distractors.Pick.
func hasConfusable(e *catalog.Entry) bool {
	if e.Type != domain.EntryWord {
		return false
	}
	related := e.Related()
	for _, c := range e.Confusions {
		k := catalog.Key(c.Lemma)
		if k != "" && !strings.Contains(c.Lemma, " ") && !related[k] {
			return true
		}
	}
	return false
}

func (g *Generator) build(ctx context.Context, e *catalog.Entry, s catalog.Sense, t domain.QuestionType) (domain.QuizQuestion, error) {
	switch t {
	case domain.Recognition:
		return g.recognition(ctx, e, s)
	case domain.Reverse:
		return g.reverse(ctx, e, s)
	case domain.FillBlank:
		return g.fillBlank(ctx, e, s)
	case domain.Spelling:
		return g.spelling(e, s)
	default:
		return g.distinction(ctx, e, s)
	}
}

func (g *Generator) recognition(ctx context.Context, e *catalog.Entry, s catalog.Sense) (domain.QuizQuestion, error) {
	ds, err := g.distractors.Pick(ctx, e, g.options-1, true)
	if err != nil {
		return domain.QuizQuestion{}, err
	}
	seen := map[string]bool{s.Definition: true}
	var wrong []string
	for _, d := range ds {
		def := d.Entry.Senses[0].Definition
		if seen[def] {
			continue
		}
		seen[def] = true
		wrong = append(wrong, def)
	}
	if len(wrong) == 0 {
		return domain.QuizQuestion{}, ErrInsufficientCatalog
	}
	return domain.QuizQuestion{
		Type:        domain.Recognition,
		Prompt:      e.Lemma,
		Options:     g.labelOptions(s.Definition, wrong),
		Correct:     s.Definition,
		Explanation: explain(e, s, ""),
	}, nil
}

func (g *Generator) reverse(ctx context.Context, e *catalog.Entry, s catalog.Sense) (domain.QuizQuestion, error) {
	wrong, _, err := g.wrongLemmas(ctx, e)
	if err != nil {
		return domain.QuizQuestion{}, err
	}
	return domain.QuizQuestion{
		Type:        domain.Reverse,
		Prompt:      s.Definition,
		Options:     g.labelOptions(e.Lemma, wrong),
		Correct:     e.Lemma,
		Explanation: explain(e, s, ""),
	}, nil
}

func (g *Generator) fillBlank(ctx context.Context, e *catalog.Entry, s catalog.Sense) (domain.QuizQuestion, error) {
	ex, blanked, _, ok := g.sentence(e, s, domain.FillBlank)
	if !ok {
		return domain.QuizQuestion{}, fmt.Errorf("%w: no example sentence contains %q", errCannotBuild, e.Lemma)
	}
	wrong, _, err := g.wrongLemmas(ctx, e)
	if err != nil {
		return domain.QuizQuestion{}, err
	}
	return domain.QuizQuestion{
		Type:            domain.FillBlank,
		Prompt:          "Choose the word that best completes the sentence.",
		SentenceContext: blanked,
		Options:         g.labelOptions(e.Lemma, wrong),
		Correct:         e.Lemma,
		ExamSource:      ex.Source,
		Explanation:     explain(e, s, ex.Text),
	}, nil
}

// spelling asks for the word by definition, with a blanked sentence when one
// is available. It always succeeds, so the fallback chain never passes it.
func (g *Generator) spelling(e *catalog.Entry, s catalog.Sense) (domain.QuizQuestion, error) {
	q := domain.QuizQuestion{
		Type:           domain.Spelling,
		Prompt:         s.Definition,
		Correct:        e.Lemma,
		AcceptVariants: append([]string(nil), e.Variants...),
		Explanation:    explain(e, s, ""),
	}
	if ex, blanked, surfaces, ok := g.sentence(e, s, domain.Spelling); ok {
		q.SentenceContext = blanked
		q.InflectedForm = surfaces[0]
		q.ExamSource = ex.Source
		q.Explanation.Example = ex.Text
	}
	return q, nil
}

func (g *Generator) distinction(ctx context.Context, e *catalog.Entry, s catalog.Sense) (domain.QuizQuestion, error) {
	ex, blanked, _, ok := g.sentence(e, s, domain.Distinction)
	if !ok {
		return domain.QuizQuestion{}, fmt.Errorf("%w: no example sentence contains %q", errCannotBuild, e.Lemma)
	}
	wrong, notes, err := g.wrongLemmas(ctx, e)
	if err != nil {
		return domain.QuizQuestion{}, err
	}
	if len(notes) == 0 {
		return domain.QuizQuestion{}, fmt.Errorf("%w: %q has no confusable words", errCannotBuild, e.Lemma)
	}
	q := domain.QuizQuestion{
		Type:            domain.Distinction,
		Prompt:          "Choose the word that fits this sentence, not its look-alikes.",
		SentenceContext: blanked,
		Options:         g.labelOptions(e.Lemma, wrong),
		Correct:         e.Lemma,
		ExamSource:      ex.Source,
		Explanation:     explain(e, s, ex.Text),
	}
	q.Explanation.Note = strings.Join(notes, "\n")
	return q, nil
}

// wrongLemmas picks distractor lemmas. notes holds "lemma: explanation" for
// each curated confusion among them, and is non-nil whenever one was used.
func (g *Generator) wrongLemmas(ctx context.Context, e *catalog.Entry) (wrong, notes []string, err error) {
	ds, err := g.distractors.Pick(ctx, e, g.options-1, false)
	if err != nil {
		return nil, nil, err
	}
	if len(ds) == 0 {
		return nil, nil, ErrInsufficientCatalog
	}
	confused := map[string]bool{}
	for _, c := range e.Confusions {
		confused[catalog.Key(c.Lemma)] = true
	}
	for _, d := range ds {
		wrong = append(wrong, d.Lemma)
		if !confused[catalog.Key(d.Lemma)] {
			continue
		}
		if d.Note != "" {
			notes = append(notes, d.Lemma+": "+d.Note)
		} else {
			notes = append(notes, d.Lemma)
		}
	}
	return wrong, notes, nil
}

// sentence selects an example for s (falling back to the entry's other
// senses) and blanks every occurrence of the entry in it.
func (g *Generator) sentence(e *catalog.Entry, s catalog.Sense, t domain.QuestionType) (catalog.Example, string, []string, bool) {
	m := matcherFor(e)
	ex, ok := SelectExample(g.rng, s.Examples, m, t, g.now())
	if !ok {
		var all []catalog.Example
		for _, other := range e.Senses {
			all = append(all, other.Examples...)
		}
		if ex, ok = SelectExample(g.rng, all, m, t, g.now()); !ok {
			return catalog.Example{}, "", nil, false
		}
	}
	blanked, surfaces := m.Blank(ex.Text)
	return ex, blanked, surfaces, true
}

func matcherFor(e *catalog.Entry) *inflect.Matcher {
	if e.Type == domain.EntryPhrase {
		return inflect.NewMatcher(e.Lemma, e.Variants...)
	}
	extra := make([]string, 0, len(e.Inflections)+len(e.DerivedForms)+len(e.Variants))
	extra = append(extra, e.Inflections...)
	extra = append(extra, e.DerivedForms...)
	extra = append(extra, e.Variants...)
	return inflect.NewMatcher(e.Lemma, extra...)
}

// labelOptions shuffles the correct value in among the wrong ones and labels
// them in order.
func (g *Generator) labelOptions(correct string, wrong []string) []domain.Option {
	opts := make([]domain.Option, 0, len(wrong)+1)
	opts = append(opts, domain.Option{Value: correct, Correct: true})
	for _, w := range wrong {
		opts = append(opts, domain.Option{Value: w})
	}
	g.rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	for i := range opts {
		opts[i].Label = labels[i]
	}
	return opts
}

func explain(e *catalog.Entry, s catalog.Sense, example string) domain.Explanation {
	pos := s.POS
	if pos == "" {
		pos = e.POS
	}
	if example == "" && len(s.Examples) > 0 {
		example = s.Examples[0].Text
	}
	return domain.Explanation{Definition: s.Definition, PartOfSpeech: pos, Example: example}
}

package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/quiz"
	"github.com/conorfennell/lexicard/internal/skills"
)

var (
	// ErrSessionClosed is returned for any call on a finished or abandoned session.
	ErrSessionClosed = errors.New("review: session closed")
	// ErrUnknownQuestion is returned for an answer to a question this
	// session did not hand out.
	ErrUnknownQuestion = errors.New("review: unknown question")
)

// Store is the card store view an Engine needs.
type Store interface {
	Cards
	AllCards() []domain.Card
	CardsByLemma(lemma string) []domain.Card
	ForceFlush(ctx context.Context) error
}

// Engine runs study sessions over one card store and catalog.
type Engine struct {
	store   Store
	journal Journal
	cat     quiz.Catalog
	rec     *Recorder
	sampler *quiz.Sampler
	gen     *quiz.Generator
	now     func() time.Time
	logger  *slog.Logger
}

// NewEngine returns an engine. Without WithSampler or WithGenerator it uses
// randomly seeded defaults. The sampler only draws units the generator can
// ask as themselves.
func NewEngine(store Store, journal Journal, cat quiz.Catalog, mgr *skills.Manager, opts ...Option) *Engine {
	o := buildOptions(opts)
	if o.sampler == nil {
		o.sampler = quiz.NewSampler(nil)
	}
	if o.generator == nil {
		o.generator = quiz.NewGenerator(cat, quiz.WithClock(o.now), quiz.WithLogger(o.logger))
	}
	// A skill the entry cannot support would otherwise be asked as an
	// easier type forever and never get scheduled.
	o.sampler.Eligible(o.generator.Askable)
	return &Engine{
		store:   store,
		journal: journal,
		cat:     cat,
		rec:     NewRecorder(store, journal, mgr, opts...),
		sampler: o.sampler,
		gen:     o.generator,
		now:     o.now,
		logger:  o.logger.With("component", "review"),
	}
}

// Recorder returns the engine's recorder.
func (e *Engine) Recorder() *Recorder {
	return e.rec
}

// Introduce creates New cards for up to n catalog entries that have no card
// yet, in catalog order, and returns them.
func (e *Engine) Introduce(n int) ([]domain.Card, error) {
	var out []domain.Card
	for _, entry := range e.cat.Entries() {
		if len(out) >= n {
			break
		}
		if len(e.store.CardsByLemma(entry.Lemma)) > 0 {
			continue
		}
		c, err := e.store.Ensure(entry.Lemma, entry.PrimarySenseID(), entry.Type)
		if err != nil {
			return out, fmt.Errorf("failed to introduce %q: %w", entry.Lemma, err)
		}
		out = append(out, c)
	}
	if len(out) > 0 {
		e.logger.Info("introduced new cards", "count", len(out))
	}
	return out, nil
}

// Start opens a session.
func (e *Engine) Start() *Session {
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: e.now(),
		engine:    e,
		questions: map[string]domain.QuizQuestion{},
		studied:   map[domain.Key]bool{},
	}
	e.logger.Debug("session started", "session", s.ID)
	return s
}

// Answer is the learner's response to one question.
type Answer struct {
	QuestionID   string        `json:"question_id"`
	Choice       string        `json:"choice,omitempty"` // option label or value
	Text         string        `json:"text,omitempty"`   // typed answer for spelling
	HintUsed     bool          `json:"hint_used,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
}

// Feedback is returned after an answer has been recorded.
type Feedback struct {
	Correct     bool               `json:"correct"`
	Rating      domain.Rating      `json:"rating"`
	Answer      string             `json:"answer"`
	Explanation domain.Explanation `json:"explanation"`
	Due         time.Time          `json:"due"`
	Unlocked    []domain.SkillType `json:"unlocked,omitempty"`
}

// Session is one sitting of study. It is safe for concurrent use.
type Session struct {
	ID        string
	StartedAt time.Time

	engine *Engine

	mu        sync.Mutex
	questions map[string]domain.QuizQuestion
	studied   map[domain.Key]bool
	closed    bool
}

// Draw samples up to n units from the store and returns a question for
// each. An empty result means there is nothing to study right now.
func (s *Session) Draw(ctx context.Context, n int) ([]domain.QuizQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	e := s.engine
	units, err := e.sampler.Draw(ctx, e.store.AllCards(), n, e.now())
	if err != nil {
		return nil, err
	}
	qs, err := e.gen.Quiz(ctx, units)
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		s.questions[q.ID] = q
	}
	return qs, nil
}

// Answer grades and records the answer to a question from this session.
func (s *Session) Answer(ctx context.Context, a Answer) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Feedback{}, ErrSessionClosed
	}
	q, ok := s.questions[a.QuestionID]
	if !ok {
		return Feedback{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, a.QuestionID)
	}

	correct, exact := Grade(q, a)
	rec, err := s.engine.rec.Record(ctx, Result{
		QuestionID:      q.ID,
		Type:            q.Type,
		Lemma:           q.Lemma,
		SenseID:         q.SenseID,
		EntryType:       q.EntryType,
		Correct:         correct,
		HintUsed:        a.HintUsed,
		ResponseTime:    a.ResponseTime,
		ExactInflection: exact,
	})
	if rec.Outcome.Card.Lemma != "" {
		s.studied[rec.Outcome.Card.Key()] = true
	}
	if err != nil {
		return Feedback{}, err
	}

	return Feedback{
		Correct:     correct,
		Rating:      rec.Rating,
		Answer:      q.Correct,
		Explanation: q.Explanation,
		Due:         rec.Outcome.Card.Due,
		Unlocked:    rec.Outcome.Unlocked,
	}, nil
}

// Grade checks an answer against a question. Spelling questions compare the
// typed text; others accept the correct option's label or value.
func Grade(q domain.QuizQuestion, a Answer) (correct, exact bool) {
	if q.Type == domain.Spelling || len(q.Options) == 0 {
		return quiz.CheckSpelling(q, a.Text)
	}
	choice := strings.TrimSpace(a.Choice)
	for _, o := range q.Options {
		if o.Correct && (strings.EqualFold(choice, o.Label) || choice == o.Value) {
			return true, false
		}
	}
	return false, false
}

// Finish flushes recorded answers and appends the session log.
func (s *Session) Finish(ctx context.Context) (domain.SessionLog, error) {
	return s.close(ctx, true)
}

// Abandon ends the session early. Answers already recorded are still
// flushed; a session log is written only if something was studied.
func (s *Session) Abandon(ctx context.Context) error {
	_, err := s.close(ctx, false)
	return err
}

func (s *Session) close(ctx context.Context, finished bool) (domain.SessionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.SessionLog{}, ErrSessionClosed
	}
	s.closed = true
	e := s.engine

	var errs []error
	if err := e.store.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush cards: %w", err))
	}
	s.questions = nil

	log := domain.SessionLog{StartedAt: s.StartedAt, EndedAt: e.now(), CardsStudied: len(s.studied)}
	if finished || log.CardsStudied > 0 {
		id, err := e.journal.AppendSessionLog(ctx, log)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to append session log: %w", err))
		}
		log.ID = id
	}

	e.logger.Info("session closed",
		"session", s.ID,
		"finished", finished,
		"cards_studied", log.CardsStudied,
		"duration", log.EndedAt.Sub(log.StartedAt).Round(time.Second))
	return log, errors.Join(errs...)
}

package review

import (
	"log/slog"
	"time"

	"github.com/conorfennell/lexicard/internal/quiz"
)

type options struct {
	now        func() time.Time
	logger     *slog.Logger
	thresholds Thresholds
	sampler    *quiz.Sampler
	generator  *quiz.Generator
}

// Option configures a Recorder or an Engine.
type Option func(*options)

// WithClock sets the clock used for scheduling and session timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithThresholds sets the slow and fast response times used for rating.
func WithThresholds(t Thresholds) Option {
	return func(o *options) { o.thresholds = t }
}

// WithSampler sets the sampler an Engine draws with.
func WithSampler(s *quiz.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithGenerator sets the question generator an Engine uses.
func WithGenerator(g *quiz.Generator) Option {
	return func(o *options) { o.generator = g }
}

func buildOptions(opts []Option) options {
	o := options{
		now:        time.Now,
		logger:     slog.Default(),
		thresholds: DefaultThresholds,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

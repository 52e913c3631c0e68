// Package web serves the study engine as a JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	stdsync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/lexicard/internal/domain"
	"github.com/conorfennell/lexicard/internal/review"
	"github.com/conorfennell/lexicard/internal/sync"
)

// Stats is the history the stats endpoint reads.
type Stats interface {
	DailyStats(ctx context.Context, date string) (domain.DailyStats, bool, error)
	RecentStats(ctx context.Context, now time.Time, n int) ([]domain.DailyStats, error)
	SessionLogs(ctx context.Context) ([]domain.SessionLog, error)
}

// Syncer exchanges snapshots with a remote. *sync.Client implements it.
type Syncer interface {
	Sync(ctx context.Context, force bool) (sync.Report, error)
	Resolve(ctx context.Context, r sync.Resolution) (sync.Report, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	engine   *review.Engine
	cards    Cards
	stats    Stats
	syncer   Syncer
	secret   []byte
	newCards int
	quizSize int
	now      func() time.Time
	logger   *slog.Logger
	router   chi.Router

	mu       stdsync.Mutex
	sessions map[string]*review.Session
}

// Cards is the card lookup the card endpoint reads.
type Cards interface {
	CardsByLemma(lemma string) []domain.Card
	Len() int
}

// Option configures a Server.
type Option func(*Server)

// WithSyncer enables the sync endpoints.
func WithSyncer(s Syncer) Option {
	return func(srv *Server) { srv.syncer = s }
}

// WithAuth requires an HS256 bearer token signed with secret on every API route.
func WithAuth(secret []byte) Option {
	return func(srv *Server) { srv.secret = secret }
}

// WithSessionDefaults sets how many new cards a session introduces and how
// many questions a draw returns when the request does not say.
func WithSessionDefaults(newCards, quizSize int) Option {
	return func(srv *Server) { srv.newCards, srv.quizSize = newCards, quizSize }
}

// WithClock sets the server's clock.
func WithClock(now func() time.Time) Option {
	return func(srv *Server) { srv.now = now }
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(srv *Server) { srv.logger = l }
}

// NewServer creates and configures a new server.
func NewServer(engine *review.Engine, cards Cards, stats Stats, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		cards:    cards,
		stats:    stats,
		newCards: 10,
		quizSize: 20,
		now:      time.Now,
		logger:   slog.Default(),
		sessions: map[string]*review.Session{},
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "web")
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"status": "ok", "cards": s.cards.Len()})
	})

	r.Route("/api", func(r chi.Router) {
		if len(s.secret) > 0 {
			r.Use(s.authenticate)
		}
		r.Post("/sessions", s.handleStartSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Post("/draw", s.handleDraw)
			r.Post("/answers", s.handleAnswer)
			r.Post("/finish", s.handleFinish)
			r.Delete("/", s.handleAbandon)
		})
		r.Get("/cards/{lemma}", s.handleCards)
		r.Get("/stats", s.handleStats)
		if s.syncer != nil {
			r.Post("/sync", s.handleSync)
			r.Post("/sync/resolve", s.handleResolve)
		}
	})
	s.router = r
}

type identityKey struct{}

// IdentityFrom returns the authenticated user of a request, if any.
func IdentityFrom(ctx context.Context) (sync.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(sync.Identity)
	return id, ok
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		id, err := sync.ParseIdentity(strings.TrimSpace(token), s.secret, s.now)
		if err != nil {
			s.logger.Debug("rejected token", "error", err)
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type startRequest struct {
	NewCards *int `json:"new_cards"`
}

type startResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Introduced int       `json:"introduced"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	n := s.newCards
	if req.NewCards != nil {
		n = *req.NewCards
	}
	introduced, err := s.engine.Introduce(n)
	if err != nil {
		s.internalError(w, "failed to introduce cards", err)
		return
	}

	sess := s.engine.Start()
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	respond(w, http.StatusCreated, startResponse{ID: sess.ID, StartedAt: sess.StartedAt, Introduced: len(introduced)})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*review.Session, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "unknown session")
	}
	return sess, ok
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

type drawRequest struct {
	N int `json:"n"`
}

// questionView is a question without its answer.
type questionView struct {
	ID              string              `json:"id"`
	Type            domain.QuestionType `json:"type"`
	Lemma           string              `json:"lemma,omitempty"`
	Prompt          string              `json:"prompt"`
	SentenceContext string              `json:"sentence_context,omitempty"`
	Options         []optionView        `json:"options,omitempty"`
	ExamSource      string              `json:"exam_source,omitempty"`
}

type optionView struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func viewQuestion(q domain.QuizQuestion) questionView {
	v := questionView{
		ID:              q.ID,
		Type:            q.Type,
		Prompt:          q.Prompt,
		SentenceContext: q.SentenceContext,
		ExamSource:      q.ExamSource,
	}
	// Asking for the word would give it away.
	if q.Type == domain.Recognition || q.Type == domain.Distinction {
		v.Lemma = q.Lemma
	}
	for _, o := range q.Options {
		v.Options = append(v.Options, optionView{Label: o.Label, Value: o.Value})
	}
	return v
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req drawRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.N <= 0 {
		req.N = s.quizSize
	}
	qs, err := sess.Draw(r.Context(), req.N)
	if err != nil {
		s.reviewError(w, err)
		return
	}
	views := make([]questionView, 0, len(qs))
	for _, q := range qs {
		views = append(views, viewQuestion(q))
	}
	respond(w, http.StatusOK, map[string]any{"questions": views})
}

type answerRequest struct {
	QuestionID     string `json:"question_id"`
	Choice         string `json:"choice"`
	Text           string `json:"text"`
	HintUsed       bool   `json:"hint_used"`
	ResponseTimeMS int64  `json:"response_time_ms"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" || req.ResponseTimeMS < 0 {
		respondError(w, http.StatusBadRequest, "question_id and a non-negative response_time_ms are required")
		return
	}
	fb, err := sess.Answer(r.Context(), review.Answer{
		QuestionID:   req.QuestionID,
		Choice:       req.Choice,
		Text:         req.Text,
		HintUsed:     req.HintUsed,
		ResponseTime: time.Duration(min(req.ResponseTimeMS, math.MaxInt64/int64(time.Millisecond))) * time.Millisecond,
	})
	if err != nil {
		s.reviewError(w, err)
		return
	}
	respond(w, http.StatusOK, fb)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	log, err := sess.Finish(r.Context())
	s.dropSession(sess.ID)
	if err != nil {
		s.reviewError(w, err)
		return
	}
	respond(w, http.StatusOK, log)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	err := sess.Abandon(r.Context())
	s.dropSession(sess.ID)
	if err != nil {
		s.reviewError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	lemma := chi.URLParam(r, "lemma")
	cards := s.cards.CardsByLemma(lemma)
	if len(cards) == 0 {
		respondError(w, http.StatusNotFound, "no cards for "+lemma)
		return
	}
	respond(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()
	date := r.URL.Query().Get("date")
	if date == "" {
		date = domain.DateKey(now)
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 366 {
			respondError(w, http.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = n
	}

	day, _, err := s.stats.DailyStats(ctx, date)
	if err != nil {
		s.internalError(w, "failed to read stats", err)
		return
	}
	day.Date = date
	recent, err := s.stats.RecentStats(ctx, now, days)
	if err != nil {
		s.internalError(w, "failed to read stats", err)
		return
	}
	sessions, err := s.stats.SessionLogs(ctx)
	if err != nil {
		s.internalError(w, "failed to read sessions", err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"day":      day,
		"recent":   recent,
		"sessions": len(sessions),
		"cards":    s.cards.Len(),
	})
}

type syncRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	rep, err := s.syncer.Sync(r.Context(), req.Force)
	if err != nil {
		s.syncError(w, err)
		return
	}
	respond(w, http.StatusOK, rep)
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := sync.ParseResolution(req.Resolution)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.syncer.Resolve(r.Context(), res)
	if err != nil {
		s.syncError(w, err)
		return
	}
	respond(w, http.StatusOK, rep)
}

func (s *Server) reviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, review.ErrSessionClosed):
		respondError(w, http.StatusGone, "session closed")
	case errors.Is(err, review.ErrUnknownQuestion):
		respondError(w, http.StatusNotFound, "unknown question")
	case errors.Is(err, review.ErrAlreadyRecorded):
		respondError(w, http.StatusConflict, "answer already recorded")
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		s.internalError(w, "review failed", err)
	}
}

func (s *Server) syncError(w http.ResponseWriter, err error) {
	var ce *sync.ConflictError
	if errors.As(err, &ce) {
		respond(w, http.StatusConflict, map[string]any{
			"error":  "conflict",
			"local":  ce.Local,
			"remote": ce.Remote,
		})
		return
	}
	var se *sync.Error
	if !errors.As(err, &se) {
		s.internalError(w, "sync failed", err)
		return
	}
	switch se.Kind {
	case sync.KindRateLimited:
		secs := int(math.Ceil(se.Wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		respond(w, http.StatusTooManyRequests, map[string]any{"error": "rate_limited", "retry_after": secs})
	case sync.KindNetwork:
		respond(w, http.StatusBadGateway, map[string]any{
			"error":     "network",
			"message":   causeMessage(se),
			"retryable": se.Retryable,
		})
	default:
		s.logger.Error("sync failed", "error", err)
		respond(w, http.StatusInternalServerError, map[string]any{
			"error":     "sync_failed",
			"message":   causeMessage(se),
			"retryable": se.Retryable,
		})
	}
}

func causeMessage(se *sync.Error) string {
	if se.Err == nil {
		return se.Error()
	}
	return se.Err.Error()
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	respondError(w, http.StatusInternalServerError, msg)
}

// decodeOptional decodes a JSON body if there is one.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}

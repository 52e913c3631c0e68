package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/lexicard/internal/domain"
)

// DefaultFlushDelay is how long the store waits after an update before
// writing dirty cards.
const DefaultFlushDelay = 2 * time.Second

// CardTable is the persistence behind a CardStore. *DB implements it.
type CardTable interface {
	LoadCards(ctx context.Context) ([]CardRecord, error)
	SaveCards(ctx context.Context, records []CardRecord) error
	DeleteCards(ctx context.Context, keys []domain.Key) error
}

// ChangeKind says what happened to a card.
type ChangeKind int

const (
	CardCreated ChangeKind = iota + 1
	CardUpdated
	CardDeleted
	CardsReloaded
)

// Change is delivered to observers after the cache changed. Card is the zero
// value for CardsReloaded.
type Change struct {
	Kind ChangeKind
	Card domain.Card
}

// Observer receives change notifications. It is called synchronously and
// must not call back into the store's write methods.
type Observer func(Change)

// Option configures a CardStore.
type Option func(*CardStore)

// WithFlushDelay sets the debounce delay of background flushes.
func WithFlushDelay(d time.Duration) Option {
	return func(s *CardStore) { s.delay = d }
}

// WithClock sets the time source used for new cards.
func WithClock(now func() time.Time) Option {
	return func(s *CardStore) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *CardStore) { s.logger = l }
}

// CardStore owns every card. Reads are served from memory; updates mark the
// card dirty and a background worker writes dirty cards after a fixed delay,
// so repeated updates to one card coalesce into a single write of its latest
// value. ForceFlush writes synchronously.
type CardStore struct {
	table  CardTable
	logger *slog.Logger
	now    func() time.Time
	delay  time.Duration

	mu      sync.RWMutex
	cards   map[domain.Key]domain.Card
	byLemma map[string]map[string]struct{}
	dirty   map[domain.Key]struct{}
	deleted map[domain.Key]struct{}
	open    bool

	// flushMu orders flushes: one save queue per store.
	flushMu sync.Mutex

	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int

	// OnError is called with errors from background flushes.
	OnError func(error)

	// lastErr stores the first asynchronous error. Protected by errMu.
	errMu   sync.Mutex
	lastErr error
}

// NewCardStore returns a store over table. Call Init before use.
func NewCardStore(table CardTable, opts ...Option) *CardStore {
	s := &CardStore{
		table:     table,
		logger:    slog.Default(),
		now:       time.Now,
		delay:     DefaultFlushDelay,
		cards:     map[domain.Key]domain.Card{},
		byLemma:   map[string]map[string]struct{}{},
		dirty:     map[domain.Key]struct{}{},
		deleted:   map[domain.Key]struct{}{},
		kick:      make(chan struct{}, 1),
		observers: map[int]Observer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cardstore")
	return s
}

// Init loads every card and starts the flush worker. Records with invalid
// core fields fail Init; records whose skills cannot be decoded are loaded
// without skills.
func (s *CardStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	s.open = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.run()
	s.logger.Info("card store initialized", "cards", len(s.cards))
	return nil
}

func (s *CardStore) loadLocked(ctx context.Context) error {
	records, err := s.table.LoadCards(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize card store: %w", err)
	}
	cards := make(map[domain.Key]domain.Card, len(records))
	byLemma := map[string]map[string]struct{}{}
	for _, r := range records {
		c, err := DecodeCard(r)
		if errors.Is(err, ErrMalformedSkills) {
			s.logger.Warn("dropping unreadable skills", "card", c.Key().String(), "error", err)
		} else if err != nil {
			return fmt.Errorf("failed to initialize card store: %w", err)
		}
		cards[c.Key()] = c
		addIndex(byLemma, c.Key())
	}
	s.cards = cards
	s.byLemma = byLemma
	s.dirty = map[domain.Key]struct{}{}
	s.deleted = map[domain.Key]struct{}{}
	return nil
}

// Close flushes pending writes and stops the worker. It returns the flush
// error, or else the first background flush error.
func (s *CardStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.open = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if err := s.flush(ctx); err != nil {
		return err
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// Reload discards the cache and reads every card again. Pending writes are
// flushed first.
func (s *CardStore) Reload(ctx context.Context) error {
	if err := s.ForceFlush(ctx); err != nil {
		return err
	}
	s.flushMu.Lock()
	s.mu.Lock()
	err := s.loadLocked(ctx)
	s.mu.Unlock()
	s.flushMu.Unlock()
	if err != nil {
		return err
	}
	s.notify(Change{Kind: CardsReloaded})
	return nil
}

// Get returns the card for (lemma, senseID). An empty sense id means PrimarySense.
func (s *CardStore) Get(lemma, senseID string) (domain.Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[domain.NewKey(lemma, senseID)]
	if !ok {
		return domain.Card{}, false
	}
	return c.Clone(), true
}

// Ensure returns the card for (lemma, senseID), creating a New card due now
// if there is none.
func (s *CardStore) Ensure(lemma, senseID string, entryType domain.EntryType) (domain.Card, error) {
	if lemma == "" {
		return domain.Card{}, ErrInvalidKey
	}
	key := domain.NewKey(lemma, senseID)

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.Card{}, ErrStoreClosed
	}
	if c, ok := s.cards[key]; ok {
		s.mu.Unlock()
		return c.Clone(), nil
	}
	c := domain.NewCard(key.Lemma, key.SenseID, entryType, s.now())
	s.putLocked(c)
	s.mu.Unlock()

	s.schedule()
	s.notify(Change{Kind: CardCreated, Card: c.Clone()})
	return c.Clone(), nil
}

// Update stores card, replacing any pending value for its key.
func (s *CardStore) Update(card domain.Card) error {
	if card.Lemma == "" {
		return ErrInvalidKey
	}
	if card.SenseID == "" {
		card.SenseID = domain.PrimarySense
	}
	c := card.Clone()

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	_, existed := s.cards[c.Key()]
	s.putLocked(c)
	s.mu.Unlock()

	s.schedule()
	kind := CardUpdated
	if !existed {
		kind = CardCreated
	}
	s.notify(Change{Kind: kind, Card: c.Clone()})
	return nil
}

// Delete removes the card for key. Deleting a missing card is not an error.
func (s *CardStore) Delete(key domain.Key) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	c, ok := s.cards[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.cards, key)
	removeIndex(s.byLemma, key)
	delete(s.dirty, key)
	s.deleted[key] = struct{}{}
	s.mu.Unlock()

	s.schedule()
	s.notify(Change{Kind: CardDeleted, Card: c})
	return nil
}

func (s *CardStore) putLocked(c domain.Card) {
	key := c.Key()
	s.cards[key] = c
	addIndex(s.byLemma, key)
	s.dirty[key] = struct{}{}
	delete(s.deleted, key)
}

// AllCards returns every card ordered by key.
func (s *CardStore) AllCards() []domain.Card {
	return s.filter(func(domain.Card) bool { return true })
}

// CardsByLemma returns every sense card of lemma.
func (s *CardStore) CardsByLemma(lemma string) []domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	senses := s.byLemma[lemma]
	out := make([]domain.Card, 0, len(senses))
	for sense := range senses {
		out = append(out, s.cards[domain.Key{Lemma: lemma, SenseID: sense}].Clone())
	}
	sortCards(out)
	return out
}

// CardsByState returns the cards in state st.
func (s *CardStore) CardsByState(st domain.State) []domain.Card {
	return s.filter(func(c domain.Card) bool { return c.State == st })
}

// DueCards returns the cards due at or before now, earliest first. A
// positive limit caps the result.
func (s *CardStore) DueCards(now time.Time, limit int) []domain.Card {
	out := s.filter(func(c domain.Card) bool { return !c.Due.After(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of cards.
func (s *CardStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

// Pending returns the number of cards waiting to be written or deleted.
func (s *CardStore) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dirty) + len(s.deleted)
}

func (s *CardStore) filter(keep func(domain.Card) bool) []domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Card
	for _, c := range s.cards {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sortCards(out)
	return out
}

func sortCards(cards []domain.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Lemma != cards[j].Lemma {
			return cards[i].Lemma < cards[j].Lemma
		}
		return cards[i].SenseID < cards[j].SenseID
	})
}

func addIndex(idx map[string]map[string]struct{}, k domain.Key) {
	senses, ok := idx[k.Lemma]
	if !ok {
		senses = map[string]struct{}{}
		idx[k.Lemma] = senses
	}
	senses[k.SenseID] = struct{}{}
}

func removeIndex(idx map[string]map[string]struct{}, k domain.Key) {
	if senses, ok := idx[k.Lemma]; ok {
		delete(senses, k.SenseID)
		if len(senses) == 0 {
			delete(idx, k.Lemma)
		}
	}
}

// Subscribe registers an observer and returns a function that removes it.
func (s *CardStore) Subscribe(o Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *CardStore) notify(ch Change) {
	s.obsMu.RLock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.obsMu.RUnlock()

	for _, o := range observers {
		o(ch)
	}
}

// schedule wakes the flush worker. Wakeups while one is pending coalesce.
func (s *CardStore) schedule() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *CardStore) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.kick:
		}

		timer := time.NewTimer(s.delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Use background context for flushing to avoid "context canceled" if the store is closing.
		if err := s.flush(context.Background()); err != nil {
			s.recordError(err)
		}
	}
}

func (s *CardStore) recordError(err error) {
	s.logger.Error("background flush failed", "error", err)
	s.errMu.Lock()
	if s.lastErr == nil {
		s.lastErr = err
	}
	s.errMu.Unlock()
	if s.OnError != nil {
		s.OnError(err)
	}
}

// ForceFlush writes every pending change now.
func (s *CardStore) ForceFlush(ctx context.Context) error {
	return s.flush(ctx)
}

// flush writes the dirty cards as they are at the time of the call. A card
// whose record cannot be encoded is retried once without its skills; if
// that fails too it is logged and dropped from this flush so the rest are
// still written. On a write error the keys stay pending.
func (s *CardStore) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if len(s.dirty) == 0 && len(s.deleted) == 0 {
		s.mu.Unlock()
		return nil
	}
	cards := make([]domain.Card, 0, len(s.dirty))
	for k := range s.dirty {
		cards = append(cards, s.cards[k])
	}
	deletes := make([]domain.Key, 0, len(s.deleted))
	for k := range s.deleted {
		deletes = append(deletes, k)
	}
	s.dirty = map[domain.Key]struct{}{}
	s.deleted = map[domain.Key]struct{}{}
	s.mu.Unlock()

	sortCards(cards)
	records := make([]CardRecord, 0, len(cards))
	for _, c := range cards {
		r, err := EncodeCard(c)
		if err != nil {
			s.logger.Warn("retrying card write without skills", "card", c.Key().String(), "error", err)
			r, err = EncodeCardWithoutSkills(c)
		}
		if err != nil {
			s.logger.Error("dropping unwritable card", "card", c.Key().String(), "error", err)
			continue
		}
		records = append(records, r)
	}

	if len(deletes) > 0 {
		if err := s.table.DeleteCards(ctx, deletes); err != nil {
			s.requeue(cards, deletes)
			return fmt.Errorf("failed to flush deletes: %w", err)
		}
	}
	if len(records) > 0 {
		if err := s.table.SaveCards(ctx, records); err != nil {
			s.requeue(cards, nil)
			return fmt.Errorf("failed to flush %d cards: %w", len(records), err)
		}
	}
	return nil
}

// requeue marks keys pending again unless a newer change superseded them.
func (s *CardStore) requeue(cards []domain.Card, deletes []domain.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cards {
		if _, ok := s.cards[c.Key()]; ok {
			s.dirty[c.Key()] = struct{}{}
		}
	}
	for _, k := range deletes {
		if _, ok := s.cards[k]; !ok {
			s.deleted[k] = struct{}{}
		}
	}
	s.schedule()
}

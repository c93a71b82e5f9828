// Package app hosts the match engine: queue management, keyed mutations,
// phase advancement, and role-gated views over stored matches.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/platform/id"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// Engine drives matches against a store. All mutations to one match are
// serialized through a per-match mutex; the store transaction makes each
// mutation and its transcript entries atomic.
type Engine struct {
	store  storage.Store
	cfg    domain.Config
	rules  domain.Rules
	seats  int
	clock  func() time.Time
	newID  func() (string, error)
	rng    *rand.Rand
	logger *log.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	matchMu map[string]*sync.Mutex
	queueMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets phase durations and the ready policy.
func WithConfig(cfg domain.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithRules sets the role composition table.
func WithRules(rules domain.Rules) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithSeats sets the number of players per match.
func WithSeats(seats int) Option {
	return func(e *Engine) { e.seats = seats }
}

// WithClock injects the time source, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator injects the ID source, used by tests.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithRand injects the randomness source used for role assignment.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// DefaultConfig is the standing phase schedule for public matches.
func DefaultConfig() domain.Config {
	return domain.Config{
		ReadyTimeout:       2 * time.Minute,
		NightDuration:      2 * time.Minute,
		DiscussionDuration: 4 * time.Minute,
		VotingDuration:     2 * time.Minute,
		ResolutionDuration: 15 * time.Second,
		PhaseBuffer:        2 * time.Second,
		ReadyPolicy:        domain.ReadyPolicyAuto,
	}
}

// DefaultSeats is the number of players in a standard match.
const DefaultSeats = 8

// NewEngine creates a match engine backed by the store.
func NewEngine(store storage.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	e := &Engine{
		store:   store,
		cfg:     DefaultConfig(),
		rules:   domain.DefaultRules(),
		seats:   DefaultSeats,
		clock:   func() time.Time { return time.Now().UTC() },
		newID:   id.NewID,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  log.Default(),
		tracer:  otel.Tracer("moonfall.town/match"),
		matchMu: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := e.rules.CompositionFor(e.seats); err != nil {
		return nil, err
	}
	return e, nil
}

// lockMatch returns the mutex serializing writes to one match.
func (e *Engine) lockMatch(matchID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	mu, ok := e.matchMu[matchID]
	if !ok {
		mu = &sync.Mutex{}
		e.matchMu[matchID] = mu
	}
	return mu
}

// loadMatch fetches the aggregate, mapping storage misses to domain errors.
func (e *Engine) loadMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	m, err := e.store.GetMatch(ctx, matchID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "match not found",
				map[string]string{"match_id": matchID})
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "load match", err)
	}
	return m, nil
}

// draftRecords converts domain entry drafts to storable records, minting IDs
// and stamping the clock.
func (e *Engine) draftRecords(matchID string, now time.Time, drafts []domain.EntryDraft) ([]storage.EntryRecord, error) {
	records := make([]storage.EntryRecord, 0, len(drafts))
	for _, draft := range drafts {
		entryID, err := e.newID()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "mint entry id", err)
		}
		payload, err := json.Marshal(draft.Payload)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "marshal entry payload", err)
		}
		records = append(records, storage.EntryRecord{
			ID:          entryID,
			MatchID:     matchID,
			Kind:        draft.Kind,
			Scope:       draft.Scope,
			Round:       draft.Round,
			PayloadJSON: payload,
			Timestamp:   now,
		})
	}
	return records, nil
}

// saveAndAdvance runs the state machine over the mutated aggregate, then
// persists the aggregate and the accumulated transcript entries atomically.
// The caller must hold the match lock.
func (e *Engine) saveAndAdvance(ctx context.Context, m *domain.Match, now time.Time, drafts []domain.EntryDraft) (domain.AdvanceResult, error) {
	result := domain.Advance(m, now, e.cfg)
	drafts = append(drafts, result.Entries...)

	records, err := e.draftRecords(m.ID, now, drafts)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	m.UpdatedAt = now
	if err := e.store.SaveMatch(ctx, m, records); err != nil {
		return domain.AdvanceResult{}, apperrors.Wrap(apperrors.CodeInternal, "save match", err)
	}

	for _, transition := range result.Transitions {
		e.logger.Printf("match %s: %s -> %s (round %d)", m.ID, transition.From, transition.To, m.Round)
	}
	if m.Phase == domain.PhaseEnded {
		if err := e.archiveTranscript(ctx, m, now); err != nil {
			// The match outcome is already durable; archiving reruns on the
			// next worker sweep.
			e.logger.Printf("match %s: archive transcript: %v", m.ID, err)
		}
	}
	return result, nil
}

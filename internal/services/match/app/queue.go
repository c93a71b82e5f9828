package app

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// JoinQueueRequest asks for a seat in the next match.
type JoinQueueRequest struct {
	PlayerID       string `json:"player_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// JoinQueueResponse reports the player's queue standing. MatchID is set when
// the join completed a table and a match formed immediately.
type JoinQueueResponse struct {
	Queued   bool   `json:"queued"`
	Position int    `json:"position,omitempty"`
	MatchID  string `json:"match_id,omitempty"`
}

// JoinQueue enqueues a player and forms a match when enough players wait.
func (e *Engine) JoinQueue(ctx context.Context, req JoinQueueRequest) (JoinQueueResponse, error) {
	ctx, span := e.tracer.Start(ctx, "queue.join")
	defer span.End()

	if req.PlayerID == "" {
		return JoinQueueResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}

	const scope = "queue.join"
	resp, _, err := runIdempotent(ctx, e, scope, req.IdempotencyKey, req.PlayerID, "", req, func() (JoinQueueResponse, error) {
		return e.joinQueue(ctx, req.PlayerID)
	})
	return resp, err
}

func (e *Engine) joinQueue(ctx context.Context, playerID string) (JoinQueueResponse, error) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	if _, err := e.store.ActiveMatchForPlayer(ctx, playerID); err == nil {
		return JoinQueueResponse{}, apperrors.WithMetadata(apperrors.CodeQueueAlreadySeated,
			"player is seated in a running match", map[string]string{"player_id": playerID})
	} else if err != storage.ErrNotFound {
		return JoinQueueResponse{}, apperrors.Wrap(apperrors.CodeInternal, "check seated player", err)
	}

	err := e.store.Enqueue(ctx, storage.QueueEntry{PlayerID: playerID, EnqueuedAt: e.clock()})
	if err == storage.ErrAlreadyExists {
		return JoinQueueResponse{}, apperrors.WithMetadata(apperrors.CodeQueueAlreadyQueued,
			"player is already queued", map[string]string{"player_id": playerID})
	}
	if err != nil {
		return JoinQueueResponse{}, apperrors.Wrap(apperrors.CodeInternal, "enqueue player", err)
	}

	matchID, err := e.tryFormMatch(ctx)
	if err != nil {
		return JoinQueueResponse{}, err
	}
	if matchID != "" {
		return JoinQueueResponse{Queued: false, MatchID: matchID}, nil
	}

	position, err := e.queuePosition(ctx, playerID)
	if err != nil {
		return JoinQueueResponse{}, err
	}
	return JoinQueueResponse{Queued: true, Position: position}, nil
}

// tryFormMatch seats the oldest waiting players when a full table exists.
// The caller must hold queueMu.
func (e *Engine) tryFormMatch(ctx context.Context) (string, error) {
	queued, err := e.store.ListQueue(ctx)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "list queue", err)
	}
	if len(queued) < e.seats {
		return "", nil
	}

	players := make([]string, 0, e.seats)
	for _, entry := range queued[:e.seats] {
		players = append(players, entry.PlayerID)
	}

	comp, err := e.rules.CompositionFor(e.seats)
	if err != nil {
		return "", err
	}
	roles, err := domain.AssignRoles(players, comp, e.rng)
	if err != nil {
		return "", err
	}

	matchID, err := e.newID()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "mint match id", err)
	}
	now := e.clock()
	m := domain.NewMatch(matchID, players, roles, now)
	m.PhaseDeadline = e.cfg.Deadline(domain.PhaseReadyCheck, now)

	drafts := make([]domain.EntryDraft, 0, len(players)+1)
	drafts = append(drafts, domain.EntryDraft{
		Kind:  domain.EntryKindPhaseChange,
		Scope: domain.PublicScope(),
		Round: 0,
		Payload: domain.PhaseChangePayload{
			From: domain.PhaseUnspecified.String(),
			To:   domain.PhaseReadyCheck.String(),
		},
	})
	// Role deals are sealed: readable only on death or after the match.
	for _, p := range players {
		drafts = append(drafts, domain.EntryDraft{
			Kind:    domain.EntryKindSystem,
			Scope:   domain.DeadOrEndedScope(),
			Round:   0,
			Payload: domain.RoleAssignmentPayload{PlayerID: p, Role: roles[p].String()},
		})
	}
	records, err := e.draftRecords(matchID, now, drafts)
	if err != nil {
		return "", err
	}

	if err := e.store.CreateMatch(ctx, m, records); err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "create match", err)
	}
	e.logger.Printf("match %s: formed with %d players", matchID, len(players))
	return matchID, nil
}

func (e *Engine) queuePosition(ctx context.Context, playerID string) (int, error) {
	queued, err := e.store.ListQueue(ctx)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInternal, "list queue", err)
	}
	for i, entry := range queued {
		if entry.PlayerID == playerID {
			return i + 1, nil
		}
	}
	return 0, apperrors.New(apperrors.CodeInternal, fmt.Sprintf("player %s vanished from queue", playerID))
}

// LeaveQueueRequest withdraws a waiting player.
type LeaveQueueRequest struct {
	PlayerID       string `json:"player_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// LeaveQueueResponse reports whether a queue entry was removed.
type LeaveQueueResponse struct {
	Removed bool `json:"removed"`
}

// LeaveQueue removes the player from the queue. Leaving when not queued is a
// no-op, so retries are harmless.
func (e *Engine) LeaveQueue(ctx context.Context, req LeaveQueueRequest) (LeaveQueueResponse, error) {
	ctx, span := e.tracer.Start(ctx, "queue.leave")
	defer span.End()

	if req.PlayerID == "" {
		return LeaveQueueResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}

	const scope = "queue.leave"
	resp, _, err := runIdempotent(ctx, e, scope, req.IdempotencyKey, req.PlayerID, "", req, func() (LeaveQueueResponse, error) {
		e.queueMu.Lock()
		defer e.queueMu.Unlock()
		removed, err := e.store.RemoveFromQueue(ctx, req.PlayerID)
		if err != nil {
			return LeaveQueueResponse{}, apperrors.Wrap(apperrors.CodeInternal, "remove from queue", err)
		}
		return LeaveQueueResponse{Removed: removed}, nil
	})
	return resp, err
}

// QueueStatusResponse describes the player's standing: waiting position or
// the match they were seated into.
type QueueStatusResponse struct {
	Queued   bool   `json:"queued"`
	Position int    `json:"position,omitempty"`
	Waiting  int    `json:"waiting"`
	MatchID  string `json:"match_id,omitempty"`
}

// QueueStatus reports where the player stands.
func (e *Engine) QueueStatus(ctx context.Context, playerID string) (QueueStatusResponse, error) {
	if playerID == "" {
		return QueueStatusResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}

	queued, err := e.store.ListQueue(ctx)
	if err != nil {
		return QueueStatusResponse{}, apperrors.Wrap(apperrors.CodeInternal, "list queue", err)
	}
	resp := QueueStatusResponse{Waiting: len(queued)}
	for i, entry := range queued {
		if entry.PlayerID == playerID {
			resp.Queued = true
			resp.Position = i + 1
			return resp, nil
		}
	}

	matchID, err := e.store.ActiveMatchForPlayer(ctx, playerID)
	if err == nil {
		resp.MatchID = matchID
		return resp, nil
	}
	if err != storage.ErrNotFound {
		return QueueStatusResponse{}, apperrors.Wrap(apperrors.CodeInternal, "check seated player", err)
	}
	return resp, nil
}

package app

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// ActionResponse is the common result of a match mutation: the phase the
// match is in once the mutation (and any resulting transitions) applied.
// Applied is false when a keyed retry replayed the stored response instead
// of executing the mutation again.
type ActionResponse struct {
	MatchID  string    `json:"match_id"`
	Phase    string    `json:"phase"`
	Round    int       `json:"round"`
	Deadline time.Time `json:"deadline"`
	Applied  bool      `json:"applied"`
}

func actionResponse(m *domain.Match) ActionResponse {
	return ActionResponse{
		MatchID:  m.ID,
		Phase:    m.Phase.String(),
		Round:    m.Round,
		Deadline: m.PhaseDeadline,
		Applied:  true,
	}
}

// requireSeatedAlive validates that the player holds a seat and is alive,
// and that the match still accepts mutations.
func requireSeatedAlive(m *domain.Match, playerID string) error {
	if m.Abandoned {
		return apperrors.New(apperrors.CodeMatchAbandoned, "match was abandoned")
	}
	if m.Phase.Terminal() {
		return apperrors.New(apperrors.CodeMatchEnded, "match has ended")
	}
	if !m.Seated(playerID) {
		return apperrors.WithMetadata(apperrors.CodeForbiddenNotSeated, "player is not seated in this match",
			map[string]string{"player_id": playerID})
	}
	if !m.IsAlive(playerID) {
		return apperrors.WithMetadata(apperrors.CodeForbiddenDead, "eliminated players cannot act",
			map[string]string{"player_id": playerID})
	}
	return nil
}

func requirePhase(m *domain.Match, want domain.Phase) error {
	if m.Phase != want {
		return apperrors.WithMetadata(apperrors.CodePhaseExpired, "match is not in the required phase",
			map[string]string{"phase": m.Phase.String(), "required": want.String()})
	}
	return nil
}

// mutateMatch serializes a keyed mutation against one match: lock, load,
// advance past any lapsed deadline, apply, advance again, persist. The match
// lock only covers this process; when a sibling process (the sweep worker)
// wins the store's version check first, the mutation reloads and retries.
func (e *Engine) mutateMatch(ctx context.Context, matchID, scope, key, playerID string, request any, apply func(*domain.Match, time.Time) ([]domain.EntryDraft, error)) (ActionResponse, error) {
	resp, replayed, err := runIdempotent(ctx, e, scope, key, playerID, matchID, request, func() (ActionResponse, error) {
		mu := e.lockMatch(matchID)
		mu.Lock()
		defer mu.Unlock()

		for attempt := 0; ; attempt++ {
			resp, err := e.applyMutation(ctx, matchID, apply)
			if errors.Is(err, storage.ErrVersionConflict) && attempt < matchSaveRetries {
				e.logger.Printf("match %s: lost a concurrent write, retrying", matchID)
				continue
			}
			return resp, err
		}
	})
	if err != nil {
		return ActionResponse{}, err
	}
	// The stored response was written by the call that executed; a replay
	// reports that it did not run the mutation again.
	resp.Applied = !replayed
	return resp, nil
}

// matchSaveRetries bounds reload-and-retry on cross-process write conflicts.
const matchSaveRetries = 3

func (e *Engine) applyMutation(ctx context.Context, matchID string, apply func(*domain.Match, time.Time) ([]domain.EntryDraft, error)) (ActionResponse, error) {
	m, err := e.loadMatch(ctx, matchID)
	if err != nil {
		return ActionResponse{}, err
	}
	now := e.clock()

	// A lapsed deadline moves the match before the mutation is judged,
	// so a vote arriving after VOTING expired is rejected, not applied
	// to a stale phase.
	if pre := domain.Advance(m, now, e.cfg); pre.Transitioned() {
		records, err := e.draftRecords(m.ID, now, pre.Entries)
		if err != nil {
			return ActionResponse{}, err
		}
		m.UpdatedAt = now
		if err := e.store.SaveMatch(ctx, m, records); err != nil {
			return ActionResponse{}, apperrors.Wrap(apperrors.CodeInternal, "save match", err)
		}
		if m.Phase == domain.PhaseEnded {
			if err := e.archiveTranscript(ctx, m, now); err != nil {
				e.logger.Printf("match %s: archive transcript: %v", m.ID, err)
			}
		}
	}

	drafts, err := apply(m, now)
	if err != nil {
		return ActionResponse{}, err
	}
	if _, err := e.saveAndAdvance(ctx, m, now, drafts); err != nil {
		return ActionResponse{}, err
	}
	return actionResponse(m), nil
}

// ReadyRequest acknowledges the ready check.
type ReadyRequest struct {
	MatchID        string `json:"match_id"`
	PlayerID       string `json:"player_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Ready marks the player ready. When the last player readies up, the match
// moves to NIGHT in the same call.
func (e *Engine) Ready(ctx context.Context, req ReadyRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.ready")
	defer span.End()

	if req.PlayerID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}
	const scope = "match.ready"
	return e.mutateMatch(ctx, req.MatchID, scope, req.IdempotencyKey, req.PlayerID, req, func(m *domain.Match, now time.Time) ([]domain.EntryDraft, error) {
		if err := requireSeatedAlive(m, req.PlayerID); err != nil {
			return nil, err
		}
		if err := requirePhase(m, domain.PhaseReadyCheck); err != nil {
			return nil, err
		}
		if m.Ready[req.PlayerID] {
			// Readying twice is harmless; no duplicate entry.
			return nil, nil
		}
		m.Ready[req.PlayerID] = true
		return []domain.EntryDraft{{
			Kind:    domain.EntryKindSystem,
			Scope:   domain.PublicScope(),
			Round:   m.Round,
			Payload: domain.ReadyPayload{PlayerID: req.PlayerID},
		}}, nil
	})
}

// SayRequest posts table talk to the public transcript.
type SayRequest struct {
	MatchID        string `json:"match_id"`
	PlayerID       string `json:"player_id"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Say posts a public message. Allowed in any non-terminal phase; the table
// may talk through the night, the village just cannot see night actions.
func (e *Engine) Say(ctx context.Context, req SayRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.say")
	defer span.End()

	if req.PlayerID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationTextEmpty, "message text is required")
	}
	const scope = "match.say"
	return e.mutateMatch(ctx, req.MatchID, scope, req.IdempotencyKey, req.PlayerID, req, func(m *domain.Match, now time.Time) ([]domain.EntryDraft, error) {
		if err := requireSeatedAlive(m, req.PlayerID); err != nil {
			return nil, err
		}
		return []domain.EntryDraft{{
			Kind:    domain.EntryKindMessage,
			Scope:   domain.PublicScope(),
			Round:   m.Round,
			Payload: domain.MessagePayload{PlayerID: req.PlayerID, Text: req.Text},
		}}, nil
	})
}

// WolfChatRequest posts to the private werewolf channel.
type WolfChatRequest struct {
	MatchID        string `json:"match_id"`
	PlayerID       string `json:"player_id"`
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key"`
}

// WolfChat posts a message visible only to living werewolves.
func (e *Engine) WolfChat(ctx context.Context, req WolfChatRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.night.wolf_chat")
	defer span.End()

	if req.PlayerID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationTextEmpty, "message text is required")
	}
	const scope = "match.night.wolf_chat"
	return e.mutateMatch(ctx, req.MatchID, scope, req.IdempotencyKey, req.PlayerID, req, func(m *domain.Match, now time.Time) ([]domain.EntryDraft, error) {
		if err := requireSeatedAlive(m, req.PlayerID); err != nil {
			return nil, err
		}
		if m.RoleOf(req.PlayerID) != domain.RoleWerewolf {
			return nil, apperrors.WithMetadata(apperrors.CodeForbiddenRole, "wolf chat is for werewolves",
				map[string]string{"player_id": req.PlayerID})
		}
		return []domain.EntryDraft{{
			Kind:    domain.EntryKindMessage,
			Scope:   domain.WolvesScope(),
			Round:   m.Round,
			Payload: domain.MessagePayload{PlayerID: req.PlayerID, Text: req.Text},
		}}, nil
	})
}

// VoteRequest casts or changes an elimination vote.
type VoteRequest struct {
	MatchID        string `json:"match_id"`
	PlayerID       string `json:"player_id"`
	TargetID       string `json:"target_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Vote records the player's current elimination vote. A later vote in the
// same round replaces the earlier one. When the last living player votes,
// the round resolves in the same call.
func (e *Engine) Vote(ctx context.Context, req VoteRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.vote")
	defer span.End()

	if req.PlayerID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}
	if req.TargetID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationTargetMissing, "target id is required")
	}
	const scope = "match.vote"
	return e.mutateMatch(ctx, req.MatchID, scope, req.IdempotencyKey, req.PlayerID, req, func(m *domain.Match, now time.Time) ([]domain.EntryDraft, error) {
		if err := requireSeatedAlive(m, req.PlayerID); err != nil {
			return nil, err
		}
		if err := requirePhase(m, domain.PhaseVoting); err != nil {
			return nil, err
		}
		// Voting for yourself is legal, if inadvisable.
		if err := requireLivingTarget(m, req.PlayerID, req.TargetID, false); err != nil {
			return nil, err
		}
		m.RecordVote(req.PlayerID, req.TargetID, now)
		return []domain.EntryDraft{{
			Kind:    domain.EntryKindVote,
			Scope:   domain.PublicScope(),
			Round:   m.Round,
			Payload: domain.VotePayload{Voter: req.PlayerID, Target: req.TargetID},
		}}, nil
	})
}

// NightActionRequest submits a role-gated night action.
type NightActionRequest struct {
	MatchID        string `json:"match_id"`
	PlayerID       string `json:"player_id"`
	TargetID       string `json:"target_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// WolfKill submits the werewolf kill choice.
func (e *Engine) WolfKill(ctx context.Context, req NightActionRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.night.wolf_kill")
	defer span.End()
	return e.nightAction(ctx, "match.night.wolf_kill", domain.ActionKill, req)
}

// SeerInspect submits the seer's inspection target.
func (e *Engine) SeerInspect(ctx context.Context, req NightActionRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.night.seer_inspect")
	defer span.End()
	return e.nightAction(ctx, "match.night.seer_inspect", domain.ActionInspect, req)
}

// DoctorProtect submits the doctor's protection target.
func (e *Engine) DoctorProtect(ctx context.Context, req NightActionRequest) (ActionResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.night.doctor_protect")
	defer span.End()
	return e.nightAction(ctx, "match.night.doctor_protect", domain.ActionProtect, req)
}

func (e *Engine) nightAction(ctx context.Context, op string, actionType domain.ActionType, req NightActionRequest) (ActionResponse, error) {
	if req.PlayerID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationPlayerMissing, "player id is required")
	}
	if req.TargetID == "" {
		return ActionResponse{}, apperrors.New(apperrors.CodeValidationTargetMissing, "target id is required")
	}
	scope := op
	return e.mutateMatch(ctx, req.MatchID, scope, req.IdempotencyKey, req.PlayerID, req, func(m *domain.Match, now time.Time) ([]domain.EntryDraft, error) {
		if err := requireSeatedAlive(m, req.PlayerID); err != nil {
			return nil, err
		}
		if err := requirePhase(m, domain.PhaseNight); err != nil {
			return nil, err
		}
		if err := domain.RequireCapability(m.RoleOf(req.PlayerID), actionType); err != nil {
			return nil, err
		}
		allowSelf := actionType == domain.ActionProtect
		if err := requireLivingTarget(m, req.PlayerID, req.TargetID, !allowSelf); err != nil {
			return nil, err
		}
		m.RecordNightAction(req.PlayerID, actionType, req.TargetID, now)

		// Wolf kill choices are pack-visible so the wolves can coordinate;
		// seer and doctor submissions stay sealed until death or match end.
		entryScope := domain.DeadOrEndedScope()
		if actionType == domain.ActionKill {
			entryScope = domain.WolvesScope()
		}
		return []domain.EntryDraft{{
			Kind:  domain.EntryKindSystem,
			Scope: entryScope,
			Round: m.Round,
			Payload: domain.NightActionPayload{
				Actor:  req.PlayerID,
				Action: actionType.String(),
				Target: req.TargetID,
			},
		}}, nil
	})
}

func requireLivingTarget(m *domain.Match, playerID, targetID string, rejectSelf bool) error {
	if !m.Seated(targetID) {
		return apperrors.WithMetadata(apperrors.CodeValidationTargetMissing, "target is not seated in this match",
			map[string]string{"target_id": targetID})
	}
	if !m.IsAlive(targetID) {
		return apperrors.WithMetadata(apperrors.CodeValidationTargetDead, "target is already eliminated",
			map[string]string{"target_id": targetID})
	}
	if rejectSelf && playerID == targetID {
		return apperrors.New(apperrors.CodeValidationTargetSelf, "self-targeting is not allowed")
	}
	return nil
}

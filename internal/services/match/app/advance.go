package app

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// AdvanceResponse reports the result of one advance check.
type AdvanceResponse struct {
	MatchID      string `json:"match_id"`
	Phase        string `json:"phase"`
	Round        int    `json:"round"`
	Transitioned bool   `json:"transitioned"`
}

// AdvanceMatch runs the deadline check for one match. Unkeyed and safe to
// repeat: with no elapsed time it is a no-op.
func (e *Engine) AdvanceMatch(ctx context.Context, matchID string) (AdvanceResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.advance")
	defer span.End()

	mu := e.lockMatch(matchID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; ; attempt++ {
		resp, err := e.advanceLocked(ctx, matchID)
		if errors.Is(err, storage.ErrVersionConflict) && attempt < matchSaveRetries {
			e.logger.Printf("match %s: lost a concurrent write, retrying", matchID)
			continue
		}
		return resp, err
	}
}

func (e *Engine) advanceLocked(ctx context.Context, matchID string) (AdvanceResponse, error) {
	m, err := e.loadMatch(ctx, matchID)
	if err != nil {
		return AdvanceResponse{}, err
	}
	if m.Phase.Terminal() {
		return AdvanceResponse{MatchID: m.ID, Phase: m.Phase.String(), Round: m.Round}, nil
	}

	now := e.clock()
	result := domain.Advance(m, now, e.cfg)
	if !result.Transitioned() {
		return AdvanceResponse{MatchID: m.ID, Phase: m.Phase.String(), Round: m.Round}, nil
	}

	records, err := e.draftRecords(m.ID, now, result.Entries)
	if err != nil {
		return AdvanceResponse{}, err
	}
	m.UpdatedAt = now
	if err := e.store.SaveMatch(ctx, m, records); err != nil {
		return AdvanceResponse{}, apperrors.Wrap(apperrors.CodeInternal, "save match", err)
	}
	for _, transition := range result.Transitions {
		e.logger.Printf("match %s: %s -> %s (round %d)", m.ID, transition.From, transition.To, m.Round)
	}
	if m.Phase == domain.PhaseEnded {
		if err := e.archiveTranscript(ctx, m, now); err != nil {
			e.logger.Printf("match %s: archive transcript: %v", m.ID, err)
		}
	}
	return AdvanceResponse{
		MatchID:      m.ID,
		Phase:        m.Phase.String(),
		Round:        m.Round,
		Transitioned: true,
	}, nil
}

// SweepResponse summarizes one sweep over every running match.
type SweepResponse struct {
	Checked       int   `json:"checked"`
	Transitioned  int   `json:"transitioned"`
	PrunedRecords int64 `json:"pruned_records"`
}

// Sweep advances every running match and prunes expired idempotency
// records. The worker calls this on its poll interval.
func (e *Engine) Sweep(ctx context.Context) (SweepResponse, error) {
	ctx, span := e.tracer.Start(ctx, "match.sweep")
	defer span.End()

	ids, err := e.store.ListActiveMatchIDs(ctx)
	if err != nil {
		return SweepResponse{}, apperrors.Wrap(apperrors.CodeInternal, "list active matches", err)
	}

	resp := SweepResponse{}
	for _, matchID := range ids {
		result, err := e.AdvanceMatch(ctx, matchID)
		if err != nil {
			// One stuck match must not stall the rest of the sweep.
			e.logger.Printf("match %s: advance: %v", matchID, err)
			continue
		}
		resp.Checked++
		if result.Transitioned {
			resp.Transitioned++
		}
	}

	pruned, err := e.store.PruneIdempotencyRecords(ctx, e.clock().Add(-idempotencyTTL))
	if err != nil {
		e.logger.Printf("prune idempotency records: %v", err)
	} else {
		resp.PrunedRecords = pruned
	}
	return resp, nil
}

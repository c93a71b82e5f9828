package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/moonfall.town/internal/services/match/app"
)

// SeatResult is one seat as the viewer is allowed to see it.
type SeatResult struct {
	PlayerID string `json:"player_id" jsonschema:"player occupying the seat"`
	Alive    bool   `json:"alive" jsonschema:"true while the player has not been eliminated"`
	Ready    bool   `json:"ready,omitempty" jsonschema:"true once the player acknowledged the ready check"`
	Role     string `json:"role,omitempty" jsonschema:"seat role, present only when the viewer is entitled to it"`
}

// MatchStateInput represents the MCP tool input for reading a match snapshot.
type MatchStateInput struct {
	MatchID string `json:"match_id" jsonschema:"match identifier"`
}

// MatchStateResult represents the MCP tool output for reading a match snapshot.
type MatchStateResult struct {
	MatchID       string       `json:"match_id" jsonschema:"match identifier"`
	Phase         string       `json:"phase" jsonschema:"current match phase"`
	Round         int          `json:"round" jsonschema:"current round number"`
	PhaseDeadline string       `json:"phase_deadline,omitempty" jsonschema:"RFC3339 deadline of the current phase"`
	Seats         []SeatResult `json:"seats" jsonschema:"all eight seats in seating order"`
	YourRole      string       `json:"your_role,omitempty" jsonschema:"the viewer's own role when seated in this match"`
	Winner        string       `json:"winner,omitempty" jsonschema:"winning faction once the match ends (VILLAGERS, WEREWOLVES)"`
	Abandoned     bool         `json:"abandoned,omitempty" jsonschema:"true when the match ended because the ready check timed out"`
}

// MatchStateTool defines the MCP tool schema for reading a match snapshot.
func MatchStateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_state",
		Description: "Returns a role-gated snapshot of one match: phase, deadline, and seats with only the roles the caller may see.",
	}
}

// MatchStateHandler reads a match snapshot as the authenticated viewer.
func MatchStateHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchStateInput, MatchStateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchStateInput) (*mcp.CallToolResult, MatchStateResult, error) {
		view, err := engine.GetState(ctx, input.MatchID, viewerID(ctx))
		if err != nil {
			return nil, MatchStateResult{}, err
		}
		result := MatchStateResult{
			MatchID:   view.MatchID,
			Phase:     view.Phase,
			Round:     view.Round,
			YourRole:  view.YourRole,
			Winner:    view.Winner,
			Abandoned: view.Abandoned,
		}
		if !view.PhaseDeadline.IsZero() {
			result.PhaseDeadline = view.PhaseDeadline.Format(time.RFC3339)
		}
		for _, seat := range view.Seats {
			result.Seats = append(result.Seats, SeatResult{
				PlayerID: seat.PlayerID,
				Alive:    seat.Alive,
				Ready:    seat.Ready,
				Role:     seat.Role,
			})
		}
		return nil, result, nil
	}
}

// EventResult is one transcript entry as returned to the viewer.
type EventResult struct {
	Seq       uint64          `json:"seq" jsonschema:"monotonic sequence number within the match"`
	Kind      string          `json:"kind" jsonschema:"entry kind (message, vote, phase-change, system)"`
	Scope     string          `json:"scope" jsonschema:"visibility scope the entry was written under"`
	Round     int             `json:"round" jsonschema:"round the entry belongs to"`
	Payload   json.RawMessage `json:"payload" jsonschema:"kind-specific entry payload"`
	Timestamp string          `json:"timestamp" jsonschema:"RFC3339 time the entry was recorded"`
}

// MatchEventsInput represents the MCP tool input for reading the transcript.
type MatchEventsInput struct {
	MatchID   string `json:"match_id" jsonschema:"match identifier"`
	SinceSeq  uint64 `json:"since_seq,omitempty" jsonschema:"return only entries with a sequence number greater than this"`
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 expression over kind, scope, and round, e.g. kind = \"message\" AND round >= 2"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum entries per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// MatchEventsResult represents the MCP tool output for reading the transcript.
type MatchEventsResult struct {
	Events        []EventResult `json:"events" jsonschema:"visible transcript entries, oldest first"`
	NextPageToken string        `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last page"`
}

// MatchEventsTool defines the MCP tool schema for reading the transcript.
func MatchEventsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_events",
		Description: "Returns transcript entries visible to the caller: public entries always, wolf chat for living werewolves, seer results for the seer, and everything once the caller is dead or the match ended.",
	}
}

// MatchEventsHandler reads the transcript as the authenticated viewer.
func MatchEventsHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchEventsInput, MatchEventsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchEventsInput) (*mcp.CallToolResult, MatchEventsResult, error) {
		resp, err := engine.Events(ctx, app.EventsRequest{
			MatchID:   input.MatchID,
			ViewerID:  viewerID(ctx),
			SinceSeq:  input.SinceSeq,
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, MatchEventsResult{}, err
		}
		result := MatchEventsResult{NextPageToken: resp.NextPageToken}
		for _, ev := range resp.Events {
			result.Events = append(result.Events, EventResult{
				Seq:       ev.Seq,
				Kind:      ev.Kind,
				Scope:     ev.Scope,
				Round:     ev.Round,
				Payload:   ev.Payload,
				Timestamp: ev.Timestamp.Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

// MatchSummaryResult is one row of the match listing.
type MatchSummaryResult struct {
	MatchID   string `json:"match_id" jsonschema:"match identifier"`
	Phase     string `json:"phase" jsonschema:"current match phase"`
	Round     int    `json:"round" jsonschema:"current round number"`
	Winner    string `json:"winner,omitempty" jsonschema:"winning faction once the match ends"`
	Living    int    `json:"living" jsonschema:"living players"`
	Seats     int    `json:"seats" jsonschema:"total seats"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 time the match formed"`
	UpdatedAt string `json:"updated_at" jsonschema:"RFC3339 time of the last change"`
}

// MatchesListInput represents the MCP tool input for listing matches.
type MatchesListInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 expression over phase, winner, and round, e.g. phase = \"ENDED\" AND winner = \"VILLAGERS\""`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum matches per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// MatchesListResult represents the MCP tool output for listing matches.
type MatchesListResult struct {
	Matches       []MatchSummaryResult `json:"matches" jsonschema:"match summaries, newest first"`
	NextPageToken string               `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last page"`
}

// MatchesListTool defines the MCP tool schema for listing matches.
func MatchesListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "matches_list",
		Description: "Lists matches with optional AIP-160 filtering. Summaries carry no hidden role information.",
	}
}

// MatchesListHandler lists matches. Spectator keys may call this.
func MatchesListHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchesListInput, MatchesListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchesListInput) (*mcp.CallToolResult, MatchesListResult, error) {
		resp, err := engine.ListMatches(ctx, app.ListMatchesRequest{
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, MatchesListResult{}, err
		}
		result := MatchesListResult{NextPageToken: resp.NextPageToken}
		for _, m := range resp.Matches {
			result.Matches = append(result.Matches, MatchSummaryResult{
				MatchID:   m.MatchID,
				Phase:     m.Phase,
				Round:     m.Round,
				Winner:    m.Winner,
				Living:    m.Living,
				Seats:     m.Seats,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
				UpdatedAt: m.UpdatedAt.Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

// MatchAdvanceInput represents the MCP tool input for the deadline check.
type MatchAdvanceInput struct {
	MatchID string `json:"match_id" jsonschema:"match identifier"`
}

// MatchAdvanceResult represents the MCP tool output for the deadline check.
type MatchAdvanceResult struct {
	MatchID      string `json:"match_id" jsonschema:"match identifier"`
	Phase        string `json:"phase" jsonschema:"match phase after the check"`
	Round        int    `json:"round" jsonschema:"round after the check"`
	Transitioned bool   `json:"transitioned" jsonschema:"true when at least one phase deadline had lapsed"`
}

// MatchAdvanceTool defines the MCP tool schema for the deadline check.
func MatchAdvanceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_advance",
		Description: "Runs the deadline check for one match. Safe to repeat: with no lapsed deadline it is a no-op.",
	}
}

// MatchAdvanceHandler runs the deadline check. Spectator keys may call this.
func MatchAdvanceHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchAdvanceInput, MatchAdvanceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchAdvanceInput) (*mcp.CallToolResult, MatchAdvanceResult, error) {
		resp, err := engine.AdvanceMatch(ctx, input.MatchID)
		if err != nil {
			return nil, MatchAdvanceResult{}, err
		}
		return nil, MatchAdvanceResult{
			MatchID:      resp.MatchID,
			Phase:        resp.Phase,
			Round:        resp.Round,
			Transitioned: resp.Transitioned,
		}, nil
	}
}

// MatchReplayInput represents the MCP tool input for reading an archived match.
type MatchReplayInput struct {
	MatchID string `json:"match_id" jsonschema:"identifier of an ended match"`
}

// MatchReplayResult represents the MCP tool output for reading an archived match.
type MatchReplayResult struct {
	MatchID string        `json:"match_id" jsonschema:"match identifier"`
	Events  []EventResult `json:"events" jsonschema:"the full transcript in sequence order, no scope redaction"`
}

// MatchReplayTool defines the MCP tool schema for reading an archived match.
func MatchReplayTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_replay",
		Description: "Returns the full archived transcript of an ended match. Ended matches hide nothing, so no scope filtering applies.",
	}
}

// MatchReplayHandler reads a match archive. Spectator keys may call this.
func MatchReplayHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchReplayInput, MatchReplayResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchReplayInput) (*mcp.CallToolResult, MatchReplayResult, error) {
		entries, err := engine.ReadArchive(ctx, input.MatchID)
		if err != nil {
			return nil, MatchReplayResult{}, err
		}
		result := MatchReplayResult{MatchID: input.MatchID}
		for _, entry := range entries {
			result.Events = append(result.Events, EventResult{
				Seq:       entry.Seq,
				Kind:      entry.Kind.String(),
				Scope:     entry.Scope.String(),
				Round:     entry.Round,
				Payload:   json.RawMessage(entry.PayloadJSON),
				Timestamp: entry.Timestamp.Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

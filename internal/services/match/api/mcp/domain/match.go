package domain

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/moonfall.town/internal/services/match/app"
)

// ActionResult represents the common MCP tool output for match mutations:
// the phase the match is in once the action (and any transition it
// triggered) applied.
type ActionResult struct {
	MatchID  string `json:"match_id" jsonschema:"match identifier"`
	Phase    string `json:"phase" jsonschema:"match phase after the action (READY_CHECK, NIGHT, DAY_DISCUSSION, VOTING, RESOLUTION, ENDED)"`
	Round    int    `json:"round" jsonschema:"current round number"`
	Deadline string `json:"deadline,omitempty" jsonschema:"RFC3339 deadline of the current phase, empty once the match ends"`
	Applied  bool   `json:"applied" jsonschema:"true when the action was applied rather than replayed"`
}

func actionResult(resp app.ActionResponse) ActionResult {
	result := ActionResult{
		MatchID: resp.MatchID,
		Phase:   resp.Phase,
		Round:   resp.Round,
		Applied: resp.Applied,
	}
	if !resp.Deadline.IsZero() {
		result.Deadline = resp.Deadline.Format(time.RFC3339)
	}
	return result
}

// MatchReadyInput represents the MCP tool input for the ready check.
type MatchReadyInput struct {
	MatchID        string `json:"match_id" jsonschema:"match identifier"`
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// MatchReadyTool defines the MCP tool schema for the ready check.
func MatchReadyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_ready",
		Description: "Acknowledges the ready check. When the last seated player readies up, the match moves to the first night.",
	}
}

// MatchReadyHandler executes a ready acknowledgement as the authenticated player.
func MatchReadyHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchReadyInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchReadyInput) (*mcp.CallToolResult, ActionResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, ActionResult{}, err
		}
		resp, err := engine.Ready(ctx, app.ReadyRequest{
			MatchID:        input.MatchID,
			PlayerID:       playerID,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, ActionResult{}, err
		}
		return nil, actionResult(resp), nil
	}
}

// MatchSayInput represents the MCP tool input for public table talk.
type MatchSayInput struct {
	MatchID        string `json:"match_id" jsonschema:"match identifier"`
	Text           string `json:"text" jsonschema:"message text posted to the public transcript"`
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// MatchSayTool defines the MCP tool schema for public table talk.
func MatchSayTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_say",
		Description: "Posts a public message to the match transcript. Living players may talk in any phase before the match ends.",
	}
}

// MatchSayHandler posts table talk as the authenticated player.
func MatchSayHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchSayInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchSayInput) (*mcp.CallToolResult, ActionResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, ActionResult{}, err
		}
		resp, err := engine.Say(ctx, app.SayRequest{
			MatchID:        input.MatchID,
			PlayerID:       playerID,
			Text:           input.Text,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, ActionResult{}, err
		}
		return nil, actionResult(resp), nil
	}
}

// WolfChatInput represents the MCP tool input for the private werewolf channel.
type WolfChatInput struct {
	MatchID        string `json:"match_id" jsonschema:"match identifier"`
	Text           string `json:"text" jsonschema:"message text visible only to living werewolves"`
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// WolfChatTool defines the MCP tool schema for the private werewolf channel.
func WolfChatTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "wolf_chat",
		Description: "Posts a message to the private werewolf channel. Rejected for non-werewolves.",
	}
}

// WolfChatHandler posts wolf chat as the authenticated player.
func WolfChatHandler(engine *app.Engine) mcp.ToolHandlerFor[WolfChatInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input WolfChatInput) (*mcp.CallToolResult, ActionResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, ActionResult{}, err
		}
		resp, err := engine.WolfChat(ctx, app.WolfChatRequest{
			MatchID:        input.MatchID,
			PlayerID:       playerID,
			Text:           input.Text,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, ActionResult{}, err
		}
		return nil, actionResult(resp), nil
	}
}

// MatchVoteInput represents the MCP tool input for casting an elimination vote.
type MatchVoteInput struct {
	MatchID        string `json:"match_id" jsonschema:"match identifier"`
	TargetID       string `json:"target_id" jsonschema:"player to vote for elimination; a later vote in the same round replaces the earlier one"`
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// MatchVoteTool defines the MCP tool schema for casting an elimination vote.
func MatchVoteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "match_vote",
		Description: "Casts or changes the caller's elimination vote during VOTING. When the last living player votes, the round resolves immediately.",
	}
}

// MatchVoteHandler casts a vote as the authenticated player.
func MatchVoteHandler(engine *app.Engine) mcp.ToolHandlerFor[MatchVoteInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MatchVoteInput) (*mcp.CallToolResult, ActionResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, ActionResult{}, err
		}
		resp, err := engine.Vote(ctx, app.VoteRequest{
			MatchID:        input.MatchID,
			PlayerID:       playerID,
			TargetID:       input.TargetID,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, ActionResult{}, err
		}
		return nil, actionResult(resp), nil
	}
}

// NightActionInput represents the MCP tool input shared by the role-gated
// night actions.
type NightActionInput struct {
	MatchID        string `json:"match_id" jsonschema:"match identifier"`
	TargetID       string `json:"target_id" jsonschema:"living player the action targets"`
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// WolfKillTool defines the MCP tool schema for the werewolf kill choice.
func WolfKillTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "wolf_kill",
		Description: "Submits the werewolf kill choice for the current night. The most recent wolf submission wins; self-targeting is rejected.",
	}
}

// WolfKillHandler submits a kill choice as the authenticated werewolf.
func WolfKillHandler(engine *app.Engine) mcp.ToolHandlerFor[NightActionInput, ActionResult] {
	return nightActionHandler(engine.WolfKill)
}

// SeerInspectTool defines the MCP tool schema for the seer's inspection.
func SeerInspectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "seer_inspect",
		Description: "Submits the seer's inspection target for the current night. The result is written to the transcript for the seer's eyes only.",
	}
}

// SeerInspectHandler submits an inspection as the authenticated seer.
func SeerInspectHandler(engine *app.Engine) mcp.ToolHandlerFor[NightActionInput, ActionResult] {
	return nightActionHandler(engine.SeerInspect)
}

// DoctorProtectTool defines the MCP tool schema for the doctor's protection.
func DoctorProtectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "doctor_protect",
		Description: "Submits the doctor's protection target for the current night. Protecting the kill target cancels the kill; self-protection is allowed.",
	}
}

// DoctorProtectHandler submits a protection as the authenticated doctor.
func DoctorProtectHandler(engine *app.Engine) mcp.ToolHandlerFor[NightActionInput, ActionResult] {
	return nightActionHandler(engine.DoctorProtect)
}

func nightActionHandler(action func(context.Context, app.NightActionRequest) (app.ActionResponse, error)) mcp.ToolHandlerFor[NightActionInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input NightActionInput) (*mcp.CallToolResult, ActionResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, ActionResult{}, err
		}
		resp, err := action(ctx, app.NightActionRequest{
			MatchID:        input.MatchID,
			PlayerID:       playerID,
			TargetID:       input.TargetID,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, ActionResult{}, err
		}
		return nil, actionResult(resp), nil
	}
}

package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/moonfall.town/internal/services/match/app"
)

// QueueJoinInput represents the MCP tool input for joining the lobby queue.
type QueueJoinInput struct {
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// QueueJoinResult represents the MCP tool output for joining the lobby queue.
type QueueJoinResult struct {
	Queued   bool   `json:"queued" jsonschema:"true while the player is still waiting for a table"`
	Position int    `json:"position,omitempty" jsonschema:"1-based waiting position when queued"`
	MatchID  string `json:"match_id,omitempty" jsonschema:"match identifier when this join completed a table"`
}

// QueueJoinTool defines the MCP tool schema for joining the lobby queue.
func QueueJoinTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "queue_join",
		Description: "Joins the lobby queue. The eighth waiting player completes a table and a match forms immediately with roles assigned.",
	}
}

// QueueJoinHandler executes a queue join request as the authenticated player.
func QueueJoinHandler(engine *app.Engine) mcp.ToolHandlerFor[QueueJoinInput, QueueJoinResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QueueJoinInput) (*mcp.CallToolResult, QueueJoinResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, QueueJoinResult{}, err
		}
		resp, err := engine.JoinQueue(ctx, app.JoinQueueRequest{
			PlayerID:       playerID,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, QueueJoinResult{}, err
		}
		return nil, QueueJoinResult{Queued: resp.Queued, Position: resp.Position, MatchID: resp.MatchID}, nil
	}
}

// QueueLeaveInput represents the MCP tool input for leaving the lobby queue.
type QueueLeaveInput struct {
	IdempotencyKey string `json:"idempotency_key,omitempty" jsonschema:"optional client-chosen key; retries with the same key replay the original result"`
}

// QueueLeaveResult represents the MCP tool output for leaving the lobby queue.
type QueueLeaveResult struct {
	Removed bool `json:"removed" jsonschema:"true when a waiting entry was removed; false when the player was not queued"`
}

// QueueLeaveTool defines the MCP tool schema for leaving the lobby queue.
func QueueLeaveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "queue_leave",
		Description: "Leaves the lobby queue. Leaving when not queued is a no-op; seated players cannot leave a formed match this way.",
	}
}

// QueueLeaveHandler executes a queue leave request as the authenticated player.
func QueueLeaveHandler(engine *app.Engine) mcp.ToolHandlerFor[QueueLeaveInput, QueueLeaveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QueueLeaveInput) (*mcp.CallToolResult, QueueLeaveResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, QueueLeaveResult{}, err
		}
		resp, err := engine.LeaveQueue(ctx, app.LeaveQueueRequest{
			PlayerID:       playerID,
			IdempotencyKey: input.IdempotencyKey,
		})
		if err != nil {
			return nil, QueueLeaveResult{}, err
		}
		return nil, QueueLeaveResult{Removed: resp.Removed}, nil
	}
}

// QueueStatusInput represents the MCP tool input for checking queue standing.
type QueueStatusInput struct{}

// QueueStatusResult represents the MCP tool output for checking queue standing.
type QueueStatusResult struct {
	Queued   bool   `json:"queued" jsonschema:"true while the player is waiting for a table"`
	Position int    `json:"position,omitempty" jsonschema:"1-based waiting position when queued"`
	Waiting  int    `json:"waiting" jsonschema:"total players currently waiting in the queue"`
	MatchID  string `json:"match_id,omitempty" jsonschema:"active match identifier when the player is already seated"`
}

// QueueStatusTool defines the MCP tool schema for checking queue standing.
func QueueStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "queue_status",
		Description: "Reports the caller's queue standing: waiting position, queue depth, or the match they were seated into.",
	}
}

// QueueStatusHandler executes a queue status request as the authenticated player.
func QueueStatusHandler(engine *app.Engine) mcp.ToolHandlerFor[QueueStatusInput, QueueStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ QueueStatusInput) (*mcp.CallToolResult, QueueStatusResult, error) {
		playerID, err := agentPlayer(ctx)
		if err != nil {
			return nil, QueueStatusResult{}, err
		}
		resp, err := engine.QueueStatus(ctx, playerID)
		if err != nil {
			return nil, QueueStatusResult{}, err
		}
		return nil, QueueStatusResult{
			Queued:   resp.Queued,
			Position: resp.Position,
			Waiting:  resp.Waiting,
			MatchID:  resp.MatchID,
		}, nil
	}
}

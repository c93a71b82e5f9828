package domain

// Transcript entry payloads. These are the stable JSON shapes stored in the
// transcript and returned to viewers; renames here are wire changes.

// MessagePayload is table talk or wolf chat.
type MessagePayload struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

// ReadyPayload records a readiness acknowledgement.
type ReadyPayload struct {
	PlayerID string `json:"player_id"`
	Auto     bool   `json:"auto,omitempty"`
}

// VotePayload records one cast vote.
type VotePayload struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
}

// NightActionPayload records a private night submission.
type NightActionPayload struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Target string `json:"target"`
}

// PhaseChangePayload marks a state machine transition.
type PhaseChangePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Round int    `json:"round"`
}

// SeerResultPayload reveals the inspected player's true role to the seer.
type SeerResultPayload struct {
	Target     string `json:"target"`
	Role       string `json:"role"`
	IsWerewolf bool   `json:"is_werewolf"`
}

// EliminationPayload records a death and its cause. The role is revealed on
// death, matching the table-reveal convention.
type EliminationPayload struct {
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
	Cause    string `json:"cause"` // "wolf_kill" or "vote"
}

// NoEliminationPayload records a round where nobody died and why.
type NoEliminationPayload struct {
	Reason string `json:"reason"` // "protected", "no_kill", "vote_tied", "no_votes"
}

// VoteResolutionPayload records the outcome of a voting round.
type VoteResolutionPayload struct {
	Tally      map[string]int `json:"tally"`
	Eliminated string         `json:"eliminated,omitempty"`
	Tied       bool           `json:"tied,omitempty"`
}

// MatchEndedPayload declares the winner and reveals every role.
type MatchEndedPayload struct {
	Winner string       `json:"winner"`
	Roles  []PlayerRole `json:"roles"`
}

// MatchAbandonedPayload records a forfeited ready check.
type MatchAbandonedPayload struct {
	Unready []string `json:"unready"`
}

// RoleAssignmentPayload records a player's dealt role. It is scoped
// dead-or-ended so it only becomes readable for replay.
type RoleAssignmentPayload struct {
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
}

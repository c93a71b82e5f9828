package domain

import "time"

// Vote is one player's current elimination vote for a round. A voter has at
// most one effective vote per round; a later submission overwrites an
// earlier one.
type Vote struct {
	Voter       string
	Target      string
	Round       int
	Order       int
	SubmittedAt time.Time
}

// NightAction is one actor's private night submission for a round. An actor
// has at most one per round; resubmission overwrites the target.
type NightAction struct {
	Actor       string
	Type        ActionType
	Target      string
	Round       int
	Order       int
	SubmittedAt time.Time
}

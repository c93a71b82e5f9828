package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Winner identifies the faction that won an ended match.
type Winner int

const (
	// WinnerNone means the match is still running or was abandoned.
	WinnerNone Winner = iota
	// WinnerWerewolves means the wolves reached parity with the village.
	WinnerWerewolves
	// WinnerVillagers means every werewolf was eliminated.
	WinnerVillagers
)

// String returns the stable wire name for a winner.
func (w Winner) String() string {
	switch w {
	case WinnerWerewolves:
		return "WEREWOLVES"
	case WinnerVillagers:
		return "VILLAGERS"
	default:
		return "NONE"
	}
}

// ParseWinner maps a wire name back to a winner.
func ParseWinner(value string) (Winner, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "NONE":
		return WinnerNone, nil
	case "WEREWOLVES":
		return WinnerWerewolves, nil
	case "VILLAGERS":
		return WinnerVillagers, nil
	default:
		return WinnerNone, fmt.Errorf("unknown winner %q", value)
	}
}

// Match is one playthrough from formation to a declared winner. It is created
// by the queue manager and thereafter mutated only through the state machine
// and action resolver; once Phase is ENDED it is permanently read-only.
type Match struct {
	ID      string
	Phase   Phase
	Round   int
	Players []string // seat order, fixed at creation
	Roles   map[string]Role
	Alive   map[string]bool
	Ready   map[string]bool

	// Current-round submissions, cleared at each NIGHT / VOTING entry.
	Votes        map[string]Vote
	NightActions map[string]NightAction

	// submissionOrder is a per-match counter used to break team-level ties
	// by recency. It only ever increases.
	SubmissionOrder int

	PhaseDeadline time.Time
	Winner        Winner
	Abandoned     bool

	// Version is the optimistic concurrency token. Storage bumps it on
	// every save and rejects writes built from a stale load.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMatch seats players in join order with the given role assignment.
func NewMatch(id string, players []string, roles map[string]Role, now time.Time) *Match {
	m := &Match{
		ID:           id,
		Phase:        PhaseReadyCheck,
		Players:      append([]string(nil), players...),
		Roles:        roles,
		Alive:        make(map[string]bool, len(players)),
		Ready:        make(map[string]bool, len(players)),
		Votes:        make(map[string]Vote),
		NightActions: make(map[string]NightAction),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, p := range players {
		m.Alive[p] = true
	}
	return m
}

// Seated reports whether the player holds a seat in this match.
func (m *Match) Seated(playerID string) bool {
	_, ok := m.Roles[playerID]
	return ok
}

// IsAlive reports whether a seated player is still alive.
func (m *Match) IsAlive(playerID string) bool {
	return m.Alive[playerID]
}

// RoleOf returns the player's role, or RoleUnspecified for outsiders.
func (m *Match) RoleOf(playerID string) Role {
	return m.Roles[playerID]
}

// LivingPlayers returns living players in seat order.
func (m *Match) LivingPlayers() []string {
	var living []string
	for _, p := range m.Players {
		if m.Alive[p] {
			living = append(living, p)
		}
	}
	return living
}

// LivingByRole returns living players holding the role, in seat order.
func (m *Match) LivingByRole(role Role) []string {
	var living []string
	for _, p := range m.Players {
		if m.Alive[p] && m.Roles[p] == role {
			living = append(living, p)
		}
	}
	return living
}

// LivingWerewolfCount counts living werewolves.
func (m *Match) LivingWerewolfCount() int {
	return len(m.LivingByRole(RoleWerewolf))
}

// LivingCount counts all living players.
func (m *Match) LivingCount() int {
	return len(m.LivingPlayers())
}

// AllReady reports whether every seated player acknowledged readiness.
func (m *Match) AllReady() bool {
	for _, p := range m.Players {
		if !m.Ready[p] {
			return false
		}
	}
	return true
}

// RequiredNightActors returns living players that the night waits on:
// every living werewolf, seer, and doctor.
func (m *Match) RequiredNightActors() []string {
	var actors []string
	for _, p := range m.Players {
		if m.Alive[p] && m.Roles[p].NightActionFor() != ActionUnspecified {
			actors = append(actors, p)
		}
	}
	return actors
}

// AllNightActionsIn reports whether every required night actor has submitted
// this round's action.
func (m *Match) AllNightActionsIn() bool {
	for _, actor := range m.RequiredNightActors() {
		action, ok := m.NightActions[actor]
		if !ok || action.Round != m.Round {
			return false
		}
	}
	return true
}

// AllVotesIn reports whether every living player has voted this round.
func (m *Match) AllVotesIn() bool {
	for _, p := range m.LivingPlayers() {
		vote, ok := m.Votes[p]
		if !ok || vote.Round != m.Round {
			return false
		}
	}
	return true
}

// RecordVote stores the voter's current effective vote (last write wins).
func (m *Match) RecordVote(voter, target string, now time.Time) Vote {
	m.SubmissionOrder++
	vote := Vote{
		Voter:       voter,
		Target:      target,
		Round:       m.Round,
		Order:       m.SubmissionOrder,
		SubmittedAt: now,
	}
	m.Votes[voter] = vote
	return vote
}

// RecordNightAction stores the actor's current night action (last write wins).
func (m *Match) RecordNightAction(actor string, actionType ActionType, target string, now time.Time) NightAction {
	m.SubmissionOrder++
	action := NightAction{
		Actor:       actor,
		Type:        actionType,
		Target:      target,
		Round:       m.Round,
		Order:       m.SubmissionOrder,
		SubmittedAt: now,
	}
	m.NightActions[actor] = action
	return action
}

// Eliminate marks a player as not alive. The alive set only shrinks.
func (m *Match) Eliminate(playerID string) {
	m.Alive[playerID] = false
}

// RolesSorted returns the full role assignment as sorted (player, role)
// pairs, used for end-of-match reveals.
func (m *Match) RolesSorted() []PlayerRole {
	pairs := make([]PlayerRole, 0, len(m.Roles))
	for player, role := range m.Roles {
		pairs = append(pairs, PlayerRole{PlayerID: player, Role: role, RoleName: role.String()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].PlayerID < pairs[j].PlayerID })
	return pairs
}

// PlayerRole pairs a player with their assigned role.
type PlayerRole struct {
	PlayerID string `json:"player_id"`
	Role     Role   `json:"-"`
	RoleName string `json:"role"`
}

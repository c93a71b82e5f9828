package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntryKind classifies transcript entries.
type EntryKind int

const (
	// EntryKindUnspecified represents an invalid entry kind value.
	EntryKindUnspecified EntryKind = iota
	// EntryKindMessage is table talk or wolf chat.
	EntryKindMessage
	// EntryKindVote is a cast elimination vote.
	EntryKindVote
	// EntryKindPhaseChange marks a state machine transition.
	EntryKindPhaseChange
	// EntryKindSystem is everything the engine records itself: eliminations,
	// seer results, night submissions, win declarations.
	EntryKindSystem
)

// String returns the stable wire name for an entry kind.
func (k EntryKind) String() string {
	switch k {
	case EntryKindMessage:
		return "message"
	case EntryKindVote:
		return "vote"
	case EntryKindPhaseChange:
		return "phase-change"
	case EntryKindSystem:
		return "system"
	default:
		return "unspecified"
	}
}

// ParseEntryKind maps a wire name back to an entry kind.
func ParseEntryKind(value string) (EntryKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "message":
		return EntryKindMessage, nil
	case "vote":
		return EntryKindVote, nil
	case "phase-change":
		return EntryKindPhaseChange, nil
	case "system":
		return EntryKindSystem, nil
	default:
		return EntryKindUnspecified, fmt.Errorf("unknown entry kind %q", value)
	}
}

// ScopeKind classifies who may read an entry while the match runs.
type ScopeKind int

const (
	// ScopeUnspecified represents an invalid scope value.
	ScopeUnspecified ScopeKind = iota
	// ScopePublic is readable by everyone, spectators included.
	ScopePublic
	// ScopeWolves is readable by living werewolves.
	ScopeWolves
	// ScopeSeer is readable only by the seer who requested the inspection.
	ScopeSeer
	// ScopeDeadOrEnded is hidden until the viewer is eliminated or the
	// match ends.
	ScopeDeadOrEnded
)

// Scope is an entry's visibility contract: a kind plus, for seer entries,
// the recipient player.
type Scope struct {
	Kind     ScopeKind
	PlayerID string
}

// PublicScope is readable by everyone.
func PublicScope() Scope { return Scope{Kind: ScopePublic} }

// WolvesScope is readable by living werewolves only.
func WolvesScope() Scope { return Scope{Kind: ScopeWolves} }

// SeerScope is readable only by the given seer.
func SeerScope(playerID string) Scope { return Scope{Kind: ScopeSeer, PlayerID: playerID} }

// DeadOrEndedScope is hidden until the viewer dies or the match ends.
func DeadOrEndedScope() Scope { return Scope{Kind: ScopeDeadOrEnded} }

// String encodes a scope for storage.
func (s Scope) String() string {
	switch s.Kind {
	case ScopePublic:
		return "public"
	case ScopeWolves:
		return "wolves"
	case ScopeSeer:
		return "seer:" + s.PlayerID
	case ScopeDeadOrEnded:
		return "dead-or-ended"
	default:
		return "unspecified"
	}
}

// ParseScope decodes a stored scope.
func ParseScope(value string) (Scope, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "public":
		return PublicScope(), nil
	case value == "wolves":
		return WolvesScope(), nil
	case value == "dead-or-ended":
		return DeadOrEndedScope(), nil
	case strings.HasPrefix(value, "seer:"):
		return SeerScope(strings.TrimPrefix(value, "seer:")), nil
	default:
		return Scope{}, fmt.Errorf("unknown scope %q", value)
	}
}

// Entry is one immutable, sequence-ordered transcript record. Sequence
// numbers are a total order within a match, assigned at append time.
type Entry struct {
	ID          string
	MatchID     string
	Seq         uint64
	Kind        EntryKind
	Scope       Scope
	Round       int
	PayloadJSON []byte
	Timestamp   time.Time
}

// VisibleTo applies the read-time visibility filter for a viewer.
//
// The rules compose by viewer state: an ended match reveals everything to
// everyone; an eliminated seated player sees everything in their match; a
// living werewolf sees public plus wolf chat; everyone else sees public
// entries plus seer results addressed to them.
func (e Entry) VisibleTo(m *Match, viewerID string) bool {
	if m.Phase.Terminal() {
		return true
	}
	if m.Seated(viewerID) && !m.IsAlive(viewerID) {
		return true
	}
	switch e.Scope.Kind {
	case ScopePublic:
		return true
	case ScopeWolves:
		return m.IsAlive(viewerID) && m.RoleOf(viewerID) == RoleWerewolf
	case ScopeSeer:
		return viewerID != "" && e.Scope.PlayerID == viewerID
	case ScopeDeadOrEnded:
		return false
	default:
		return false
	}
}

// EntryDraft is a transcript entry before the store assigns identity,
// sequence, and timestamp.
type EntryDraft struct {
	Kind    EntryKind
	Scope   Scope
	Round   int
	Payload any
}

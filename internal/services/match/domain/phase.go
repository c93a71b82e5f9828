package domain

import (
	"fmt"
	"strings"
)

// Phase is a bounded-duration stage of a match.
type Phase int

const (
	// PhaseUnspecified represents an invalid phase value.
	PhaseUnspecified Phase = iota
	// PhaseReadyCheck waits for every seated player to acknowledge readiness.
	PhaseReadyCheck
	// PhaseNight collects role-restricted private actions.
	PhaseNight
	// PhaseDayDiscussion is open table talk after the night reveal.
	PhaseDayDiscussion
	// PhaseVoting collects one elimination vote per living player.
	PhaseVoting
	// PhaseResolution is the reveal pause between a vote and the next night.
	PhaseResolution
	// PhaseEnded is terminal; the match is permanently read-only.
	PhaseEnded
)

// String returns the stable wire name for a phase.
func (p Phase) String() string {
	switch p {
	case PhaseReadyCheck:
		return "READY_CHECK"
	case PhaseNight:
		return "NIGHT"
	case PhaseDayDiscussion:
		return "DAY_DISCUSSION"
	case PhaseVoting:
		return "VOTING"
	case PhaseResolution:
		return "RESOLUTION"
	case PhaseEnded:
		return "ENDED"
	default:
		return "UNSPECIFIED"
	}
}

// ParsePhase maps a wire name back to a phase.
func ParsePhase(value string) (Phase, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "READY_CHECK":
		return PhaseReadyCheck, nil
	case "NIGHT":
		return PhaseNight, nil
	case "DAY_DISCUSSION":
		return PhaseDayDiscussion, nil
	case "VOTING":
		return PhaseVoting, nil
	case "RESOLUTION":
		return PhaseResolution, nil
	case "ENDED":
		return PhaseEnded, nil
	default:
		return PhaseUnspecified, fmt.Errorf("unknown phase %q", value)
	}
}

// Terminal reports whether the phase ends the match.
func (p Phase) Terminal() bool {
	return p == PhaseEnded
}

// Package domain contains the match engine's core types and rules: roles,
// phases, the match aggregate, night/vote resolution, win evaluation, and
// transcript visibility.
package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
)

// Role identifies a player's secret role for the whole match.
type Role int

const (
	// RoleUnspecified represents an invalid role value.
	RoleUnspecified Role = iota
	// RoleVillager has no night action.
	RoleVillager
	// RoleWerewolf submits night kills and reads wolf chat.
	RoleWerewolf
	// RoleSeer inspects one player per night.
	RoleSeer
	// RoleDoctor protects one player per night.
	RoleDoctor
)

// String returns the stable wire name for a role.
func (r Role) String() string {
	switch r {
	case RoleVillager:
		return "VILLAGER"
	case RoleWerewolf:
		return "WEREWOLF"
	case RoleSeer:
		return "SEER"
	case RoleDoctor:
		return "DOCTOR"
	default:
		return "UNSPECIFIED"
	}
}

// ParseRole maps a wire name back to a role.
func ParseRole(value string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "VILLAGER":
		return RoleVillager, nil
	case "WEREWOLF":
		return RoleWerewolf, nil
	case "SEER":
		return RoleSeer, nil
	case "DOCTOR":
		return RoleDoctor, nil
	default:
		return RoleUnspecified, fmt.Errorf("unknown role %q", value)
	}
}

// ActionType identifies a night action.
type ActionType int

const (
	// ActionUnspecified represents an invalid action type value.
	ActionUnspecified ActionType = iota
	// ActionKill is the werewolf night kill.
	ActionKill
	// ActionInspect is the seer night inspection.
	ActionInspect
	// ActionProtect is the doctor night protection.
	ActionProtect
)

// String returns the stable wire name for an action type.
func (a ActionType) String() string {
	switch a {
	case ActionKill:
		return "KILL"
	case ActionInspect:
		return "INSPECT"
	case ActionProtect:
		return "PROTECT"
	default:
		return "UNSPECIFIED"
	}
}

// ParseActionType maps a wire name back to an action type.
func ParseActionType(value string) (ActionType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "KILL":
		return ActionKill, nil
	case "INSPECT":
		return ActionInspect, nil
	case "PROTECT":
		return ActionProtect, nil
	default:
		return ActionUnspecified, fmt.Errorf("unknown action type %q", value)
	}
}

type capabilityKey struct {
	role   Role
	action ActionType
}

// capabilities is the single source of truth for which roles may submit
// which night actions. Voting is a separate capability shared by every role.
var capabilities = map[capabilityKey]bool{
	{RoleWerewolf, ActionKill}:  true,
	{RoleSeer, ActionInspect}:   true,
	{RoleDoctor, ActionProtect}: true,
}

// CanSubmit reports whether the role may submit the given night action.
func (r Role) CanSubmit(action ActionType) bool {
	return capabilities[capabilityKey{r, action}]
}

// CanVote reports whether the role may cast day votes. Every role votes.
func (r Role) CanVote() bool {
	return r != RoleUnspecified
}

// NightActionFor returns the night action the role is required to submit,
// or ActionUnspecified when the role has none.
func (r Role) NightActionFor() ActionType {
	for key, allowed := range capabilities {
		if allowed && key.role == r {
			return key.action
		}
	}
	return ActionUnspecified
}

// RequireCapability validates a role against a night action type.
func RequireCapability(role Role, action ActionType) error {
	if role.CanSubmit(action) {
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeForbiddenRole,
		fmt.Sprintf("role %s cannot submit %s actions", role, action),
		map[string]string{"role": role.String(), "action": action.String()})
}

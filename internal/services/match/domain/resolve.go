package domain

import "sort"

// NightOutcome is the result of resolving one night's private actions.
type NightOutcome struct {
	KillTarget    string
	ProtectTarget string
	InspectTarget string
	SeerID        string
	InspectedRole Role
	Eliminated    string // empty when the kill was protected or no kill landed
}

// ResolveNight resolves the current round's night actions. It runs exactly
// once, at the NIGHT to DAY_DISCUSSION transition, never incrementally:
//
//  1. The kill target is the plurality choice among living werewolves'
//     submitted kills; a tie among top targets goes to the most recently
//     submitted of the tied targets.
//  2. The protect target is the living doctor's submission.
//  3. The inspect target is the living seer's submission.
//  4. A kill on the protected target does not land.
func ResolveNight(m *Match) NightOutcome {
	outcome := NightOutcome{}

	killVotes := make(map[string]int)
	lastOrder := make(map[string]int)
	for _, wolf := range m.LivingByRole(RoleWerewolf) {
		action, ok := m.NightActions[wolf]
		if !ok || action.Round != m.Round || action.Type != ActionKill {
			continue
		}
		killVotes[action.Target]++
		if action.Order > lastOrder[action.Target] {
			lastOrder[action.Target] = action.Order
		}
	}
	outcome.KillTarget = pluralityTarget(killVotes, lastOrder)

	for _, doctor := range m.LivingByRole(RoleDoctor) {
		action, ok := m.NightActions[doctor]
		if ok && action.Round == m.Round && action.Type == ActionProtect {
			outcome.ProtectTarget = action.Target
		}
	}

	for _, seer := range m.LivingByRole(RoleSeer) {
		action, ok := m.NightActions[seer]
		if ok && action.Round == m.Round && action.Type == ActionInspect {
			outcome.SeerID = seer
			outcome.InspectTarget = action.Target
			outcome.InspectedRole = m.RoleOf(action.Target)
		}
	}

	if outcome.KillTarget != "" && outcome.KillTarget != outcome.ProtectTarget && m.IsAlive(outcome.KillTarget) {
		outcome.Eliminated = outcome.KillTarget
	}
	return outcome
}

// pluralityTarget picks the target with the most votes; ties go to the most
// recently submitted of the tied targets.
func pluralityTarget(votes map[string]int, lastOrder map[string]int) string {
	best := ""
	bestCount := 0
	for target, count := range votes {
		switch {
		case count > bestCount:
			best, bestCount = target, count
		case count == bestCount && lastOrder[target] > lastOrder[best]:
			best = target
		}
	}
	return best
}

// VoteOutcome is the result of resolving one round's day votes.
type VoteOutcome struct {
	Tally      map[string]int
	Eliminated string // empty on a top tie or when nobody voted
	Tied       bool
}

// ResolveVotes resolves the current round's votes. It runs exactly once, at
// the VOTING to RESOLUTION transition. Each living voter has one effective
// vote (the latest submitted); a strict plurality eliminates its target and
// a tie among top vote-getters eliminates nobody.
func ResolveVotes(m *Match) VoteOutcome {
	outcome := VoteOutcome{Tally: make(map[string]int)}

	for _, voter := range m.LivingPlayers() {
		vote, ok := m.Votes[voter]
		if !ok || vote.Round != m.Round {
			continue
		}
		outcome.Tally[vote.Target]++
	}
	if len(outcome.Tally) == 0 {
		return outcome
	}

	targets := make([]string, 0, len(outcome.Tally))
	for target := range outcome.Tally {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	top := ""
	topCount := 0
	tied := false
	for _, target := range targets {
		count := outcome.Tally[target]
		switch {
		case count > topCount:
			top, topCount, tied = target, count, false
		case count == topCount:
			tied = true
		}
	}
	if tied {
		outcome.Tied = true
		return outcome
	}
	outcome.Eliminated = top
	return outcome
}

// EvaluateWin is the win-condition evaluator, consulted after every
// elimination. Werewolves win once living werewolves match or outnumber
// living non-werewolves; villagers win once no werewolf remains.
func EvaluateWin(m *Match) Winner {
	wolves := m.LivingWerewolfCount()
	if wolves == 0 {
		return WinnerVillagers
	}
	if wolves >= m.LivingCount()-wolves {
		return WinnerWerewolves
	}
	return WinnerNone
}

package domain

import "time"

// ReadyPolicy decides what happens to unready players at the ready timeout.
type ReadyPolicy int

const (
	// ReadyPolicyAuto marks unready players ready when the timeout elapses.
	ReadyPolicyAuto ReadyPolicy = iota
	// ReadyPolicyForfeit abandons the match when the timeout elapses.
	ReadyPolicyForfeit
)

// Config holds every phase tunable. It is injected at engine construction so
// behavior is reproducible in tests; nothing reads the environment here.
type Config struct {
	ReadyTimeout       time.Duration
	NightDuration      time.Duration
	DiscussionDuration time.Duration
	VotingDuration     time.Duration
	ResolutionDuration time.Duration
	// PhaseBuffer absorbs processing latency between the computed deadline
	// and the wall clock the external poller observes.
	PhaseBuffer time.Duration
	ReadyPolicy ReadyPolicy
}

// Deadline computes the wall-clock deadline for a phase entered at now.
func (c Config) Deadline(phase Phase, now time.Time) time.Time {
	var duration time.Duration
	switch phase {
	case PhaseReadyCheck:
		duration = c.ReadyTimeout
	case PhaseNight:
		duration = c.NightDuration
	case PhaseDayDiscussion:
		duration = c.DiscussionDuration
	case PhaseVoting:
		duration = c.VotingDuration
	case PhaseResolution:
		duration = c.ResolutionDuration
	}
	return now.Add(duration + c.PhaseBuffer)
}

// AdvanceResult reports what a single Advance call changed.
type AdvanceResult struct {
	Transitions []Transition
	Entries     []EntryDraft
}

// Transition is one phase edge taken during an Advance call.
type Transition struct {
	From Phase
	To   Phase
}

// Transitioned reports whether any phase edge was taken.
func (r AdvanceResult) Transitioned() bool {
	return len(r.Transitions) > 0
}

// Advance is the state machine's only clock-driven entry point. It is a pure
// function of (match, now, config): the engine does not self-schedule, and
// callers may invoke it at any interval. Advancing twice with no elapsed
// time is a no-op.
//
// A single call may take several edges when submissions have already
// satisfied the next phase's exit condition (for example a zero-duration
// test configuration), so transitions loop until the match is quiescent.
func Advance(m *Match, now time.Time, cfg Config) AdvanceResult {
	result := AdvanceResult{}
	// A configuration with sane durations quiesces after one or two edges;
	// the cap keeps a pathological all-zero configuration from spinning.
	for range [8]struct{}{} {
		transition, entries := advanceOnce(m, now, cfg)
		if transition == nil {
			break
		}
		result.Transitions = append(result.Transitions, *transition)
		result.Entries = append(result.Entries, entries...)
	}
	return result
}

func advanceOnce(m *Match, now time.Time, cfg Config) (*Transition, []EntryDraft) {
	deadlinePassed := !now.Before(m.PhaseDeadline)

	switch m.Phase {
	case PhaseReadyCheck:
		if m.AllReady() {
			return enterNight(m, now, cfg, nil)
		}
		if !deadlinePassed {
			return nil, nil
		}
		if cfg.ReadyPolicy == ReadyPolicyForfeit {
			return abandonMatch(m, now)
		}
		var entries []EntryDraft
		for _, p := range m.Players {
			if !m.Ready[p] {
				m.Ready[p] = true
				entries = append(entries, EntryDraft{
					Kind:    EntryKindSystem,
					Scope:   PublicScope(),
					Round:   m.Round,
					Payload: ReadyPayload{PlayerID: p, Auto: true},
				})
			}
		}
		return enterNight(m, now, cfg, entries)

	case PhaseNight:
		if !deadlinePassed && !m.AllNightActionsIn() {
			return nil, nil
		}
		return resolveNightTransition(m, now, cfg)

	case PhaseDayDiscussion:
		if !deadlinePassed {
			return nil, nil
		}
		return enterPhase(m, PhaseVoting, now, cfg, nil)

	case PhaseVoting:
		if !deadlinePassed && !m.AllVotesIn() {
			return nil, nil
		}
		return resolveVotesTransition(m, now, cfg)

	case PhaseResolution:
		if !deadlinePassed {
			return nil, nil
		}
		if winner := EvaluateWin(m); winner != WinnerNone {
			return endMatch(m, winner, now)
		}
		return enterNight(m, now, cfg, nil)

	default:
		return nil, nil
	}
}

// enterNight starts the next round: the round counter increments and the
// previous round's submissions are dropped.
func enterNight(m *Match, now time.Time, cfg Config, entries []EntryDraft) (*Transition, []EntryDraft) {
	from := m.Phase
	m.Round++
	m.Votes = make(map[string]Vote)
	m.NightActions = make(map[string]NightAction)
	m.Phase = PhaseNight
	m.PhaseDeadline = cfg.Deadline(PhaseNight, now)
	entries = append(entries, phaseChangeDraft(from, PhaseNight, m.Round))
	return &Transition{From: from, To: PhaseNight}, entries
}

func enterPhase(m *Match, to Phase, now time.Time, cfg Config, entries []EntryDraft) (*Transition, []EntryDraft) {
	from := m.Phase
	m.Phase = to
	m.PhaseDeadline = cfg.Deadline(to, now)
	entries = append(entries, phaseChangeDraft(from, to, m.Round))
	return &Transition{From: from, To: to}, entries
}

// resolveNightTransition applies the round's night actions atomically and
// enters the day. The elimination entry is appended here, at the transition,
// so it becomes publicly readable exactly when the day starts.
func resolveNightTransition(m *Match, now time.Time, cfg Config) (*Transition, []EntryDraft) {
	outcome := ResolveNight(m)

	var entries []EntryDraft
	if outcome.SeerID != "" {
		entries = append(entries, EntryDraft{
			Kind:  EntryKindSystem,
			Scope: SeerScope(outcome.SeerID),
			Round: m.Round,
			Payload: SeerResultPayload{
				Target:     outcome.InspectTarget,
				Role:       outcome.InspectedRole.String(),
				IsWerewolf: outcome.InspectedRole == RoleWerewolf,
			},
		})
	}

	if outcome.Eliminated != "" {
		m.Eliminate(outcome.Eliminated)
		entries = append(entries, EntryDraft{
			Kind:  EntryKindSystem,
			Scope: PublicScope(),
			Round: m.Round,
			Payload: EliminationPayload{
				PlayerID: outcome.Eliminated,
				Role:     m.RoleOf(outcome.Eliminated).String(),
				Cause:    "wolf_kill",
			},
		})
	} else {
		reason := "no_kill"
		if outcome.KillTarget != "" {
			reason = "protected"
		}
		entries = append(entries, EntryDraft{
			Kind:    EntryKindSystem,
			Scope:   PublicScope(),
			Round:   m.Round,
			Payload: NoEliminationPayload{Reason: reason},
		})
	}

	if winner := EvaluateWin(m); winner != WinnerNone {
		transition, endEntries := endMatch(m, winner, now)
		return transition, append(entries, endEntries...)
	}
	return enterPhase(m, PhaseDayDiscussion, now, cfg, entries)
}

// resolveVotesTransition applies the round's votes atomically and enters the
// resolution pause.
func resolveVotesTransition(m *Match, now time.Time, cfg Config) (*Transition, []EntryDraft) {
	outcome := ResolveVotes(m)

	if outcome.Eliminated != "" {
		m.Eliminate(outcome.Eliminated)
	}
	entries := []EntryDraft{{
		Kind:  EntryKindSystem,
		Scope: PublicScope(),
		Round: m.Round,
		Payload: VoteResolutionPayload{
			Tally:      outcome.Tally,
			Eliminated: outcome.Eliminated,
			Tied:       outcome.Tied,
		},
	}}
	if outcome.Eliminated != "" {
		entries = append(entries, EntryDraft{
			Kind:  EntryKindSystem,
			Scope: PublicScope(),
			Round: m.Round,
			Payload: EliminationPayload{
				PlayerID: outcome.Eliminated,
				Role:     m.RoleOf(outcome.Eliminated).String(),
				Cause:    "vote",
			},
		})
	}
	// Win evaluation runs after every elimination; a decisive vote ends the
	// match without waiting out the resolution pause.
	if winner := EvaluateWin(m); winner != WinnerNone {
		transition, endEntries := endMatch(m, winner, now)
		return transition, append(entries, endEntries...)
	}
	return enterPhase(m, PhaseResolution, now, cfg, entries)
}

func endMatch(m *Match, winner Winner, now time.Time) (*Transition, []EntryDraft) {
	from := m.Phase
	m.Phase = PhaseEnded
	m.Winner = winner
	m.PhaseDeadline = now
	entries := []EntryDraft{
		phaseChangeDraft(from, PhaseEnded, m.Round),
		{
			Kind:  EntryKindSystem,
			Scope: PublicScope(),
			Round: m.Round,
			Payload: MatchEndedPayload{
				Winner: winner.String(),
				Roles:  m.RolesSorted(),
			},
		},
	}
	return &Transition{From: from, To: PhaseEnded}, entries
}

func abandonMatch(m *Match, now time.Time) (*Transition, []EntryDraft) {
	from := m.Phase
	var unready []string
	for _, p := range m.Players {
		if !m.Ready[p] {
			unready = append(unready, p)
		}
	}
	m.Phase = PhaseEnded
	m.Abandoned = true
	m.PhaseDeadline = now
	entries := []EntryDraft{
		phaseChangeDraft(from, PhaseEnded, m.Round),
		{
			Kind:    EntryKindSystem,
			Scope:   PublicScope(),
			Round:   m.Round,
			Payload: MatchAbandonedPayload{Unready: unready},
		},
	}
	return &Transition{From: from, To: PhaseEnded}, entries
}

func phaseChangeDraft(from, to Phase, round int) EntryDraft {
	return EntryDraft{
		Kind:  EntryKindPhaseChange,
		Scope: PublicScope(),
		Round: round,
		Payload: PhaseChangePayload{
			From:  from.String(),
			To:    to.String(),
			Round: round,
		},
	}
}

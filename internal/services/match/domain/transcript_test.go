package domain

import "testing"

func TestScopeRoundTrips(t *testing.T) {
	scopes := []Scope{PublicScope(), WolvesScope(), SeerScope("seer-1"), DeadOrEndedScope()}
	for _, scope := range scopes {
		parsed, err := ParseScope(scope.String())
		if err != nil {
			t.Fatalf("ParseScope(%q): %v", scope.String(), err)
		}
		if parsed != scope {
			t.Fatalf("round trip %q: got %+v, want %+v", scope.String(), parsed, scope)
		}
	}
	if _, err := ParseScope("everyone"); err == nil {
		t.Fatal("ParseScope should reject unknown scopes")
	}
}

func TestEntryKindRoundTrips(t *testing.T) {
	kinds := []EntryKind{EntryKindMessage, EntryKindVote, EntryKindPhaseChange, EntryKindSystem}
	for _, kind := range kinds {
		parsed, err := ParseEntryKind(kind.String())
		if err != nil {
			t.Fatalf("ParseEntryKind(%q): %v", kind, err)
		}
		if parsed != kind {
			t.Fatalf("round trip %q: got %s", kind, parsed)
		}
	}
}

func TestVisibleToDuringMatch(t *testing.T) {
	m := newVillage8()

	tests := []struct {
		name   string
		entry  Entry
		viewer string
		want   bool
	}{
		{"public to villager", Entry{Scope: PublicScope()}, "villager-1", true},
		{"public to spectator", Entry{Scope: PublicScope()}, "", true},
		{"wolf chat to living wolf", Entry{Scope: WolvesScope()}, "wolf-1", true},
		{"wolf chat to villager", Entry{Scope: WolvesScope()}, "villager-1", false},
		{"wolf chat to seer", Entry{Scope: WolvesScope()}, "seer-1", false},
		{"wolf chat to spectator", Entry{Scope: WolvesScope()}, "", false},
		{"seer result to its seer", Entry{Scope: SeerScope("seer-1")}, "seer-1", true},
		{"seer result to wolf", Entry{Scope: SeerScope("seer-1")}, "wolf-1", false},
		{"seer result to spectator", Entry{Scope: SeerScope("seer-1")}, "", false},
		{"sealed entry to living player", Entry{Scope: DeadOrEndedScope()}, "villager-1", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.VisibleTo(m, tc.viewer); got != tc.want {
				t.Fatalf("VisibleTo(%s) = %v, want %v", tc.viewer, got, tc.want)
			}
		})
	}
}

func TestVisibleToEliminatedWolfLosesWolfChat(t *testing.T) {
	m := newVillage8()
	entry := Entry{Scope: WolvesScope()}
	m.Eliminate("wolf-1")

	// Dead seated players see the whole transcript, wolf chat included.
	if !entry.VisibleTo(m, "wolf-1") {
		t.Fatal("eliminated players read the full transcript")
	}
	// But a dead wolf is no longer part of the living wolves audience; the
	// access comes from being dead, which the sealed scope confirms.
	sealed := Entry{Scope: DeadOrEndedScope()}
	if !sealed.VisibleTo(m, "wolf-1") {
		t.Fatal("eliminated players see sealed entries")
	}
}

func TestVisibleToEliminatedVillagerSeesEverything(t *testing.T) {
	m := newVillage8()
	m.Eliminate("villager-1")

	for _, entry := range []Entry{
		{Scope: PublicScope()},
		{Scope: WolvesScope()},
		{Scope: SeerScope("seer-1")},
		{Scope: DeadOrEndedScope()},
	} {
		if !entry.VisibleTo(m, "villager-1") {
			t.Fatalf("eliminated viewer should see %s entries", entry.Scope)
		}
	}
}

func TestVisibleToEndedMatchRevealsAll(t *testing.T) {
	m := newVillage8()
	m.Phase = PhaseEnded

	for _, entry := range []Entry{
		{Scope: PublicScope()},
		{Scope: WolvesScope()},
		{Scope: SeerScope("seer-1")},
		{Scope: DeadOrEndedScope()},
	} {
		if !entry.VisibleTo(m, "villager-1") {
			t.Fatalf("ended match should reveal %s entries to players", entry.Scope)
		}
		if !entry.VisibleTo(m, "") {
			t.Fatalf("ended match should reveal %s entries to spectators", entry.Scope)
		}
	}
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestCreateGetMatchRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-1", now)

	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	got, err := store.GetMatch(context.Background(), "match-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Phase != domain.PhaseReadyCheck {
		t.Fatalf("phase = %s, want READY_CHECK", got.Phase)
	}
	if len(got.Players) != len(m.Players) {
		t.Fatalf("players = %d, want %d", len(got.Players), len(m.Players))
	}
	for i, p := range m.Players {
		if got.Players[i] != p {
			t.Fatalf("seat %d = %q, want %q (seat order must survive)", i, got.Players[i], p)
		}
	}
	if got.RoleOf("wolf-1") != domain.RoleWerewolf {
		t.Fatalf("wolf-1 role = %s, want WEREWOLF", got.RoleOf("wolf-1"))
	}
	if !got.IsAlive("villager-1") {
		t.Fatal("villager-1 should load alive")
	}
}

func TestCreateMatchDuplicateID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-dup", now)

	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}
	err := store.CreateMatch(context.Background(), m, nil)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestCreateMatchConsumesQueueEntries(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-q", now)
	for _, p := range m.Players {
		if err := store.Enqueue(context.Background(), storage.QueueEntry{PlayerID: p, EnqueuedAt: now}); err != nil {
			t.Fatalf("enqueue %s: %v", p, err)
		}
	}

	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	queued, err := store.ListQueue(context.Background())
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(queued) != 0 {
		t.Fatalf("queue length = %d, want 0 after match formation", len(queued))
	}
}

func TestSaveMatchPersistsSubmissionsAndEntries(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-2", now)
	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	m.Phase = domain.PhaseNight
	m.Round = 1
	m.RecordNightAction("wolf-1", domain.ActionKill, "villager-1", now)
	m.RecordVote("villager-1", "wolf-1", now)
	entry := storage.EntryRecord{
		ID:          "entry-1",
		MatchID:     m.ID,
		Kind:        domain.EntryKindSystem,
		Scope:       domain.PublicScope(),
		Round:       1,
		PayloadJSON: []byte(`{"from":"READY_CHECK","to":"NIGHT","round":1}`),
		Timestamp:   now,
	}
	if err := store.SaveMatch(context.Background(), m, []storage.EntryRecord{entry}); err != nil {
		t.Fatalf("save match: %v", err)
	}

	got, err := store.GetMatch(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Phase != domain.PhaseNight || got.Round != 1 {
		t.Fatalf("phase/round = %s/%d, want NIGHT/1", got.Phase, got.Round)
	}
	action, ok := got.NightActions["wolf-1"]
	if !ok || action.Type != domain.ActionKill || action.Target != "villager-1" {
		t.Fatalf("night action = %+v", action)
	}
	vote, ok := got.Votes["villager-1"]
	if !ok || vote.Target != "wolf-1" {
		t.Fatalf("vote = %+v", vote)
	}
	if got.SubmissionOrder != m.SubmissionOrder {
		t.Fatalf("submission order = %d, want %d", got.SubmissionOrder, m.SubmissionOrder)
	}

	page, err := store.ListEntries(context.Background(), m.ID, 0, 10, "")
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(page.Entries))
	}
	if page.Entries[0].Seq != 1 {
		t.Fatalf("seq = %d, want 1", page.Entries[0].Seq)
	}
}

func TestSaveMatchClearsStaleSubmissions(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-3", now)
	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	m.Phase = domain.PhaseVoting
	m.Round = 1
	m.RecordVote("villager-1", "wolf-1", now)
	if err := store.SaveMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("save match: %v", err)
	}

	// New night clears the aggregate's votes; the save must mirror that.
	m.Votes = make(map[string]domain.Vote)
	m.Round = 2
	if err := store.SaveMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("save match round 2: %v", err)
	}

	got, err := store.GetMatch(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if len(got.Votes) != 0 {
		t.Fatalf("votes = %d, want 0 after the round rolled over", len(got.Votes))
	}
}

func TestSaveMatchUnknownID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-missing", now)

	err := store.SaveMatch(context.Background(), m, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("save unknown match error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestSaveMatchRejectsStaleVersion(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	if err := store.CreateMatch(context.Background(), seededMatch("match-cas", now), nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	// Two loads model the game server and the sweep worker reading the
	// same match from the shared database file.
	first, err := store.GetMatch(context.Background(), "match-cas")
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := store.GetMatch(context.Background(), "match-cas")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	first.Eliminate("wolf-1")
	if err := store.SaveMatch(context.Background(), first, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// The second writer still believes wolf-1 is alive; committing its
	// copy would resurrect the player.
	second.Phase = domain.PhaseNight
	if err := store.SaveMatch(context.Background(), second, nil); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale save error = %v, want %v", err, storage.ErrVersionConflict)
	}

	got, err := store.GetMatch(context.Background(), "match-cas")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.IsAlive("wolf-1") {
		t.Fatal("stale save resurrected wolf-1")
	}

	// Reloading picks up the current version and the write goes through.
	got.Phase = domain.PhaseNight
	if err := store.SaveMatch(context.Background(), got, nil); err != nil {
		t.Fatalf("save after reload: %v", err)
	}
}

func TestListEntriesSinceSeqAndPaging(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-4", now)
	var entries []storage.EntryRecord
	for i := 0; i < 5; i++ {
		entries = append(entries, storage.EntryRecord{
			ID:          "entry-" + string(rune('a'+i)),
			MatchID:     m.ID,
			Kind:        domain.EntryKindMessage,
			Scope:       domain.PublicScope(),
			Round:       1,
			PayloadJSON: []byte(`{}`),
			Timestamp:   now,
		})
	}
	if err := store.CreateMatch(context.Background(), m, entries); err != nil {
		t.Fatalf("create match: %v", err)
	}

	page, err := store.ListEntries(context.Background(), m.ID, 2, 2, "")
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(page.Entries) != 2 || page.Entries[0].Seq != 3 || page.Entries[1].Seq != 4 {
		t.Fatalf("first page = %+v", page.Entries)
	}
	if page.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	page, err = store.ListEntries(context.Background(), m.ID, 0, 2, page.NextPageToken)
	if err != nil {
		t.Fatalf("list entries page 2: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].Seq != 5 {
		t.Fatalf("second page = %+v", page.Entries)
	}
	if page.NextPageToken != "" {
		t.Fatalf("next page token = %q, want empty on last page", page.NextPageToken)
	}
}

func TestIdempotencyInsertThenConflict(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	rec := storage.IdempotencyRecord{
		Scope:        "match.vote",
		Key:          "key-1",
		PlayerID:     "villager-1",
		MatchID:      "match-1",
		RequestHash:  "hash-1",
		ResponseJSON: []byte(`{"ok":true}`),
		CreatedAt:    now,
	}

	got, inserted, err := store.InsertIdempotencyRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert should take effect")
	}
	if got.RequestHash != "hash-1" {
		t.Fatalf("request hash = %q", got.RequestHash)
	}

	second := rec
	second.PlayerID = "villager-2"
	second.RequestHash = "hash-2"
	second.ResponseJSON = []byte(`{"ok":false}`)
	got, inserted, err = store.InsertIdempotencyRecord(context.Background(), second)
	if err != nil {
		t.Fatalf("conflicting insert: %v", err)
	}
	if inserted {
		t.Fatal("second insert must not take effect")
	}
	if got.PlayerID != "villager-1" || got.RequestHash != "hash-1" || string(got.ResponseJSON) != `{"ok":true}` {
		t.Fatalf("conflict returned %+v, want the original record", got)
	}
}

func TestPruneIdempotencyRecords(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	base := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	for i, key := range []string{"old-1", "old-2", "fresh"} {
		rec := storage.IdempotencyRecord{
			Scope:        "queue.join",
			Key:          key,
			PlayerID:     "p-1",
			RequestHash:  "h",
			ResponseJSON: []byte(`{}`),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}
		if _, _, err := store.InsertIdempotencyRecord(context.Background(), rec); err != nil {
			t.Fatalf("insert %s: %v", key, err)
		}
	}

	pruned, err := store.PruneIdempotencyRecords(context.Background(), base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("pruned = %d, want 2", pruned)
	}
	if _, err := store.GetIdempotencyRecord(context.Background(), "queue.join", "fresh"); err != nil {
		t.Fatalf("fresh record should survive: %v", err)
	}
	if _, err := store.GetIdempotencyRecord(context.Background(), "queue.join", "old-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("old record error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestQueueOrderAndDuplicates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	base := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	for i, p := range []string{"p-c", "p-a", "p-b"} {
		entry := storage.QueueEntry{PlayerID: p, EnqueuedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.Enqueue(context.Background(), entry); err != nil {
			t.Fatalf("enqueue %s: %v", p, err)
		}
	}

	err := store.Enqueue(context.Background(), storage.QueueEntry{PlayerID: "p-a", EnqueuedAt: base})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate enqueue error = %v, want %v", err, storage.ErrAlreadyExists)
	}

	queued, err := store.ListQueue(context.Background())
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(queued) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queued))
	}
	if queued[0].PlayerID != "p-c" || queued[1].PlayerID != "p-a" || queued[2].PlayerID != "p-b" {
		t.Fatalf("queue order = %v, want arrival order", queued)
	}

	removed, err := store.RemoveFromQueue(context.Background(), "p-a")
	if err != nil || !removed {
		t.Fatalf("remove p-a = %v, %v", removed, err)
	}
	removed, err = store.RemoveFromQueue(context.Background(), "p-a")
	if err != nil || removed {
		t.Fatalf("second remove p-a = %v, %v, want no-op", removed, err)
	}
}

func TestActiveMatchForPlayer(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-5", now)
	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	id, err := store.ActiveMatchForPlayer(context.Background(), "wolf-1")
	if err != nil {
		t.Fatalf("active match for player: %v", err)
	}
	if id != "match-5" {
		t.Fatalf("active match = %q, want match-5", id)
	}

	m.Phase = domain.PhaseEnded
	m.Winner = domain.WinnerVillagers
	if err := store.SaveMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("save match: %v", err)
	}
	if _, err := store.ActiveMatchForPlayer(context.Background(), "wolf-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("active match after end = %v, want %v", err, storage.ErrNotFound)
	}

	active, err := store.ListActiveMatchIDs(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active matches = %v, want none", active)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	m := seededMatch("match-6", now)
	if err := store.CreateMatch(context.Background(), m, nil); err != nil {
		t.Fatalf("create match: %v", err)
	}

	archive := storage.TranscriptArchive{
		MatchID:    "match-6",
		Compressed: []byte{0x28, 0xb5, 0x2f, 0xfd},
		EntryCount: 12,
		CreatedAt:  now,
	}
	if err := store.PutArchive(context.Background(), archive); err != nil {
		t.Fatalf("put archive: %v", err)
	}

	got, err := store.GetArchive(context.Background(), "match-6")
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if got.EntryCount != 12 || len(got.Compressed) != 4 {
		t.Fatalf("archive = %+v", got)
	}

	if _, err := store.GetArchive(context.Background(), "match-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing archive error = %v, want %v", err, storage.ErrNotFound)
	}
}

func seededMatch(id string, now time.Time) *domain.Match {
	players := []string{"wolf-1", "wolf-2", "seer-1", "doctor-1", "villager-1", "villager-2", "villager-3", "villager-4"}
	roles := map[string]domain.Role{
		"wolf-1": domain.RoleWerewolf, "wolf-2": domain.RoleWerewolf,
		"seer-1": domain.RoleSeer, "doctor-1": domain.RoleDoctor,
		"villager-1": domain.RoleVillager, "villager-2": domain.RoleVillager,
		"villager-3": domain.RoleVillager, "villager-4": domain.RoleVillager,
	}
	return domain.NewMatch(id, players, roles, now)
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "match.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

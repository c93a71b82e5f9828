// Package storage defines persistence contracts for match service state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates a match write lost a concurrent update;
	// the caller must reload the aggregate and retry.
	ErrVersionConflict = errors.New("stale match version")
)

// MatchSummary is the listing projection of a match.
type MatchSummary struct {
	ID        string
	Phase     domain.Phase
	Round     int
	Winner    domain.Winner
	Living    int
	Seats     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchPage is one page of match summaries.
type MatchPage struct {
	Matches       []MatchSummary
	NextPageToken string
}

// MatchStore persists match aggregates and their transcripts.
//
// SaveMatch writes the aggregate and appends drafts to the transcript in one
// transaction; sequence numbers are allocated at append time, so an entry is
// never visible without the state change that produced it. The write is
// guarded by the aggregate's Version: a save built from a stale load fails
// with ErrVersionConflict, which protects matches shared across processes.
type MatchStore interface {
	// CreateMatch inserts a new match and, atomically, removes its players
	// from the queue and appends the opening transcript entries.
	CreateMatch(ctx context.Context, m *domain.Match, entries []EntryRecord) error
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	SaveMatch(ctx context.Context, m *domain.Match, entries []EntryRecord) error
	ListMatches(ctx context.Context, pageSize int, pageToken string) (MatchPage, error)
	// ListActiveMatchIDs returns IDs of matches that have not ended.
	ListActiveMatchIDs(ctx context.Context) ([]string, error)
	// ActiveMatchForPlayer returns the ID of the running match the player is
	// seated in, or ErrNotFound.
	ActiveMatchForPlayer(ctx context.Context, playerID string) (string, error)
}

// EntryRecord is a transcript entry as persisted. Seq is assigned by the
// store when the record is appended.
type EntryRecord struct {
	ID          string
	MatchID     string
	Seq         uint64
	Kind        domain.EntryKind
	Scope       domain.Scope
	Round       int
	PayloadJSON []byte
	Timestamp   time.Time
}

// Domain converts the record to its domain form.
func (r EntryRecord) Domain() domain.Entry {
	return domain.Entry{
		ID:          r.ID,
		MatchID:     r.MatchID,
		Seq:         r.Seq,
		Kind:        r.Kind,
		Scope:       r.Scope,
		Round:       r.Round,
		PayloadJSON: r.PayloadJSON,
		Timestamp:   r.Timestamp,
	}
}

// EntryPage is one page of transcript records.
type EntryPage struct {
	Entries       []EntryRecord
	NextPageToken string
}

// TranscriptStore reads back persisted transcript entries.
type TranscriptStore interface {
	// ListEntries returns entries with Seq > sinceSeq in sequence order.
	ListEntries(ctx context.Context, matchID string, sinceSeq uint64, pageSize int, pageToken string) (EntryPage, error)
}

// IdempotencyRecord is one completed keyed mutation. The stored response is
// replayed verbatim on key reuse. PlayerID and MatchID identify the original
// caller so key reuse across actors or matches can be named in the error.
type IdempotencyRecord struct {
	Scope        string
	Key          string
	PlayerID     string
	MatchID      string
	RequestHash  string
	ResponseJSON []byte
	CreatedAt    time.Time
}

// IdempotencyStore provides check-and-insert semantics for keyed mutations.
type IdempotencyStore interface {
	// InsertIdempotencyRecord inserts the record unless one already exists
	// for (scope, key). It returns the winning record and whether the insert
	// took effect.
	InsertIdempotencyRecord(ctx context.Context, rec IdempotencyRecord) (IdempotencyRecord, bool, error)
	GetIdempotencyRecord(ctx context.Context, scope, key string) (IdempotencyRecord, error)
	// PruneIdempotencyRecords deletes records created before the cutoff and
	// returns how many were removed.
	PruneIdempotencyRecords(ctx context.Context, before time.Time) (int64, error)
}

// QueueEntry is one player waiting for a seat.
type QueueEntry struct {
	PlayerID   string
	EnqueuedAt time.Time
}

// QueueStore persists the matchmaking queue in arrival order.
type QueueStore interface {
	// Enqueue appends the player; ErrAlreadyExists if already queued.
	Enqueue(ctx context.Context, entry QueueEntry) error
	// RemoveFromQueue deletes the player's entry and reports whether one
	// existed.
	RemoveFromQueue(ctx context.Context, playerID string) (bool, error)
	// ListQueue returns queued players oldest first.
	ListQueue(ctx context.Context) ([]QueueEntry, error)
}

// TranscriptArchive is a compressed copy of an ended match's transcript.
type TranscriptArchive struct {
	MatchID    string
	Compressed []byte
	EntryCount int
	CreatedAt  time.Time
}

// ArchiveStore persists compressed transcripts of ended matches.
type ArchiveStore interface {
	PutArchive(ctx context.Context, archive TranscriptArchive) error
	GetArchive(ctx context.Context, matchID string) (TranscriptArchive, error)
}

// Store is the full persistence surface the match engine needs.
type Store interface {
	MatchStore
	TranscriptStore
	IdempotencyStore
	QueueStore
	ArchiveStore
}

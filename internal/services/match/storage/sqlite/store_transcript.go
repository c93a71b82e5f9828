package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// appendEntriesTx appends transcript entries inside an open transaction,
// allocating contiguous sequence numbers after the current maximum.
func appendEntriesTx(ctx context.Context, tx *sql.Tx, matchID string, entries []storage.EntryRecord) error {
	if len(entries) == 0 {
		return nil
	}

	var maxSeq uint64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transcript_entries WHERE match_id = ?`,
		matchID,
	)
	if err := row.Scan(&maxSeq); err != nil {
		return fmt.Errorf("allocate transcript seq: %w", err)
	}

	for i, entry := range entries {
		seq := maxSeq + uint64(i) + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transcript_entries (id, match_id, seq, kind, scope, round, payload_json, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID,
			matchID,
			seq,
			entry.Kind.String(),
			entry.Scope.String(),
			entry.Round,
			entry.PayloadJSON,
			toMillis(entry.Timestamp),
		); err != nil {
			return fmt.Errorf("append transcript entry %d: %w", i, err)
		}
	}
	return nil
}

// ListEntries returns transcript entries with seq > sinceSeq in sequence
// order. The page token, when set, supersedes sinceSeq.
func (s *Store) ListEntries(ctx context.Context, matchID string, sinceSeq uint64, pageSize int, pageToken string) (storage.EntryPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntryPage{}, err
	}
	if err := s.ready(); err != nil {
		return storage.EntryPage{}, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return storage.EntryPage{}, fmt.Errorf("match id is required")
	}
	if pageSize <= 0 {
		return storage.EntryPage{}, fmt.Errorf("page size must be greater than zero")
	}

	after := sinceSeq
	if token := strings.TrimSpace(pageToken); token != "" {
		parsed, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			return storage.EntryPage{}, fmt.Errorf("invalid page token %q", token)
		}
		after = parsed
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, seq, kind, scope, round, payload_json, timestamp
		   FROM transcript_entries
		  WHERE match_id = ? AND seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		matchID, after, pageSize+1,
	)
	if err != nil {
		return storage.EntryPage{}, fmt.Errorf("list transcript entries: %w", err)
	}
	defer rows.Close()

	page := storage.EntryPage{Entries: make([]storage.EntryRecord, 0, pageSize)}
	for rows.Next() {
		var entry storage.EntryRecord
		var kind, scope string
		var timestamp int64
		if err := rows.Scan(&entry.ID, &entry.Seq, &kind, &scope, &entry.Round,
			&entry.PayloadJSON, &timestamp); err != nil {
			return storage.EntryPage{}, fmt.Errorf("list transcript entries: %w", err)
		}
		if entry.Kind, err = domain.ParseEntryKind(kind); err != nil {
			return storage.EntryPage{}, fmt.Errorf("list transcript entries: %w", err)
		}
		if entry.Scope, err = domain.ParseScope(scope); err != nil {
			return storage.EntryPage{}, fmt.Errorf("list transcript entries: %w", err)
		}
		entry.MatchID = matchID
		entry.Timestamp = fromMillis(timestamp)
		page.Entries = append(page.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return storage.EntryPage{}, fmt.Errorf("list transcript entries: %w", err)
	}
	if len(page.Entries) > pageSize {
		page.NextPageToken = strconv.FormatUint(page.Entries[pageSize-1].Seq, 10)
		page.Entries = page.Entries[:pageSize]
	}
	return page, nil
}

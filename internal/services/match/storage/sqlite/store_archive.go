package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// PutArchive stores the compressed transcript of an ended match. A rerun of
// the archiver overwrites the previous copy.
func (s *Store) PutArchive(ctx context.Context, archive storage.TranscriptArchive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	matchID := strings.TrimSpace(archive.MatchID)
	if matchID == "" {
		return fmt.Errorf("match id is required")
	}
	if len(archive.Compressed) == 0 {
		return fmt.Errorf("archive payload is empty")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO transcript_archives (match_id, compressed, entry_count, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (match_id) DO UPDATE SET
		   compressed = excluded.compressed,
		   entry_count = excluded.entry_count,
		   created_at = excluded.created_at`,
		matchID, archive.Compressed, archive.EntryCount, toMillis(archive.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put transcript archive: %w", err)
	}
	return nil
}

// GetArchive returns the compressed transcript for a match.
func (s *Store) GetArchive(ctx context.Context, matchID string) (storage.TranscriptArchive, error) {
	if err := ctx.Err(); err != nil {
		return storage.TranscriptArchive{}, err
	}
	if err := s.ready(); err != nil {
		return storage.TranscriptArchive{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT match_id, compressed, entry_count, created_at
		   FROM transcript_archives WHERE match_id = ?`,
		strings.TrimSpace(matchID),
	)
	var archive storage.TranscriptArchive
	var createdAt int64
	if err := row.Scan(&archive.MatchID, &archive.Compressed, &archive.EntryCount, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TranscriptArchive{}, storage.ErrNotFound
		}
		return storage.TranscriptArchive{}, fmt.Errorf("get transcript archive: %w", err)
	}
	archive.CreatedAt = fromMillis(createdAt)
	return archive, nil
}

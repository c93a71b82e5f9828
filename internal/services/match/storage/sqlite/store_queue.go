package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// Enqueue appends the player to the matchmaking queue.
func (s *Store) Enqueue(ctx context.Context, entry storage.QueueEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	playerID := strings.TrimSpace(entry.PlayerID)
	if playerID == "" {
		return fmt.Errorf("player id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO queue_entries (player_id, enqueued_at) VALUES (?, ?)`,
		playerID, toMillis(entry.EnqueuedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("enqueue player: %w", err)
	}
	return nil
}

// RemoveFromQueue deletes the player's queue entry if one exists.
func (s *Store) RemoveFromQueue(ctx context.Context, playerID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return false, fmt.Errorf("player id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM queue_entries WHERE player_id = ?`, playerID,
	)
	if err != nil {
		return false, fmt.Errorf("remove from queue: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove from queue: %w", err)
	}
	return affected > 0, nil
}

// ListQueue returns queued players oldest first; ties break on player ID so
// the order is stable.
func (s *Store) ListQueue(ctx context.Context) ([]storage.QueueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, enqueued_at FROM queue_entries
		 ORDER BY enqueued_at ASC, player_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []storage.QueueEntry
	for rows.Next() {
		var entry storage.QueueEntry
		var enqueuedAt int64
		if err := rows.Scan(&entry.PlayerID, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("list queue: %w", err)
		}
		entry.EnqueuedAt = fromMillis(enqueuedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

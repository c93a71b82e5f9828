package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// InsertIdempotencyRecord inserts the record unless (scope, key) already
// exists. It returns the record that won and whether the insert took effect.
func (s *Store) InsertIdempotencyRecord(ctx context.Context, rec storage.IdempotencyRecord) (storage.IdempotencyRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	if err := s.ready(); err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	scope := strings.TrimSpace(rec.Scope)
	key := strings.TrimSpace(rec.Key)
	if scope == "" || key == "" {
		return storage.IdempotencyRecord{}, false, fmt.Errorf("idempotency scope and key are required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO idempotency_records (scope, idempotency_key, player_id, match_id, request_hash, response_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scope, key, rec.PlayerID, rec.MatchID, rec.RequestHash, rec.ResponseJSON, toMillis(rec.CreatedAt),
	)
	if err == nil {
		return rec, true, nil
	}
	if !isUniqueViolation(err) {
		return storage.IdempotencyRecord{}, false, fmt.Errorf("insert idempotency record: %w", err)
	}

	existing, err := s.GetIdempotencyRecord(ctx, scope, key)
	if err != nil {
		return storage.IdempotencyRecord{}, false, err
	}
	return existing, false, nil
}

// GetIdempotencyRecord returns the stored record for (scope, key).
func (s *Store) GetIdempotencyRecord(ctx context.Context, scope, key string) (storage.IdempotencyRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.IdempotencyRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.IdempotencyRecord{}, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT scope, idempotency_key, player_id, match_id, request_hash, response_json, created_at
		   FROM idempotency_records
		  WHERE scope = ? AND idempotency_key = ?`,
		strings.TrimSpace(scope), strings.TrimSpace(key),
	)
	var rec storage.IdempotencyRecord
	var createdAt int64
	if err := row.Scan(&rec.Scope, &rec.Key, &rec.PlayerID, &rec.MatchID, &rec.RequestHash, &rec.ResponseJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.IdempotencyRecord{}, storage.ErrNotFound
		}
		return storage.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}

// PruneIdempotencyRecords deletes records created before the cutoff.
func (s *Store) PruneIdempotencyRecords(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE created_at < ?`,
		toMillis(before),
	)
	if err != nil {
		return 0, fmt.Errorf("prune idempotency records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune idempotency records: %w", err)
	}
	return affected, nil
}

package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// requestHash canonicalizes a request payload for idempotency comparison.
// Struct field order is fixed, so encoding/json output is deterministic.
func requestHash(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "hash request", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// runIdempotent applies the at-most-once contract around a mutation.
//
// The first call with a given (scope, key) executes fn and stores its
// response. A retry with the same key and the same request replays the
// stored response without re-executing; the second return reports such a
// replay so callers can surface it. The same key presented by another
// player, for another match, or with a different request is a conflict.
// Failed executions store nothing, so the caller may retry with the same
// key. An empty key skips the guard entirely; unkeyed operations must be
// naturally safe to repeat.
func runIdempotent[T any](ctx context.Context, e *Engine, scope, key, playerID, matchID string, request any, fn func() (T, error)) (T, bool, error) {
	var zero T
	if key == "" {
		response, err := fn()
		return response, false, err
	}

	hash, err := requestHash(request)
	if err != nil {
		return zero, false, err
	}

	// Fast path: the mutation already ran.
	existing, err := e.store.GetIdempotencyRecord(ctx, scope, key)
	if err == nil {
		response, err := replayRecord[T](e, existing, hash, playerID, matchID)
		return response, err == nil, err
	}
	if err != storage.ErrNotFound {
		return zero, false, apperrors.Wrap(apperrors.CodeInternal, "idempotency lookup", err)
	}

	response, err := fn()
	if err != nil {
		return zero, false, err
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		return zero, false, apperrors.Wrap(apperrors.CodeInternal, "marshal idempotent response", err)
	}
	winner, inserted, err := e.store.InsertIdempotencyRecord(ctx, storage.IdempotencyRecord{
		Scope:        scope,
		Key:          key,
		PlayerID:     playerID,
		MatchID:      matchID,
		RequestHash:  hash,
		ResponseJSON: responseJSON,
		CreatedAt:    e.clock(),
	})
	if err != nil {
		return zero, false, apperrors.Wrap(apperrors.CodeInternal, "record idempotent response", err)
	}
	if !inserted {
		// Lost a race to a concurrent retry; its stored response wins.
		stored, err := replayRecord[T](e, winner, hash, playerID, matchID)
		return stored, err == nil, err
	}
	return response, false, nil
}

func replayRecord[T any](e *Engine, rec storage.IdempotencyRecord, hash, playerID, matchID string) (T, error) {
	var zero T
	// A reused key that does not replay is caller misuse, worth noise in
	// the logs.
	switch {
	case rec.PlayerID != playerID:
		e.logger.Printf("idempotency conflict: scope %s key %s belongs to player %s, reused by %s",
			rec.Scope, rec.Key, rec.PlayerID, playerID)
		return zero, apperrors.WithMetadata(apperrors.CodeIdempotencyPlayerConflict,
			"idempotency key already used by another player",
			map[string]string{"scope": rec.Scope, "key": rec.Key})
	case rec.MatchID != matchID:
		e.logger.Printf("idempotency conflict: scope %s key %s belongs to match %s, reused for %s",
			rec.Scope, rec.Key, rec.MatchID, matchID)
		return zero, apperrors.WithMetadata(apperrors.CodeIdempotencyMatchConflict,
			"idempotency key already used for another match",
			map[string]string{"scope": rec.Scope, "key": rec.Key})
	case rec.RequestHash != hash:
		e.logger.Printf("idempotency conflict: scope %s key %s reused with a different request", rec.Scope, rec.Key)
		return zero, apperrors.WithMetadata(apperrors.CodeIdempotencyPlayerConflict,
			"idempotency key already used for a different request",
			map[string]string{"scope": rec.Scope, "key": rec.Key})
	}
	var response T
	if err := json.Unmarshal(rec.ResponseJSON, &response); err != nil {
		return zero, apperrors.Wrap(apperrors.CodeInternal, "replay idempotent response", err)
	}
	return response, nil
}

// idempotencyTTL bounds how long replayed responses stay authoritative.
// Records older than this are pruned by the worker.
const idempotencyTTL = 24 * time.Hour

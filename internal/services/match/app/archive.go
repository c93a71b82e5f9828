package app

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/klauspost/compress/zstd"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// archivedEntry is the JSON-lines record written into transcript archives.
type archivedEntry struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Scope     string          `json:"scope"`
	Round     int             `json:"round"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

const archivePageSize = 256

// archiveTranscript compresses an ended match's full transcript into a
// single zstd blob. The live entries stay in place; the archive is the
// cheap long-term copy replays read from.
func (e *Engine) archiveTranscript(ctx context.Context, m *domain.Match, now time.Time) error {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "create archive encoder", err)
	}

	count := 0
	var sinceSeq uint64
	for {
		page, err := e.store.ListEntries(ctx, m.ID, sinceSeq, archivePageSize, "")
		if err != nil {
			_ = enc.Close()
			return apperrors.Wrap(apperrors.CodeInternal, "read transcript for archive", err)
		}
		for _, entry := range page.Entries {
			line, err := json.Marshal(archivedEntry{
				Seq:       entry.Seq,
				Kind:      entry.Kind.String(),
				Scope:     entry.Scope.String(),
				Round:     entry.Round,
				Payload:   json.RawMessage(entry.PayloadJSON),
				Timestamp: entry.Timestamp,
			})
			if err != nil {
				_ = enc.Close()
				return apperrors.Wrap(apperrors.CodeInternal, "marshal archive entry", err)
			}
			line = append(line, '\n')
			if _, err := enc.Write(line); err != nil {
				_ = enc.Close()
				return apperrors.Wrap(apperrors.CodeInternal, "write archive entry", err)
			}
			count++
			sinceSeq = entry.Seq
		}
		if page.NextPageToken == "" {
			break
		}
	}
	if err := enc.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "flush archive", err)
	}
	if count == 0 {
		return nil
	}

	if err := e.store.PutArchive(ctx, storage.TranscriptArchive{
		MatchID:    m.ID,
		Compressed: buf.Bytes(),
		EntryCount: count,
		CreatedAt:  now,
	}); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "store archive", err)
	}
	e.logger.Printf("match %s: archived %d transcript entries (%d bytes compressed)", m.ID, count, buf.Len())
	return nil
}

// ReadArchive decompresses a stored transcript archive back into entries.
func (e *Engine) ReadArchive(ctx context.Context, matchID string) ([]domain.Entry, error) {
	archive, err := e.store.GetArchive(ctx, matchID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, apperrors.WithMetadata(apperrors.CodeNotFound, "no archive for match",
				map[string]string{"match_id": matchID})
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, "load archive", err)
	}

	dec, err := zstd.NewReader(bytes.NewReader(archive.Compressed))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "create archive decoder", err)
	}
	defer dec.Close()

	var entries []domain.Entry
	decoder := json.NewDecoder(dec)
	for decoder.More() {
		var archived archivedEntry
		if err := decoder.Decode(&archived); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "decode archive entry", err)
		}
		kind, err := domain.ParseEntryKind(archived.Kind)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "decode archive entry", err)
		}
		scope, err := domain.ParseScope(archived.Scope)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, "decode archive entry", err)
		}
		entries = append(entries, domain.Entry{
			MatchID:     matchID,
			Seq:         archived.Seq,
			Kind:        kind,
			Scope:       scope,
			Round:       archived.Round,
			PayloadJSON: []byte(archived.Payload),
			Timestamp:   archived.Timestamp,
		})
	}
	return entries, nil
}

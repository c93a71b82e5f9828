package app

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/moonfall.town/internal/platform/errors"
	"github.com/louisbranch/moonfall.town/internal/services/match/app/filter"
	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// SeatView is one seat as a viewer is allowed to see it. Role is populated
// only when the viewer is entitled to it: their own seat, packmates for a
// living werewolf, or every seat once the match ends or the viewer is dead.
type SeatView struct {
	PlayerID string `json:"player_id"`
	Alive    bool   `json:"alive"`
	Ready    bool   `json:"ready,omitempty"`
	Role     string `json:"role,omitempty"`
}

// StateView is a role-gated snapshot of one match.
type StateView struct {
	MatchID       string     `json:"match_id"`
	Phase         string     `json:"phase"`
	Round         int        `json:"round"`
	PhaseDeadline time.Time  `json:"phase_deadline"`
	Seats         []SeatView `json:"seats"`
	YourRole      string     `json:"your_role,omitempty"`
	Winner        string     `json:"winner,omitempty"`
	Abandoned     bool       `json:"abandoned,omitempty"`
}

// GetState returns the match snapshot as seen by the viewer. An empty
// viewer ID is a spectator: public information only.
func (e *Engine) GetState(ctx context.Context, matchID, viewerID string) (StateView, error) {
	m, err := e.loadMatch(ctx, matchID)
	if err != nil {
		return StateView{}, err
	}

	revealAll := m.Phase.Terminal() || (m.Seated(viewerID) && !m.IsAlive(viewerID))
	viewerIsLivingWolf := m.IsAlive(viewerID) && m.RoleOf(viewerID) == domain.RoleWerewolf

	view := StateView{
		MatchID:       m.ID,
		Phase:         m.Phase.String(),
		Round:         m.Round,
		PhaseDeadline: m.PhaseDeadline,
		Abandoned:     m.Abandoned,
	}
	if m.Winner != domain.WinnerNone {
		view.Winner = m.Winner.String()
	}
	if m.Seated(viewerID) {
		view.YourRole = m.RoleOf(viewerID).String()
	}

	for _, p := range m.Players {
		seat := SeatView{
			PlayerID: p,
			Alive:    m.IsAlive(p),
			Ready:    m.Ready[p],
		}
		switch {
		case revealAll:
			seat.Role = m.RoleOf(p).String()
		case p == viewerID:
			seat.Role = m.RoleOf(p).String()
		case viewerIsLivingWolf && m.RoleOf(p) == domain.RoleWerewolf:
			seat.Role = m.RoleOf(p).String()
		}
		view.Seats = append(view.Seats, seat)
	}
	return view, nil
}

// EventView is one transcript entry as returned to a viewer.
type EventView struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Scope     string          `json:"scope"`
	Round     int             `json:"round"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventsRequest reads a slice of a match transcript.
type EventsRequest struct {
	MatchID  string `json:"match_id"`
	ViewerID string `json:"viewer_id,omitempty"`
	SinceSeq uint64 `json:"since_seq,omitempty"`
	// Filter is an AIP-160 expression over kind, scope, and round,
	// e.g. `kind = "message" AND round >= 2`.
	Filter    string `json:"filter,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

// EventsResponse is one visible page of transcript entries.
type EventsResponse struct {
	Events        []EventView `json:"events"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

var entryFilterFields = filter.Fields{
	"kind":  filter.FieldString,
	"scope": filter.FieldString,
	"round": filter.FieldInt,
}

const defaultEventPageSize = 50

// Events returns transcript entries visible to the viewer, oldest first.
// Visibility is evaluated against the match's current state: a viewer who
// died since an entry was written can now read it.
func (e *Engine) Events(ctx context.Context, req EventsRequest) (EventsResponse, error) {
	m, err := e.loadMatch(ctx, req.MatchID)
	if err != nil {
		return EventsResponse{}, err
	}

	pred, err := filter.Compile(req.Filter, entryFilterFields)
	if err != nil {
		return EventsResponse{}, apperrors.Wrap(apperrors.CodeValidationBadFilter, "invalid filter", err)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultEventPageSize
	}

	resp := EventsResponse{}
	sinceSeq := req.SinceSeq
	token := req.PageToken
	for len(resp.Events) < pageSize {
		page, err := e.store.ListEntries(ctx, req.MatchID, sinceSeq, pageSize, token)
		if err != nil {
			return EventsResponse{}, apperrors.Wrap(apperrors.CodeInternal, "list transcript entries", err)
		}
		for _, record := range page.Entries {
			entry := record.Domain()
			if !entry.VisibleTo(m, req.ViewerID) {
				continue
			}
			if !pred(filter.Values{
				"kind":  entry.Kind.String(),
				"scope": entry.Scope.String(),
				"round": int64(entry.Round),
			}) {
				continue
			}
			resp.Events = append(resp.Events, EventView{
				Seq:       entry.Seq,
				Kind:      entry.Kind.String(),
				Scope:     entry.Scope.String(),
				Round:     entry.Round,
				Payload:   json.RawMessage(entry.PayloadJSON),
				Timestamp: entry.Timestamp,
			})
			if len(resp.Events) == pageSize {
				break
			}
		}
		if len(resp.Events) == pageSize {
			// Resume after the last entry actually returned, not after the
			// storage page: the page may hold entries past the cutoff, and
			// a storage token would skip them.
			last := resp.Events[len(resp.Events)-1].Seq
			if page.NextPageToken != "" || page.Entries[len(page.Entries)-1].Seq > last {
				resp.NextPageToken = strconv.FormatUint(last, 10)
			}
			break
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
		sinceSeq = 0
	}
	return resp, nil
}

// MatchSummaryView is one row of the match listing.
type MatchSummaryView struct {
	MatchID   string    `json:"match_id"`
	Phase     string    `json:"phase"`
	Round     int       `json:"round"`
	Winner    string    `json:"winner,omitempty"`
	Living    int       `json:"living"`
	Seats     int       `json:"seats"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListMatchesRequest pages through matches, optionally filtered.
type ListMatchesRequest struct {
	// Filter is an AIP-160 expression over phase, winner, and round,
	// e.g. `phase = "ENDED" AND winner = "VILLAGERS"`.
	Filter    string `json:"filter,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

// ListMatchesResponse is one page of the match listing.
type ListMatchesResponse struct {
	Matches       []MatchSummaryView `json:"matches"`
	NextPageToken string             `json:"next_page_token,omitempty"`
}

var matchFilterFields = filter.Fields{
	"phase":  filter.FieldString,
	"winner": filter.FieldString,
	"round":  filter.FieldInt,
}

const defaultMatchPageSize = 20

// ListMatches returns match summaries. Summaries carry no hidden role
// information, so no viewer gating applies.
func (e *Engine) ListMatches(ctx context.Context, req ListMatchesRequest) (ListMatchesResponse, error) {
	pred, err := filter.Compile(req.Filter, matchFilterFields)
	if err != nil {
		return ListMatchesResponse{}, apperrors.Wrap(apperrors.CodeValidationBadFilter, "invalid filter", err)
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultMatchPageSize
	}

	resp := ListMatchesResponse{}
	token := req.PageToken
	for len(resp.Matches) < pageSize {
		page, err := e.store.ListMatches(ctx, pageSize, token)
		if err != nil {
			return ListMatchesResponse{}, apperrors.Wrap(apperrors.CodeInternal, "list matches", err)
		}
		for _, summary := range page.Matches {
			if !pred(filter.Values{
				"phase":  summary.Phase.String(),
				"winner": summary.Winner.String(),
				"round":  int64(summary.Round),
			}) {
				continue
			}
			resp.Matches = append(resp.Matches, summaryView(summary))
			if len(resp.Matches) == pageSize {
				break
			}
		}
		if len(resp.Matches) == pageSize {
			// Resume after the last match returned; the filter may have
			// trimmed the storage page, leaving rows past the cutoff.
			last := resp.Matches[len(resp.Matches)-1].MatchID
			if page.NextPageToken != "" || page.Matches[len(page.Matches)-1].ID > last {
				resp.NextPageToken = last
			}
			break
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	return resp, nil
}

func summaryView(summary storage.MatchSummary) MatchSummaryView {
	view := MatchSummaryView{
		MatchID:   summary.ID,
		Phase:     summary.Phase.String(),
		Round:     summary.Round,
		Living:    summary.Living,
		Seats:     summary.Seats,
		CreatedAt: summary.CreatedAt,
		UpdatedAt: summary.UpdatedAt,
	}
	if summary.Winner != domain.WinnerNone {
		view.Winner = summary.Winner.String()
	}
	return view
}

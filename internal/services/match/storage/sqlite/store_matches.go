package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/moonfall.town/internal/services/match/domain"
	"github.com/louisbranch/moonfall.town/internal/services/match/storage"
)

// CreateMatch inserts a new match aggregate, removes its players from the
// queue, and appends the opening transcript entries in one transaction.
func (s *Store) CreateMatch(ctx context.Context, m *domain.Match, entries []storage.EntryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("match id is required")
	}
	if len(m.Players) == 0 {
		return fmt.Errorf("match has no players")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO matches (
		   id, phase, round, submission_order, phase_deadline,
		   winner, abandoned, version, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.Phase.String(),
		m.Round,
		m.SubmissionOrder,
		toMillis(m.PhaseDeadline),
		m.Winner.String(),
		boolToInt(m.Abandoned),
		int64(1),
		toMillis(m.CreatedAt),
		toMillis(m.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert match: %w", err)
	}

	for seat, playerID := range m.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (match_id, player_id, seat, role, alive, ready)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, playerID, seat, m.Roles[playerID].String(),
			boolToInt(m.Alive[playerID]), boolToInt(m.Ready[playerID]),
		); err != nil {
			return fmt.Errorf("insert match player %s: %w", playerID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM queue_entries WHERE player_id = ?`, playerID,
		); err != nil {
			return fmt.Errorf("dequeue player %s: %w", playerID, err)
		}
	}

	if err := appendEntriesTx(ctx, tx, m.ID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	m.Version = 1
	return nil
}

// GetMatch loads the full match aggregate.
func (s *Store) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return nil, fmt.Errorf("match id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, phase, round, submission_order, phase_deadline,
		        winner, abandoned, version, created_at, updated_at
		   FROM matches WHERE id = ?`,
		matchID,
	)

	m := &domain.Match{
		Roles:        make(map[string]domain.Role),
		Alive:        make(map[string]bool),
		Ready:        make(map[string]bool),
		Votes:        make(map[string]domain.Vote),
		NightActions: make(map[string]domain.NightAction),
	}
	var phase, winner string
	var abandoned int
	var deadline, createdAt, updatedAt int64
	err := row.Scan(&m.ID, &phase, &m.Round, &m.SubmissionOrder, &deadline,
		&winner, &abandoned, &m.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	if m.Phase, err = domain.ParsePhase(phase); err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if m.Winner, err = domain.ParseWinner(winner); err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	m.Abandoned = abandoned != 0
	m.PhaseDeadline = fromMillis(deadline)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)

	if err := s.loadPlayers(ctx, m); err != nil {
		return nil, err
	}
	if err := s.loadVotes(ctx, m); err != nil {
		return nil, err
	}
	if err := s.loadNightActions(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) loadPlayers(ctx context.Context, m *domain.Match) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, role, alive, ready
		   FROM match_players WHERE match_id = ? ORDER BY seat ASC`,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("load players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playerID, role string
		var alive, ready int
		if err := rows.Scan(&playerID, &role, &alive, &ready); err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		parsed, err := domain.ParseRole(role)
		if err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		m.Players = append(m.Players, playerID)
		m.Roles[playerID] = parsed
		m.Alive[playerID] = alive != 0
		m.Ready[playerID] = ready != 0
	}
	return rows.Err()
}

func (s *Store) loadVotes(ctx context.Context, m *domain.Match) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT voter, target, round, submission_order, submitted_at
		   FROM match_votes WHERE match_id = ?`,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("load votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vote domain.Vote
		var submittedAt int64
		if err := rows.Scan(&vote.Voter, &vote.Target, &vote.Round, &vote.Order, &submittedAt); err != nil {
			return fmt.Errorf("load votes: %w", err)
		}
		vote.SubmittedAt = fromMillis(submittedAt)
		m.Votes[vote.Voter] = vote
	}
	return rows.Err()
}

func (s *Store) loadNightActions(ctx context.Context, m *domain.Match) error {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT actor, action, target, round, submission_order, submitted_at
		   FROM match_night_actions WHERE match_id = ?`,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("load night actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action domain.NightAction
		var actionType string
		var submittedAt int64
		if err := rows.Scan(&action.Actor, &actionType, &action.Target, &action.Round, &action.Order, &submittedAt); err != nil {
			return fmt.Errorf("load night actions: %w", err)
		}
		parsed, err := domain.ParseActionType(actionType)
		if err != nil {
			return fmt.Errorf("load night actions: %w", err)
		}
		action.Type = parsed
		action.SubmittedAt = fromMillis(submittedAt)
		m.NightActions[action.Actor] = action
	}
	return rows.Err()
}

// SaveMatch writes the aggregate back and appends transcript entries in one
// transaction. Current-round submissions are rewritten wholesale; the
// aggregate is the source of truth for them.
func (s *Store) SaveMatch(ctx context.Context, m *domain.Match, entries []storage.EntryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if m == nil || strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("match id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE matches SET
		   phase = ?, round = ?, submission_order = ?, phase_deadline = ?,
		   winner = ?, abandoned = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		m.Phase.String(),
		m.Round,
		m.SubmissionOrder,
		toMillis(m.PhaseDeadline),
		m.Winner.String(),
		boolToInt(m.Abandoned),
		toMillis(m.UpdatedAt),
		m.ID,
		m.Version,
	)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		// Distinguish a missing row from one another writer moved past us.
		var current int64
		switch err := tx.QueryRowContext(ctx,
			`SELECT version FROM matches WHERE id = ?`, m.ID,
		).Scan(&current); {
		case errors.Is(err, sql.ErrNoRows):
			return storage.ErrNotFound
		case err != nil:
			return fmt.Errorf("check match version: %w", err)
		default:
			return storage.ErrVersionConflict
		}
	}

	for _, playerID := range m.Players {
		if _, err := tx.ExecContext(ctx,
			`UPDATE match_players SET alive = ?, ready = ?
			 WHERE match_id = ? AND player_id = ?`,
			boolToInt(m.Alive[playerID]), boolToInt(m.Ready[playerID]),
			m.ID, playerID,
		); err != nil {
			return fmt.Errorf("update match player %s: %w", playerID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_votes WHERE match_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	for _, vote := range m.Votes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_votes (match_id, voter, target, round, submission_order, submitted_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, vote.Voter, vote.Target, vote.Round, vote.Order, toMillis(vote.SubmittedAt),
		); err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_night_actions WHERE match_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear night actions: %w", err)
	}
	for _, action := range m.NightActions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_night_actions (match_id, actor, action, target, round, submission_order, submitted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, action.Actor, action.Type.String(), action.Target, action.Round,
			action.Order, toMillis(action.SubmittedAt),
		); err != nil {
			return fmt.Errorf("insert night action: %w", err)
		}
	}

	if err := appendEntriesTx(ctx, tx, m.ID, entries); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	m.Version++
	return nil
}

// ListMatches returns one page of match summaries, newest first.
func (s *Store) ListMatches(ctx context.Context, pageSize int, pageToken string) (storage.MatchPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchPage{}, err
	}
	if err := s.ready(); err != nil {
		return storage.MatchPage{}, err
	}
	if pageSize <= 0 {
		return storage.MatchPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	query := `SELECT m.id, m.phase, m.round, m.winner, m.created_at, m.updated_at,
	                 (SELECT COUNT(*) FROM match_players p WHERE p.match_id = m.id AND p.alive = 1),
	                 (SELECT COUNT(*) FROM match_players p WHERE p.match_id = m.id)
	            FROM matches m`
	args := []any{}
	if pageToken != "" {
		query += ` WHERE m.id > ?`
		args = append(args, pageToken)
	}
	query += ` ORDER BY m.id ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	page := storage.MatchPage{Matches: make([]storage.MatchSummary, 0, pageSize)}
	for rows.Next() {
		var summary storage.MatchSummary
		var phase, winner string
		var createdAt, updatedAt int64
		if err := rows.Scan(&summary.ID, &phase, &summary.Round, &winner,
			&createdAt, &updatedAt, &summary.Living, &summary.Seats); err != nil {
			return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
		}
		if summary.Phase, err = domain.ParsePhase(phase); err != nil {
			return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
		}
		if summary.Winner, err = domain.ParseWinner(winner); err != nil {
			return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
		}
		summary.CreatedAt = fromMillis(createdAt)
		summary.UpdatedAt = fromMillis(updatedAt)
		page.Matches = append(page.Matches, summary)
	}
	if err := rows.Err(); err != nil {
		return storage.MatchPage{}, fmt.Errorf("list matches: %w", err)
	}
	if len(page.Matches) > pageSize {
		page.NextPageToken = page.Matches[pageSize-1].ID
		page.Matches = page.Matches[:pageSize]
	}
	return page, nil
}

// ListActiveMatchIDs returns IDs of matches that have not ended.
func (s *Store) ListActiveMatchIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id FROM matches WHERE phase != ? ORDER BY id ASC`,
		domain.PhaseEnded.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list active matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list active matches: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveMatchForPlayer returns the running match the player is seated in.
func (s *Store) ActiveMatchForPlayer(ctx context.Context, playerID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return "", fmt.Errorf("player id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT m.id FROM matches m
		   JOIN match_players p ON p.match_id = m.id
		  WHERE p.player_id = ? AND m.phase != ?
		  LIMIT 1`,
		playerID, domain.PhaseEnded.String(),
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("active match for player: %w", err)
	}
	return id, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

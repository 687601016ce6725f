package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/lib/pq"
)

type postgresMatchRepository struct {
	exec SQLExecutor
}

const matchColumns = `id, event_id, game_id, kind, side1_id, side2_id, score1, score2,
	state, reported_by, compute1, compute2, created_at, finished_at`

func scanMatch(row rowScanner) (*models.Match, error) {
	var m models.Match
	var finishedAt sql.NullTime
	err := row.Scan(&m.ID, &m.EventID, &m.GameID, &m.Kind, &m.Side1ID, &m.Side2ID,
		&m.Score1, &m.Score2, &m.State, &m.ReportedBy, &m.Compute1, &m.Compute2,
		&m.CreatedAt, &finishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		m.FinishedAt = &t
	}
	return &m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	query := `
		INSERT INTO matches (event_id, game_id, kind, side1_id, side2_id, score1, score2, state, reported_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	err := r.exec.QueryRowContext(ctx, query,
		match.EventID, match.GameID, match.Kind, match.Side1ID, match.Side2ID,
		match.Score1, match.Score2, match.State, match.ReportedBy,
	).Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		if c, ok := constraintViolation(err, pqForeignKeyViolation); ok && c == "matches_game_id_fkey" {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return r.replaceRosters(ctx, match)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	return r.getOne(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return r.getOne(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Match, error) {
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadRosters(ctx, []*models.Match{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches SET score1 = $1, score2 = $2, state = $3, reported_by = $4
		WHERE id = $5 AND state <> 'finished'`
	result, err := r.exec.ExecContext(ctx, query,
		match.Score1, match.Score2, match.State, match.ReportedBy, match.ID)
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}
	if err := checkAffectedRows(result, errNoRows); err != nil {
		return r.missingOrFinished(ctx, match.ID, err)
	}
	return r.replaceRosters(ctx, match)
}

// Finish is the compare-and-set on the finished state: only one caller can
// move a match from unfinished to finished.
func (r *postgresMatchRepository) Finish(ctx context.Context, match *models.Match) error {
	query := `
		UPDATE matches SET score1 = $1, score2 = $2, state = 'finished', reported_by = $3,
			compute1 = $4, compute2 = $5, finished_at = $6
		WHERE id = $7 AND state <> 'finished'`
	result, err := r.exec.ExecContext(ctx, query,
		match.Score1, match.Score2, match.ReportedBy, match.Compute1, match.Compute2,
		match.FinishedAt, match.ID)
	if err != nil {
		return fmt.Errorf("failed to finish match %d: %w", match.ID, err)
	}
	if err := checkAffectedRows(result, errNoRows); err != nil {
		return r.missingOrFinished(ctx, match.ID, err)
	}
	return r.replaceRosters(ctx, match)
}

var errNoRows = errors.New("no rows affected")

func (r *postgresMatchRepository) missingOrFinished(ctx context.Context, id int, err error) error {
	if !errors.Is(err, errNoRows) {
		return err
	}
	var exists bool
	if qErr := r.exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM matches WHERE id = $1)`, id).Scan(&exists); qErr != nil {
		return fmt.Errorf("failed to check match %d: %w", id, qErr)
	}
	if !exists {
		return ErrMatchNotFound
	}
	return ErrMatchAlreadyFinished
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) FindUnfinishedBetween(ctx context.Context, eventID, gameID int, a, b models.Participant) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE event_id = $1 AND game_id = $2 AND kind = $3 AND state <> 'finished'
		  AND ((side1_id = $4 AND side2_id = $5) OR (side1_id = $5 AND side2_id = $4))
		ORDER BY id LIMIT 1`
	return r.getOne(ctx, query, eventID, gameID, a.Kind, a.ID, b.ID)
}

func (r *postgresMatchRepository) List(ctx context.Context, filter MatchFilter) ([]*models.Match, error) {
	var qb strings.Builder
	args := []interface{}{filter.EventID}
	qb.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE event_id = $1`)

	if filter.GameID != nil {
		args = append(args, *filter.GameID)
		fmt.Fprintf(&qb, " AND game_id = $%d", len(args))
	}
	if filter.Participant != nil {
		args = append(args, filter.Participant.Kind, filter.Participant.ID)
		fmt.Fprintf(&qb, " AND kind = $%d AND (side1_id = $%d OR side2_id = $%d)", len(args)-1, len(args), len(args))
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		args = append(args, pq.Array(states))
		fmt.Fprintf(&qb, " AND state = ANY($%d)", len(args))
	}
	qb.WriteString(" ORDER BY id")

	rows, err := r.exec.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadRosters(ctx, matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) loadRosters(ctx context.Context, matches []*models.Match) error {
	byID := make(map[int]*models.Match)
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if m.Kind != models.KindGroup {
			continue
		}
		byID[m.ID] = m
		ids = append(ids, int64(m.ID))
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.exec.QueryContext(ctx,
		`SELECT match_id, side, user_id FROM match_group_users WHERE match_id = ANY($1) ORDER BY match_id, side, user_id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load match rosters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var matchID, userID int
		var side models.MatchSide
		if err := rows.Scan(&matchID, &side, &userID); err != nil {
			return err
		}
		m := byID[matchID]
		if side == models.Side1 {
			m.Roster1 = append(m.Roster1, userID)
		} else {
			m.Roster2 = append(m.Roster2, userID)
		}
	}
	return rows.Err()
}

func (r *postgresMatchRepository) replaceRosters(ctx context.Context, match *models.Match) error {
	if match.Kind != models.KindGroup {
		return nil
	}
	if _, err := r.exec.ExecContext(ctx, `DELETE FROM match_group_users WHERE match_id = $1`, match.ID); err != nil {
		return fmt.Errorf("failed to clear rosters of match %d: %w", match.ID, err)
	}
	for _, side := range []models.MatchSide{models.Side1, models.Side2} {
		for _, userID := range match.Roster(side) {
			_, err := r.exec.ExecContext(ctx,
				`INSERT INTO match_group_users (match_id, side, user_id) VALUES ($1, $2, $3)`,
				match.ID, side, userID)
			if err != nil {
				return fmt.Errorf("failed to store roster of match %d: %w", match.ID, err)
			}
		}
	}
	return nil
}

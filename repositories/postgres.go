package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lan-tournament/models"
)

// Advisory lock classes, first argument of pg_advisory_xact_lock(int, int).
const (
	lockClassGame  = 1
	lockClassEvent = 2
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
		} else if cErr := sqlTx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, &postgresTx{exec: sqlTx})
}

type postgresTx struct {
	exec SQLExecutor
}

func (t *postgresTx) Games() GameRepository                 { return &postgresGameRepository{exec: t.exec} }
func (t *postgresTx) Registrations() RegistrationRepository { return &postgresRegistrationRepository{exec: t.exec} }
func (t *postgresTx) Matches() MatchRepository              { return &postgresMatchRepository{exec: t.exec} }
func (t *postgresTx) Pools() PoolRepository                 { return &postgresPoolRepository{exec: t.exec} }
func (t *postgresTx) Rankings() RankingRepository           { return &postgresRankingRepository{exec: t.exec} }
func (t *postgresTx) Snapshots() SnapshotRepository         { return &postgresSnapshotRepository{exec: t.exec} }
func (t *postgresTx) Awards() AwardRepository               { return &postgresAwardRepository{exec: t.exec} }
func (t *postgresTx) TimeTrials() TimeTrialRepository       { return &postgresTimeTrialRepository{exec: t.exec} }

func (t *postgresTx) LockGame(ctx context.Context, gameID int) error {
	if _, err := t.exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, lockClassGame, gameID); err != nil {
		return fmt.Errorf("failed to lock game %d: %w", gameID, err)
	}
	return nil
}

func (t *postgresTx) LockEvent(ctx context.Context, eventID int) error {
	if _, err := t.exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, lockClassEvent, eventID); err != nil {
		return fmt.Errorf("failed to lock event %d: %w", eventID, err)
	}
	return nil
}

type postgresGameRepository struct {
	exec SQLExecutor
}

const gameColumns = `id, name, pool_enabled, group_mode, mass_mode, group_size, points_win, points_loss, created_at`

func scanGame(row rowScanner) (*models.Game, error) {
	var g models.Game
	err := row.Scan(&g.ID, &g.Name, &g.PoolEnabled, &g.GroupMode, &g.MassMode,
		&g.GroupSize, &g.PointsWin, &g.PointsLoss, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *postgresGameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (name, pool_enabled, group_mode, mass_mode, group_size, points_win, points_loss)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := r.exec.QueryRowContext(ctx, query,
		game.Name, game.PoolEnabled, game.GroupMode, game.MassMode,
		game.GroupSize, game.PointsWin, game.PointsLoss,
	).Scan(&game.ID, &game.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (r *postgresGameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	row := r.exec.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (r *postgresGameRepository) List(ctx context.Context) ([]*models.Game, error) {
	rows, err := r.exec.QueryContext(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	games := make([]*models.Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

type postgresRegistrationRepository struct {
	exec SQLExecutor
}

const registrationColumns = `id, event_id, game_id, participant_kind, participant_id, sort_key, created_at`

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.GameID, &reg.Participant.Kind,
		&reg.Participant.ID, &reg.SortKey, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return &reg, nil
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	query := `
		INSERT INTO registrations (event_id, game_id, participant_kind, participant_id, sort_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.exec.QueryRowContext(ctx, query,
		reg.EventID, reg.GameID, reg.Participant.Kind, reg.Participant.ID, reg.SortKey,
	).Scan(&reg.ID, &reg.CreatedAt)
	if err != nil {
		if c, ok := constraintViolation(err, pqUniqueViolation); ok && c == "registrations_participant_key" {
			return ErrRegistrationConflict
		}
		if c, ok := constraintViolation(err, pqForeignKeyViolation); ok && c == "registrations_game_id_fkey" {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (r *postgresRegistrationRepository) Find(ctx context.Context, eventID, gameID int, p models.Participant) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 AND game_id = $2 AND participant_kind = $3 AND participant_id = $4`
	return scanRegistration(r.exec.QueryRowContext(ctx, query, eventID, gameID, p.Kind, p.ID))
}

func (r *postgresRegistrationRepository) Delete(ctx context.Context, id int) error {
	result, err := r.exec.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) ListByGame(ctx context.Context, eventID, gameID int) ([]*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations
		WHERE event_id = $1 AND game_id = $2 ORDER BY id`
	rows, err := r.exec.QueryContext(ctx, query, eventID, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

type postgresRankingRepository struct {
	exec SQLExecutor
}

func (r *postgresRankingRepository) Get(ctx context.Context, eventID, userID int) (*models.Ranking, error) {
	var rk models.Ranking
	query := `SELECT event_id, user_id, points, updated_at FROM rankings WHERE event_id = $1 AND user_id = $2`
	err := r.exec.QueryRowContext(ctx, query, eventID, userID).Scan(&rk.EventID, &rk.UserID, &rk.Points, &rk.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRankingNotFound
		}
		return nil, err
	}
	return &rk, nil
}

func (r *postgresRankingRepository) AddPoints(ctx context.Context, eventID, userID, delta int) (int, error) {
	query := `
		INSERT INTO rankings (event_id, user_id, points, updated_at)
		VALUES ($1, $2, GREATEST($3::int, 0), NOW())
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET points = GREATEST(rankings.points + $3::int, 0), updated_at = NOW()
		RETURNING points`
	var total int
	if err := r.exec.QueryRowContext(ctx, query, eventID, userID, delta).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add %d points to user %d: %w", delta, userID, err)
	}
	return total, nil
}

func (r *postgresRankingRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Ranking, error) {
	query := `SELECT event_id, user_id, points, updated_at FROM rankings
		WHERE event_id = $1 ORDER BY points DESC, user_id ASC`
	rows, err := r.exec.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rankings: %w", err)
	}
	defer rows.Close()

	rankings := make([]*models.Ranking, 0)
	for rows.Next() {
		var rk models.Ranking
		if err := rows.Scan(&rk.EventID, &rk.UserID, &rk.Points, &rk.UpdatedAt); err != nil {
			return nil, err
		}
		rankings = append(rankings, &rk)
	}
	return rankings, rows.Err()
}

type postgresSnapshotRepository struct {
	exec SQLExecutor
}

func (r *postgresSnapshotRepository) Create(ctx context.Context, snapshot *models.Snapshot) error {
	err := r.exec.QueryRowContext(ctx,
		`INSERT INTO ranking_snapshots (event_id, taken_at) VALUES ($1, $2) RETURNING id`,
		snapshot.EventID, snapshot.TakenAt,
	).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	for _, e := range snapshot.Entries {
		_, err := r.exec.ExecContext(ctx,
			`INSERT INTO ranking_snapshot_entries (snapshot_id, user_id, points, rank) VALUES ($1, $2, $3, $4)`,
			snapshot.ID, e.UserID, e.Points, e.Rank)
		if err != nil {
			return fmt.Errorf("failed to store snapshot entry for user %d: %w", e.UserID, err)
		}
	}
	return nil
}

func (r *postgresSnapshotRepository) Latest(ctx context.Context, eventID int) (*models.Snapshot, error) {
	return r.load(ctx,
		`SELECT id, event_id, taken_at FROM ranking_snapshots WHERE event_id = $1 ORDER BY taken_at DESC, id DESC LIMIT 1`,
		eventID)
}

func (r *postgresSnapshotRepository) GetByID(ctx context.Context, id int) (*models.Snapshot, error) {
	return r.load(ctx, `SELECT id, event_id, taken_at FROM ranking_snapshots WHERE id = $1`, id)
}

func (r *postgresSnapshotRepository) load(ctx context.Context, query string, arg int) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := r.exec.QueryRowContext(ctx, query, arg).Scan(&snap.ID, &snap.EventID, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	rows, err := r.exec.QueryContext(ctx,
		`SELECT user_id, points, rank FROM ranking_snapshot_entries WHERE snapshot_id = $1 ORDER BY rank, user_id`,
		snap.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %d: %w", snap.ID, err)
	}
	defer rows.Close()

	snap.Entries = make([]models.SnapshotEntry, 0)
	for rows.Next() {
		var e models.SnapshotEntry
		if err := rows.Scan(&e.UserID, &e.Points, &e.Rank); err != nil {
			return nil, err
		}
		snap.Entries = append(snap.Entries, e)
	}
	return &snap, rows.Err()
}

type postgresAwardRepository struct {
	exec SQLExecutor
}

func (r *postgresAwardRepository) Create(ctx context.Context, award *models.Award) error {
	query := `
		INSERT INTO awards (event_id, user_id, description, points)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.exec.QueryRowContext(ctx, query, award.EventID, award.UserID, award.Description, award.Points).
		Scan(&award.ID, &award.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create award: %w", err)
	}
	return nil
}

func (r *postgresAwardRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.Award, error) {
	rows, err := r.exec.QueryContext(ctx,
		`SELECT id, event_id, user_id, description, points, created_at FROM awards WHERE event_id = $1 ORDER BY id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards: %w", err)
	}
	defer rows.Close()

	awards := make([]*models.Award, 0)
	for rows.Next() {
		var a models.Award
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.Description, &a.Points, &a.CreatedAt); err != nil {
			return nil, err
		}
		awards = append(awards, &a)
	}
	return awards, rows.Err()
}

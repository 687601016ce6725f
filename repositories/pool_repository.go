package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lan-tournament/models"
)

type postgresPoolRepository struct {
	exec SQLExecutor
}

const poolColumns = `id, event_id, game_id, name, played, host_kind, host_id, capacity, created_at`

func scanPool(row rowScanner) (*models.Pool, error) {
	var p models.Pool
	var hostKind sql.NullString
	var hostID sql.NullInt64
	err := row.Scan(&p.ID, &p.EventID, &p.GameID, &p.Name, &p.Played, &hostKind, &hostID, &p.Capacity, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPoolNotFound
		}
		return nil, err
	}
	if hostKind.Valid && hostID.Valid {
		p.Host = &models.Participant{Kind: models.ParticipantKind(hostKind.String), ID: int(hostID.Int64)}
	}
	return &p, nil
}

func (r *postgresPoolRepository) Create(ctx context.Context, pool *models.Pool) error {
	var hostKind, hostID interface{}
	if pool.Host != nil {
		hostKind, hostID = pool.Host.Kind, pool.Host.ID
	}
	query := `
		INSERT INTO pools (event_id, game_id, name, played, host_kind, host_id, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := r.exec.QueryRowContext(ctx, query,
		pool.EventID, pool.GameID, pool.Name, pool.Played, hostKind, hostID, pool.Capacity,
	).Scan(&pool.ID, &pool.CreatedAt)
	if err != nil {
		if c, ok := constraintViolation(err, pqForeignKeyViolation); ok && c == "pools_game_id_fkey" {
			return ErrGameNotFound
		}
		return fmt.Errorf("failed to create pool: %w", err)
	}

	for i, m := range pool.Members {
		_, err := r.exec.ExecContext(ctx, `
			INSERT INTO pool_members (pool_id, participant_kind, participant_id, position, rank)
			VALUES ($1, $2, $3, $4, $5)`,
			pool.ID, m.Participant.Kind, m.Participant.ID, i, m.Rank)
		if err != nil {
			return fmt.Errorf("failed to add %s to pool %d: %w", m.Participant, pool.ID, err)
		}
	}
	return nil
}

func (r *postgresPoolRepository) GetByID(ctx context.Context, id int) (*models.Pool, error) {
	p, err := scanPool(r.exec.QueryRowContext(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresPoolRepository) ListByGame(ctx context.Context, eventID, gameID int, openOnly bool) ([]*models.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE event_id = $1 AND game_id = $2`
	if openOnly {
		query += ` AND played = FALSE`
	}
	query += ` ORDER BY id`

	rows, err := r.exec.QueryContext(ctx, query, eventID, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}
	pools := make([]*models.Pool, 0)
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pools = append(pools, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pools {
		if err := r.loadDetails(ctx, p); err != nil {
			return nil, err
		}
	}
	return pools, nil
}

func (r *postgresPoolRepository) loadDetails(ctx context.Context, p *models.Pool) error {
	rows, err := r.exec.QueryContext(ctx, `
		SELECT participant_kind, participant_id, rank FROM pool_members
		WHERE pool_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load members of pool %d: %w", p.ID, err)
	}
	defer rows.Close()

	p.Members = make([]models.PoolMember, 0)
	for rows.Next() {
		var m models.PoolMember
		if err := rows.Scan(&m.Participant.Kind, &m.Participant.ID, &m.Rank); err != nil {
			return err
		}
		p.Members = append(p.Members, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if p.ParentIDs, err = r.linkedIDs(ctx, `SELECT parent_id FROM pool_links WHERE child_id = $1 ORDER BY parent_id`, p.ID); err != nil {
		return err
	}
	if p.ChildIDs, err = r.linkedIDs(ctx, `SELECT child_id FROM pool_links WHERE parent_id = $1 ORDER BY child_id`, p.ID); err != nil {
		return err
	}
	return nil
}

func (r *postgresPoolRepository) linkedIDs(ctx context.Context, query string, poolID int) ([]int, error) {
	rows, err := r.exec.QueryContext(ctx, query, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links of pool %d: %w", poolID, err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresPoolRepository) UpdateMemberRank(ctx context.Context, poolID int, p models.Participant, rank int) error {
	result, err := r.exec.ExecContext(ctx, `
		UPDATE pool_members SET rank = $1
		WHERE pool_id = $2 AND participant_kind = $3 AND participant_id = $4`,
		rank, poolID, p.Kind, p.ID)
	if err != nil {
		return fmt.Errorf("failed to set rank in pool %d: %w", poolID, err)
	}
	return checkAffectedRows(result, ErrPoolMemberNotFound)
}

func (r *postgresPoolRepository) MarkPlayed(ctx context.Context, id int) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE pools SET played = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark pool %d played: %w", id, err)
	}
	return checkAffectedRows(result, ErrPoolNotFound)
}

// Link stores one edge of the round DAG; the row serves both directions.
func (r *postgresPoolRepository) Link(ctx context.Context, parentID, childID int) error {
	_, err := r.exec.ExecContext(ctx, `
		INSERT INTO pool_links (parent_id, child_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, parentID, childID)
	if err != nil {
		if _, ok := constraintViolation(err, pqForeignKeyViolation); ok {
			return ErrPoolNotFound
		}
		return fmt.Errorf("failed to link pool %d to %d: %w", parentID, childID, err)
	}
	return nil
}

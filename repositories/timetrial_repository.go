package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lan-tournament/models"
)

type postgresTimeTrialRepository struct {
	exec SQLExecutor
}

const mapColumns = `id, event_id, name, processed, created_at`

func scanMap(row rowScanner) (*models.TimeTrialMap, error) {
	var m models.TimeTrialMap
	if err := row.Scan(&m.ID, &m.EventID, &m.Name, &m.Processed, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMapNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *postgresTimeTrialRepository) CreateMap(ctx context.Context, m *models.TimeTrialMap) error {
	err := r.exec.QueryRowContext(ctx,
		`INSERT INTO timetrial_maps (event_id, name) VALUES ($1, $2) RETURNING id, created_at`,
		m.EventID, m.Name,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if _, ok := constraintViolation(err, pqUniqueViolation); ok {
			return ErrMapConflict
		}
		return fmt.Errorf("failed to create time trial map: %w", err)
	}
	return nil
}

func (r *postgresTimeTrialRepository) GetMap(ctx context.Context, id int) (*models.TimeTrialMap, error) {
	return scanMap(r.exec.QueryRowContext(ctx, `SELECT `+mapColumns+` FROM timetrial_maps WHERE id = $1`, id))
}

func (r *postgresTimeTrialRepository) GetMapByName(ctx context.Context, eventID int, name string) (*models.TimeTrialMap, error) {
	return scanMap(r.exec.QueryRowContext(ctx,
		`SELECT `+mapColumns+` FROM timetrial_maps WHERE event_id = $1 AND lower(name) = lower($2)`,
		eventID, name))
}

func (r *postgresTimeTrialRepository) ListMaps(ctx context.Context, eventID int) ([]*models.TimeTrialMap, error) {
	rows, err := r.exec.QueryContext(ctx, `SELECT `+mapColumns+` FROM timetrial_maps WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time trial maps: %w", err)
	}
	defer rows.Close()

	maps := make([]*models.TimeTrialMap, 0)
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

func (r *postgresTimeTrialRepository) MarkMapProcessed(ctx context.Context, id int) error {
	result, err := r.exec.ExecContext(ctx, `UPDATE timetrial_maps SET processed = TRUE WHERE id = $1 AND processed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to mark map %d processed: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrMapAlreadyProcessed); err != nil {
		if _, getErr := r.GetMap(ctx, id); getErr != nil {
			return getErr
		}
		return err
	}
	return nil
}

func (r *postgresTimeTrialRepository) GetRecord(ctx context.Context, mapID, userID int) (*models.TimeTrialRecord, error) {
	var rec models.TimeTrialRecord
	err := r.exec.QueryRowContext(ctx,
		`SELECT id, map_id, user_id, recorded_at, millis FROM timetrial_records WHERE map_id = $1 AND user_id = $2`,
		mapID, userID,
	).Scan(&rec.ID, &rec.MapID, &rec.UserID, &rec.RecordedAt, &rec.Millis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *postgresTimeTrialRepository) SaveRecord(ctx context.Context, rec *models.TimeTrialRecord) error {
	query := `
		INSERT INTO timetrial_records (map_id, user_id, recorded_at, millis)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (map_id, user_id) DO UPDATE SET recorded_at = EXCLUDED.recorded_at, millis = EXCLUDED.millis
		RETURNING id`
	if err := r.exec.QueryRowContext(ctx, query, rec.MapID, rec.UserID, rec.RecordedAt, rec.Millis).Scan(&rec.ID); err != nil {
		return fmt.Errorf("failed to save record of user %d: %w", rec.UserID, err)
	}
	return nil
}

func (r *postgresTimeTrialRepository) ListRecords(ctx context.Context, mapID int) ([]*models.TimeTrialRecord, error) {
	rows, err := r.exec.QueryContext(ctx, `
		SELECT id, map_id, user_id, recorded_at, millis FROM timetrial_records
		WHERE map_id = $1 ORDER BY millis ASC, user_id ASC`, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records of map %d: %w", mapID, err)
	}
	defer rows.Close()

	records := make([]*models.TimeTrialRecord, 0)
	for rows.Next() {
		var rec models.TimeTrialRecord
		if err := rows.Scan(&rec.ID, &rec.MapID, &rec.UserID, &rec.RecordedAt, &rec.Millis); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

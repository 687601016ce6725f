package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/lan-tournament/models"
)

// postgresDirectory reads users and groups from the identity platform tables.
type postgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) Directory {
	return &postgresDirectory{db: db}
}

func (d *postgresDirectory) GetUser(ctx context.Context, id int) (*models.User, error) {
	return d.findUser(ctx, `SELECT id, name, role FROM users WHERE id = $1`, id)
}

func (d *postgresDirectory) FindUserByName(ctx context.Context, name string) (*models.User, error) {
	return d.findUser(ctx, `SELECT id, name, role FROM users WHERE lower(name) = lower($1)`, name)
}

func (d *postgresDirectory) findUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	if err := d.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

func (d *postgresDirectory) GetGroup(ctx context.Context, id int) (*models.Group, error) {
	var g models.Group
	err := d.db.QueryRowContext(ctx, `SELECT id, name FROM user_groups WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group %d: %w", id, err)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT user_id FROM user_group_members WHERE group_id = $1 ORDER BY user_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load members of group %d: %w", id, err)
	}
	defer rows.Close()

	g.MemberIDs = make([]int, 0)
	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		g.MemberIDs = append(g.MemberIDs, userID)
	}
	return &g, rows.Err()
}

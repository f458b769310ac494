package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/repository"
)

var _ repository.RoleRepository = (*DB)(nil)

// GetRole reports the role stored for id. found is false when id has no row.
func (db *DB) GetRole(ctx context.Context, id model.Identity) (model.UserRole, bool, error) {
	var s string
	err := db.conn.QueryRowContext(ctx, `SELECT role FROM roles WHERE identity = ?`, id.String()).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: getting role of %s: %w", id, err)
	}

	role, err := model.ParseRole(s)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: role of %s: %w", id, err)
	}
	return role, true, nil
}

// SetRole stores role for id, replacing any earlier assignment.
func (db *DB) SetRole(ctx context.Context, id model.Identity, role model.UserRole) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO roles (identity, role) VALUES (?, ?)
		ON CONFLICT(identity) DO UPDATE SET role = excluded.role`,
		id.String(), role.String(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting role of %s: %w", id, err)
	}
	return nil
}

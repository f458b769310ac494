package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// GetProfile returns id's profile, or nil, nil when there is none.
func (db *DB) GetProfile(ctx context.Context, id model.Identity) (*model.UserProfile, error) {
	p, err := getProfile(ctx, db.conn, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile of %s: %w", id, err)
	}
	return p, nil
}

// SaveProfile replaces id's profile with p, creating it if needed.
func (db *DB) SaveProfile(ctx context.Context, id model.Identity, p model.UserProfile) error {
	// UPSERT: INSERT ... ON CONFLICT DO UPDATE replaces the row in one statement.
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO profiles (identity, name, gmail, credits, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			name       = excluded.name,
			gmail      = excluded.gmail,
			credits    = excluded.credits,
			created_at = excluded.created_at`,
		id.String(), p.Name, nullString(p.Gmail), int64(p.RemainingLearningCredits), int64(p.ProfileCreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving profile of %s: %w", id, err)
	}
	return nil
}

// Transfer moves amount credits from one profile to another.
//
// TRANSACTIONS:
// db.BeginTx hands back a *sql.Tx pinned to one connection. Every statement
// inside must go through tx, not db.conn: the pool may only have one
// connection (":memory:"), and db.conn would block waiting for it.
// The deferred Rollback is a no-op once Commit has succeeded.
func (db *DB) Transfer(ctx context.Context, from, to model.Identity, amount uint64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transfer: %w", err)
	}
	defer tx.Rollback()

	payer, err := getProfile(ctx, tx, from)
	if err != nil {
		return fmt.Errorf("sqlite: reading payer %s: %w", from, err)
	}
	if payer == nil {
		return apperror.InsufficientCredits(amount, 0)
	}
	if payer.RemainingLearningCredits < amount {
		return apperror.InsufficientCredits(amount, payer.RemainingLearningCredits)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET credits = credits - ? WHERE identity = ?`, int64(amount), from.String()); err != nil {
		return fmt.Errorf("sqlite: debiting %s: %w", from, err)
	}

	// A payee without a profile simply receives nothing.
	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET credits = credits + ? WHERE identity = ?`, int64(amount), to.String()); err != nil {
		return fmt.Errorf("sqlite: crediting %s: %w", to, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transfer: %w", err)
	}
	return nil
}

// querier is the part of *sql.DB and *sql.Tx that getProfile needs.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProfile(ctx context.Context, q querier, id model.Identity) (*model.UserProfile, error) {
	var (
		p              model.UserProfile
		gmail          sql.NullString
		credits, ctime int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT name, gmail, credits, created_at FROM profiles WHERE identity = ?`, id.String(),
	).Scan(&p.Name, &gmail, &credits, &ctime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if gmail.Valid {
		p.Gmail = &gmail.String
	}
	p.RemainingLearningCredits = uint64(credits)
	p.ProfileCreatedAt = model.Time(ctime)
	return &p, nil
}

// nullString maps an optional Go string to SQL NULL.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

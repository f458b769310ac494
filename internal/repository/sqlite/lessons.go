package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/repository"
)

// Compile-time check: if DB stops satisfying the interface, the build fails
// here instead of at the call site in devbackend.
var _ repository.LessonRepository = (*DB)(nil)

const lessonColumns = `id, title, description, credit_cost, creator, video, created_at`

// CreateLesson inserts l and sets l.ID to the row id SQLite assigned.
func (db *DB) CreateLesson(ctx context.Context, l *model.Lesson) error {
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO lessons (title, description, credit_cost, creator, video, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.Title, l.Description, int64(l.CreditCost), l.Creator.String(), l.Video, int64(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting lesson: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: getting lesson id: %w", err)
	}
	l.ID = uint64(id)
	return nil
}

// GetLesson returns the lesson with id, or apperror.ErrNotFound.
func (db *DB) GetLesson(ctx context.Context, id uint64) (*model.Lesson, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = ?`, int64(id))

	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("lesson", strconv.FormatUint(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting lesson %d: %w", id, err)
	}
	return &l, nil
}

// ListLessons returns lessons in upload order.
func (db *DB) ListLessons(ctx context.Context, opts repository.ListOptions) ([]model.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons ORDER BY id`
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lessons: %w", err)
	}
	return collectLessons(rows)
}

// ListLessonsByCreator returns creator's lessons in upload order.
func (db *DB) ListLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE creator = ? ORDER BY id`, creator.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing lessons by %s: %w", creator, err)
	}
	return collectLessons(rows)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLesson(s scanner) (model.Lesson, error) {
	var (
		l               model.Lesson
		id, cost, ctime int64
		creator         string
	)
	if err := s.Scan(&id, &l.Title, &l.Description, &cost, &creator, &l.Video, &ctime); err != nil {
		return model.Lesson{}, err
	}
	l.ID = uint64(id)
	l.CreditCost = uint64(cost)
	l.Creator = model.Identity(creator)
	l.CreatedAt = model.Time(ctime)
	return l, nil
}

// collectLessons drains and closes rows. The result is never nil so an
// empty list encodes as [] on the wire.
func collectLessons(rows *sql.Rows) ([]model.Lesson, error) {
	defer rows.Close()

	lessons := []model.Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating lessons: %w", err)
	}
	return lessons, nil
}

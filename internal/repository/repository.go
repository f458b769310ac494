// Package repository defines the storage interfaces of the development
// backend. The sqlite subpackage implements them.
//
// Each interface is small and named for what it stores, so the backend
// service can be tested against any of them independently.
package repository

import (
	"context"

	"github.com/sakif/skillswap/internal/model"
)

// ListOptions pages through a list. A zero Limit means no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// LessonRepository stores lessons. Lessons are immutable once created.
type LessonRepository interface {
	// CreateLesson inserts l and sets its ID.
	CreateLesson(ctx context.Context, l *model.Lesson) error
	// GetLesson fails with apperror.ErrNotFound for an unknown id.
	GetLesson(ctx context.Context, id uint64) (*model.Lesson, error)
	ListLessons(ctx context.Context, opts ListOptions) ([]model.Lesson, error)
	ListLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error)
}

// ProfileRepository stores one profile per identity.
type ProfileRepository interface {
	// GetProfile returns nil, nil when id has no profile.
	GetProfile(ctx context.Context, id model.Identity) (*model.UserProfile, error)
	SaveProfile(ctx context.Context, id model.Identity, p model.UserProfile) error
	// Transfer moves amount credits from one profile to another in one
	// transaction. The payer must have a profile with enough credits;
	// the payee is credited only if it has a profile.
	Transfer(ctx context.Context, from, to model.Identity, amount uint64) error
}

// RoleRepository stores explicit role assignments.
type RoleRepository interface {
	// GetRole reports the stored role of id, if any.
	GetRole(ctx context.Context, id model.Identity) (model.UserRole, bool, error)
	SetRole(ctx context.Context, id model.Identity, role model.UserRole) error
}

// Package backend defines the remote interface of the lesson backend.
//
// The backend owns every durable thing (lessons, profiles, balances, roles).
// The frontend only calls it, through the Client interface below. Keeping the
// contract as a Go interface lets the page layer run against:
//   - rpc.Client, the HTTP transport used in production
//   - devbackend.Service, the SQLite stand-in, when wired in-process for tests
//   - hand-written fakes in unit tests
//
// CALLER IDENTITY:
// None of the methods take the caller as an argument. "Caller" means
// whoever is making the call, and the implementation reads it from the
// context (auth.IdentityFromContext).
package backend

import (
	"context"

	"github.com/sakif/skillswap/internal/model"
)

// Client is the typed remote interface. Every method may block on the
// network and honours ctx for deadlines.
type Client interface {
	GetAllLessons(ctx context.Context) ([]model.Lesson, error)
	// GetLesson fails with an apperror.ErrNotFound error when id is unknown.
	GetLesson(ctx context.Context, id uint64) (*model.Lesson, error)
	GetLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error)
	CreateLesson(ctx context.Context, title, description string, video []byte, creditCost uint64) (uint64, error)
	CompleteLesson(ctx context.Context, id uint64) error

	// GetCallerUserProfile returns nil, nil when the caller has no profile yet.
	GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error)
	GetUserProfile(ctx context.Context, user model.Identity) (*model.UserProfile, error)
	SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error

	GetCallerUserRole(ctx context.Context) (model.UserRole, error)
	IsCallerAdmin(ctx context.Context) (bool, error)
	AssignCallerUserRole(ctx context.Context, user model.Identity, role model.UserRole) error
}

// Readiness is implemented by clients that need a handshake before use.
// Query hooks stay disabled until Ready reports true.
type Readiness interface {
	Ready(ctx context.Context) bool
}

// IsReady reports whether c can take calls. Clients without a readiness
// notion are always ready.
func IsReady(ctx context.Context, c Client) bool {
	if r, ok := c.(Readiness); ok {
		return r.Ready(ctx)
	}
	return true
}

// Method names on the wire. They match the remote interface one to one.
const (
	MethodGetAllLessons         = "getAllLessons"
	MethodGetLesson             = "getLesson"
	MethodGetLessonsByCreator   = "getLessonsByCreator"
	MethodCreateLesson          = "createLesson"
	MethodCompleteLesson        = "completeLesson"
	MethodGetCallerUserProfile  = "getCallerUserProfile"
	MethodGetUserProfile        = "getUserProfile"
	MethodSaveCallerUserProfile = "saveCallerUserProfile"
	MethodGetCallerUserRole     = "getCallerUserRole"
	MethodIsCallerAdmin         = "isCallerAdmin"
	MethodAssignCallerUserRole  = "assignCallerUserRole"
)

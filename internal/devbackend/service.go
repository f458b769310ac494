// Package devbackend is a SQLite stand-in for the lesson backend.
//
// Service implements backend.Client over the repository interfaces, so it
// can be served over HTTP by rpc.Server (cmd/devbackend) or called
// in-process in tests. It owns the rules the frontend only mirrors:
// who may write, what a completion costs, and which role a caller has.
package devbackend

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/repository"
	"github.com/sakif/skillswap/internal/validate"
)

var _ backend.Client = (*Service)(nil)

// newLesson is what a CreateLesson call must carry.
type newLesson struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Video       []byte `json:"video" validate:"required"`
}

// Service answers backend calls for the caller in the context.
type Service struct {
	lessons  repository.LessonRepository
	profiles repository.ProfileRepository
	roles    repository.RoleRepository
	admins   map[model.Identity]bool
	validate *validate.Validator
	logger   *slog.Logger
}

// Stores groups the repositories a Service reads and writes.
// *sqlite.DB satisfies all three.
type Stores struct {
	Lessons  repository.LessonRepository
	Profiles repository.ProfileRepository
	Roles    repository.RoleRepository
}

// New creates a Service. Identities in admins always have the admin role.
func New(stores Stores, admins []string, logger *slog.Logger) *Service {
	set := make(map[model.Identity]bool, len(admins))
	for _, a := range admins {
		set[model.Identity(a)] = true
	}
	return &Service{
		lessons:  stores.Lessons,
		profiles: stores.Profiles,
		roles:    stores.Roles,
		admins:   set,
		validate: validate.New(),
		logger:   logger,
	}
}

// =============================================================================
// LESSONS
// =============================================================================

func (s *Service) GetAllLessons(ctx context.Context) ([]model.Lesson, error) {
	return s.lessons.ListLessons(ctx, repository.ListOptions{})
}

func (s *Service) GetLesson(ctx context.Context, id uint64) (*model.Lesson, error) {
	return s.lessons.GetLesson(ctx, id)
}

func (s *Service) GetLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error) {
	return s.lessons.ListLessonsByCreator(ctx, creator)
}

// CreateLesson stores a lesson owned by the caller and returns its id.
func (s *Service) CreateLesson(ctx context.Context, title, description string, video []byte, creditCost uint64) (uint64, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return 0, apperror.Unauthorized("Only signed-in users can upload lessons")
	}
	if err := s.validate.Struct(newLesson{Title: title, Description: description, Video: video}); err != nil {
		return 0, err
	}
	if err := storable("creditCost", creditCost); err != nil {
		return 0, err
	}

	l := &model.Lesson{
		Title:       title,
		Description: description,
		CreditCost:  creditCost,
		Creator:     caller,
		Video:       video,
		CreatedAt:   model.Now(),
	}
	if err := s.lessons.CreateLesson(ctx, l); err != nil {
		return 0, err
	}

	s.logger.Info("lesson stored",
		slog.Uint64("lessonID", l.ID),
		slog.String("creator", caller.String()),
		slog.Int("videoBytes", len(video)),
	)
	return l.ID, nil
}

// CompleteLesson charges the caller the lesson's cost and pays the creator.
func (s *Service) CompleteLesson(ctx context.Context, id uint64) error {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperror.Unauthorized("Only signed-in users can complete lessons")
	}

	l, err := s.lessons.GetLesson(ctx, id)
	if err != nil {
		return err
	}
	if err := s.profiles.Transfer(ctx, caller, l.Creator, l.CreditCost); err != nil {
		return err
	}

	s.logger.Info("lesson completed",
		slog.Uint64("lessonID", id),
		slog.String("learner", caller.String()),
		slog.Uint64("credits", l.CreditCost),
	)
	return nil
}

// =============================================================================
// PROFILES
// =============================================================================

// GetCallerUserProfile returns nil, nil for the anonymous caller.
func (s *Service) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, nil
	}
	return s.profiles.GetProfile(ctx, caller)
}

func (s *Service) GetUserProfile(ctx context.Context, user model.Identity) (*model.UserProfile, error) {
	return s.profiles.GetProfile(ctx, user)
}

// SaveCallerUserProfile replaces the caller's profile.
func (s *Service) SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperror.Unauthorized("Only signed-in users can save a profile")
	}
	if err := storable("remainingLearningCredits", profile.RemainingLearningCredits); err != nil {
		return err
	}
	return s.profiles.SaveProfile(ctx, caller, profile)
}

// =============================================================================
// ROLES
// =============================================================================

func (s *Service) GetCallerUserRole(ctx context.Context) (model.UserRole, error) {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return model.RoleGuest, nil
	}
	return s.roleOf(ctx, caller)
}

func (s *Service) IsCallerAdmin(ctx context.Context) (bool, error) {
	role, err := s.GetCallerUserRole(ctx)
	if err != nil {
		return false, err
	}
	return role == model.RoleAdmin, nil
}

// AssignCallerUserRole sets user's role. Only admins may call it.
func (s *Service) AssignCallerUserRole(ctx context.Context, user model.Identity, role model.UserRole) error {
	admin, err := s.IsCallerAdmin(ctx)
	if err != nil {
		return err
	}
	if !admin {
		return apperror.Forbidden("Only admins can assign roles")
	}
	if user.IsAnonymous() {
		return apperror.ValidationFailed("user", "user is required")
	}
	if _, err := model.ParseRole(role.String()); err != nil {
		return apperror.ValidationFailed("role", err.Error())
	}

	if err := s.roles.SetRole(ctx, user, role); err != nil {
		return fmt.Errorf("devbackend: assigning role: %w", err)
	}
	s.logger.Info("role assigned", slog.String("user", user.String()), slog.String("role", role.String()))
	return nil
}

// storable rejects amounts SQLite's signed 64-bit integers cannot hold.
func storable(field string, n uint64) error {
	if n > math.MaxInt64 {
		return apperror.ValidationFailed(field, field+" is too large")
	}
	return nil
}

// roleOf resolves a signed-in identity's role: configured admins first,
// then a stored assignment, then user.
func (s *Service) roleOf(ctx context.Context, id model.Identity) (model.UserRole, error) {
	if s.admins[id] {
		return model.RoleAdmin, nil
	}
	role, found, err := s.roles.GetRole(ctx, id)
	if err != nil {
		return "", err
	}
	if !found {
		return model.RoleUser, nil
	}
	return role, nil
}

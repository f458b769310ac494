// Package service contains the data-access layer between the pages and the
// lesson backend.
//
// THE LAYERS:
//
//	Handler (HTTP)      → parses forms, renders pages
//	Service (this)      → caches reads, validates writes, invalidates
//	backend.Client      → talks to the remote service
//
// Queries is the server-side counterpart of a browser's data hooks: each read
// goes through the caller's query.Cache under a fixed key, and each write
// invalidates the keys listed in query.Invalidates once it succeeds.
//
// READS DEGRADE, WRITES FAIL:
// A read that fails is logged and turned into a harmless value (an empty
// list, no profile) so a page can still render. A write that fails is logged
// and returned, so the form can show the message.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/query"
	"github.com/sakif/skillswap/internal/validate"
)

// DefaultCreditCost is the cost pre-filled on the upload form.
const DefaultCreditCost = 3

// LessonInput is everything needed to create a lesson.
// Video has already passed upload.ValidateVideo and been read into memory.
type LessonInput struct {
	Title       string `form:"title" validate:"min=3,max=100" msg:"Title must be between 3 and 100 characters"`
	Description string `form:"description" validate:"min=10,max=5000" msg:"Description must be between 10 and 5000 characters"`
	CreditCost  uint64 `form:"creditCost" validate:"min=1,max=10" msg:"Credit cost must be between 1 and 10"`
	Video       []byte `form:"video" validate:"required" msg:"Please select a video file"`
}

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	Name  string `form:"name" validate:"required" msg:"Please enter your name"`
	Gmail string `form:"gmail" validate:"omitempty,email" msg:"Please enter a valid email address"`
}

// Queries exposes cached reads and invalidating writes for the caller in ctx.
type Queries struct {
	client   backend.Client
	caches   *query.Registry
	validate *validate.Validator
	logger   *slog.Logger
}

// NewQueries creates a Queries over client. caches holds one cache per
// identity and is shared with AuthService, which drops it on sign-out.
func NewQueries(client backend.Client, caches *query.Registry, v *validate.Validator, logger *slog.Logger) *Queries {
	return &Queries{
		client:   client,
		caches:   caches,
		validate: v,
		logger:   logger,
	}
}

// Ready reports whether the backend can take calls.
func (q *Queries) Ready(ctx context.Context) bool {
	return backend.IsReady(ctx, q.client)
}

func (q *Queries) cache(ctx context.Context) *query.Cache {
	id, _ := auth.IdentityFromContext(ctx)
	return q.caches.For(id)
}

// =============================================================================
// READS
// =============================================================================

// AllLessons lists every lesson. On failure the list is empty.
func (q *Queries) AllLessons(ctx context.Context) query.Result[[]model.Lesson] {
	if !q.Ready(ctx) {
		return query.Disabled[[]model.Lesson]()
	}
	lessons, err := query.Fetch(ctx, q.cache(ctx), query.KeyLessons, q.client.GetAllLessons)
	if err != nil {
		q.logger.Error("fetching lessons", slog.String("error", err.Error()))
		return query.Failed([]model.Lesson{}, err)
	}
	return query.Success(lessons)
}

// Lesson fetches one lesson. A zero id disables the read.
//
// Any failure, including an unknown id, is logged and reported as a
// successful read of no lesson: the page shows "not found" either way.
func (q *Queries) Lesson(ctx context.Context, id uint64) query.Result[*model.Lesson] {
	if id == 0 || !q.Ready(ctx) {
		return query.Disabled[*model.Lesson]()
	}
	lesson, err := query.Fetch(ctx, q.cache(ctx), query.LessonKey(id), func(ctx context.Context) (*model.Lesson, error) {
		return q.client.GetLesson(ctx, id)
	})
	if err != nil {
		q.logger.Warn("fetching lesson", slog.Uint64("lessonID", id), slog.String("error", err.Error()))
		return query.Success[*model.Lesson](nil)
	}
	return query.Success(lesson)
}

// CallerProfile fetches the caller's profile. Data is nil both when the
// caller has none (StatusSuccess) and when the read failed (StatusError).
// Anonymous callers have no profile to read, so the read is disabled.
func (q *Queries) CallerProfile(ctx context.Context) query.Result[*model.UserProfile] {
	if _, ok := auth.IdentityFromContext(ctx); !ok || !q.Ready(ctx) {
		return query.Disabled[*model.UserProfile]()
	}
	profile, err := query.Fetch(ctx, q.cache(ctx), query.KeyCurrentUserProfile, q.client.GetCallerUserProfile)
	if err != nil {
		q.logger.Error("fetching caller profile", slog.String("error", err.Error()))
		return query.Failed[*model.UserProfile](nil, err)
	}
	return query.Success(profile)
}

// LessonsByCreator lists the lessons creator uploaded. On failure the list is empty.
func (q *Queries) LessonsByCreator(ctx context.Context, creator model.Identity) query.Result[[]model.Lesson] {
	if creator.IsAnonymous() || !q.Ready(ctx) {
		return query.Disabled[[]model.Lesson]()
	}
	lessons, err := query.Fetch(ctx, q.cache(ctx), query.LessonsByCreatorKey(creator), func(ctx context.Context) ([]model.Lesson, error) {
		return q.client.GetLessonsByCreator(ctx, creator)
	})
	if err != nil {
		q.logger.Error("fetching creator lessons", slog.String("creator", creator.String()), slog.String("error", err.Error()))
		return query.Failed([]model.Lesson{}, err)
	}
	return query.Success(lessons)
}

// CallerRole fetches the caller's role. On failure the role is guest.
func (q *Queries) CallerRole(ctx context.Context) query.Result[model.UserRole] {
	if !q.Ready(ctx) {
		return query.Disabled[model.UserRole]()
	}
	role, err := query.Fetch(ctx, q.cache(ctx), query.KeyCallerRole, q.client.GetCallerUserRole)
	if err != nil {
		q.logger.Error("fetching caller role", slog.String("error", err.Error()))
		return query.Failed(model.RoleGuest, err)
	}
	return query.Success(role)
}

// =============================================================================
// WRITES
// =============================================================================
//
// Writes run on a context detached from the request's cancellation: once a
// write is sent it finishes even if the browser goes away. Deadlines still
// come from the backend client's timeout.

// CheckLesson validates everything but the video, so a form can be turned
// down before a large file is read.
func (q *Queries) CheckLesson(in LessonInput) error {
	return q.validate.StructExcept(in, "Video")
}

// CreateLesson validates in and creates the lesson. It returns the new id.
func (q *Queries) CreateLesson(ctx context.Context, in LessonInput) (uint64, error) {
	if err := q.validate.Struct(in); err != nil {
		return 0, err
	}
	if err := q.writable(ctx); err != nil {
		return 0, err
	}

	id, err := q.client.CreateLesson(context.WithoutCancel(ctx), in.Title, in.Description, in.Video, in.CreditCost)
	if err != nil {
		q.logger.Error("creating lesson", slog.String("title", in.Title), slog.String("error", err.Error()))
		return 0, fmt.Errorf("service: creating lesson: %w", err)
	}

	q.cache(ctx).InvalidateFor(query.CreateLesson)
	q.logger.Info("lesson created", slog.Uint64("lessonID", id), slog.Uint64("creditCost", in.CreditCost))
	return id, nil
}

// CompleteLesson pays for lesson id with the caller's credits.
func (q *Queries) CompleteLesson(ctx context.Context, id uint64) error {
	if err := q.writable(ctx); err != nil {
		return err
	}

	if err := q.client.CompleteLesson(context.WithoutCancel(ctx), id); err != nil {
		q.logger.Error("completing lesson", slog.Uint64("lessonID", id), slog.String("error", err.Error()))
		return fmt.Errorf("service: completing lesson %d: %w", id, err)
	}

	q.cache(ctx).InvalidateFor(query.CompleteLesson)
	q.logger.Info("lesson completed", slog.Uint64("lessonID", id))
	return nil
}

// SaveCallerProfile replaces the caller's profile with p.
func (q *Queries) SaveCallerProfile(ctx context.Context, p model.UserProfile) error {
	if err := q.writable(ctx); err != nil {
		return err
	}

	if err := q.client.SaveCallerUserProfile(context.WithoutCancel(ctx), p); err != nil {
		q.logger.Error("saving profile", slog.String("error", err.Error()))
		return fmt.Errorf("service: saving profile: %w", err)
	}

	q.cache(ctx).InvalidateFor(query.SaveCallerProfile)
	return nil
}

// SetupProfile creates the caller's first profile with the starting balance.
func (q *Queries) SetupProfile(ctx context.Context, in ProfileInput) error {
	in, err := q.cleanProfile(in)
	if err != nil {
		return err
	}
	return q.SaveCallerProfile(ctx, model.UserProfile{
		Name:                     in.Name,
		Gmail:                    optional(in.Gmail),
		RemainingLearningCredits: model.StartingCredits,
		ProfileCreatedAt:         model.Now(),
	})
}

// UpdateProfile changes name and gmail on top of current. The balance and
// creation time are sent back unchanged.
func (q *Queries) UpdateProfile(ctx context.Context, current model.UserProfile, in ProfileInput) error {
	in, err := q.cleanProfile(in)
	if err != nil {
		return err
	}
	current.Name = in.Name
	current.Gmail = optional(in.Gmail)
	return q.SaveCallerProfile(ctx, current)
}

func (q *Queries) cleanProfile(in ProfileInput) (ProfileInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Gmail = strings.TrimSpace(in.Gmail)
	if err := q.validate.Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

// writable rejects writes the backend would refuse anyway.
func (q *Queries) writable(ctx context.Context) error {
	if !q.Ready(ctx) {
		return apperror.Unavailable("The service is still starting. Please try again in a moment.")
	}
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return apperror.Unauthorized("Please sign in first")
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package backendtest provides an in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"strconv"
	"sync"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend"
	"github.com/sakif/skillswap/internal/model"
)

var (
	_ backend.Client    = (*Fake)(nil)
	_ backend.Readiness = (*Fake)(nil)
)

// Fake keeps lessons and profiles in memory and follows the same credit
// rules as the real backend. Every exported field may be set before use;
// after that, go through the methods.
type Fake struct {
	mu sync.Mutex

	Lessons  []model.Lesson
	Profiles map[model.Identity]*model.UserProfile
	Roles    map[model.Identity]model.UserRole

	// NotReady makes Ready report false.
	NotReady bool
	// Errs makes the named method (backend.Method* constant) fail.
	Errs map[string]error

	calls map[string]int
}

// New returns an empty, ready Fake.
func New() *Fake {
	return &Fake{
		Profiles: make(map[model.Identity]*model.UserProfile),
		Roles:    make(map[model.Identity]model.UserRole),
		Errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Calls returns how many times method was called.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SetReady toggles readiness.
func (f *Fake) SetReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NotReady = !ready
}

// Fail makes method return err until cleared with Fail(method, nil).
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, method)
		return
	}
	f.Errs[method] = err
}

// PutProfile stores p for id.
func (f *Fake) PutProfile(id model.Identity, p model.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Profiles[id] = &p
}

// Profile returns a copy of id's stored profile.
func (f *Fake) Profile(id model.Identity) (model.UserProfile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Profiles[id]
	if !ok {
		return model.UserProfile{}, false
	}
	return *p, true
}

// AddLesson stores l, assigning the next id, and returns the id.
func (f *Fake) AddLesson(l model.Lesson) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.ID = uint64(len(f.Lessons) + 1)
	f.Lessons = append(f.Lessons, l)
	return l.ID
}

func (f *Fake) Ready(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.NotReady
}

// enter records a call and returns the injected error, if any.
// The caller must hold f.mu.
func (f *Fake) enter(method string) error {
	f.calls[method]++
	return f.Errs[method]
}

func (f *Fake) GetAllLessons(ctx context.Context) ([]model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodGetAllLessons); err != nil {
		return nil, err
	}
	out := make([]model.Lesson, len(f.Lessons))
	copy(out, f.Lessons)
	return out, nil
}

func (f *Fake) GetLesson(ctx context.Context, id uint64) (*model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodGetLesson); err != nil {
		return nil, err
	}
	l, ok := f.lesson(id)
	if !ok {
		return nil, apperror.NotFound("lesson", strconv.FormatUint(id, 10))
	}
	return &l, nil
}

func (f *Fake) GetLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodGetLessonsByCreator); err != nil {
		return nil, err
	}
	out := []model.Lesson{}
	for _, l := range f.Lessons {
		if l.Creator == creator {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *Fake) CreateLesson(ctx context.Context, title, description string, video []byte, creditCost uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodCreateLesson); err != nil {
		return 0, err
	}
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return 0, apperror.Unauthorized("Only signed-in users can upload lessons")
	}
	id := uint64(len(f.Lessons) + 1)
	f.Lessons = append(f.Lessons, model.Lesson{
		ID:          id,
		Title:       title,
		Description: description,
		CreditCost:  creditCost,
		Creator:     caller,
		Video:       video,
		CreatedAt:   model.Now(),
	})
	return id, nil
}

func (f *Fake) CompleteLesson(ctx context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodCompleteLesson); err != nil {
		return err
	}
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperror.Unauthorized("Only signed-in users can complete lessons")
	}
	l, ok := f.lesson(id)
	if !ok {
		return apperror.NotFound("lesson", strconv.FormatUint(id, 10))
	}
	p, ok := f.Profiles[caller]
	if !ok || p.RemainingLearningCredits < l.CreditCost {
		var have uint64
		if ok {
			have = p.RemainingLearningCredits
		}
		return apperror.InsufficientCredits(l.CreditCost, have)
	}
	p.RemainingLearningCredits -= l.CreditCost
	if creator, ok := f.Profiles[l.Creator]; ok {
		creator.RemainingLearningCredits += l.CreditCost
	}
	return nil
}

func (f *Fake) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	caller, _ := auth.IdentityFromContext(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodGetCallerUserProfile); err != nil {
		return nil, err
	}
	return f.profileCopy(caller), nil
}

func (f *Fake) GetUserProfile(ctx context.Context, user model.Identity) (*model.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodGetUserProfile); err != nil {
		return nil, err
	}
	return f.profileCopy(user), nil
}

func (f *Fake) SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodSaveCallerUserProfile); err != nil {
		return err
	}
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return apperror.Unauthorized("Only signed-in users can save a profile")
	}
	f.Profiles[caller] = &profile
	return nil
}

func (f *Fake) GetCallerUserRole(ctx context.Context) (model.UserRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodGetCallerUserRole); err != nil {
		return "", err
	}
	return f.role(ctx), nil
}

func (f *Fake) IsCallerAdmin(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodIsCallerAdmin); err != nil {
		return false, err
	}
	return f.role(ctx) == model.RoleAdmin, nil
}

func (f *Fake) AssignCallerUserRole(ctx context.Context, user model.Identity, role model.UserRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(backend.MethodAssignCallerUserRole); err != nil {
		return err
	}
	if f.role(ctx) != model.RoleAdmin {
		return apperror.Forbidden("Only admins can assign roles")
	}
	f.Roles[user] = role
	return nil
}

func (f *Fake) lesson(id uint64) (model.Lesson, bool) {
	for _, l := range f.Lessons {
		if l.ID == id {
			return l, true
		}
	}
	return model.Lesson{}, false
}

func (f *Fake) profileCopy(id model.Identity) *model.UserProfile {
	p, ok := f.Profiles[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (f *Fake) role(ctx context.Context) model.UserRole {
	caller, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return model.RoleGuest
	}
	if r, ok := f.Roles[caller]; ok {
		return r
	}
	return model.RoleUser
}

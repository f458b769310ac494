package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/model"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeBackend records the caller of every call and answers from memory.
type fakeBackend struct {
	mu       sync.Mutex
	callers  []model.Identity
	lessons  []model.Lesson
	profile  *model.UserProfile
	saved    *model.UserProfile
	role     model.UserRole
	failWith error
}

func (f *fakeBackend) record(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := auth.IdentityFromContext(ctx)
	f.callers = append(f.callers, id)
	return f.failWith
}

func (f *fakeBackend) GetAllLessons(ctx context.Context) ([]model.Lesson, error) {
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	return f.lessons, nil
}

func (f *fakeBackend) GetLesson(ctx context.Context, id uint64) (*model.Lesson, error) {
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	for i := range f.lessons {
		if f.lessons[i].ID == id {
			return &f.lessons[i], nil
		}
	}
	return nil, apperror.NotFound("lesson", "x")
}

func (f *fakeBackend) GetLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error) {
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	var out []model.Lesson
	for _, l := range f.lessons {
		if l.Creator == creator {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateLesson(ctx context.Context, title, description string, video []byte, cost uint64) (uint64, error) {
	if err := f.record(ctx); err != nil {
		return 0, err
	}
	id, _ := auth.IdentityFromContext(ctx)
	l := model.Lesson{ID: uint64(len(f.lessons) + 1), Title: title, Description: description, Video: video, CreditCost: cost, Creator: id}
	f.lessons = append(f.lessons, l)
	return l.ID, nil
}

func (f *fakeBackend) CompleteLesson(ctx context.Context, id uint64) error {
	return f.record(ctx)
}

func (f *fakeBackend) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	return f.profile, nil
}

func (f *fakeBackend) GetUserProfile(ctx context.Context, user model.Identity) (*model.UserProfile, error) {
	if err := f.record(ctx); err != nil {
		return nil, err
	}
	return f.profile, nil
}

func (f *fakeBackend) SaveCallerUserProfile(ctx context.Context, p model.UserProfile) error {
	if err := f.record(ctx); err != nil {
		return err
	}
	f.saved = &p
	return nil
}

func (f *fakeBackend) GetCallerUserRole(ctx context.Context) (model.UserRole, error) {
	if err := f.record(ctx); err != nil {
		return "", err
	}
	return f.role, nil
}

func (f *fakeBackend) IsCallerAdmin(ctx context.Context) (bool, error) {
	if err := f.record(ctx); err != nil {
		return false, err
	}
	return f.role == model.RoleAdmin, nil
}

func (f *fakeBackend) AssignCallerUserRole(ctx context.Context, user model.Identity, role model.UserRole) error {
	return f.record(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCallerTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("shared-secret-for-rpc-tests", auth.CallerIssuer, time.Minute)
	require.NoError(t, err)
	return ts
}

func setup(t *testing.T, fb *fakeBackend) (*Client, *httptest.Server) {
	t.Helper()
	tokens := newCallerTokens(t)
	srv := httptest.NewServer(NewServer(fb, tokens, discardLogger()).Routes())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", tokens, 5*time.Second, discardLogger()), srv
}

func asCaller(id model.Identity) context.Context {
	return auth.WithIdentity(context.Background(), id)
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestClient_RoundTripLessons(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := setup(t, fb)
	ctx := asCaller("github:1")

	id, err := c.CreateLesson(ctx, "Knife skills", "How to hold a chef's knife", []byte{0, 1, 2, 255}, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	all, err := c.GetAllLessons(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []byte{0, 1, 2, 255}, all[0].Video)
	assert.Equal(t, uint64(7), all[0].CreditCost)
	assert.Equal(t, model.Identity("github:1"), all[0].Creator)

	l, err := c.GetLesson(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Knife skills", l.Title)

	mine, err := c.GetLessonsByCreator(ctx, "github:1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestClient_EmptyListIsNotNil(t *testing.T) {
	c, _ := setup(t, &fakeBackend{})

	all, err := c.GetAllLessons(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestClient_MissingProfileIsNil(t *testing.T) {
	c, _ := setup(t, &fakeBackend{})

	p, err := c.GetCallerUserProfile(asCaller("dev:a"))

	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestClient_ProfileRoundTrip(t *testing.T) {
	gmail := "ada@gmail.com"
	fb := &fakeBackend{profile: &model.UserProfile{Name: "Ada", RemainingLearningCredits: 42, ProfileCreatedAt: 1_700_000_000_123_456_789}}
	c, _ := setup(t, fb)
	ctx := asCaller("dev:a")

	p, err := c.GetCallerUserProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.Time(1_700_000_000_123_456_789), p.ProfileCreatedAt)

	p.Gmail = &gmail
	require.NoError(t, c.SaveCallerUserProfile(ctx, *p))
	require.NotNil(t, fb.saved)
	assert.Equal(t, "ada@gmail.com", fb.saved.ContactAddress())
	assert.Equal(t, uint64(42), fb.saved.RemainingLearningCredits)
}

func TestClient_Roles(t *testing.T) {
	c, _ := setup(t, &fakeBackend{role: model.RoleAdmin})
	ctx := asCaller("dev:root")

	role, err := c.GetCallerUserRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, role)

	admin, err := c.IsCallerAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, admin)

	assert.NoError(t, c.AssignCallerUserRole(ctx, "dev:other", model.RoleUser))
}

// =============================================================================
// CALLER IDENTITY
// =============================================================================

func TestClient_CallerIdentityTravels(t *testing.T) {
	fb := &fakeBackend{}
	c, _ := setup(t, fb)

	require.NoError(t, c.CompleteLesson(asCaller("github:9"), 1))
	require.NoError(t, c.CompleteLesson(context.Background(), 1))

	assert.Equal(t, []model.Identity{"github:9", model.Anonymous}, fb.callers)
}

func TestServer_RejectsForgedCallerToken(t *testing.T) {
	fb := &fakeBackend{}
	_, srv := setup(t, fb)

	other, err := auth.NewTokenService("a-different-secret-entirely", auth.CallerIssuer, time.Minute)
	require.NoError(t, err)
	forged := NewClient(srv.URL, other, time.Second, discardLogger())

	err = forged.CompleteLesson(asCaller("github:9"), 1)

	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Empty(t, fb.callers)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestClient_ErrorCodesMapBack(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"not found", apperror.NotFound("lesson", "3"), apperror.ErrNotFound, "lesson not found with id 3"},
		{"insufficient", apperror.InsufficientCredits(10, 5), apperror.ErrInsufficientCredits,
			"You need 10 credits to complete this lesson. You currently have 5 credits."},
		{"forbidden", apperror.Forbidden("admins only"), apperror.ErrForbidden, "admins only"},
		{"validation", apperror.ValidationFailed("title", "bad title"), apperror.ErrValidation, "bad title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := setup(t, &fakeBackend{failWith: tt.err})

			err := c.CompleteLesson(asCaller("dev:a"), 1)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.message, apperror.Message(err, ""))
		})
	}
}

func TestClient_InternalErrorsAreHidden(t *testing.T) {
	c, _ := setup(t, &fakeBackend{failWith: errors.New("sqlite: disk I/O error at /var/db")})

	_, err := c.GetAllLessons(context.Background())

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "/var/db")
	assert.Equal(t, "An internal error occurred", apperror.Message(err, ""))
}

func TestServer_UnknownMethod(t *testing.T) {
	_, srv := setup(t, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/rpc/dropTables", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MalformedBody(t *testing.T) {
	_, srv := setup(t, &fakeBackend{})

	resp, err := http.Post(srv.URL+"/rpc/getLesson", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// READINESS
// =============================================================================

func TestClient_ReadyCachesSuccess(t *testing.T) {
	var probes int
	var mu sync.Mutex
	up := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		probes++
		if !up {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newCallerTokens(t), time.Second, discardLogger())
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	assert.False(t, c.Ready(context.Background()))

	mu.Lock()
	up = true
	mu.Unlock()

	clock = clock.Add(probeBackoff)
	assert.True(t, c.Ready(context.Background()))
	assert.True(t, c.Ready(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, probes)
}

func TestClient_FailedProbeIsReused(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newCallerTokens(t), time.Second, discardLogger())
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	for range 5 {
		assert.False(t, c.Ready(context.Background()))
	}
	assert.Equal(t, int32(1), probes.Load(), "reads within the backoff reuse the failed probe")

	clock = clock.Add(probeBackoff)
	assert.False(t, c.Ready(context.Background()))
	assert.Equal(t, int32(2), probes.Load())
}

func TestClient_NotReadyWhenUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", newCallerTokens(t), 200*time.Millisecond, discardLogger())

	assert.False(t, c.Ready(context.Background()))
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend"
	"github.com/sakif/skillswap/internal/model"
)

// compile-time checks
var (
	_ backend.Client    = (*Client)(nil)
	_ backend.Readiness = (*Client)(nil)
)

// Client implements backend.Client over HTTP.
//
// It owns no state beyond where the backend lives, how to sign caller
// tokens, and the outcome of the readiness probe.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *auth.TokenService
	logger  *slog.Logger

	ready  atomic.Bool
	probes singleflight.Group
	now    func() time.Time

	mu       sync.Mutex
	failedAt time.Time
}

// probeTimeout bounds one readiness probe. probeBackoff is how long a failed
// probe is remembered before the next one is sent.
const (
	probeTimeout = 2 * time.Second
	probeBackoff = time.Second
)

// NewClient creates a Client for the backend at baseURL.
//
// tokens signs caller tokens and must share its secret with the backend.
// timeout bounds each call; there are no retries.
func NewClient(baseURL string, tokens *auth.TokenService, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// Ready probes GET /healthz until it succeeds once, then always reports true.
//
// While the backend is down, a failed probe is reused for probeBackoff and
// concurrent callers share one probe, so a page with several reads waits on
// the backend at most once.
func (c *Client) Ready(ctx context.Context) bool {
	if c.ready.Load() {
		return true
	}
	if c.recentlyFailed() {
		return false
	}

	ch := c.probes.DoChan("healthz", func() (any, error) {
		return c.probe(context.WithoutCancel(ctx)), nil
	})
	select {
	case <-ctx.Done():
		return false
	case res := <-ch:
		return res.Val.(bool)
	}
}

func (c *Client) recentlyFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.failedAt.IsZero() && c.now().Sub(c.failedAt) < probeBackoff
}

func (c *Client) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	ok := c.healthy(ctx)

	c.mu.Lock()
	if ok {
		c.failedAt = time.Time{}
	} else {
		c.failedAt = c.now()
	}
	c.mu.Unlock()

	if ok && c.ready.CompareAndSwap(false, true) {
		c.logger.Info("backend ready", slog.String("url", c.baseURL))
	}
	return ok
}

func (c *Client) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend not ready", slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("backend not ready", slog.Int("status", resp.StatusCode))
		return false
	}
	return true
}

func (c *Client) GetAllLessons(ctx context.Context) ([]model.Lesson, error) {
	var out []model.Lesson
	if err := c.call(ctx, backend.MethodGetAllLessons, struct{}{}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Lesson{}
	}
	return out, nil
}

func (c *Client) GetLesson(ctx context.Context, id uint64) (*model.Lesson, error) {
	var out *model.Lesson
	if err := c.call(ctx, backend.MethodGetLesson, idArgs{ID: id}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetLessonsByCreator(ctx context.Context, creator model.Identity) ([]model.Lesson, error) {
	var out []model.Lesson
	if err := c.call(ctx, backend.MethodGetLessonsByCreator, creatorArgs{Creator: creator}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Lesson{}
	}
	return out, nil
}

func (c *Client) CreateLesson(ctx context.Context, title, description string, video []byte, creditCost uint64) (uint64, error) {
	var id uint64
	args := createLessonArgs{Title: title, Description: description, Video: video, CreditCost: creditCost}
	if err := c.call(ctx, backend.MethodCreateLesson, args, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) CompleteLesson(ctx context.Context, id uint64) error {
	return c.call(ctx, backend.MethodCompleteLesson, idArgs{ID: id}, nil)
}

func (c *Client) GetCallerUserProfile(ctx context.Context) (*model.UserProfile, error) {
	var out *model.UserProfile
	if err := c.call(ctx, backend.MethodGetCallerUserProfile, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUserProfile(ctx context.Context, user model.Identity) (*model.UserProfile, error) {
	var out *model.UserProfile
	if err := c.call(ctx, backend.MethodGetUserProfile, userArgs{User: user}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SaveCallerUserProfile(ctx context.Context, profile model.UserProfile) error {
	return c.call(ctx, backend.MethodSaveCallerUserProfile, profileArgs{Profile: profile}, nil)
}

func (c *Client) GetCallerUserRole(ctx context.Context) (model.UserRole, error) {
	var out model.UserRole
	if err := c.call(ctx, backend.MethodGetCallerUserRole, struct{}{}, &out); err != nil {
		return "", err
	}
	return model.ParseRole(string(out))
}

func (c *Client) IsCallerAdmin(ctx context.Context) (bool, error) {
	var out bool
	if err := c.call(ctx, backend.MethodIsCallerAdmin, struct{}{}, &out); err != nil {
		return false, err
	}
	return out, nil
}

func (c *Client) AssignCallerUserRole(ctx context.Context, user model.Identity, role model.UserRole) error {
	return c.call(ctx, backend.MethodAssignCallerUserRole, assignRoleArgs{User: user, Role: role}, nil)
}

// call performs one RPC. out may be nil for void methods.
func (c *Client) call(ctx context.Context, method string, args, out any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("rpc: %s: encoding arguments: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc: %s: building request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if id, ok := auth.IdentityFromContext(ctx); ok {
		token, err := c.tokens.Generate(id)
		if err != nil {
			return fmt.Errorf("rpc: %s: signing caller token: %w", method, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("rpc call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("rpc: %s: status %d: decoding response: %w", method, resp.StatusCode, err)
	}
	if env.Err != nil {
		return fmt.Errorf("rpc: %s: %w", method, decodeError(*env.Err))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc: %s: unexpected status %d", method, resp.StatusCode)
	}

	if out == nil || len(env.OK) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.OK, out); err != nil {
		return fmt.Errorf("rpc: %s: decoding result: %w", method, err)
	}
	return nil
}

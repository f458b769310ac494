// Sign-in and sign-out.
//
// AuthService sits between the auth handlers and the token/cache layers:
//
//	AuthHandler (HTTP) → AuthService → TokenService (session JWT)
//	                                 ↘ query.Registry (per-identity caches)
//
// There is no user table on this side. Profiles belong to the backend, so
// signing in only means minting a session token for an identity, and
// signing out means forgetting everything cached for it.

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/model"
	"github.com/sakif/skillswap/internal/query"
)

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - tokens  *auth.TokenService  → signs session JWTs
//   - caches  *query.Registry     → per-identity caches, dropped on sign-out
//   - logger  *slog.Logger        → structured logging
type AuthService struct {
	tokens *auth.TokenService
	caches *query.Registry
	logger *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(tokens *auth.TokenService, caches *query.Registry, logger *slog.Logger) *AuthService {
	return &AuthService{
		tokens: tokens,
		caches: caches,
		logger: logger,
	}
}

// AuthResult bundles the identity and its session token so the handler can
// set the cookie and redirect in one step.
type AuthResult struct {
	Identity model.Identity
	Token    string
}

// SignInGitHub issues a session for a GitHub account returned by the OAuth
// exchange.
//
// WHAT THIS METHOD DOES NOT DO:
//   - It does NOT set cookies (that's the handler's job)
//   - It does NOT create a profile: the shell asks for one on first visit
func (s *AuthService) SignInGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	result, err := s.issue(ghUser.Identity())
	if err != nil {
		return nil, err
	}

	s.logger.Info("signed in via GitHub",
		slog.String("identity", result.Identity.String()),
		slog.String("login", ghUser.Login),
	)
	return result, nil
}

// SignInDev issues a session for a brand-new development identity.
// Each call is a different person with no profile yet.
func (s *AuthService) SignInDev(ctx context.Context) (*AuthResult, error) {
	result, err := s.issue(auth.NewDevIdentity())
	if err != nil {
		return nil, err
	}
	s.logger.Info("signed in via development login", slog.String("identity", result.Identity.String()))
	return result, nil
}

// SignOut drops every cached read of id.
func (s *AuthService) SignOut(id model.Identity) {
	if id.IsAnonymous() {
		return
	}
	s.caches.Drop(id)
	s.logger.Info("signed out", slog.String("identity", id.String()))
}

// SessionTTL is how long an issued session lasts.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(id model.Identity) (*AuthResult, error) {
	token, err := s.tokens.Generate(id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", id, err)
	}
	return &AuthResult{Identity: id, Token: token}, nil
}

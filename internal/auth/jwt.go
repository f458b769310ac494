// Package auth provides signed identity tokens, the session middleware, and
// the GitHub sign-in flow.
//
// TWO KINDS OF TOKEN, ONE TokenService TYPE:
//   - Session tokens live in the "session" HttpOnly cookie. They tell the
//     frontend which identity the browser belongs to.
//   - Caller tokens travel as "Authorization: Bearer ..." on every backend
//     RPC call. They tell the backend which identity the frontend is acting
//     for. They are signed with a secret shared with the backend and live for
//     a minute.
//
// Both are HS256 JWTs whose "sub" claim is the model.Identity. They differ
// only in secret, issuer and lifetime, which is why TokenService takes all
// three as constructor arguments.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/skillswap/internal/model"
)

// Issuers. A token minted for one purpose is rejected by the other.
const (
	SessionIssuer = "skillswap-web"
	CallerIssuer  = "skillswap-caller"
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret, issuer and
// default token lifetime.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: issuer must not be empty")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// TTL returns the default lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" carries the identity.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a token for id with the default lifetime.
func (s *TokenService) Generate(id model.Identity) (string, error) {
	return s.GenerateWithDuration(id, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(id model.Identity, d time.Duration) (string, error) {
	if id.IsAnonymous() {
		return "", errors.New("auth: cannot sign a token for the anonymous identity")
	}

	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the identity in its
// "sub" claim.
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. Passing jwt.WithValidMethods prevents this.
func (s *TokenService) Validate(tokenStr string) (model.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Anonymous, fmt.Errorf("auth: token expired")
		}
		return model.Anonymous, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return model.Anonymous, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return model.Anonymous, fmt.Errorf("auth: token has no subject")
	}

	return model.Identity(c.Subject), nil
}

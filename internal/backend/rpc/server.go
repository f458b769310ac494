package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/skillswap/internal/apperror"
	"github.com/sakif/skillswap/internal/auth"
	"github.com/sakif/skillswap/internal/backend"
	"github.com/sakif/skillswap/internal/model"
)

// Server exposes a backend.Client implementation over HTTP.
// It is the other half of Client: it checks the caller token, decodes the
// arguments, calls impl and writes the envelope.
type Server struct {
	impl   backend.Client
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewServer creates a Server. tokens validates caller tokens and must share
// its secret and issuer with the frontend's Client.
func NewServer(impl backend.Client, tokens *auth.TokenService, logger *slog.Logger) *Server {
	return &Server{impl: impl, tokens: tokens, logger: logger}
}

// Routes mounts POST /rpc/{method} and GET /healthz.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Post("/rpc/{method}", s.handle)
	return r
}

// handler decodes arguments from raw and runs one method.
type handler func(ctx context.Context, raw json.RawMessage) (any, error)

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "method")

	h, ok := s.methods()[method]
	if !ok {
		s.writeError(w, method, apperror.NotFound("method", method))
		return
	}

	ctx, err := s.callerContext(r)
	if err != nil {
		s.writeError(w, method, apperror.Unauthorized("invalid caller token"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, method, apperror.ValidationFailed("", "malformed request body"))
		return
	}

	result, err := h(ctx, raw)
	if err != nil {
		s.writeError(w, method, err)
		return
	}

	var payload json.RawMessage
	if result != nil {
		payload, err = json.Marshal(result)
		if err != nil {
			s.writeError(w, method, fmt.Errorf("rpc: encoding result: %w", err))
			return
		}
	}
	writeEnvelope(w, http.StatusOK, envelope{OK: payload})
}

// callerContext returns the request context carrying the caller identity.
// No Authorization header means anonymous; a bad one is an error.
func (s *Server) callerContext(r *http.Request) (context.Context, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.WithIdentity(r.Context(), model.Anonymous), nil
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil, errors.New("rpc: authorization header is not a bearer token")
	}
	id, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	return auth.WithIdentity(r.Context(), id), nil
}

// methods binds each wire name to impl. Void methods return (nil, err)
// so the envelope carries no "ok" field.
func (s *Server) methods() map[string]handler {
	return map[string]handler{
		backend.MethodGetAllLessons: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.impl.GetAllLessons(ctx)
		},
		backend.MethodGetLesson: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a idArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			return s.impl.GetLesson(ctx, a.ID)
		},
		backend.MethodGetLessonsByCreator: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a creatorArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			return s.impl.GetLessonsByCreator(ctx, a.Creator)
		},
		backend.MethodCreateLesson: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a createLessonArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			return s.impl.CreateLesson(ctx, a.Title, a.Description, a.Video, a.CreditCost)
		},
		backend.MethodCompleteLesson: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a idArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			return nil, s.impl.CompleteLesson(ctx, a.ID)
		},
		backend.MethodGetCallerUserProfile: func(ctx context.Context, _ json.RawMessage) (any, error) {
			p, err := s.impl.GetCallerUserProfile(ctx)
			if err != nil {
				return nil, err
			}
			return nullable(p), nil
		},
		backend.MethodGetUserProfile: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a userArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			p, err := s.impl.GetUserProfile(ctx, a.User)
			if err != nil {
				return nil, err
			}
			return nullable(p), nil
		},
		backend.MethodSaveCallerUserProfile: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a profileArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			return nil, s.impl.SaveCallerUserProfile(ctx, a.Profile)
		},
		backend.MethodGetCallerUserRole: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.impl.GetCallerUserRole(ctx)
		},
		backend.MethodIsCallerAdmin: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.impl.IsCallerAdmin(ctx)
		},
		backend.MethodAssignCallerUserRole: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var a assignRoleArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			if _, err := model.ParseRole(string(a.Role)); err != nil {
				return nil, apperror.ValidationFailed("role", err.Error())
			}
			return nil, s.impl.AssignCallerUserRole(ctx, a.User, a.Role)
		},
	}
}

// nullable makes a nil *UserProfile encode as {"ok": null} instead of
// being dropped as a void result.
func nullable(p *model.UserProfile) any {
	if p == nil {
		return json.RawMessage("null")
	}
	return p
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperror.ValidationFailed("", "malformed arguments")
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, method string, err error) {
	we, status := encodeError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("rpc failed", slog.String("method", method), slog.String("error", err.Error()))
	}
	writeEnvelope(w, status, envelope{Err: &we})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"

	"shiftdesk/internal/config"
	"shiftdesk/internal/domain"
	"shiftdesk/internal/wire"
)

const maxFormMemory = 10 << 20

// AuthConfig holds what the backend checks on every API request.
type AuthConfig struct {
	// CSRFToken must arrive both as header and as form field on writes.
	CSRFToken string
	Logger    *zap.Logger
}

type actorKey struct{}

func withActor(ctx context.Context, p domain.Person) context.Context {
	return context.WithValue(ctx, actorKey{}, p)
}

func actorFromContext(ctx context.Context) (domain.Person, bool) {
	p, ok := ctx.Value(actorKey{}).(domain.Person)
	return p, ok && p.ID != ""
}

func requireActor(ctx context.Context) (domain.Person, huma.StatusError) {
	if p, ok := actorFromContext(ctx); ok {
		return p, nil
	}
	return domain.Person{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

// newActorMiddleware resolves X-Actor-Id against the roster for every
// /api/ request. Unknown actors are refused when a roster is configured.
func newActorMiddleware(cfg *config.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, "/api/") {
				next.ServeHTTP(w, req)
				return
			}
			id := strings.TrimSpace(req.Header.Get(wire.HeaderActor))
			if id == "" {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
				return
			}
			actor := domain.Person{ID: id, Name: id}
			if len(cfg.Roster) > 0 {
				p, ok := cfg.Person(id)
				if !ok {
					logger.Warn("unknown actor", zap.String("actor_id", id), zap.String("path", req.URL.Path))
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				actor = p
			}
			next.ServeHTTP(w, req.WithContext(withActor(req.Context(), actor)))
		})
	}
}

// newCSRFMiddleware parses the form of unsafe requests and compares both
// token copies with the configured one.
func newCSRFMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodGet || req.Method == http.MethodHead || req.Method == http.MethodOptions {
				next.ServeHTTP(w, req)
				return
			}
			if err := req.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
				respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid form body", nil))
				return
			}
			header := req.Header.Get(wire.HeaderCSRF)
			field := req.PostFormValue(wire.FieldCSRF)
			if !tokenMatches(cfg.CSRFToken, header) || !tokenMatches(cfg.CSRFToken, field) {
				respondStatusError(w, newAPIError(http.StatusForbidden, "csrf_failed", "CSRF verification failed", nil))
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func tokenMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

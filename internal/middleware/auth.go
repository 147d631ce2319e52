package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/keyvend/keyvend/internal/auth"
	"github.com/keyvend/keyvend/internal/cache"
	"github.com/keyvend/keyvend/internal/model"
)

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	// Tokens is the static list of accepted service tokens.
	Tokens []model.ServiceToken
	// Cache, when set, short-circuits repeated argon2 verification.
	Cache *cache.Cache
}

// Auth returns a middleware that authenticates service requests.
// The bearer token is verified against the configured token hashes and
// the resulting auth context is injected into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				authFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w)
				return
			}

			if !auth.ValidateTokenFormat(token) {
				authFailure(cfg.Logger, r, "invalid_format")
				writeAuthError(w)
				return
			}

			// Check cache first: argon2 verification is deliberately slow.
			cacheKey := auth.QuickHash(token)
			if cfg.Cache != nil {
				if cached, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); cached != nil {
					ctx := auth.ContextWithAuth(r.Context(), cached)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			var matched *model.ServiceToken
			for i := range cfg.Tokens {
				ok, err := auth.VerifyToken(token, cfg.Tokens[i].Hash)
				if err != nil {
					continue
				}
				if ok {
					matched = &cfg.Tokens[i]
					break
				}
			}
			if matched == nil {
				authFailure(cfg.Logger, r, "invalid_token")
				writeAuthError(w)
				return
			}

			authCtx := &model.AuthContext{
				TokenName: matched.Name,
				Scopes:    matched.Scopes,
			}
			if cfg.Cache != nil {
				_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)
			}

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractToken extracts the service token from the request.
// Supports "Authorization: Bearer <token>" and "X-Service-Token: <token>".
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get("X-Service-Token")
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing service token"}}`))
}

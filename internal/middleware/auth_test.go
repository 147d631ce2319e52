package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keyvend/keyvend/internal/auth"
	"github.com/keyvend/keyvend/internal/model"
)

func newAuthMiddleware(t *testing.T) (func(http.Handler) http.Handler, string) {
	t.Helper()

	token, err := auth.GenerateToken(auth.EnvTest)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	mw := Auth(AuthConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tokens: []model.ServiceToken{
			{Name: "test-frontend", Scopes: []string{model.ScopeRead, model.ScopeWrite}, Hash: token.Hash},
		},
	})
	return mw, token.Plaintext
}

func TestAuth_ValidBearerToken(t *testing.T) {
	t.Parallel()

	mw, plaintext := newAuthMiddleware(t)

	var got *model.AuthContext
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.TokenName != "test-frontend" {
		t.Errorf("auth context = %+v", got)
	}
	if !got.HasScope(model.ScopeWrite) {
		t.Error("auth context missing write scope")
	}
}

func TestAuth_HeaderFallback(t *testing.T) {
	t.Parallel()

	mw, plaintext := newAuthMiddleware(t)
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Service-Token", plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	mw, _ := newAuthMiddleware(t)
	handler := mw(okHandler())

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"malformed token", "not-a-token"},
		{"well-formed but unknown", "kv_test_aaaaaa_00112233445566778899aabbccddeeff"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keyvend/keyvend/internal/auth"
	"github.com/keyvend/keyvend/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithScopes(scopes []string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if scopes == nil {
		return req
	}
	ctx := auth.ContextWithAuth(req.Context(), &model.AuthContext{
		TokenName: "test-token",
		Scopes:    scopes,
	})
	return req.WithContext(ctx)
}

func TestRequireScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		scopes     []string
		required   []string
		wantStatus int
	}{
		{"no auth context", nil, []string{model.ScopeRead}, http.StatusUnauthorized},
		{"matching scope", []string{model.ScopeRead}, []string{model.ScopeRead}, http.StatusOK},
		{"missing scope", []string{model.ScopeRead}, []string{model.ScopeWrite}, http.StatusForbidden},
		{"admin implies read", []string{model.ScopeAdmin}, []string{model.ScopeRead}, http.StatusOK},
		{"admin implies write", []string{model.ScopeAdmin}, []string{model.ScopeWrite}, http.StatusOK},
		{"any of several suffices", []string{model.ScopeWrite}, []string{model.ScopeRead, model.ScopeWrite}, http.StatusOK},
		{"read does not imply admin", []string{model.ScopeRead}, []string{model.ScopeAdmin}, http.StatusForbidden},
		{"empty scopes", []string{}, []string{model.ScopeRead}, http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := RequireScope(tt.required...)(okHandler())
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, requestWithScopes(tt.scopes))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireConvenienceWrappers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mw         func(http.Handler) http.Handler
		scopes     []string
		wantStatus int
	}{
		{"RequireRead with read", RequireRead(), []string{model.ScopeRead}, http.StatusOK},
		{"RequireWrite with read", RequireWrite(), []string{model.ScopeRead}, http.StatusForbidden},
		{"RequireAdmin with write", RequireAdmin(), []string{model.ScopeWrite}, http.StatusForbidden},
		{"RequireAdmin with admin", RequireAdmin(), []string{model.ScopeAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			tt.mw(okHandler()).ServeHTTP(rec, requestWithScopes(tt.scopes))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

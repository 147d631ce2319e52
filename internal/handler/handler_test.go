package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keyvend/keyvend/internal/entitlement"
	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/service"
	"github.com/keyvend/keyvend/internal/store"
	"github.com/keyvend/keyvend/internal/testutil"
)

type testEnv struct {
	router  chi.Router
	store   *store.Store
	checker *testutil.FakePaymentChecker
}

type testTarget struct{}

func (testTarget) PaymentURI(amount float64, reference string) string {
	return fmt.Sprintf("ton://transfer/wallet?amount=%.0f&text=%s", amount*1e9, reference)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testutil.NewLogger()
	st := testutil.NewStore(t)
	oracle := &testutil.FakeOracle{}
	checker := &testutil.FakePaymentChecker{}
	calc := entitlement.NewCalculator(oracle, nil, 3, logger, nil)

	keys := service.NewKeyService(st, calc, service.DefaultKeyValidity, logger, nil)
	admin := service.NewAdminService(st, nil, logger)
	payments := service.NewPaymentService(st, calc, nil, service.PaymentConfig{
		Checker: checker,
		Target:  testTarget{},
	}, logger, nil)

	keyHandler := NewKeyHandler(logger, st, keys)
	adminHandler := NewAdminHandler(logger, admin)
	paymentHandler := NewPaymentHandler(logger, payments)

	r := chi.NewRouter()
	r.Post("/users", keyHandler.RegisterUser)
	r.Post("/users/{user_id}/keys", keyHandler.IssueKey)
	r.Get("/users/{user_id}/keys", keyHandler.ListKeys)
	r.Get("/users/{user_id}/limit", keyHandler.Limit)
	r.Post("/admin/users/find", adminHandler.FindUser)
	r.Put("/admin/users/{user_id}/limit", adminHandler.SetManualLimit)
	r.Post("/payments", paymentHandler.CreatePayment)
	r.Post("/payments/{reference}/check", paymentHandler.CheckPayment)

	return &testEnv{router: r, store: st, checker: checker}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users", map[string]string{"user_id": "555", "username": "alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Missing user_id is rejected.
	rec = env.do(t, http.MethodPost, "/users", map[string]string{"username": "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIssueKeyEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/users/555/keys", map[string]string{"username": "alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	issued := decode[issuedKeyResponse](t, rec)
	if issued.Used != 1 || issued.Limit != 1 {
		t.Errorf("issued = %d/%d, want 1/1", issued.Used, issued.Limit)
	}
	if issued.Key == "" || issued.ID == "" {
		t.Errorf("incomplete response: %+v", issued)
	}

	// Trial limit reached: second issuance gets 409 with quota detail.
	rec = env.do(t, http.MethodPost, "/users/555/keys", map[string]string{"username": "alice"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %s", rec.Code, rec.Body.String())
	}
	var errResp struct {
		Error struct {
			Code  string `json:"code"`
			Limit int    `json:"limit"`
			Used  int    `json:"used"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Error.Code != "LIMIT_EXCEEDED" || errResp.Error.Limit != 1 || errResp.Error.Used != 1 {
		t.Errorf("error = %+v", errResp.Error)
	}
}

func TestListKeysEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/users/555/keys", map[string]string{"username": "alice"}); rec.Code != http.StatusCreated {
		t.Fatalf("issuing key: status %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/users/555/keys", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[listKeysResponse](t, rec)
	if len(resp.Keys) != 1 || resp.Keys[0].Expired {
		t.Errorf("keys = %+v", resp.Keys)
	}

	// Unknown user gets an empty list, not an error.
	rec = env.do(t, http.MethodGet, "/users/999/keys", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp = decode[listKeysResponse](t, rec)
	if len(resp.Keys) != 0 {
		t.Errorf("unknown user keys = %+v", resp.Keys)
	}
}

func TestLimitEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/users/555/limit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[limitResponse](t, rec)
	if resp.Limit != 1 || resp.Used != 0 {
		t.Errorf("limit = %+v, want 1/0", resp)
	}
}

func TestAdminEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/users", map[string]string{"user_id": "555", "username": "alice"}); rec.Code != http.StatusCreated {
		t.Fatalf("registering user: status %d", rec.Code)
	}

	// Find by username.
	rec := env.do(t, http.MethodPost, "/admin/users/find", map[string]string{"query": "@alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("find status = %d, body %s", rec.Code, rec.Body.String())
	}
	summary := decode[service.UserSummary](t, rec)
	if summary.ID != "555" {
		t.Errorf("found id = %q, want 555", summary.ID)
	}

	// Unknown user.
	rec = env.do(t, http.MethodPost, "/admin/users/find", map[string]string{"query": "@nobody"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("find unknown status = %d, want 404", rec.Code)
	}

	// Set a manual limit.
	rec = env.do(t, http.MethodPut, "/admin/users/555/limit", map[string]int{"limit": 8})
	if rec.Code != http.StatusOK {
		t.Fatalf("set limit status = %d, body %s", rec.Code, rec.Body.String())
	}
	summary = decode[service.UserSummary](t, rec)
	if summary.ManualLimit == nil || *summary.ManualLimit != 8 {
		t.Errorf("manual limit = %v, want 8", summary.ManualLimit)
	}

	// Negative limit is rejected.
	rec = env.do(t, http.MethodPut, "/admin/users/555/limit", map[string]int{"limit": -1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}

	// Unknown user id.
	rec = env.do(t, http.MethodPut, "/admin/users/999/limit", map[string]int{"limit": 5})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", rec.Code)
	}
}

func TestPaymentEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	rec := env.do(t, http.MethodPost, "/payments", map[string]string{"user_id": "555", "username": "alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	intent := decode[service.PaymentIntent](t, rec)
	if intent.Reference == "" || intent.URI == "" {
		t.Fatalf("intent = %+v", intent)
	}

	// Unpaid check reports paid=false and leaves the intent pending.
	rec = env.do(t, http.MethodPost, "/payments/"+intent.Reference+"/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d, body %s", rec.Code, rec.Body.String())
	}
	check := decode[checkPaymentResponse](t, rec)
	if check.Paid {
		t.Error("unpaid intent reported as paid")
	}

	env.checker.MarkPaid(intent.Reference)
	rec = env.do(t, http.MethodPost, "/payments/"+intent.Reference+"/check", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("paid check status = %d", rec.Code)
	}
	check = decode[checkPaymentResponse](t, rec)
	if !check.Paid || check.UserID != "555" || check.NewLimit != 2 {
		t.Errorf("check = %+v, want paid user 555 limit 2", check)
	}

	err := env.store.View(ctx, func(snap *model.Snapshot) error {
		if _, ok := snap.Pending[intent.Reference]; ok {
			t.Error("reconciled reference still pending")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	// Re-checking a consumed reference is a 404.
	rec = env.do(t, http.MethodPost, "/payments/"+intent.Reference+"/check", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat check status = %d, want 404", rec.Code)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("NotFound status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/users", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("MethodNotAllowed status = %d", rec.Code)
	}
}

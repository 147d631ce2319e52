package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keyvend/keyvend/internal/entitlement"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("test-token", discardLogger(), WithBaseURL(server.URL))
}

func TestChatMemberStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  string
		want    entitlement.MembershipStatus
		wantErr bool
	}{
		{"member", "member", entitlement.StatusMember, false},
		{"administrator", "administrator", entitlement.StatusAdministrator, false},
		{"creator", "creator", entitlement.StatusCreator, false},
		{"left", "left", entitlement.StatusLeft, false},
		{"kicked", "kicked", entitlement.StatusKicked, false},
		{"unknown status rejected", "lurker", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/bottest-token/getChatMember" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var payload map[string]int64
				if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
					t.Errorf("decoding request: %v", err)
				}
				if payload["chat_id"] != -100 || payload["user_id"] != 555 {
					t.Errorf("payload = %v", payload)
				}
				fmt.Fprintf(w, `{"ok":true,"result":{"status":%q}}`, tt.status)
			})

			got, err := client.ChatMemberStatus(context.Background(), -100, 555)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ChatMemberStatus: %v", err)
			}
			if got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChatMemberStatus_APIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: user not found"}`)
	})

	_, err := client.ChatMemberStatus(context.Background(), -100, 555)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != 400 || apiErr.Method != "getChatMember" {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestNotify(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	})

	if err := client.Notify(context.Background(), "555", "hello"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got["chat_id"] != "555" || got["text"] != "hello" {
		t.Errorf("payload = %v", got)
	}
}

func TestNotify_Failure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	})

	if err := client.Notify(context.Background(), "555", "hello"); err == nil {
		t.Fatal("expected error for blocked bot")
	}
}

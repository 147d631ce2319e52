package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/store"
)

// UserQuery identifies a user either by numeric id or by username.
type UserQuery struct {
	ByID       string
	ByUsername string
}

// ParseQuery interprets an admin lookup string. All-digit input is
// treated as a user id; "@name" or a bare name is a username lookup.
func ParseQuery(raw string) (UserQuery, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UserQuery{}, ErrUserNotFound
	}
	if isDigits(raw) {
		return UserQuery{ByID: raw}, nil
	}
	return UserQuery{ByUsername: strings.TrimPrefix(raw, "@")}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// UserSummary is the admin-facing view of a user record.
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	ManualLimit *int   `json:"manual_limit"`
	KeysUsed    int    `json:"keys_used"`
}

// AdminService performs privileged user lookups and limit overrides.
type AdminService struct {
	store    *store.Store
	notifier Notifier
	logger   *slog.Logger
}

// NewAdminService creates an AdminService. The notifier may be nil.
func NewAdminService(st *store.Store, notifier Notifier, logger *slog.Logger) *AdminService {
	return &AdminService{
		store:    st,
		notifier: notifier,
		logger:   logger.With("component", "service.admin"),
	}
}

// FindUser resolves a query to a user summary. Username lookups scan
// records in ascending id order so repeated queries resolve the same
// user even when usernames collide.
func (s *AdminService) FindUser(ctx context.Context, query UserQuery) (*UserSummary, error) {
	var summary *UserSummary
	err := s.store.View(ctx, func(snap *model.Snapshot) error {
		var (
			id     string
			record *model.UserRecord
		)
		switch {
		case query.ByID != "":
			id = query.ByID
			record = snap.Users[id]
		case query.ByUsername != "":
			if foundID, ok := snap.FindUserByUsername(query.ByUsername); ok {
				id = foundID
				record = snap.Users[foundID]
			}
		}
		if record == nil {
			return ErrUserNotFound
		}
		summary = &UserSummary{
			ID:          id,
			Username:    record.Username,
			ManualLimit: record.ManualLimit,
			KeysUsed:    len(record.Keys),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// SetManualLimit overwrites a user's manual limit and notifies them on
// a best-effort basis. The user must already exist.
func (s *AdminService) SetManualLimit(ctx context.Context, userID string, limit int) (*UserSummary, error) {
	var summary *UserSummary
	err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		record, ok := snap.Users[userID]
		if !ok {
			return ErrUserNotFound
		}
		value := limit
		record.ManualLimit = &value
		summary = &UserSummary{
			ID:          userID,
			Username:    record.Username,
			ManualLimit: record.ManualLimit,
			KeysUsed:    len(record.Keys),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual limit set", "user_id", userID, "limit", limit)
	notifyBestEffort(ctx, s.notifier, s.logger, userID,
		fmt.Sprintf("Your key limit was updated to %d.", limit))
	return summary, nil
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/keyvend/keyvend/internal/entitlement"
	"github.com/keyvend/keyvend/internal/metrics"
	"github.com/keyvend/keyvend/internal/model"
	"github.com/keyvend/keyvend/internal/store"
)

const (
	credentialPrefix = "KVN-"
	// credentialBytes yields 8 hex characters, 32 bits of entropy from
	// crypto/rand per credential.
	credentialBytes      = 4
	maxCredentialRetries = 5

	// DefaultKeyValidity is how long a freshly issued key stays usable.
	DefaultKeyValidity = 30 * 24 * time.Hour
)

// KeyService issues and lists access keys.
type KeyService struct {
	store    *store.Store
	calc     *entitlement.Calculator
	validity time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewKeyService creates a KeyService.
func NewKeyService(st *store.Store, calc *entitlement.Calculator, validity time.Duration, logger *slog.Logger, recorder metrics.Recorder) *KeyService {
	if validity <= 0 {
		validity = DefaultKeyValidity
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &KeyService{
		store:    st,
		calc:     calc,
		validity: validity,
		logger:   logger.With("component", "service.keys"),
		metrics:  recorder,
	}
}

// IssuedKey is the result of a successful issuance.
type IssuedKey struct {
	Key   model.Key
	Used  int
	Limit int
}

// IssueKey mints a new key for the user when their quota allows it.
// Returns *LimitExceededError, without any mutation, when the user has
// already used up their limit.
//
// Membership oracle I/O happens before the store transaction; the
// manual override and the used-key count are re-read inside it, so a
// concurrent limit change or issuance can never over-issue.
func (s *KeyService) IssueKey(ctx context.Context, userID, username string) (*IssuedKey, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveIssueDuration(time.Since(start))
	}()

	bonus := s.calc.MembershipBonus(ctx, userID)

	var issued *IssuedKey
	err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		record := snap.EnsureUser(userID, username)

		limit := entitlement.LimitFromBonus(record, bonus)
		used := len(record.Keys)
		if used >= limit {
			return &LimitExceededError{Limit: limit, Used: used}
		}

		credential, err := s.uniqueCredential(snap)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		key := model.Key{
			ID:         ulid.Make().String(),
			Credential: credential,
			CreatedAt:  now,
			ValidUntil: now.Add(s.validity),
		}
		record.AppendKey(key)

		issued = &IssuedKey{Key: key, Used: len(record.Keys), Limit: limit}
		return nil
	})
	if err != nil {
		var limitErr *LimitExceededError
		if errors.As(err, &limitErr) {
			s.metrics.IncLimitExceeded()
		}
		return nil, err
	}

	s.metrics.IncKeyIssued()
	s.logger.Info("key issued",
		"user_id", userID,
		"key_id", issued.Key.ID,
		"used", issued.Used,
		"limit", issued.Limit,
	)
	return issued, nil
}

// ListKeys returns the user's keys in issuance order, each classified
// as active or expired. Listing is a pure read: expired keys are
// reported but never purged.
func (s *KeyService) ListKeys(ctx context.Context, userID string) ([]model.ListedKey, error) {
	out := []model.ListedKey{}
	err := s.store.View(ctx, func(snap *model.Snapshot) error {
		record, ok := snap.Users[userID]
		if !ok {
			return nil
		}
		now := time.Now()
		for i := range record.Keys {
			out = append(out, model.ListedKey{
				Key:     record.Keys[i],
				Expired: record.Keys[i].IsExpired(now),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Limit reports the user's current entitlement and usage.
func (s *KeyService) Limit(ctx context.Context, userID string) (limit, used int, err error) {
	record := &model.UserRecord{}
	err = s.store.View(ctx, func(snap *model.Snapshot) error {
		if existing, ok := snap.Users[userID]; ok {
			record.ManualLimit = existing.ManualLimit
			used = len(existing.Keys)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return s.calc.ComputeLimit(ctx, userID, record), used, nil
}

// uniqueCredential generates a credential that does not collide with
// any key already in the store, retrying a bounded number of times.
func (s *KeyService) uniqueCredential(snap *model.Snapshot) (string, error) {
	for i := 0; i < maxCredentialRetries; i++ {
		credential, err := generateCredential()
		if err != nil {
			return "", err
		}
		if !snap.CredentialExists(credential) {
			return credential, nil
		}
	}
	return "", errors.New("failed to generate unique credential after retries")
}

// generateCredential mints a random credential using crypto/rand.
func generateCredential() (string, error) {
	b := make([]byte, credentialBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return credentialPrefix + strings.ToUpper(hex.EncodeToString(b)), nil
}

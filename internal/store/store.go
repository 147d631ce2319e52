// Package store provides durable snapshot persistence.
//
// The whole application state is one snapshot; every mutation is a
// load-mutate-save cycle serialized through a single mutex, so
// concurrent requests can never lose each other's updates and the key
// issuer can never double-issue at the limit boundary.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/keyvend/keyvend/internal/model"
)

// ErrNotFound is returned by a Backend when no snapshot was ever saved.
var ErrNotFound = errors.New("snapshot not found")

// Backend persists raw snapshot bytes. Save overwrites the prior
// content in full; there is no append or merge.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Store owns all read/modify/persist cycles against the snapshot.
// Raw snapshots never escape the Update/View callbacks.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
}

// New creates a Store over the given backend.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger.With("component", "store"),
	}
}

// Update runs one transactional load-mutate-save cycle. The callback
// may mutate the snapshot freely; if it returns an error nothing is
// persisted and the error is returned unchanged.
func (s *Store) Update(ctx context.Context, fn func(*model.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.load(ctx)
	if err := fn(snap); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.backend.Save(ctx, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// View runs fn against the current snapshot without persisting.
func (s *Store) View(ctx context.Context, fn func(*model.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.load(ctx))
}

// EnsureUser registers a user or refreshes their display name.
func (s *Store) EnsureUser(ctx context.Context, id, username string) error {
	return s.Update(ctx, func(snap *model.Snapshot) error {
		snap.EnsureUser(id, username)
		return nil
	})
}

// Ping checks backend connectivity where the backend supports it.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// load decodes the current snapshot. Missing or corrupt data degrades
// to the empty snapshot with a warning; a broken backing store is never
// fatal to a request.
func (s *Store) load(ctx context.Context) *model.Snapshot {
	data, err := s.backend.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("snapshot unreadable, starting empty", "error", err)
		}
		return model.NewSnapshot()
	}

	snap := &model.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		s.logger.Warn("snapshot corrupt, starting empty", "error", err)
		return model.NewSnapshot()
	}
	snap.Normalize()
	return snap
}

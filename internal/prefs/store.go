// Package prefs holds the process-wide notification preferences.
//
// Readers get an immutable snapshot through an atomic pointer; writers are
// serialized, persist the merged value first and only then publish it.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"alert-delivery/internal/models"
)

// Key is the storage key the preferences are persisted under.
const Key = "notification_preferences"

// KV is the durable key-value storage the store persists to.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store owns the current preferences snapshot.
type Store struct {
	kv       KV
	defaults models.NotificationPreferences
	logger   zerolog.Logger

	current atomic.Pointer[models.NotificationPreferences]
	mu      sync.Mutex // serializes writers
}

// New creates a store and loads persisted preferences.
// Missing or unreadable data falls back to defaults with a warning.
func New(ctx context.Context, kv KV, defaults models.NotificationPreferences, logger zerolog.Logger) *Store {
	if kv == nil {
		kv = NewMemoryKV()
	}
	s := &Store{
		kv:       kv,
		defaults: defaults.Normalize(),
		logger:   logger.With().Str("component", "prefs").Logger(),
	}
	loaded := s.load(ctx)
	s.current.Store(&loaded)
	return s
}

func (s *Store) load(ctx context.Context) models.NotificationPreferences {
	data, ok, err := s.kv.Get(ctx, Key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read preferences, using defaults")
		return s.defaults
	}
	if !ok {
		return s.defaults
	}

	var p models.NotificationPreferences
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn().Err(err).Msg("Stored preferences are corrupt, using defaults")
		return s.defaults
	}
	return p.Normalize()
}

// Preferences returns the current snapshot by value.
func (s *Store) Preferences() models.NotificationPreferences {
	return *s.current.Load()
}

// Update validates and merges a partial update, persists the result and
// publishes it. On any error the current preferences are unchanged.
func (s *Store) Update(ctx context.Context, upd models.PreferencesUpdate) (models.NotificationPreferences, error) {
	if err := upd.Validate(); err != nil {
		return s.Preferences(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Merge(upd)
	if err := s.persist(ctx, next); err != nil {
		return s.Preferences(), err
	}
	s.current.Store(&next)

	s.logger.Info().
		Bool("in_app", next.InApp.Enabled).
		Bool("sound", next.Sound.Enabled).
		Bool("webhook", next.Webhook.Enabled).
		Msg("Preferences updated")
	return next, nil
}

// Reset restores and persists the defaults.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.defaults
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.current.Store(&next)
	s.logger.Info().Msg("Preferences reset to defaults")
	return nil
}

func (s *Store) persist(ctx context.Context, p models.NotificationPreferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.kv.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("failed to persist preferences: %w", err)
	}
	return nil
}

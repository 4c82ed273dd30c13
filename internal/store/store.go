package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

// DirectiveStore serves the daily head directive from a JSON file,
// re-read on demand. Absence of the file or a stale date is valid and
// yields no directive.
type DirectiveStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger

	cached   *model.Directive
	loadedAt time.Time
}

// NewDirectiveStore creates a store over the given file path.
func NewDirectiveStore(path string, logger zerolog.Logger) *DirectiveStore {
	return &DirectiveStore{path: path, log: logger.With().Str("component", "store").Logger()}
}

// Active returns the directive applying to the given day, reloading
// the file when the cache is older than maxAge. Missing or unreadable
// files return nil (no directive), never an error.
func (s *DirectiveStore) Active(now time.Time, maxAge time.Duration) *model.Directive {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil || now.Sub(s.loadedAt) > maxAge {
		s.cached = s.load()
		s.loadedAt = now
	}
	if s.cached != nil && s.cached.ActiveOn(now) {
		d := *s.cached
		return &d
	}
	return nil
}

func (s *DirectiveStore) load() *model.Directive {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("directive unreadable, treating as absent")
		}
		return nil
	}
	var d model.Directive
	if err := json.Unmarshal(data, &d); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("directive malformed, treating as absent")
		return nil
	}
	return &d
}

// FeedbackStore serves the diary feedback snapshot (latest wins). The
// core's only write path is SetNeutralOverride, issued by the
// directive-divergence auto-suspend.
type FeedbackStore struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger

	cached   *model.Feedback
	loadedAt time.Time
}

// NewFeedbackStore creates a store over the given file path.
func NewFeedbackStore(path string, logger zerolog.Logger) *FeedbackStore {
	return &FeedbackStore{path: path, log: logger.With().Str("component", "store").Logger()}
}

// Latest returns the current feedback snapshot, reloading when the
// cache is older than maxAge. Missing files yield nil.
func (s *FeedbackStore) Latest(now time.Time, maxAge time.Duration) *model.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil || now.Sub(s.loadedAt) > maxAge {
		loaded := s.load()
		if loaded != nil {
			// Preserve an in-process override across reloads of an
			// older file snapshot.
			if s.cached != nil && s.cached.NeutralOverride && loaded.UpdatedAt.Before(s.cached.UpdatedAt) {
				loaded.NeutralOverride = true
			}
			s.cached = loaded
		}
		s.loadedAt = now
	}
	if s.cached == nil {
		return nil
	}
	fb := *s.cached
	return &fb
}

// SetNeutralOverride flips the override flag and persists the updated
// snapshot so directional directive filters stop vetoing trades.
func (s *FeedbackStore) SetNeutralOverride(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		s.cached = &model.Feedback{}
	}
	s.cached.NeutralOverride = true
	s.cached.UpdatedAt = now

	data, err := json.MarshalIndent(s.cached, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	s.log.Warn().Msg("neutral override written to feedback store")
	return nil
}

func (s *FeedbackStore) load() *model.Feedback {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("feedback unreadable, treating as absent")
		}
		return nil
	}
	var fb model.Feedback
	if err := json.Unmarshal(data, &fb); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("feedback malformed, treating as absent")
		return nil
	}
	return &fb
}

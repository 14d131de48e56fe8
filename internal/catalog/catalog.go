// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
)

// ErrImagesUnsupported is returned when an image is sent to a model whose
// catalog entry reports no image support.
var ErrImagesUnsupported = errors.New("selected model does not accept images")

// Lister fetches the backend model catalog.
type Lister interface {
	ListModels(ctx context.Context) ([]model.ModelInfo, error)
}

// Selector tracks the selected model and the catalog.
type Selector struct {
	mu      sync.RWMutex
	current string
	models  []model.ModelInfo
	loaded  bool
	// fallback is true when the catalog came from FallbackCatalog.
	fallback bool

	lister Lister
	log    logrus.FieldLogger
}

// NewSelector creates a selector with defaultID selected and the fallback
// catalog in place until Load succeeds. An empty defaultID selects
// model.DefaultModelID.
func NewSelector(l Lister, defaultID string, log logrus.FieldLogger) *Selector {
	if strings.TrimSpace(defaultID) == "" {
		defaultID = model.DefaultModelID
	}
	return &Selector{
		current:  defaultID,
		models:   model.FallbackCatalog(),
		fallback: true,
		lister:   l,
		log:      logging.OrDiscard(log),
	}
}

// Load fetches the catalog once. Later calls are served from memory. On
// failure the fallback catalog is kept and the error is logged.
func (s *Selector) Load(ctx context.Context) ([]model.ModelInfo, error) {
	s.mu.RLock()
	if s.loaded {
		out := s.copyLocked()
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()
	return s.Refresh(ctx)
}

// Refresh fetches the catalog unconditionally.
func (s *Selector) Refresh(ctx context.Context) ([]model.ModelInfo, error) {
	if s.lister == nil {
		return s.markLoaded(nil, errors.New("no model lister configured"))
	}
	models, err := s.lister.ListModels(ctx)
	if err == nil && len(models) == 0 {
		err = errors.New("backend returned an empty model catalog")
	}
	return s.markLoaded(models, err)
}

func (s *Selector) markLoaded(models []model.ModelInfo, err error) ([]model.ModelInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if err != nil {
		s.log.WithError(err).Warn("failed to load model catalog; using fallback")
		s.models = model.FallbackCatalog()
		s.fallback = true
		return s.copyLocked(), fmt.Errorf("load models: %w", err)
	}
	s.models = append([]model.ModelInfo(nil), models...)
	s.fallback = false
	s.log.WithField("count", len(models)).Debug("model catalog loaded")
	return s.copyLocked(), nil
}

// Catalog returns a copy of the catalog.
func (s *Selector) Catalog() []model.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// IsFallback reports whether the catalog is the built-in fallback.
func (s *Selector) IsFallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

// Current returns the selected model id.
func (s *Selector) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrent selects id. Ids outside the catalog are accepted since the
// backend owns the model registry.
func (s *Selector) SetCurrent(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("model id is empty")
	}
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
	return nil
}

// Next selects the catalog entry after the current one, wrapping around.
func (s *Selector) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.models) == 0 {
		return s.current
	}
	next := 0
	for i, m := range s.models {
		if m.ID == s.current {
			next = (i + 1) % len(s.models)
			break
		}
	}
	s.current = s.models[next].ID
	return s.current
}

// Lookup returns the catalog entry for id.
func (s *Selector) Lookup(id string) (model.ModelInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.models {
		if m.ID == id {
			return m, true
		}
	}
	return model.ModelInfo{}, false
}

// SupportsImages reports whether id accepts images. Ids missing from the
// catalog are text only.
func (s *Selector) SupportsImages(id string) bool {
	m, ok := s.Lookup(id)
	return ok && m.SupportsImages
}

// CheckImage returns ErrImagesUnsupported unless id is in the catalog with
// image support.
func (s *Selector) CheckImage(id string) error {
	if s.SupportsImages(id) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrImagesUnsupported, id)
}

func (s *Selector) copyLocked() []model.ModelInfo {
	out := make([]model.ModelInfo, len(s.models))
	copy(out, s.models)
	return out
}

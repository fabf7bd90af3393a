package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound       = errors.New("collection not found")
	ErrSchemaMismatch = errors.New("collection schema mismatch")
)

const manifestFile = "manifest.json"

// manifest is the self-describing header of a persisted collection; it
// is enough to recover (model id, dimension) on load without any
// external metadata.
type manifest struct {
	Name      string    `json:"name"`
	ModelID   string    `json:"embedding_model_id"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages named vector collections persisted under one root
// directory. The on-disk state is the sole source of truth across
// process restarts.
type Store struct {
	root string

	mu   sync.Mutex
	open map[string]*Collection
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &Store{root: root, open: make(map[string]*Collection)}, nil
}

// Create opens or creates a collection. Creating an existing
// collection with matching model id and dimension is a no-op success;
// a different model id or dimension is a schema mismatch.
func (s *Store) Create(name, modelID string, dimension int) (*Collection, error) {
	if name == "" || modelID == "" {
		return nil, fmt.Errorf("create: collection name and model id are required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("create: dimension must be > 0, got %d", dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.open[name]; ok {
		if c.modelID != modelID || c.dimension != dimension {
			return nil, fmt.Errorf("create: %w: collection %q has (%s, %d), requested (%s, %d)",
				ErrSchemaMismatch, name, c.modelID, c.dimension, modelID, dimension)
		}
		return c, nil
	}

	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(filepath.Join(dir, manifestFile)); err == nil {
		c, err := s.load(name)
		if err != nil {
			return nil, err
		}
		if c.modelID != modelID || c.dimension != dimension {
			return nil, fmt.Errorf("create: %w: collection %q has (%s, %d), requested (%s, %d)",
				ErrSchemaMismatch, name, c.modelID, c.dimension, modelID, dimension)
		}
		s.open[name] = c
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create: failed to create collection dir: %w", err)
	}
	m := manifest{Name: name, ModelID: modelID, Dimension: dimension, CreatedAt: time.Now().UTC()}
	if err := writeManifest(dir, m); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	log.Debug().Str("collection", name).Str("model", modelID).Int("dimension", dimension).
		Msg("created collection")

	c := &Collection{name: name, modelID: modelID, dimension: dimension, dir: dir}
	s.open[name] = c
	return c, nil
}

// Load reconstructs a collection from its persisted state.
func (s *Store) Load(name string) (*Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.open[name]; ok {
		return c, nil
	}
	c, err := s.load(name)
	if err != nil {
		return nil, err
	}
	s.open[name] = c
	return c, nil
}

// Delete removes a collection and its on-disk state.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.open, name)
	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("delete: %w: %s", ErrNotFound, name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete: failed to remove collection %q: %w", name, err)
	}
	return nil
}

func (s *Store) load(name string) (*Collection, error) {
	dir := filepath.Join(s.root, name)
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load: %w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("load: failed to read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("load: %w: unreadable manifest for %q: %v", ErrSchemaMismatch, name, err)
	}
	if m.ModelID == "" || m.Dimension <= 0 {
		return nil, fmt.Errorf("load: %w: manifest for %q is missing model id or dimension", ErrSchemaMismatch, name)
	}

	c := &Collection{name: name, modelID: m.ModelID, dimension: m.Dimension, dir: dir}
	if err := c.replay(); err != nil {
		return nil, err
	}
	log.Debug().Str("collection", name).Int("records", len(c.records)).Msg("loaded collection")
	return c, nil
}

func writeManifest(dir string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	tmp := filepath.Join(dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, manifestFile)); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docrag/internal/embedding"
	"docrag/internal/models"
)

// VectorRecord is one persisted entry: the embedding plus a
// denormalized copy of the chunk, so retrieval needs no join.
type VectorRecord struct {
	ChunkID   string
	Embedding []float32
	Chunk     models.Chunk
}

// Collection is a named set of vector records tied to one embedding
// model. Appends are serialized; searches take a consistent snapshot
// and never observe a partially written batch.
type Collection struct {
	name      string
	modelID   string
	dimension int
	dir       string

	wmu     sync.Mutex // serializes append/persist
	mu      sync.RWMutex
	records []VectorRecord
	nextSeg int
}

func (c *Collection) Name() string    { return c.name }
func (c *Collection) ModelID() string { return c.modelID }
func (c *Collection) Dimension() int  { return c.dimension }

func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Append embeds each chunk and stores the batch durably before it
// becomes queryable. The batch is atomic: an embedding failure or a
// persistence failure leaves the collection untouched.
func (c *Collection) Append(ctx context.Context, chunks []models.Chunk, embed embedding.Func) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	batch := make([]VectorRecord, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := embed(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("embed: failed on chunk %s: %w", chunk.ID, err)
		}
		if len(vec) != c.dimension {
			return 0, fmt.Errorf("embed: %w: got dimension %d, collection %q expects %d",
				ErrSchemaMismatch, len(vec), c.name, c.dimension)
		}
		batch = append(batch, VectorRecord{ChunkID: chunk.ID, Embedding: vec, Chunk: chunk})
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.persistSegment(batch); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	c.mu.Lock()
	c.records = append(c.records, batch...)
	c.nextSeg++
	c.mu.Unlock()

	return len(batch), nil
}

// Search ranks all (filtered) records by cosine similarity to the
// query embedding, ties broken by insertion order. Fewer than k
// matches is not an error.
func (c *Collection) Search(queryEmbedding []float32, k int, filter func(models.Chunk) bool) ([]models.ScoredChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("search: k must be >= 1, got %d", k)
	}
	if len(queryEmbedding) != c.dimension {
		return nil, fmt.Errorf("search: %w: query dimension %d, collection %q expects %d",
			ErrSchemaMismatch, len(queryEmbedding), c.name, c.dimension)
	}

	c.mu.RLock()
	scored := make([]models.ScoredChunk, 0, len(c.records))
	for _, rec := range c.records {
		if filter != nil && !filter(rec.Chunk) {
			continue
		}
		scored = append(scored, models.ScoredChunk{
			Chunk:      rec.Chunk,
			Similarity: cosineSimilarity(queryEmbedding, rec.Embedding),
		})
	}
	c.mu.RUnlock()

	// stable sort keeps insertion order for equal scores
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// persistSegment writes one batch as a numbered gob segment via
// tmp-file, fsync and rename, so a crash mid-write never leaves a
// readable half segment.
func (c *Collection) persistSegment(batch []VectorRecord) error {
	name := fmt.Sprintf("seg-%06d.gob", c.nextSeg)
	tmp := filepath.Join(c.dir, name+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(batch); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode segment: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync segment: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close segment: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit segment: %w", err)
	}
	return nil
}

// replay rebuilds the in-memory record list from the numbered
// segments, preserving append order.
func (c *Collection) replay() error {
	entries, err := filepath.Glob(filepath.Join(c.dir, "seg-*.gob"))
	if err != nil {
		return fmt.Errorf("load: failed to list segments: %w", err)
	}
	sort.Strings(entries)
	for _, path := range entries {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("load: failed to open segment %s: %w", filepath.Base(path), err)
		}
		var batch []VectorRecord
		err = gob.NewDecoder(f).Decode(&batch)
		f.Close()
		if err != nil {
			return fmt.Errorf("load: %w: corrupt segment %s: %v", ErrSchemaMismatch, filepath.Base(path), err)
		}
		for _, rec := range batch {
			if len(rec.Embedding) != c.dimension {
				return fmt.Errorf("load: %w: record %s has dimension %d, collection %q expects %d",
					ErrSchemaMismatch, rec.ChunkID, len(rec.Embedding), c.name, c.dimension)
			}
		}
		c.records = append(c.records, batch...)
		c.nextSeg++
	}
	return nil
}

// cosineSimilarity is the dot product over the magnitudes; zero
// vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

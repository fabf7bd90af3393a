package retriever

import (
	"context"
	"errors"
	"fmt"

	"docrag/internal/embedding"
	"docrag/internal/models"
	"docrag/internal/store"
)

var (
	// ErrModelMismatch means the collection was built with a different
	// embedding model than the retriever is configured with; querying
	// it would compare vectors from incompatible spaces.
	ErrModelMismatch = errors.New("embedding model mismatch")
	ErrInvalidTopK   = errors.New("invalid top_k")
)

// maxTopK bounds caller overrides of k.
const maxTopK = 50

// Retriever embeds a query with the same embedding function used at
// ingestion time and searches the collection.
type Retriever struct {
	col      *store.Collection
	embed    embedding.Func
	defaultK int
}

func New(col *store.Collection, embed embedding.Func, modelID string, defaultK int) (*Retriever, error) {
	if col.ModelID() != modelID {
		return nil, fmt.Errorf("retrieve: %w: collection %q was built with %q, retriever configured with %q",
			ErrModelMismatch, col.Name(), col.ModelID(), modelID)
	}
	if defaultK < 1 || defaultK > maxTopK {
		return nil, fmt.Errorf("retrieve: %w: default k %d not in [1, %d]", ErrInvalidTopK, defaultK, maxTopK)
	}
	return &Retriever{col: col, embed: embed, defaultK: defaultK}, nil
}

// Retrieve returns the top-k chunks for the query, ranked by cosine
// similarity. k == 0 falls back to the configured default; anything
// else outside [1, maxTopK] is rejected.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	if k == 0 {
		k = r.defaultK
	}
	if k < 1 || k > maxTopK {
		return nil, fmt.Errorf("retrieve: %w: k %d not in [1, %d]", ErrInvalidTopK, k, maxTopK)
	}
	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: failed to embed query: %w", err)
	}
	results, err := r.col.Search(vec, k, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	return results, nil
}

// Collection exposes the underlying collection for status reporting.
func (r *Retriever) Collection() *store.Collection { return r.col }

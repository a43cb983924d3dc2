package store

import (
	"context"
	"errors"

	"github.com/safetydesk/regis/pkg/models"
)

// ErrIndexCorrupt marks a persisted index that is present but cannot be
// decoded. It is deliberately distinct from "no index yet": a corrupt artifact
// must surface to the operator, not silently trigger a rebuild.
var ErrIndexCorrupt = errors.New("persisted index is corrupt")

// ErrNotBuilt is returned by Search/Count when no index has been built or
// loaded for this store.
var ErrNotBuilt = errors.New("index not built")

// PassageStore is a persisted nearest-neighbor index over passage embeddings.
// Contents change only through Replace, which swaps in a full corpus snapshot
// atomically; reads are safe to share across concurrent queries.
type PassageStore interface {
	// Ready reports whether a built index is present. An empty corpus still
	// yields a present (always-empty) index, so Ready distinguishes "built
	// over nothing" from "never built".
	Ready(ctx context.Context) (bool, error)
	// Replace atomically publishes a new index. len(vecs) must equal
	// len(passages); vecs[i] is the embedding of passages[i].
	Replace(ctx context.Context, passages []models.Passage, vecs [][]float32) error
	// Search returns up to k passages ordered by decreasing cosine similarity
	// to queryVec.
	Search(ctx context.Context, queryVec []float32, k int) ([]models.ScoredPassage, error)
	Count(ctx context.Context) (int, error)
}

// Package index maintains the in-memory embedding index used for
// semantic skill retrieval. Skill names and signature vectors live in
// two parallel slices; position i of one always refers to position i of
// the other. Rebuild is the only mutation and replaces both wholesale.
package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"skillforge/internal/embedding"
	"skillforge/internal/logging"
	"skillforge/internal/skill"
)

// Match is one retrieval hit. Index is the position in the current
// index snapshot, which follows registry scan order.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Index int     `json:"index"`
}

// Index scores queries against skill signature embeddings.
type Index struct {
	mu      sync.RWMutex
	engine  embedding.EmbeddingEngine
	names   []string
	vectors [][]float32
}

// New creates an empty index backed by the given embedding engine.
func New(engine embedding.EmbeddingEngine) *Index {
	return &Index{engine: engine}
}

// Rebuild replaces the index contents from the given skills, embedding
// each skill's SignatureText in order. Skills are embedded one at a time
// so a failure degrades only that entry: it gets a zero vector (which
// never wins a dot-product ranking) and the rebuild continues. Names and
// vectors are swapped in together, never piecemeal.
//
// A canceled context aborts the rebuild and leaves the previous index
// intact.
func (x *Index) Rebuild(ctx context.Context, skills []*skill.Skill) error {
	if x.engine == nil {
		return fmt.Errorf("index has no embedding engine")
	}

	timer := logging.StartTimer(logging.CategoryIndex, fmt.Sprintf("rebuild (%d skills)", len(skills)))

	names := make([]string, 0, len(skills))
	vectors := make([][]float32, 0, len(skills))
	degraded := 0
	for _, s := range skills {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rebuild aborted: %w", err)
		}
		vec, err := x.engine.Embed(ctx, s.SignatureText())
		if err != nil {
			logging.IndexWarn("Embedding failed for %s, storing zero vector: %v", s.Name, err)
			vec = make([]float32, x.engine.Dimensions())
			degraded++
		}
		names = append(names, s.Name)
		vectors = append(vectors, vec)
	}

	x.mu.Lock()
	x.names = names
	x.vectors = vectors
	x.mu.Unlock()

	timer.Stop()
	if degraded > 0 {
		logging.IndexWarn("Rebuild complete: %d skill(s), %d degraded to zero vectors", len(names), degraded)
	} else {
		logging.Index("Rebuild complete: %d skill(s)", len(names))
	}
	return nil
}

// TopK embeds the query and returns the min(k, Len()) best skills by
// unnormalized dot product, descending. Ties keep insertion order. An
// empty index returns an empty slice and no error. A query-embedding
// failure returns an empty slice plus the error; callers treat that as
// "no candidates" rather than aborting the turn.
func (x *Index) TopK(ctx context.Context, query string, k int) ([]Match, error) {
	x.mu.RLock()
	names := x.names
	vectors := x.vectors
	x.mu.RUnlock()

	if len(names) == 0 || k <= 0 {
		return []Match{}, nil
	}

	queryVec, err := x.engine.Embed(ctx, query)
	if err != nil {
		logging.IndexWarn("Query embedding failed: %v", err)
		return []Match{}, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]Match, 0, len(names))
	for i := range names {
		score, err := embedding.DotProduct(queryVec, vectors[i])
		if err != nil {
			// Dimension drift (engine swapped under a stale index) scores
			// like a zero vector rather than killing the query.
			logging.IndexWarn("Scoring %s failed: %v", names[i], err)
			score = 0
		}
		matches = append(matches, Match{Name: names[i], Score: score, Index: i})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Len returns the number of indexed skills.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

// Names returns the indexed skill names in index order.
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.names))
	copy(out, x.names)
	return out
}

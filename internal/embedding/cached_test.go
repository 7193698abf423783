package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestCachedEngineMissThenHit(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 4}
	cache := newMemCache()
	engine := NewCachedEngine(inner, cache)

	ctx := context.Background()

	// First call: miss, embeds through inner, stores
	vec1, err := engine.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("Inner calls = %d, want 1", inner.calls)
	}
	if cache.puts != 1 {
		t.Errorf("Cache puts = %d, want 1", cache.puts)
	}

	// Second call: hit, inner untouched
	vec2, err := engine.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("Inner calls after hit = %d, want 1", inner.calls)
	}

	if len(vec1) != len(vec2) {
		t.Fatalf("Vector lengths differ: %d vs %d", len(vec1), len(vec2))
	}
	for i := range vec1 {
		if vec1[i] != vec2[i] {
			t.Errorf("Cached vector differs at %d: %f vs %f", i, vec1[i], vec2[i])
		}
	}
}

func TestCachedEngineDistinctTexts(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 2}
	cache := newMemCache()
	engine := NewCachedEngine(inner, cache)

	ctx := context.Background()
	engine.Embed(ctx, "one")
	engine.Embed(ctx, "two")

	if inner.calls != 2 {
		t.Errorf("Inner calls = %d, want 2 (distinct texts must not share cache entries)", inner.calls)
	}
}

func TestCachedEngineGetErrorFallsThrough(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 2}
	cache := newMemCache()
	cache.getErr = errors.New("db locked")
	engine := NewCachedEngine(inner, cache)

	vec, err := engine.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed should tolerate cache get failure: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("Vector length = %d, want 2", len(vec))
	}
	if inner.calls != 1 {
		t.Errorf("Inner calls = %d, want 1", inner.calls)
	}
}

func TestCachedEnginePutErrorTolerated(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 2}
	cache := newMemCache()
	cache.putErr = errors.New("disk full")
	engine := NewCachedEngine(inner, cache)

	_, err := engine.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed should tolerate cache put failure: %v", err)
	}
}

func TestCachedEngineInnerErrorPropagates(t *testing.T) {
	wantErr := errors.New("backend down")
	inner := &stubEngine{
		name: "stub-model",
		dims: 2,
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, wantErr
		},
	}
	engine := NewCachedEngine(inner, newMemCache())

	_, err := engine.Embed(context.Background(), "text")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected inner error, got %v", err)
	}
}

func TestCachedEngineNilCacheUnwrapped(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 2}
	engine := NewCachedEngine(inner, nil)

	if engine != EmbeddingEngine(inner) {
		t.Error("Nil cache should return the inner engine unwrapped")
	}
}

func TestCachedEngineDelegates(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 7}
	engine := NewCachedEngine(inner, newMemCache())

	if engine.Dimensions() != 7 {
		t.Errorf("Dimensions = %d, want 7", engine.Dimensions())
	}
	if engine.Name() != "stub-model" {
		t.Errorf("Name = %q, want stub-model", engine.Name())
	}
}

func TestCachedEngineBatchCachesPerItem(t *testing.T) {
	inner := &stubEngine{name: "stub-model", dims: 2}
	cache := newMemCache()
	engine := NewCachedEngine(inner, cache)

	ctx := context.Background()
	engine.Embed(ctx, "b")

	vecs, err := engine.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Got %d vectors, want 3", len(vecs))
	}

	// "b" was already cached; only "a" and "c" should hit the inner engine
	if inner.calls != 3 {
		t.Errorf("Inner calls = %d, want 3 (1 warm + 2 batch misses)", inner.calls)
	}
}

func TestTextHashStable(t *testing.T) {
	h1 := TextHash("same input")
	h2 := TextHash("same input")
	h3 := TextHash("different input")

	if h1 != h2 {
		t.Error("TextHash must be deterministic")
	}
	if h1 == h3 {
		t.Error("Distinct texts must hash differently")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length = %d, want 64 hex chars", len(h1))
	}
}

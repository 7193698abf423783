package embedding

import (
	"context"
	"fmt"
)

// stubEngine is a deterministic in-memory engine for decorator tests.
type stubEngine struct {
	name      string
	dims      int
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     int
}

func (s *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.embedFunc != nil {
		return s.embedFunc(ctx, text)
	}
	vec := make([]float32, s.dims)
	for i := range vec {
		vec[i] = float32(len(text))
	}
	return vec, nil
}

func (s *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEngine) Dimensions() int { return s.dims }

func (s *stubEngine) Name() string {
	if s.name != "" {
		return s.name
	}
	return "stub"
}

// memCache is an in-memory Cache with injectable failures.
type memCache struct {
	data    map[string][]float32
	getErr  error
	putErr  error
	gets    int
	puts    int
	lastKey string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]float32{}}
}

func (m *memCache) key(model, hash string) string {
	return fmt.Sprintf("%s|%s", model, hash)
}

func (m *memCache) GetEmbedding(model, textHash string) ([]float32, error) {
	m.gets++
	m.lastKey = m.key(model, textHash)
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[m.lastKey], nil
}

func (m *memCache) PutEmbedding(model, textHash string, vector []float32) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[m.key(model, textHash)] = vector
	return nil
}

package index

import (
	"context"
	"fmt"
	"strings"
)

// stubEngine returns canned vectors keyed by substring match on the
// embedded text, so tests can address skills by name without caring
// about the full signature line.
type stubEngine struct {
	dims    int
	vectors map[string][]float32
	fail    map[string]bool
	failAll bool
	calls   int
}

func (s *stubEngine) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.failAll {
		return nil, fmt.Errorf("stub: embedding offline")
	}
	for key := range s.fail {
		if strings.Contains(text, key) {
			return nil, fmt.Errorf("stub: refusing %q", key)
		}
	}
	for key, vec := range s.vectors {
		if strings.Contains(text, key) {
			return vec, nil
		}
	}
	return make([]float32, s.dims), nil
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

func (s *stubEngine) Name() string { return "stub" }

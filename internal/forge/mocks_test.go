package forge

import (
	"context"
	"errors"
	"fmt"
)

// scriptedLLM replays canned replies in call order and records every
// prompt. One instance serves both the router and the builder, so a
// build turn consumes three replies: decision, source, arguments.
type scriptedLLM struct {
	replies []string
	errs    []error
	calls   int
	systems []string
	prompts []string
}

func (c *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return c.next("", prompt)
}

func (c *scriptedLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.next(systemPrompt, userPrompt)
}

func (c *scriptedLLM) next(system, prompt string) (string, error) {
	i := c.calls
	c.calls++
	c.systems = append(c.systems, system)
	c.prompts = append(c.prompts, prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

// fixedEmbedder embeds everything to the same small vector. Retrieval
// order is irrelevant here; the decision step is scripted.
type fixedEmbedder struct {
	fail bool
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedder offline")
	}
	return []float32{1, 1}, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fixedEmbedder) Dimensions() int { return 2 }
func (f *fixedEmbedder) Name() string    { return "fixed" }

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"skillforge/internal/embedding"
	"skillforge/internal/llm"
	"skillforge/internal/types"
)

// doctorCmd checks that the configured backends are reachable
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured model backends are reachable",
	Long: `Validates the configuration and probes both collaborators, the
reasoning model and the embedding engine, in parallel. Exits non-zero
when any check fails.`,
	RunE: runDoctor,
}

// probeTimeout bounds each backend probe independently of --timeout.
const probeTimeout = 10 * time.Second

type doctorCheck struct {
	name string
	err  error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	cfg, err := loadForgeConfig()
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	fmt.Printf("Workspace: %s\n", resolveWorkspace())
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ config: %v\n", err)
		return fmt.Errorf("configuration invalid")
	}
	fmt.Println("✓ config valid")

	if info, err := os.Stat(cfg.Skills.Directory); err != nil {
		fmt.Printf("- skills dir %s missing (created on first run)\n", cfg.Skills.Directory)
	} else if !info.IsDir() {
		fmt.Printf("✗ skills dir %s is not a directory\n", cfg.Skills.Directory)
	} else {
		fmt.Printf("✓ skills dir %s\n", cfg.Skills.Directory)
	}

	llmClient, err := llm.NewClient(cfg.LLM, cfg.GetLLMTimeout())
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}
	// Same construction as the engine: the embedding config carries no key
	// of its own, the GenAI backend shares the reasoning key.
	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.BaseURL,
		OllamaModel:    cfg.Embedding.Model,
		GenAIAPIKey:    cfg.LLM.APIKey,
		GenAIModel:     cfg.Embedding.Model,
		TaskType:       "SEMANTIC_SIMILARITY",
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("embedding engine: %w", err)
	}

	// Both backends probed in parallel. Each goroutine writes its own
	// slot so the report order stays fixed.
	checks := make([]doctorCheck, 2)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		checks[0] = doctorCheck{
			name: fmt.Sprintf("llm %s/%s", cfg.LLM.Provider, cfg.LLM.Model),
			err:  probe(gctx, llmClient),
		}
		return nil
	})
	g.Go(func() error {
		checks[1] = doctorCheck{
			name: fmt.Sprintf("embeddings %s", embedder.Name()),
			err:  probe(gctx, embedder),
		}
		return nil
	})
	_ = g.Wait()

	failed := 0
	for _, c := range checks {
		if c.err != nil {
			failed++
			fmt.Printf("✗ %s: %v\n", c.name, c.err)
		} else {
			fmt.Printf("✓ %s\n", c.name)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}

// probe runs a bounded HealthCheck when the collaborator supports one.
func probe(ctx context.Context, collaborator interface{}) error {
	hc, ok := collaborator.(types.HealthChecker)
	if !ok {
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return hc.HealthCheck(probeCtx)
}

// Package forge wires the registry, index, router, builder, executor and
// store into one engine behind the outer loop. There are no package-level
// singletons: everything hangs off the Engine, so two engines in one
// process stay fully independent.
package forge

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"skillforge/internal/builder"
	"skillforge/internal/config"
	"skillforge/internal/embedding"
	"skillforge/internal/executor"
	"skillforge/internal/index"
	"skillforge/internal/llm"
	"skillforge/internal/logging"
	"skillforge/internal/router"
	"skillforge/internal/skill"
	"skillforge/internal/store"
	"skillforge/internal/types"
	"skillforge/internal/watcher"
)

// Engine is the assembled system.
type Engine struct {
	cfg      *config.Config
	registry *skill.Registry
	index    *index.Index
	router   *router.Router
	builder  *builder.Builder
	executor *executor.Executor
	store    *store.Store
	llm      types.LLMClient
	embedder embedding.EmbeddingEngine

	sessionID string
	started   time.Time
	turns     atomic.Int64
	dirty     atomic.Bool
}

// New builds an engine from configuration, constructing the real
// collaborator clients.
func New(cfg *config.Config) (*Engine, error) {
	llmClient, err := llm.NewClient(cfg.LLM, cfg.GetLLMTimeout())
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	// The embedding config carries no key of its own; the GenAI backend
	// shares the reasoning key (both come from GEMINI_API_KEY).
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
		return nil, fmt.Errorf("embedding engine: %w", err)
	}

	return NewWithCollaborators(cfg, llmClient, embedder)
}

// NewWithCollaborators builds an engine around preconstructed reasoning
// and embedding collaborators. Tests inject stubs here; New passes the
// real clients.
func NewWithCollaborators(cfg *config.Config, llmClient types.LLMClient, embedder embedding.EmbeddingEngine) (*Engine, error) {
	st, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.Embedding.Cache {
		embedder = embedding.NewCachedEngine(embedder, st)
	}

	reg := skill.NewRegistry(cfg.Skills.Directory)
	idx := index.New(embedder)
	exec := executor.New(reg, executor.Config{Timeout: cfg.GetExecTimeout()})
	exec.SetStore(st)

	return &Engine{
		cfg:       cfg,
		registry:  reg,
		index:     idx,
		router:    router.New(reg, idx, llmClient, router.Config{TopK: cfg.Router.TopK}),
		builder:   builder.New(llmClient, reg, st),
		executor:  exec,
		store:     st,
		llm:       llmClient,
		embedder:  embedder,
		sessionID: uuid.NewString()[:8],
		started:   time.Now(),
	}, nil
}

// Bootstrap prepares the workspace: seed skills when the directory holds
// none, then a full refresh and index rebuild.
func (e *Engine) Bootstrap(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryBoot, "Bootstrap")
	defer timer.Stop()
	logging.Audit().SessionStart(e.sessionID)

	if !hasSkillSources(e.cfg.Skills.Directory) {
		n, err := e.registry.WriteSeeds()
		if err != nil {
			return fmt.Errorf("write seed skills: %w", err)
		}
		logging.Boot("Seeded %d starter skill(s) into %s", n, e.cfg.Skills.Directory)
	}

	count, err := e.Refresh(ctx)
	if err != nil {
		return err
	}
	logging.Boot("Ready: %d skill(s), llm=%s embeddings=%s",
		count, e.cfg.LLM.Provider, e.cfg.Embedding.Provider)
	return nil
}

// Refresh rescans the skills directory and rebuilds the embedding index.
// This is the only place the two move together; everything else reads.
func (e *Engine) Refresh(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := e.registry.Refresh()
	if err != nil {
		return 0, fmt.Errorf("registry refresh: %w", err)
	}
	if err := e.index.Rebuild(ctx, e.registry.All()); err != nil {
		return count, fmt.Errorf("index rebuild: %w", err)
	}
	logging.Audit().RefreshComplete(count, time.Since(start).Milliseconds())
	return count, nil
}

// Route classifies one user utterance.
func (e *Engine) Route(ctx context.Context, text string) *router.Decision {
	return e.router.Route(ctx, text)
}

// Build synthesizes a new skill and rebuilds the index so the skill is
// retrievable on the next turn. A rebuild failure after a successful
// build is logged, not returned: the skill is registered either way and
// the next refresh picks it up.
func (e *Engine) Build(ctx context.Context, specText, originalText string) (*builder.Result, error) {
	res, err := e.builder.Synthesize(ctx, specText, originalText)
	if err != nil {
		return nil, err
	}
	if err := e.index.Rebuild(ctx, e.registry.All()); err != nil {
		logging.IndexWarn("Rebuild after build failed, %s not retrievable until next refresh: %v", res.SkillName, err)
	}
	return res, nil
}

// Invoke runs a registered skill.
func (e *Engine) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	return e.executor.Invoke(ctx, name, args)
}

// StartWatcher watches the skills directory and marks the engine dirty
// when sources change; the next turn (or an explicit RefreshIfDirty)
// picks the changes up. The caller owns the returned watcher's lifetime.
func (e *Engine) StartWatcher(ctx context.Context) (*watcher.Watcher, error) {
	w, err := watcher.New(e.cfg.Skills.Directory, e.cfg.GetWatchDebounce(), e.MarkDirty)
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	return w, nil
}

// MarkDirty flags the skills directory as changed. Safe from any
// goroutine; the flag is consumed on the engine's own loop.
func (e *Engine) MarkDirty() {
	e.dirty.Store(true)
}

// RefreshIfDirty refreshes only when the dirty flag is set, consuming it.
// Returns the skill count and whether a refresh actually ran.
func (e *Engine) RefreshIfDirty(ctx context.Context) (int, bool, error) {
	if !e.dirty.Swap(false) {
		return 0, false, nil
	}
	count, err := e.Refresh(ctx)
	return count, true, err
}

// Close ends the audit session and releases the store.
func (e *Engine) Close() error {
	logging.Audit().SessionEnd(e.sessionID, int(e.turns.Load()), time.Since(e.started).Milliseconds())
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Registry exposes the skill registry for read-side callers.
func (e *Engine) Registry() *skill.Registry {
	return e.registry
}

// Index exposes the embedding index for read-side callers.
func (e *Engine) Index() *index.Index {
	return e.index
}

// Store exposes the persistence layer.
func (e *Engine) Store() *store.Store {
	return e.store
}

// LLM exposes the reasoning collaborator.
func (e *Engine) LLM() types.LLMClient {
	return e.llm
}

// Embedder exposes the embedding collaborator.
func (e *Engine) Embedder() embedding.EmbeddingEngine {
	return e.embedder
}

// Config exposes the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// hasSkillSources reports whether dir contains at least one skill source.
func hasSkillSources(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
			return true
		}
	}
	return false
}

// Package main provides the forge CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"skillforge/internal/config"
	"skillforge/internal/forge"
	"skillforge/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "skillforge - a self-extending natural language skill system",
	Long: `skillforge routes plain language requests to small single-file Go
skills, interpreted in-process. When no skill fits, it writes one: the
request is turned into source code, validated against the entrypoint
contract, registered, and run.

Run without arguments to start the interactive chat loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Category file logging is a silent no-op unless the workspace
		// opts in via .forge/config.json.
		if err := logging.Initialize(resolveWorkspace()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: logging init: %v\n", err)
		}

		// The chat loop renders its own output; keep the process logger
		// out of it.
		if cmd.Name() == "forge" || cmd.Name() == "chat" {
			logger = zap.NewNop()
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the interactive chat loop
		return runChat(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/forge.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	// Chat flags
	chatCmd.Flags().BoolVar(&chatWatch, "watch", false, "Watch the skills directory and refresh on change")

	// Invoke flags
	invokeCmd.Flags().StringVar(&invokeArgs, "args", "{}", "Skill arguments as a JSON object")

	// History flags
	historyCmd.Flags().BoolVar(&historyBuilds, "builds", false, "Show build records only")
	historyCmd.Flags().BoolVar(&historyRuns, "runs", false, "Show invocation records only")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum records per section")

	// Add commands to root
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveWorkspace returns the --workspace flag value or the current
// directory.
func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// loadForgeConfig loads the workspace configuration and anchors its
// relative paths under the workspace, so forge behaves the same no matter
// where it is launched from.
func loadForgeConfig() (*config.Config, error) {
	ws := resolveWorkspace()
	path := configPath
	if path == "" {
		path = filepath.Join(ws, "forge.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Skills.Directory) {
		cfg.Skills.Directory = filepath.Join(ws, cfg.Skills.Directory)
	}
	if !filepath.IsAbs(cfg.Store.DatabasePath) {
		cfg.Store.DatabasePath = filepath.Join(ws, cfg.Store.DatabasePath)
	}
	return cfg, nil
}

// bootEngine builds and bootstraps an engine for one command. The caller
// owns Close.
func bootEngine(ctx context.Context) (*forge.Engine, error) {
	cfg, err := loadForgeConfig()
	if err != nil {
		return nil, err
	}
	eng, err := forge.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := eng.Bootstrap(ctx); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return eng, nil
}

// commandContext derives a context bound by the --timeout flag.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, timeout)
}

func joinArgs(args []string) string {
	result := ""
	for i, arg := range args {
		if i > 0 {
			result += " "
		}
		result += arg
	}
	return result
}

// truncate shortens s to at most n runes for single-line display.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

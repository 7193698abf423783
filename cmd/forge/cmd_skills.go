package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillforge/internal/store"
)

// skillsCmd lists the registered skills
var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List registered skills with their contracts",
	RunE:  listSkills,
}

// refreshCmd rescans the skills directory
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rescan the skills directory and rebuild the embedding index",
	RunE:  runRefresh,
}

// historyCmd shows recent build and invocation records
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent builds and skill runs",
	Long: `Shows the persisted build and invocation records, newest first.

Examples:
  forge history            # both sections
  forge history --builds   # synthesis attempts only
  forge history --runs     # skill runs only`,
	RunE: showHistory,
}

var (
	historyBuilds bool
	historyRuns   bool
	historyLimit  int
)

// listSkills prints every registered skill with its contract
func listSkills(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	eng, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	skills := eng.Registry().All()
	if len(skills) == 0 {
		fmt.Println("No skills registered.")
		return nil
	}

	fmt.Printf("%d skill(s) in %s:\n\n", len(skills), eng.Config().Skills.Directory)
	for _, sk := range skills {
		fmt.Printf("  %s%s\n", sk.Name, sk.Contract.String())
		fmt.Printf("      %s\n", sk.Description)
	}
	return nil
}

// runRefresh rescans the directory and prints the resulting count
func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	logger.Info("Refreshing skills")

	eng, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	// Bootstrap already scanned once; scan again so the printed count
	// reflects the directory as of this command.
	n, err := eng.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	fmt.Printf("Loaded %d skill(s) from %s\n", n, eng.Config().Skills.Directory)
	for _, name := range eng.Index().Names() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

// showHistory prints persisted build and invocation records. Only the
// store is opened; no collaborator clients, no directory scan.
func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadForgeConfig()
	if err != nil {
		return err
	}

	logger.Info("Reading history", zap.String("db", cfg.Store.DatabasePath))

	st, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	showBuilds := historyBuilds || !historyRuns
	showRuns := historyRuns || !historyBuilds

	if showBuilds {
		builds, err := st.RecentBuilds(historyLimit)
		if err != nil {
			return fmt.Errorf("read build history: %w", err)
		}
		fmt.Printf("Builds (%d):\n", len(builds))
		for _, rec := range builds {
			mark := "✓"
			if !rec.Success {
				mark = "✗"
			}
			fmt.Printf("  %s %s  %-20s %s\n",
				mark, rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.SkillName, truncate(rec.Specification, 50))
			if !rec.Success && rec.Error != "" {
				fmt.Printf("      %s\n", truncate(rec.Error, 70))
			}
		}
	}

	if showBuilds && showRuns {
		fmt.Println()
	}

	if showRuns {
		runs, err := st.RecentInvocations(historyLimit)
		if err != nil {
			return fmt.Errorf("read invocation history: %w", err)
		}
		fmt.Printf("Runs (%d):\n", len(runs))
		for _, rec := range runs {
			mark := "✓"
			detail := rec.Output
			if !rec.Success {
				mark = "✗"
				detail = rec.Error
			}
			fmt.Printf("  %s %s  %-20s %s\n",
				mark, rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.SkillName, truncate(detail, 50))
		}
	}
	return nil
}

// Package main provides the forge CLI entry point.
// This file implements the interactive chat loop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"skillforge/internal/forge"
)

var chatWatch bool

// chatCmd starts the interactive loop; running forge with no arguments
// does the same.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	Long: `Starts a line-oriented conversation loop.

Each line is routed: matched against an existing skill, turned into a
brand new skill, or answered conversationally. A few bare words are
treated as commands instead of requests:

  skills    list registered skills
  refresh   rescan the skills directory
  history   show recent skill runs
  help      show this help
  exit      leave the loop (also: quit)`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	styles := newStyles()

	eng, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	if chatWatch {
		w, err := eng.StartWatcher(ctx)
		if err != nil {
			fmt.Println(styles.Warning.Render(fmt.Sprintf("watcher unavailable: %v", err)))
		} else {
			defer w.Stop()
		}
	}

	printBanner(eng, styles)

	// Stdin is read on its own goroutine so the loop can also react to
	// SIGINT. After cancellation the reader parks in Scan until the
	// process exits.
	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	for {
		fmt.Print(styles.Prompt.Render("you>") + " ")
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Println(styles.Muted.Render("Interrupted. Goodbye."))
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				return nil
			}
			if quit := handleLine(ctx, eng, line, styles); quit {
				fmt.Println(styles.Muted.Render("Goodbye."))
				return nil
			}
		}
	}
}

// handleLine processes one line of input. Returns true when the user asked
// to leave.
func handleLine(ctx context.Context, eng *forge.Engine, line string, styles Styles) bool {
	input := strings.TrimSpace(line)

	switch strings.ToLower(input) {
	case "":
		return false

	case "exit", "quit", "/exit", "/quit", "/q":
		return true

	case "help", "/help":
		printChatHelp(styles)
		return false

	case "skills", "/skills":
		printSkillList(eng, styles)
		return false

	case "refresh", "/refresh":
		n, err := eng.Refresh(ctx)
		if err != nil {
			fmt.Println(styles.Error.Render(fmt.Sprintf("refresh failed: %v", err)))
			return false
		}
		fmt.Println(styles.Success.Render(fmt.Sprintf("Loaded %d skill(s).", n)))
		return false

	case "history", "/history":
		printRunHistory(eng, 10, styles)
		return false
	}

	reply, err := eng.HandleTurn(ctx, input)
	if err != nil {
		fmt.Println(styles.Error.Render(fmt.Sprintf("error: %v", err)))
		return false
	}
	fmt.Println(styles.Response.Render(reply))
	fmt.Println()
	return false
}

func printBanner(eng *forge.Engine, styles Styles) {
	cfg := eng.Config()
	fmt.Println(styles.Banner.Render(fmt.Sprintf("%s %s", cfg.Name, cfg.Version)))
	fmt.Println(styles.Muted.Render(fmt.Sprintf("llm=%s/%s  embeddings=%s  skills=%d",
		cfg.LLM.Provider, cfg.LLM.Model, eng.Embedder().Name(), eng.Registry().Count())))
	fmt.Println(styles.Muted.Render(`Type a request, or "help" for commands.`))
	fmt.Println(styles.RenderDivider(60))
}

func printChatHelp(styles Styles) {
	fmt.Println(styles.Muted.Render(`Commands:
  skills    list registered skills
  refresh   rescan the skills directory and rebuild the index
  history   show recent skill runs
  help      show this help
  exit      leave the loop (also: quit)

Anything else is routed: matched against an existing skill, built as a
new skill, or answered conversationally.`))
}

func printSkillList(eng *forge.Engine, styles Styles) {
	skills := eng.Registry().All()
	if len(skills) == 0 {
		fmt.Println(styles.Muted.Render("No skills registered."))
		return
	}
	for _, sk := range skills {
		fmt.Printf("  %s  %s\n",
			styles.Success.Render(sk.Name+sk.Contract.String()),
			styles.Muted.Render(sk.Description))
	}
}

func printRunHistory(eng *forge.Engine, limit int, styles Styles) {
	runs, err := eng.Store().RecentInvocations(limit)
	if err != nil {
		fmt.Println(styles.Error.Render(fmt.Sprintf("history unavailable: %v", err)))
		return
	}
	if len(runs) == 0 {
		fmt.Println(styles.Muted.Render("No skill runs recorded yet."))
		return
	}
	for _, rec := range runs {
		mark := styles.Success.Render("✓")
		detail := rec.Output
		if !rec.Success {
			mark = styles.Error.Render("✗")
			detail = rec.Error
		}
		fmt.Printf("  %s %s %-16s %s\n",
			mark,
			rec.CreatedAt.Format("15:04:05"),
			rec.SkillName,
			styles.Muted.Render(truncate(detail, 60)))
	}
}

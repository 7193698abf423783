package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// buildCmd synthesizes a new skill from a description
var buildCmd = &cobra.Command{
	Use:   "build [description]",
	Short: "Synthesize a new skill from a natural language description",
	Long: `Generates a single-file skill for the description, validates it
against the entrypoint contract, and registers it under the skills
directory.

Example:
  forge build "reverse the words in a sentence"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

// invokeCmd runs one registered skill
var invokeCmd = &cobra.Command{
	Use:   "invoke [skill]",
	Short: "Run a registered skill once",
	Long: `Runs a skill with arguments given as a JSON object. Keys must match
the skill's Execute parameters exactly.

Example:
  forge invoke calculate --args '{"expression": "2 + 2"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

// routeCmd shows the routing decision without acting on it
var routeCmd = &cobra.Command{
	Use:   "route [text]",
	Short: "Show the routing decision for a request without acting on it",
	Long: `Classifies the request the same way the chat loop would and prints
the decision instead of executing it.

Example:
  forge route "what is 15 times 3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

var invokeArgs string

// runBuild performs a one-shot synthesis
func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	specText := joinArgs(args)
	logger.Info("Building skill", zap.String("specification", specText))

	eng, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.Build(ctx, specText, specText)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("Registered %s (%s)\n", res.SkillName, res.Filename)
	if sk, err := eng.Registry().Get(res.SkillName); err == nil {
		fmt.Printf("  %s%s\n", sk.Name, sk.Contract.String())
	}
	return nil
}

// runInvoke executes one skill with explicit arguments
func runInvoke(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	name := args[0]
	skillArgs, err := parseArgsFlag(invokeArgs)
	if err != nil {
		return err
	}

	logger.Info("Invoking skill", zap.String("skill", name))

	eng, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	out, err := eng.Invoke(ctx, name, skillArgs)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// runRoute prints the decision the classifier would act on
func runRoute(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	text := joinArgs(args)
	logger.Info("Routing", zap.String("input", text))

	eng, err := bootEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	decision := eng.Route(ctx, text)

	styles := newStyles()
	fmt.Println(styles.Badge.Render(string(decision.Action)))
	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// parseArgsFlag decodes the --args JSON object.
func parseArgsFlag(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--args must be a JSON object: %w", err)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

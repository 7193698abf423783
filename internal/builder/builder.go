// Package builder synthesizes new skills: it asks the code-generation
// collaborator for a source file under the entrypoint contract, validates it,
// persists it through the registry, and derives the arguments the new skill
// needs to satisfy the originating request.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"skillforge/internal/logging"
	"skillforge/internal/skill"
	"skillforge/internal/store"
	"skillforge/internal/types"
)

// DefaultFilename is used when the generated source carries no filename
// declaration. Missing declarations are a warning, never a failure.
const DefaultFilename = "generated_skill.go"

const (
	codegenSystemPrompt = "You are a Go coding expert. Write clean, explicitly typed code."
	argsSystemPrompt    = "You are a helper that extracts arguments from text for Go functions."
)

// filenamePattern matches the machine-parseable declaration the generation
// contract requires on the first line, tolerating it anywhere in the file.
var filenamePattern = regexp.MustCompile(`(?im)^//[ \t]*filename:[ \t]*(\w+\.go)[ \t]*$`)

// Builder turns build decisions into registered skills.
type Builder struct {
	client   types.LLMClient
	registry *skill.Registry
	store    *store.Store
}

// New builds a Builder. The store may be nil; history recording is
// best-effort and never blocks a build.
func New(client types.LLMClient, registry *skill.Registry, st *store.Store) *Builder {
	return &Builder{client: client, registry: registry, store: st}
}

// Result is the outcome of a successful synthesis.
type Result struct {
	// Filename is the source file name under the skills directory.
	Filename string
	// SkillName is the registered name, derived from the filename.
	SkillName string
	// Arguments is the flat key-value map derived for the originating
	// request. Empty when derivation failed; callers re-derive via ParseOnly.
	Arguments map[string]interface{}
	// Warnings collects non-fatal degradations, such as a missing filename
	// declaration.
	Warnings []string
}

// Synthesize generates, validates, persists and registers a new skill for
// specification, then derives the arguments needed to satisfy originalText.
// Generation and persistence failures are hard errors; argument derivation
// failure degrades to an empty map.
func (b *Builder) Synthesize(ctx context.Context, specification, originalText string) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryBuilder, "Synthesize")
	defer timer.Stop()
	start := time.Now()

	logging.Builder("Generating new skill for: %s", snippet(specification))

	raw, err := b.generate(ctx, specification)
	if err != nil {
		logging.BuilderError("Model generation failed: %v", err)
		b.recordBuild(store.BuildRecord{Specification: specification, Error: err.Error()})
		logging.Audit().BuildEvent(logging.AuditBuildError, "", "", time.Since(start).Milliseconds(), false, err.Error())
		return nil, fmt.Errorf("code generation: %w", err)
	}

	source := stripFences(raw)

	var warnings []string
	filename := DefaultFilename
	if m := filenamePattern.FindStringSubmatch(source); m != nil {
		filename = m[1]
	} else {
		logging.BuilderWarn("No filename comment found. Defaulting to %s", DefaultFilename)
		warnings = append(warnings, fmt.Sprintf("no filename declaration found, defaulting to %s", DefaultFilename))
	}

	// Validate before persisting so a malformed artifact never lands in the
	// skills directory.
	contract, description, err := skill.ParseContract([]byte(source))
	if err != nil {
		logging.BuilderError("Generated source rejected: %v", err)
		b.recordBuild(store.BuildRecord{Specification: specification, Filename: filename, Error: err.Error()})
		logging.Audit().BuildEvent(logging.AuditBuildError, "", "", time.Since(start).Milliseconds(), false, err.Error())
		return nil, fmt.Errorf("generated source rejected: %w", err)
	}

	artifact := &skill.Artifact{
		Name:        strings.TrimSuffix(filename, ".go"),
		Filename:    filename,
		Source:      source,
		Contract:    contract,
		Description: description,
	}
	registered, err := b.registry.Register(artifact)
	if err != nil {
		b.recordBuild(store.BuildRecord{Specification: specification, Filename: filename, Error: err.Error()})
		logging.Audit().BuildEvent(logging.AuditBuildError, "", artifact.Name, time.Since(start).Milliseconds(), false, err.Error())
		return nil, fmt.Errorf("persist skill: %w", err)
	}
	logging.Builder("Saved skill to %s", registered.SourcePath)

	args := b.deriveArguments(ctx, source, registered.Name, originalText)

	b.recordBuild(store.BuildRecord{
		Specification: specification,
		SkillName:     registered.Name,
		Filename:      filename,
		Fingerprint:   registered.Fingerprint,
		Success:       true,
	})
	logging.Audit().BuildEvent(logging.AuditBuildComplete, "", registered.Name, time.Since(start).Milliseconds(), true, "")

	return &Result{
		Filename:  filename,
		SkillName: registered.Name,
		Arguments: args,
		Warnings:  warnings,
	}, nil
}

// ParseOnly derives Execute arguments for an already-registered skill from a
// user utterance. Best-effort: every failure path returns an empty map.
func (b *Builder) ParseOnly(ctx context.Context, skillName, userText string) map[string]interface{} {
	sk, err := b.registry.Get(skillName)
	if err != nil {
		logging.BuilderDebug("ParseOnly: %v", err)
		return map[string]interface{}{}
	}
	source, err := os.ReadFile(sk.SourcePath)
	if err != nil {
		logging.BuilderWarn("ParseOnly: read %s: %v", sk.SourcePath, err)
		return map[string]interface{}{}
	}
	return b.deriveArguments(ctx, string(source), skillName, userText)
}

// generate requests skill source under the fixed contract.
func (b *Builder) generate(ctx context.Context, specification string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a Go file that implements: %s.\n", specification))
	sb.WriteString("Requirements:\n")
	sb.WriteString("1. The package clause MUST be `package skill`.\n")
	sb.WriteString("2. It MUST have exactly one top-level `Execute(...)` function returning `(string, error)`.\n")
	sb.WriteString("3. Every parameter MUST be explicitly named and explicitly typed (e.g. `func Execute(filename string, count int)`); only string, int, float64 and bool are allowed.\n")
	sb.WriteString("4. Do NOT use variadic, slice, map, pointer or interface{} parameters. Define every parameter explicitly.\n")
	sb.WriteString("5. Import ONLY from: " + strings.Join(skill.DefaultAllowedImports(), ", ") + ".\n")
	sb.WriteString("6. The FIRST line of the file MUST be a comment `// filename: <name_of_file>.go`.\n")
	sb.WriteString("7. Output ONLY the code, no markdown backticks, no explanations.")

	return b.client.CompleteWithSystem(ctx, codegenSystemPrompt, sb.String())
}

// deriveArguments asks the collaborator for the exact arguments Execute needs
// to satisfy the original utterance, given the just-generated source.
func (b *Builder) deriveArguments(ctx context.Context, source, name, originalText string) map[string]interface{} {
	logging.BuilderDebug("Parsing arguments for %s", name)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Here is the code for `%s`:\n\n%s\n\n", name, source))
	sb.WriteString(fmt.Sprintf("Extract the arguments strictly required by the `Execute` function from this user prompt: %q.\n", originalText))
	sb.WriteString("Return the result as a valid JSON object `{\"arg_name\": value}`.\n")
	sb.WriteString("Do NOT return markdown. Return ONLY JSON.")

	content, err := b.client.CompleteWithSystem(ctx, argsSystemPrompt, sb.String())
	if err != nil {
		logging.BuilderWarn("Argument derivation failed: %v", err)
		return map[string]interface{}{}
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &args); err != nil {
		logging.BuilderWarn("Error parsing JSON arguments: %s", snippet(content))
		return map[string]interface{}{}
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func (b *Builder) recordBuild(rec store.BuildRecord) {
	if b.store == nil {
		return
	}
	if err := b.store.RecordBuild(rec); err != nil {
		logging.BuilderWarn("Build record not persisted: %v", err)
	}
}

// stripFences removes surrounding markdown code fences and stray surrounding
// quotes. Idempotent: applying it to already-clean source is a no-op.
func stripFences(src string) string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "```go") {
		src = strings.TrimPrefix(src, "```go")
	} else if strings.HasPrefix(src, "```") {
		src = strings.TrimPrefix(src, "```")
	}
	if strings.HasSuffix(src, "```") {
		src = src[:strings.LastIndex(src, "```")]
	}
	src = strings.TrimSpace(src)
	if len(src) >= 2 && strings.HasPrefix(src, `"`) && strings.HasSuffix(src, `"`) {
		src = strings.TrimSpace(src[1 : len(src)-1])
	}
	return src
}

// cleanJSONResponse removes markdown code fences the model may wrap around
// its JSON output.
func cleanJSONResponse(resp string) string {
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	return strings.TrimSpace(resp)
}

// snippet truncates text for log lines.
func snippet(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= 120 {
		return s
	}
	return string(runes[:120]) + "..."
}

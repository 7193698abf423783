package forge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillforge/internal/logging"
	"skillforge/internal/router"
	"skillforge/internal/skill"
)

// HandleTurn runs one full interaction: route the utterance, then act on
// the decision.
//
// Skill-level failures come back as conversational text with a nil
// error, so the outer loop can print and move on. The returned error is
// reserved for synthesis failures, which callers may want to surface
// distinctly. Either way the loop carries on.
func (e *Engine) HandleTurn(ctx context.Context, text string) (string, error) {
	start := time.Now()
	turn := int(e.turns.Add(1))
	traceID := uuid.NewString()[:8]
	logging.Audit().TurnStart(traceID, turn, len(text))

	reply, err := e.handleTurn(ctx, text)

	logging.Audit().TurnEnd(traceID, turn, time.Since(start).Milliseconds(), err == nil)
	return reply, err
}

func (e *Engine) handleTurn(ctx context.Context, text string) (string, error) {
	if _, refreshed, err := e.RefreshIfDirty(ctx); err != nil {
		logging.BootWarn("Deferred refresh failed: %v", err)
	} else if refreshed {
		logging.Boot("Skills changed on disk, refreshed before routing")
	}

	decision := e.router.Route(ctx, text)

	switch decision.Action {
	case router.ActionChat:
		if decision.Response != "" {
			return decision.Response, nil
		}
		return decision.Thinking, nil

	case router.ActionUseTool:
		args := decision.Arguments
		if len(args) == 0 {
			// The classifier sometimes picks the right tool but drops the
			// arguments; a dedicated parse pass recovers them.
			if sk, err := e.registry.Get(decision.ToolName); err == nil && len(sk.Contract.Params) > 0 {
				logging.Router("Decision carried no arguments, asking builder to parse")
				args = e.builder.ParseOnly(ctx, decision.ToolName, text)
			}
		}
		output, err := e.executor.Invoke(ctx, decision.ToolName, args)
		if err != nil {
			return renderSkillFailure(decision.ToolName, err), nil
		}
		return output, nil

	case router.ActionBuild:
		spec := decision.Description
		if spec == "" {
			spec = text
		}
		res, err := e.Build(ctx, spec, text)
		if err != nil {
			return "", fmt.Errorf("build skill: %w", err)
		}
		output, err := e.executor.Invoke(ctx, res.SkillName, res.Arguments)
		if err != nil {
			return fmt.Sprintf("Created skill %s, but the first run failed: %s",
				res.SkillName, failureDetail(err, res.SkillName)), nil
		}
		return fmt.Sprintf("Created skill %s.\n%s", res.SkillName, output), nil

	default:
		return "", fmt.Errorf("unknown action %q", decision.Action)
	}
}

// renderSkillFailure turns a typed invocation error into text a user can
// act on.
func renderSkillFailure(name string, err error) string {
	detail := failureDetail(err, name)
	switch {
	case errors.Is(err, skill.ErrSkillNotFound):
		return fmt.Sprintf("Skill %q is not available. Try refreshing, or ask me to build it.", name)
	case errors.Is(err, skill.ErrArgumentMismatch):
		return fmt.Sprintf("The arguments did not match what %s expects: %s", name, detail)
	case errors.Is(err, skill.ErrContractViolation):
		return fmt.Sprintf("The source for %s is no longer a valid skill: %s", name, detail)
	case errors.Is(err, skill.ErrSkillExecution):
		return fmt.Sprintf("Skill %s failed: %s", name, detail)
	default:
		return fmt.Sprintf("Skill %s failed: %v", name, err)
	}
}

// failureDetail strips the sentinel and skill-name prefixes so the
// detail reads naturally inside a sentence that already names the skill.
func failureDetail(err error, name string) string {
	msg := err.Error()
	for _, sentinel := range []error{
		skill.ErrSkillExecution,
		skill.ErrArgumentMismatch,
		skill.ErrContractViolation,
		skill.ErrSkillNotFound,
	} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return strings.TrimPrefix(msg, name+": ")
}

package skill

import "errors"

// Skill lifecycle errors. Callers match with errors.Is; the concrete
// message carries the skill name or the offending detail.
var (
	// ErrSkillNotFound is returned when a skill is not registered.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrContractViolation is returned when a source does not satisfy the
	// entrypoint contract (missing Execute, bad parameters, wrong returns,
	// disallowed import).
	ErrContractViolation = errors.New("entrypoint contract violation")

	// ErrArgumentMismatch is returned when invocation arguments do not
	// line up with the declared contract.
	ErrArgumentMismatch = errors.New("argument mismatch")

	// ErrSkillExecution is returned when a skill fails at runtime: a
	// returned error, a panic, or a timeout.
	ErrSkillExecution = errors.New("skill execution failed")
)

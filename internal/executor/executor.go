// Package executor loads skill sources into an embedded interpreter and
// invokes their entrypoints.
//
// Skills are interpreted, never compiled: no toolchain on the host, no
// binary artifacts, no dependency resolution at invocation time. Loaded
// programs are cached per skill and keyed by the source fingerprint, so
// an edited file is picked up on the next invocation without restarting
// the host.
package executor

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"skillforge/internal/logging"
	"skillforge/internal/skill"
	"skillforge/internal/store"
)

// DefaultTimeout bounds a single Execute call.
const DefaultTimeout = 10 * time.Second

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Config controls skill loading and invocation.
type Config struct {
	// Timeout bounds one Execute call. Zero means DefaultTimeout.
	Timeout time.Duration

	// AllowedImports is the import allow-list enforced at load time.
	// Empty means skill.DefaultAllowedImports().
	AllowedImports []string
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		AllowedImports: skill.DefaultAllowedImports(),
	}
}

// program is one loaded skill: the interpreted entrypoint plus the
// contract the source was validated against at load time.
type program struct {
	fingerprint string
	contract    skill.Contract
	fn          reflect.Value
}

// Executor interprets registered skill sources and invokes them. A hung,
// panicking or failing skill surfaces as an error; it never takes the
// host down.
type Executor struct {
	registry *skill.Registry
	cfg      Config
	store    *store.Store

	mu       sync.Mutex
	programs map[string]*program
}

// New returns an executor over the registry.
func New(registry *skill.Registry, cfg Config) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.AllowedImports) == 0 {
		cfg.AllowedImports = skill.DefaultAllowedImports()
	}
	return &Executor{
		registry: registry,
		cfg:      cfg,
		programs: make(map[string]*program),
	}
}

// SetStore attaches a store for per-invocation records. Without one,
// invocations still run but leave no history.
func (e *Executor) SetStore(st *store.Store) {
	e.store = st
}

// Invoke runs the named skill with the given arguments and returns its
// output.
//
// Binding is strict in both directions: every declared parameter must be
// supplied and every supplied key must be declared, otherwise
// skill.ErrArgumentMismatch. An unregistered name is
// skill.ErrSkillNotFound. A returned error, a panic or a timeout is
// skill.ErrSkillExecution wrapped with the cause.
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	timer := logging.StartTimer(logging.CategoryExecutor, "Invoke")
	defer timer.Stop()
	start := time.Now()

	sk, err := e.registry.Get(name)
	if err != nil {
		return "", err
	}

	traceID := uuid.NewString()[:8]
	logging.Executor("Executing %s with args: %v", name, args)
	logging.Audit().SkillInvoke(traceID, name)

	output, err := e.invoke(ctx, sk, args)
	durationMs := time.Since(start).Milliseconds()

	rec := store.InvocationRecord{
		TraceID:    traceID,
		SkillName:  name,
		Arguments:  args,
		Output:     output,
		Success:    err == nil,
		DurationMs: durationMs,
	}
	if err != nil {
		rec.Error = err.Error()
		logging.ExecutorError("Skill %s failed: %v", name, err)
		logging.Audit().SkillComplete(traceID, name, durationMs, false, err.Error())
		e.recordInvocation(rec)
		return "", err
	}

	logging.Executor("Execution finished in %v", time.Since(start))
	logging.Audit().SkillComplete(traceID, name, durationMs, true, "")
	e.recordInvocation(rec)
	return output, nil
}

// invoke resolves the loaded program for sk and runs it.
func (e *Executor) invoke(ctx context.Context, sk *skill.Skill, args map[string]interface{}) (string, error) {
	prog, err := e.load(sk)
	if err != nil {
		return "", err
	}

	in, err := bindArguments(prog.contract, args)
	if err != nil {
		return "", err
	}

	return e.run(ctx, sk.Name, prog.fn, in)
}

// load returns the cached program for sk, reloading when the source on
// disk no longer matches the cached fingerprint. The file is re-read on
// every invocation: the skills directory is the source of truth, and an
// edit takes effect on the next call without a registry refresh.
func (e *Executor) load(sk *skill.Skill) (*program, error) {
	src, err := os.ReadFile(sk.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read skill source %s: %w", sk.SourcePath, err)
	}
	fingerprint := skill.Fingerprint(src)

	e.mu.Lock()
	defer e.mu.Unlock()

	cached, loaded := e.programs[sk.Name]
	if loaded && cached.fingerprint == fingerprint {
		return cached, nil
	}
	if loaded {
		logging.Executor("Source changed, reloading %s", sk.Name)
	} else {
		logging.Executor("Loading %s", sk.Name)
	}

	prog, err := e.compile(sk.Name, src, fingerprint)
	if err != nil {
		return nil, err
	}
	e.programs[sk.Name] = prog
	if loaded {
		logging.Audit().SkillReload(sk.Name, fingerprint)
	}
	return prog, nil
}

// compile validates one skill source and interprets it.
//
// The contract is re-parsed from the bytes just read rather than taken
// from the registry: the file may have changed since the last refresh,
// and the program must bind against the signature it actually has.
func (e *Executor) compile(name string, src []byte, fingerprint string) (*program, error) {
	contract, _, err := skill.ParseContract(src)
	if err != nil {
		return nil, err
	}
	if err := validateImports(string(src), e.cfg.AllowedImports); err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("%w: interpret %s: %v", skill.ErrSkillExecution, name, err)
	}

	entry := skill.PackageName + "." + skill.EntrypointName
	fn, err := i.Eval(entry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in %s: %v", skill.ErrContractViolation, entry, name, err)
	}
	if err := checkShape(fn, contract); err != nil {
		return nil, err
	}

	return &program{fingerprint: fingerprint, contract: contract, fn: fn}, nil
}

// run calls the interpreted entrypoint on its own goroutine so a hung or
// panicking skill cannot take the host down.
func (e *Executor) run(ctx context.Context, name string, fn reflect.Value, in []reflect.Value) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		rets := fn.Call(in)
		var callErr error
		if !rets[1].IsNil() {
			callErr = rets[1].Interface().(error)
		}
		done <- outcome{output: rets[0].String(), err: callErr}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", fmt.Errorf("%w: %s: %v", skill.ErrSkillExecution, name, out.err)
		}
		return out.output, nil
	case <-runCtx.Done():
		return "", fmt.Errorf("%w: %s: %v", skill.ErrSkillExecution, name, runCtx.Err())
	}
}

// checkShape verifies the interpreted entrypoint against the parsed
// contract. The parser and the interpreter should always agree; a
// mismatch here means the source changed between parse and eval or the
// interpreter resolved something other than the declared function.
func checkShape(fn reflect.Value, contract skill.Contract) error {
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("%w: %s is not a function", skill.ErrContractViolation, skill.EntrypointName)
	}
	t := fn.Type()
	if t.IsVariadic() || t.NumIn() != len(contract.Params) {
		return fmt.Errorf("%w: %s takes %d parameters, contract declares %d",
			skill.ErrContractViolation, skill.EntrypointName, t.NumIn(), len(contract.Params))
	}
	for i, p := range contract.Params {
		if got := t.In(i).Kind().String(); got != p.Type {
			return fmt.Errorf("%w: parameter %q is %s, contract declares %s",
				skill.ErrContractViolation, p.Name, got, p.Type)
		}
	}
	if t.NumOut() != 2 || t.Out(0).Kind() != reflect.String || !t.Out(1).Implements(errorType) {
		return fmt.Errorf("%w: %s must return (string, error)", skill.ErrContractViolation, skill.EntrypointName)
	}
	return nil
}

// validateImports walks import lines and rejects any path off the
// allow-list. ParseContract already enforces the default list at the
// AST level; this second, line-level check honors a narrower configured
// list without reparsing.
func validateImports(src string, allowed []string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, pkg := range allowed {
		allowedSet[pkg] = true
	}

	inBlock := false
	for _, line := range strings.Split(src, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" && !allowedSet[pkg] {
				return fmt.Errorf("%w: disallowed import %q", skill.ErrContractViolation, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if !allowedSet[pkg] {
				return fmt.Errorf("%w: disallowed import %q", skill.ErrContractViolation, pkg)
			}
		}
	}
	return nil
}

func (e *Executor) recordInvocation(rec store.InvocationRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordInvocation(rec); err != nil {
		logging.ExecutorWarn("Invocation record not persisted: %v", err)
	}
}

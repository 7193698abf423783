package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"skillforge/internal/logging"
)

// Registry holds every skill discovered in the skills directory and
// provides lookup by name. It is thread-safe; Refresh replaces the whole
// map wholesale, Register splices in a single new skill.
type Registry struct {
	mu  sync.RWMutex
	dir string

	skills map[string]*Skill

	// order preserves scan order (sorted filenames) so the embedding
	// index and All() iterate skills in the same sequence.
	order []string
}

// NewRegistry creates a registry over the given skills directory. The
// directory does not need to exist yet; Refresh and WriteSeeds create it.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		skills: make(map[string]*Skill),
	}
}

// Dir returns the skills directory this registry scans.
func (r *Registry) Dir() string {
	return r.dir
}

// Refresh rescans the skills directory and replaces the registry contents
// in full. Files that fail the entrypoint contract are logged and
// skipped, never fatal. Returns the number of valid skills loaded.
func (r *Registry) Refresh() (int, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return 0, fmt.Errorf("create skills dir: %w", err)
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("read skills dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		names = append(names, name)
	}
	// os.ReadDir sorts by filename already; re-sorting keeps the scan
	// order independent of that implementation detail.
	sort.Strings(names)

	skills := make(map[string]*Skill, len(names))
	order := make([]string, 0, len(names))
	for _, filename := range names {
		s, err := r.scanFile(filename)
		if err != nil {
			logging.RegistryWarn("Skipping %s: %v", filename, err)
			continue
		}
		skills[s.Name] = s
		order = append(order, s.Name)
		logging.RegistryDebug("Loaded skill %s %s", s.Name, s.Contract)
	}

	r.mu.Lock()
	r.skills = skills
	r.order = order
	r.mu.Unlock()

	logging.Registry("Refresh complete: %d skill(s) from %s", len(order), r.dir)
	return len(order), nil
}

// scanFile reads and validates one source file, returning the resulting
// skill. The file name minus ".go" becomes the skill name.
func (r *Registry) scanFile(filename string) (*Skill, error) {
	path := filepath.Join(r.dir, filename)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	contract, description, err := ParseContract(src)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &Skill{
		Name:        strings.TrimSuffix(filename, ".go"),
		Contract:    contract,
		Description: description,
		SourcePath:  abs,
		Fingerprint: Fingerprint(src),
	}, nil
}

// Get returns a skill by name or ErrSkillNotFound.
func (r *Registry) Get(name string) (*Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
	}
	return s, nil
}

// Has returns true if a skill with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[name]
	return ok
}

// All returns every registered skill in scan order.
func (r *Registry) All() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.skills[name])
	}
	return out
}

// Names returns the registered skill names in scan order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered skills.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Register persists a synthesized artifact to the skills directory and
// splices the resulting skill into the live registry, so it is queryable
// without a full refresh. Persist failure is a hard error.
func (r *Registry) Register(artifact *Artifact) (*Skill, error) {
	if artifact == nil || artifact.Filename == "" {
		return nil, fmt.Errorf("register: artifact has no filename")
	}
	if !strings.HasSuffix(artifact.Filename, ".go") {
		return nil, fmt.Errorf("register: filename %q must end in .go", artifact.Filename)
	}
	if artifact.Source == "" {
		return nil, fmt.Errorf("register: artifact %q has empty source", artifact.Filename)
	}

	// Validate before touching disk so a bad artifact never lands in the
	// skills directory.
	if _, _, err := ParseContract([]byte(artifact.Source)); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return nil, fmt.Errorf("create skills dir: %w", err)
	}
	path := filepath.Join(r.dir, artifact.Filename)
	if err := os.WriteFile(path, []byte(artifact.Source), 0644); err != nil {
		return nil, fmt.Errorf("persist skill %s: %w", artifact.Filename, err)
	}

	// Rescan the written file rather than trusting the artifact: disk is
	// the source of truth for path and fingerprint.
	s, err := r.scanFile(artifact.Filename)
	if err != nil {
		return nil, fmt.Errorf("registered source invalid: %w", err)
	}

	r.mu.Lock()
	if _, exists := r.skills[s.Name]; !exists {
		r.order = append(r.order, s.Name)
	}
	r.skills[s.Name] = s
	r.mu.Unlock()

	logging.Registry("Registered skill %s (%s)", s.Name, path)
	return s, nil
}

// WriteSeeds writes the embedded seed skills into the skills directory,
// skipping any file that already exists. Returns the number written.
// Callers refresh afterwards; WriteSeeds only touches disk.
func (r *Registry) WriteSeeds() (int, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return 0, fmt.Errorf("create skills dir: %w", err)
	}

	written := 0
	for _, seed := range Seeds() {
		path := filepath.Join(r.dir, seed.Filename)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(seed.Source), 0644); err != nil {
			return written, fmt.Errorf("write seed %s: %w", seed.Filename, err)
		}
		logging.Registry("Seeded %s", seed.Filename)
		written++
	}
	return written, nil
}

package skill

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const srcGreet = `package skill

// Execute greets a person by name.
func Execute(name string) (string, error) {
	return "hello " + name, nil
}
`

const srcShout = `package skill

import "strings"

// Execute upper-cases text.
func Execute(text string) (string, error) {
	return strings.ToUpper(text), nil
}
`

const srcCatchAll = `package skill

// Execute takes anything.
func Execute(args map[string]interface{}) (string, error) {
	return "", nil
}
`

func writeSkillFile(t *testing.T, dir, filename, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func TestRefreshLoadsSkillsInSortedOrder(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "shout.go", srcShout)
	writeSkillFile(t, dir, "greet.go", srcGreet)

	reg := NewRegistry(dir)
	count, err := reg.Refresh()
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("Refresh() = %d, want 2", count)
	}

	wantNames := []string{"greet", "shout"}
	if got := reg.Names(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("Names() = %v, want %v", got, wantNames)
	}

	all := reg.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d skills, want 2", len(all))
	}
	for i, s := range all {
		if s.Name != wantNames[i] {
			t.Errorf("All()[%d].Name = %q, want %q", i, s.Name, wantNames[i])
		}
		if s.Fingerprint == "" {
			t.Errorf("skill %s has empty fingerprint", s.Name)
		}
		if !filepath.IsAbs(s.SourcePath) {
			t.Errorf("skill %s SourcePath %q is not absolute", s.Name, s.SourcePath)
		}
	}

	greet, err := reg.Get("greet")
	if err != nil {
		t.Fatalf("Get(greet) error = %v", err)
	}
	wantContract := Contract{Params: []Param{{Name: "name", Type: "string"}}}
	if diff := cmp.Diff(wantContract, greet.Contract); diff != "" {
		t.Errorf("greet contract mismatch (-want +got):\n%s", diff)
	}
	if greet.Description != "Execute greets a person by name." {
		t.Errorf("greet description = %q", greet.Description)
	}
}

func TestRefreshSkipsNonConformingFiles(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "greet.go", srcGreet)
	writeSkillFile(t, dir, "grab_all.go", srcCatchAll)
	writeSkillFile(t, dir, "broken.go", "package skill\n\nfunc Execute(")
	writeSkillFile(t, dir, "greet_test.go", srcGreet)
	writeSkillFile(t, dir, "notes.txt", "not a skill")

	reg := NewRegistry(dir)
	count, err := reg.Refresh()
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Refresh() = %d, want 1 (only the conforming file)", count)
	}
	if !reg.Has("greet") {
		t.Error("conforming skill greet was not loaded")
	}
	if reg.Has("grab_all") {
		t.Error("catch-all skill should have been skipped")
	}
	if reg.Has("broken") {
		t.Error("unparseable skill should have been skipped")
	}
}

func TestRefreshReplacesWholesale(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "greet.go", srcGreet)
	writeSkillFile(t, dir, "shout.go", srcShout)

	reg := NewRegistry(dir)
	if _, err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if err := os.Remove(filepath.Join(dir, "shout.go")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	count, err := reg.Refresh()
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Refresh() = %d, want 1 after file removal", count)
	}
	if reg.Has("shout") {
		t.Error("removed skill still present; refresh must replace the map in full")
	}
}

func TestRefreshCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skills")
	reg := NewRegistry(dir)

	count, err := reg.Refresh()
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Refresh() = %d, want 0", count)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("skills dir was not created: %v", err)
	}
}

func TestGetMissingSkill(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	_, err := reg.Get("nonexistent")
	if err == nil {
		t.Fatal("Get() error = nil, want ErrSkillNotFound")
	}
	if !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("errors.Is(err, ErrSkillNotFound) = false for %v", err)
	}
}

func TestRegisterSplicesIntoLiveRegistry(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "greet.go", srcGreet)

	reg := NewRegistry(dir)
	if _, err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	s, err := reg.Register(&Artifact{
		Name:     "shout",
		Filename: "shout.go",
		Source:   srcShout,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if s.Name != "shout" {
		t.Errorf("registered name = %q, want shout", s.Name)
	}

	// Immediately queryable, appended after the scanned skills.
	if !reg.Has("shout") {
		t.Error("registered skill not queryable without a refresh")
	}
	wantNames := []string{"greet", "shout"}
	if got := reg.Names(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("Names() = %v, want %v", got, wantNames)
	}

	// And persisted to disk.
	if _, err := os.Stat(filepath.Join(dir, "shout.go")); err != nil {
		t.Errorf("registered source not on disk: %v", err)
	}
}

func TestRegisterReplacesExistingName(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	first, err := reg.Register(&Artifact{Filename: "greet.go", Source: srcGreet})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	updated := `package skill

// Execute greets loudly.
func Execute(name string) (string, error) {
	return "HELLO " + name, nil
}
`
	second, err := reg.Register(&Artifact{Filename: "greet.go", Source: updated})
	if err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after re-register", reg.Count())
	}
	if first.Fingerprint == second.Fingerprint {
		t.Error("fingerprint unchanged after source rewrite")
	}
	got, err := reg.Get("greet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Description != "Execute greets loudly." {
		t.Errorf("description = %q, want the updated one", got.Description)
	}
}

func TestRegisterRejectsBadArtifacts(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dir)

	tests := []struct {
		name     string
		artifact *Artifact
	}{
		{"nil artifact", nil},
		{"no filename", &Artifact{Source: srcGreet}},
		{"not a go file", &Artifact{Filename: "greet.txt", Source: srcGreet}},
		{"empty source", &Artifact{Filename: "greet.go"}},
		{"contract violation", &Artifact{Filename: "grab_all.go", Source: srcCatchAll}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Register(tt.artifact); err == nil {
				t.Error("Register() error = nil, want rejection")
			}
		})
	}

	// Rejected artifacts must not land on disk.
	if _, err := os.Stat(filepath.Join(dir, "grab_all.go")); !os.IsNotExist(err) {
		t.Error("rejected artifact was written to disk")
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
}

func TestFingerprintChangesOnRewrite(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "greet.go", srcGreet)

	reg := NewRegistry(dir)
	if _, err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before, err := reg.Get("greet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	writeSkillFile(t, dir, "greet.go", srcGreet+"\n// touched\n")
	if _, err := reg.Refresh(); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	after, err := reg.Get("greet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if before.Fingerprint == after.Fingerprint {
		t.Error("fingerprint did not change with the source")
	}
}

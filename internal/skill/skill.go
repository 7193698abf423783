// Package skill defines the skill data model, the entrypoint contract
// parser, and the on-disk registry.
//
// A skill is a single Go source file in the skills directory declaring
// `package skill` and exactly one function
//
//	func Execute(<named params>) (string, error)
//
// where every parameter is one of string, int, float64 or bool. The file
// name minus ".go" is the skill name and the unique registry key.
package skill

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Param is one declared Execute parameter. Order matters: the contract
// preserves declaration order and the executor binds by name.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Contract is the ordered parameter list of a skill's Execute function.
// Go has no optional parameters, so every declared parameter is required.
type Contract struct {
	Params []Param `json:"params"`
}

// String renders the contract the way it appears in source, parentheses
// included: "(expression string)" or "(a string, b int)".
func (c Contract) String() string {
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		parts[i] = p.Name + " " + p.Type
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// ParamNames returns the declared parameter names in order.
func (c Contract) ParamNames() []string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	return names
}

// Skill is one registered capability backed by a source file on disk.
type Skill struct {
	// Name is the source file name minus ".go".
	Name string `json:"name"`

	// Contract is the parsed Execute parameter list.
	Contract Contract `json:"contract"`

	// Description is the Execute doc comment, falling back to the package
	// doc comment, falling back to "No description.".
	Description string `json:"description"`

	// SourcePath is the absolute path of the backing file.
	SourcePath string `json:"source_path"`

	// Fingerprint is the sha256 hex of the source bytes at scan time.
	// The executor reloads a skill only when this changes.
	Fingerprint string `json:"fingerprint"`
}

// SignatureText is the retrieval document for this skill: the text that
// gets embedded and the text the router shows the classifier.
func (s *Skill) SignatureText() string {
	return fmt.Sprintf("%s.Execute%s - %s", s.Name, s.Contract, s.Description)
}

// Artifact is a synthesized skill source before it is persisted. The
// builder owns it until Registry.Register writes it to disk.
type Artifact struct {
	Name        string
	Filename    string
	Source      string
	Contract    Contract
	Description string
}

// Fingerprint computes the sha256 hex of source bytes. Shared by the
// registry scan and the executor's reload check so the two always agree.
func Fingerprint(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

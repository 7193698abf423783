package skill

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// The fixed entrypoint contract every skill source must satisfy.
const (
	// PackageName is the package every skill file must declare. The
	// executor resolves the entrypoint as "skill.Execute", so this is
	// load-bearing, not a style rule.
	PackageName = "skill"

	// EntrypointName is the required function name.
	EntrypointName = "Execute"

	// FallbackDescription is used when a source carries no doc comment.
	FallbackDescription = "No description."
)

// allowedParamTypes are the only parameter types the argument binder can
// coerce from decoded JSON.
var allowedParamTypes = map[string]bool{
	"string":  true,
	"int":     true,
	"float64": true,
	"bool":    true,
}

// defaultAllowedImports is the import allow-list for skill sources.
// Pure-computation packages only; anything touching the process, the
// filesystem or the network stays out.
var defaultAllowedImports = []string{
	"bytes",
	"encoding/base64",
	"encoding/json",
	"errors",
	"fmt",
	"math",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// DefaultAllowedImports returns a copy of the skill import allow-list.
func DefaultAllowedImports() []string {
	out := make([]string, len(defaultAllowedImports))
	copy(out, defaultAllowedImports)
	return out
}

// ParseContract parses a skill source and extracts its entrypoint
// contract and description. The description is the Execute doc comment,
// falling back to the package doc comment, falling back to
// FallbackDescription.
//
// Every deviation from the contract is returned as an error wrapping
// ErrContractViolation: the registry logs it and skips the file, the
// builder surfaces it as a synthesis failure.
func ParseContract(src []byte) (Contract, string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "skill.go", src, parser.ParseComments)
	if err != nil {
		return Contract{}, "", fmt.Errorf("%w: %v", ErrContractViolation, err)
	}

	if file.Name == nil || file.Name.Name != PackageName {
		got := "(none)"
		if file.Name != nil {
			got = file.Name.Name
		}
		return Contract{}, "", fmt.Errorf("%w: package must be %q, got %q", ErrContractViolation, PackageName, got)
	}

	if err := checkImports(file, defaultAllowedImports); err != nil {
		return Contract{}, "", err
	}

	entry, err := findEntrypoint(file)
	if err != nil {
		return Contract{}, "", err
	}

	contract, err := extractParams(entry)
	if err != nil {
		return Contract{}, "", err
	}

	if err := checkReturns(entry); err != nil {
		return Contract{}, "", err
	}

	return contract, extractDescription(file, entry), nil
}

// checkImports verifies every import path is on the allow-list.
func checkImports(file *ast.File, allowed []string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, p := range allowed {
		allowedSet[p] = true
	}
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if !allowedSet[path] {
			return fmt.Errorf("%w: disallowed import %q", ErrContractViolation, path)
		}
	}
	return nil
}

// findEntrypoint locates the single top-level Execute function. Methods
// named Execute do not count.
func findEntrypoint(file *ast.File) (*ast.FuncDecl, error) {
	var found []*ast.FuncDecl
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		if fn.Name.Name == EntrypointName {
			found = append(found, fn)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no %s function", ErrContractViolation, EntrypointName)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %s declarations, want exactly one", ErrContractViolation, len(found), EntrypointName)
	}
}

// extractParams builds the ordered contract from the Execute parameter
// list. A field declaring several names (a, b string) expands to one
// Param per name.
func extractParams(fn *ast.FuncDecl) (Contract, error) {
	var contract Contract
	if fn.Type.Params == nil {
		return contract, nil
	}
	for _, field := range fn.Type.Params.List {
		typeName, err := paramTypeName(field.Type)
		if err != nil {
			return Contract{}, err
		}
		if len(field.Names) == 0 {
			return Contract{}, fmt.Errorf("%w: unnamed parameter of type %s", ErrContractViolation, typeName)
		}
		for _, name := range field.Names {
			contract.Params = append(contract.Params, Param{Name: name.Name, Type: typeName})
		}
	}
	return contract, nil
}

// paramTypeName resolves a parameter type expression to one of the
// allowed type names, rejecting variadics and catch-alls.
func paramTypeName(expr ast.Expr) (string, error) {
	switch t := expr.(type) {
	case *ast.Ident:
		if t.Name == "any" {
			return "", fmt.Errorf("%w: catch-all parameter type any", ErrContractViolation)
		}
		if !allowedParamTypes[t.Name] {
			return "", fmt.Errorf("%w: unsupported parameter type %s", ErrContractViolation, t.Name)
		}
		return t.Name, nil
	case *ast.Ellipsis:
		return "", fmt.Errorf("%w: variadic parameters are not allowed", ErrContractViolation)
	case *ast.MapType:
		return "", fmt.Errorf("%w: catch-all map parameter", ErrContractViolation)
	case *ast.InterfaceType:
		return "", fmt.Errorf("%w: catch-all interface parameter", ErrContractViolation)
	default:
		return "", fmt.Errorf("%w: unsupported parameter type", ErrContractViolation)
	}
}

// checkReturns requires the exact return shape (string, error).
func checkReturns(fn *ast.FuncDecl) error {
	var flat []string
	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			ident, ok := field.Type.(*ast.Ident)
			name := ""
			if ok {
				name = ident.Name
			}
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				flat = append(flat, name)
			}
		}
	}
	if len(flat) != 2 || flat[0] != "string" || flat[1] != "error" {
		return fmt.Errorf("%w: %s must return (string, error)", ErrContractViolation, EntrypointName)
	}
	return nil
}

// extractDescription prefers the Execute doc comment, then the package
// doc comment, then the fallback literal.
func extractDescription(file *ast.File, fn *ast.FuncDecl) string {
	if fn.Doc != nil {
		if text := strings.TrimSpace(fn.Doc.Text()); text != "" {
			return text
		}
	}
	if file.Doc != nil {
		if text := strings.TrimSpace(file.Doc.Text()); text != "" {
			return text
		}
	}
	return FallbackDescription
}

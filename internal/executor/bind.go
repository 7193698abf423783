package executor

import (
	"fmt"
	"reflect"
	"sort"

	"skillforge/internal/skill"
	"skillforge/internal/types"
)

// bindArguments maps a flat argument map onto the contract's ordered
// parameter list.
//
// Binding is strict: a declared parameter missing from args and an args
// key missing from the declaration both fail, so a misrouted call is
// rejected up front instead of running the skill with a zero value.
// Arguments usually come from decoded JSON, so numbers arrive as float64
// and are coerced to a declared int only when the value is integral.
func bindArguments(contract skill.Contract, args map[string]interface{}) ([]reflect.Value, error) {
	declared := make(map[string]bool, len(contract.Params))
	for _, p := range contract.Params {
		declared[p.Name] = true
	}
	var unknown []string
	for key := range args {
		if !declared[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown arguments %v, contract is %s",
			skill.ErrArgumentMismatch, unknown, contract)
	}

	in := make([]reflect.Value, len(contract.Params))
	for i, p := range contract.Params {
		raw, ok := args[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing argument %q (%s)",
				skill.ErrArgumentMismatch, p.Name, p.Type)
		}
		v, err := coerce(raw, p.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %q: %v", skill.ErrArgumentMismatch, p.Name, err)
		}
		in[i] = v
	}
	return in, nil
}

// coerce converts one argument value to the declared parameter type.
func coerce(raw interface{}, declared string) (reflect.Value, error) {
	switch declared {
	case "string":
		s, ok := raw.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("want string, got %T", raw)
		}
		return reflect.ValueOf(s), nil

	case "bool":
		b, ok := raw.(bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("want bool, got %T", raw)
		}
		return reflect.ValueOf(b), nil

	case "int":
		n, ok := types.ExtractInt(raw)
		if !ok {
			return reflect.Value{}, fmt.Errorf("want int, got %v (%T)", raw, raw)
		}
		return reflect.ValueOf(n), nil

	case "float64":
		f, ok := types.ExtractFloat64(raw)
		if !ok {
			return reflect.Value{}, fmt.Errorf("want float64, got %v (%T)", raw, raw)
		}
		return reflect.ValueOf(f), nil

	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", declared)
	}
}

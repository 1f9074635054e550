package description

import "github.com/bitswalk/minibuild/grammar"

// Value is a grammar-typed value bound to one key of a loaded description.
// Only the accessor matching the key's declared Shape should be called;
// the others return the zero value when the shape does not match.
type Value struct {
	set  bool
	str  string
	i    int64
	b    bool
	list []string
	dict map[string]string
}

// Set reports whether the key was assigned in the description body.
func (v Value) Set() bool { return v.set }

// String returns the scalar string form (for bool/int keys, the textual
// literal never round-trips through here; use Bool/Int instead).
func (v Value) String() string { return v.str }

// Bool returns the scalar bool value.
func (v Value) Bool() bool { return v.b }

// Int returns the scalar int value.
func (v Value) Int() int64 { return v.i }

// List returns the ordered string list value.
func (v Value) List() []string { return v.list }

// Dict returns the string-keyed dict value.
func (v Value) Dict() map[string]string { return v.dict }

func stringVal(s string) Value    { return Value{set: true, str: s} }
func boolVal(b bool) Value        { return Value{set: true, b: b} }
func intVal(i int64) Value        { return Value{set: true, i: i} }
func listVal(l []string) Value    { return Value{set: true, list: l} }
func dictVal(d map[string]string) Value { return Value{set: true, dict: d} }

// coerce converts a parsed literal into a Value matching def.Shape,
// enforcing the closed container-shape contract of §3.
func coerce(key string, def grammar.KeyDef, lit literal) (Value, error) {
	switch def.Shape {
	case grammar.ShapeList:
		if lit.kind != litList {
			return Value{}, errShapeMismatch(key, "list")
		}
		out := make([]string, 0, len(lit.list))
		for _, item := range lit.list {
			if item.kind != litString {
				return Value{}, errShapeMismatch(key, "list of strings")
			}
			out = append(out, item.str)
		}
		return listVal(out), nil
	case grammar.ShapeDict:
		if lit.kind != litDict {
			return Value{}, errShapeMismatch(key, "dict")
		}
		out := make(map[string]string, len(lit.dict))
		for k, v := range lit.dict {
			if v.kind != litString {
				return Value{}, errShapeMismatch(key, "dict of strings")
			}
			out[k] = v.str
		}
		return dictVal(out), nil
	default: // ShapeScalar: string, bool or int depending on what was written
		switch lit.kind {
		case litString:
			return stringVal(lit.str), nil
		case litBool:
			return boolVal(lit.b), nil
		case litInt:
			return intVal(lit.i), nil
		default:
			return Value{}, errShapeMismatch(key, "scalar")
		}
	}
}

func errShapeMismatch(key, want string) error {
	return &shapeError{key: key, want: want}
}

type shapeError struct {
	key  string
	want string
}

func (e *shapeError) Error() string {
	return "key '" + e.key + "' must be a " + e.want
}

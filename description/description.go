package description

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
)

// BuildDescription is one validated, fully evaluated description: a set of
// grammar-typed values plus the bookkeeping the dependency tracker and
// diagnostics need (§3, §4.1).
type BuildDescription struct {
	tokens     map[string]Value
	FileParts  []string
	SelfDir    string
	ImportList []string
}

// Get returns the value bound to key, or the zero Value if key was never
// assigned (callers check Value.Set()).
func (d *BuildDescription) Get(key string) Value { return d.tokens[key] }

// Has reports whether key was assigned a value in the description.
func (d *BuildDescription) Has(key string) bool { return d.tokens[key].Set() }

func evaluateBody(res *SpliceResult, grammarMap map[string]grammar.KeyDef, subst map[string]string, builtins map[string]Value) (map[string]Value, error) {
	assignments, err := parseBody(res.Source)
	if err != nil {
		return nil, translateParseErr(res, err)
	}
	tokens := map[string]Value{}
	for _, a := range assignments {
		def, ok := grammarMap[a.name]
		if !ok {
			return nil, res.TranslateErr(a.line, "unknown description key '%s'", a.name)
		}
		val, err := coerce(a.name, def, a.value)
		if err != nil {
			return nil, res.TranslateErr(a.line, "%s", err.Error())
		}
		if def.Preprocess {
			val, err = preprocessValue(val, subst)
			if err != nil {
				return nil, res.TranslateErr(a.line, "substitution failed for '%s': %v", a.name, err)
			}
		}
		tokens[a.name] = val
	}
	for k, v := range builtins {
		tokens[k] = v
	}
	return tokens, nil
}

func preprocessValue(v Value, subst map[string]string) (Value, error) {
	switch {
	case v.list != nil:
		out := make([]string, len(v.list))
		for i, s := range v.list {
			r, err := grammar.Subst(s, subst)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return listVal(out), nil
	case v.dict != nil:
		out := make(map[string]string, len(v.dict))
		for k, s := range v.dict {
			r, err := grammar.Subst(s, subst)
			if err != nil {
				return Value{}, err
			}
			out[k] = r
		}
		return dictVal(out), nil
	default:
		r, err := grammar.Subst(v.str, subst)
		if err != nil {
			return Value{}, err
		}
		return stringVal(r), nil
	}
}

// translateParseErr locates a bare parse error (which only carries a line
// number within the spliced body text) against the trace table. Parse
// errors from literal.go end in "line N"; when that cannot be recovered,
// the error is wrapped without a file location.
func translateParseErr(res *SpliceResult, err error) error {
	msg := err.Error()
	if idx := strings.LastIndex(msg, "line "); idx >= 0 {
		if n, convErr := strconv.Atoi(msg[idx+len("line "):]); convErr == nil {
			return res.TranslateErr(n, "%s", msg)
		}
	}
	return errs.Wrap(err, errs.DomainDescription, "parse-error", "parsing description body")
}

func selfDirname(fileParts []string) string {
	if len(fileParts) == 0 {
		return ""
	}
	return filepath.Dir(fileParts[0])
}

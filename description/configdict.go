package description

import "fmt"

// ParseConfigDict evaluates a bare "{ ... }" dictionary literal, the
// restricted sandboxed expression used for a toolset section's `config =`
// value in the project config file (§6).
func ParseConfigDict(raw string) (map[string]string, error) {
	toks, err := newLexer(raw).tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	p.skipNewlines()
	if p.cur().kind != tkLBrace {
		return nil, fmt.Errorf("expected '{' at start of config dict")
	}
	v, err := p.parseDict()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if p.cur().kind != tkEOF {
		return nil, fmt.Errorf("unexpected trailing tokens after config dict")
	}
	out := make(map[string]string, len(v.dict))
	for k, item := range v.dict {
		if item.kind != litString {
			return nil, fmt.Errorf("config dict value for key '%s' must be a string", k)
		}
		out[k] = item.str
	}
	return out, nil
}

package genbconf

import (
	"os"
	"strings"

	"github.com/bitswalk/minibuild/internal/errs"
)

// Known pragma tokens (gen_bconf.py TAG_KNOWN_PRAGMA_TOKENS).
const (
	pragmaNASM          = "nasm"
	pragmaNative        = "native"
	pragmaToolset       = "toolset"
	pragmaDefaultModels = "default-models"
)

var knownPragmaTokens = map[string]bool{
	pragmaNASM: true, pragmaNative: true, pragmaToolset: true, pragmaDefaultModels: true,
}

// pragmaLine is one parsed "#pragma os:<platform> <token> k=v ..." directive.
type pragmaLine struct {
	lineNo  int
	os      string
	token   string
	options map[string]string
}

// splitPragmaWords is a minimal quote-aware word splitter for one pragma's
// argument text (no shlex equivalent appears anywhere in the example pack —
// see DESIGN.md). Double and single quoted spans are kept intact as one
// word; backslash has no special meaning outside quotes, matching the
// prototype files this tool actually consumes (no embedded quote escaping).
func splitPragmaWords(s string) []string {
	var words []string
	var cur strings.Builder
	var quote rune
	inWord := false
	flush := func() {
		if inWord {
			words = append(words, cur.String())
			cur.Reset()
			inWord = false
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			flush()
		default:
			inWord = true
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// loadPragmas scans protoFile for "#pragma" directive lines (gen_bconf.py
// load_buildconf_pragmas; build_description.py itself did not survive into
// original_source/, so this re-derives the scan directly: any line whose
// trimmed text begins with "#pragma" is a candidate, 1-based line numbers).
func loadPragmas(protoFile string) ([]pragmaLine, error) {
	raw, err := os.ReadFile(protoFile)
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainConfig, "read-failed", "reading config prototype '%s'", protoFile)
	}
	var pragmas []pragmaLine
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	for idx, ln := range lines {
		lineNo := idx + 1
		stripped := strings.TrimSpace(ln)
		if !strings.HasPrefix(stripped, "#pragma") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(stripped, "#pragma"))
		argv := splitPragmaWords(rest)
		if len(argv) == 0 {
			return nil, errs.New(errs.DomainConfig, "bad-pragma", "malformed instruction #pragma at line: %d", lineNo)
		}

		var pragmaOS string
		var rem []string
		for _, arg := range argv {
			if arg == "" {
				return nil, errs.New(errs.DomainConfig, "bad-pragma", "malformed instruction #pragma at line: %d", lineNo)
			}
			if pragmaOS == "" && strings.HasPrefix(arg, "os:") {
				pragmaOS = strings.TrimPrefix(arg, "os:")
				continue
			}
			rem = append(rem, arg)
		}
		if pragmaOS == "" {
			return nil, errs.New(errs.DomainConfig, "bad-pragma", "malformed instruction #pragma at line: %d, OS value is unknown", lineNo)
		}
		if len(rem) == 0 {
			return nil, errs.New(errs.DomainConfig, "bad-pragma", "malformed instruction #pragma at line: %d, no tokens", lineNo)
		}
		token := rem[0]
		if !knownPragmaTokens[token] {
			return nil, errs.New(errs.DomainConfig, "bad-pragma", "instruction #pragma at line: %d, got unknown token '%s'", lineNo, token)
		}
		options := map[string]string{}
		for _, arg := range rem[1:] {
			k, v, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, errs.New(errs.DomainConfig, "bad-pragma", "instruction #pragma at line: %d, malformed token: '%s'", lineNo, arg)
			}
			options[k] = v
		}
		pragmas = append(pragmas, pragmaLine{lineNo: lineNo, os: pragmaOS, token: token, options: options})
	}
	return pragmas, nil
}

package genbconf

import (
	"strings"

	"github.com/bitswalk/minibuild/internal/errs"
)

// parseArchTokens parses a "arch:value arch:value ..." token string against
// knownArches, applying substitutions (e.g. "sys" standing in for the host
// arch) before matching. Ported from gen_bconf.py's use of
// parse_arch_specific_tokens (arch_parse.py itself did not survive into
// original_source/ — see DESIGN.md); this directly re-derives the contract
// its call sites rely on: a space-separated list of "<arch>:<value>" pairs,
// each arch appearing at most once, each value non-empty.
func parseArchTokens(text string, knownArches []string, substitutions map[string]string) ([]string, map[string]string, error) {
	known := map[string]bool{}
	for _, a := range knownArches {
		known[a] = true
	}
	var order []string
	values := map[string]string{}
	for _, tok := range strings.Fields(text) {
		arch, value, ok := strings.Cut(tok, ":")
		if !ok || arch == "" || value == "" {
			return nil, nil, errs.New(errs.DomainConfig, "bad-arch-token", "malformed arch-specific token: '%s'", tok)
		}
		if sub, ok := substitutions[arch]; ok {
			arch = sub
		}
		if !known[arch] {
			return nil, nil, errs.New(errs.DomainConfig, "unknown-arch", "arch-specific token names unknown architecture: '%s'", arch)
		}
		if _, dup := values[arch]; dup {
			return nil, nil, errs.New(errs.DomainConfig, "duplicate-arch-token", "arch '%s' given more than once in: '%s'", arch, text)
		}
		values[arch] = value
		order = append(order, arch)
	}
	return order, values, nil
}

package grammar

import (
	"os"
	"strings"

	"github.com/a8m/envsubst"
)

// Subst resolves ${project_root} (and any other os-environment reference)
// inside template, the value-substitution pass applied to every grammar key
// marked Preprocess=true (§4.1 step 8). Description loading is single
// threaded during graph discovery, so the project_root binding is injected
// through the process environment for the duration of the call and restored
// afterward rather than threaded through a custom evaluator.
func Subst(template string, vars map[string]string) (string, error) {
	if !strings.Contains(template, "$") {
		return template, nil
	}
	restore := map[string]*string{}
	for k, v := range vars {
		if old, ok := os.LookupEnv(k); ok {
			oldCopy := old
			restore[k] = &oldCopy
		} else {
			restore[k] = nil
		}
		os.Setenv(k, v)
	}
	defer func() {
		for k, old := range restore {
			if old == nil {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, *old)
			}
		}
	}()
	return envsubst.StringRestricted(template, true, true)
}

// ProjectRootVars builds the substitution table for a module description
// evaluated against projectRoot (§4.1 step 8, §9 glossary "project_root").
func ProjectRootVars(projectRoot string) map[string]string {
	return map[string]string{SubstProjectRoot: projectRoot}
}

package msvc

import (
	"os"
	"strings"

	"github.com/bitswalk/minibuild/internal/errs"
)

// writeResponseFile writes args as an MSVC @response file: one
// whitespace-quoted argument per line, mirroring argv_to_rsp.
func writeResponseFile(path string, args []string) error {
	var sb strings.Builder
	for _, a := range args {
		if strings.ContainsAny(a, " \t") {
			sb.WriteByte('"')
			sb.WriteString(a)
			sb.WriteByte('"')
		} else {
			sb.WriteString(a)
		}
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "rsp-write-failed", "writing response file '%s'", path)
	}
	return nil
}

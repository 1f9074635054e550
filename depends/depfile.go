// Package depends implements header-dependency recording and the
// incremental-build freshness query (§4.3): parsing GCC-family Make-format
// dependency output and MSVC /showIncludes output into a project-relative
// dependency record, persisting it as re-readable text, and answering
// is_up_to_date queries against mtimes.
package depends

import (
	"bufio"
	"os"
	"strings"

	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
)

const msvcIncludeMarker = "Note: including file:"

// Record is one dependency record: an ordered, project-root-relative list
// of paths a compiled object depends on, beyond its primary source (§4.3
// "Dependency record").
type Record struct {
	Entries []string
}

// filterProjectEntry resolves tok (as emitted by the compiler, relative to
// the project root when not already absolute) and returns its
// project-relative form if it lies under projectRoot, or ("", false) if it
// is outside (a system or toolchain header, assumed stable per §4.3).
func filterProjectEntry(tok, projectRoot string) (string, bool) {
	abs := paths.NormalizeOptional(tok, projectRoot)
	normAbs := paths.Normcase(abs)
	normRoot := paths.Normcase(projectRoot)
	if !paths.HasPathPrefix(normAbs, normRoot) {
		return "", false
	}
	return paths.StripPathPrefix(normAbs, normRoot), true
}

// ParseGCCDepFile parses a GCC/Clang-family Make-format dependency file
// (as emitted by -MD -MF) and filters its prerequisite list to paths
// rooted under projectRoot (§4.3).
func ParseGCCDepFile(depFilePath, projectRoot string) (*Record, error) {
	raw, err := os.ReadFile(depFilePath)
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainFreshness, "dep-read-failed", "reading dependency file '%s'", depFilePath)
	}
	text := strings.ReplaceAll(string(raw), "\\\n", " ")
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	rec := &Record{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ":"); idx >= 0 && !isDriveLetterColon(line, idx) {
			line = line[idx+1:]
		}
		for _, tok := range strings.Fields(line) {
			tok = strings.TrimSuffix(tok, "\\")
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if rel, ok := filterProjectEntry(tok, projectRoot); ok {
				rec.Entries = append(rec.Entries, rel)
			}
		}
	}
	return rec, nil
}

// isDriveLetterColon reports whether the colon at idx is a Windows drive
// letter separator ("C:\...") rather than the Make target separator, so
// dependency files emitted on Windows are not mis-split.
func isDriveLetterColon(line string, idx int) bool {
	return idx == 1 && len(line) > 0 && ((line[0] >= 'a' && line[0] <= 'z') || (line[0] >= 'A' && line[0] <= 'Z'))
}

// ParseMSVCShowIncludes scans cl.exe's stdout for "Note: including file:"
// lines, strips the marker, trims and filters to the project root (§4.3).
func ParseMSVCShowIncludes(stdout, projectRoot string) (*Record, error) {
	rec := &Record{}
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, msvcIncludeMarker)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len(msvcIncludeMarker):])
		if rel, ok := filterProjectEntry(rest, projectRoot); ok {
			rec.Entries = append(rec.Entries, rel)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, errs.DomainFreshness, "showincludes-scan-failed", "scanning /showIncludes output")
	}
	return rec, nil
}

// FilterCompilerOutput returns every stdout line that is not a
// "Note: including file:" diagnostic, the text actually worth echoing to
// the user when MSVC's /showIncludes is in effect.
func FilterCompilerOutput(stdout string) string {
	var kept []string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, msvcIncludeMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// WriteDepFile persists rec as a re-readable text file, one project-relative
// path per line (§4.3 "Write the accepted, order-preserved list").
func WriteDepFile(depFilePath string, rec *Record) error {
	var sb strings.Builder
	for _, e := range rec.Entries {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(depFilePath, []byte(sb.String()), 0o644); err != nil {
		return errs.Wrap(err, errs.DomainFreshness, "dep-write-failed", "writing dependency file '%s'", depFilePath)
	}
	return nil
}

// ReadDepFile reads back a dependency record persisted by WriteDepFile.
func ReadDepFile(depFilePath string) (*Record, error) {
	raw, err := os.ReadFile(depFilePath)
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainFreshness, "dep-read-failed", "reading dependency file '%s'", depFilePath)
	}
	rec := &Record{}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rec.Entries = append(rec.Entries, line)
		}
	}
	return rec, nil
}

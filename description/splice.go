// Package description implements the loader for module descriptions
// (minibuild.mk) and extension descriptions (minibuild.ext): include
// splicing with a line-number trace, a restricted literal-value evaluator,
// and grammar validation (§4.1).
package description

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
)

var (
	reInclude = regexp.MustCompile(`^#include\s+"(\S+)"\s*$`)
	reImport  = regexp.MustCompile(`^#import\s+"(\S+)"\s*$`)
)

// TraceLine identifies the originating file and line number a spliced
// source line came from, so evaluation errors can be reported against the
// file the user actually edited (§4.1 step 7).
type TraceLine struct {
	File string
	Line int
}

// ImportOrigin records where a #import directive appeared, for diagnostics
// and for the caller's import hook (§4.1 step 4).
type ImportOrigin struct {
	Dir     string
	SrcFile string
	SrcLine int
}

// SpliceResult is the spliced body plus its supporting trace metadata.
type SpliceResult struct {
	Source    string
	Trace     []TraceLine
	FileParts []string
	Imports   map[string]*ImportOrigin // keyed by normalized import dir
}

func resolveInjection(raw, projectRoot, dirOfFile string) string {
	result := strings.TrimSpace(raw)
	if result == "" {
		return ""
	}
	if strings.HasPrefix(result, "@") {
		result = strings.Replace(result, "@", projectRoot, 1)
	}
	return paths.NormalizeOptional(result, dirOfFile)
}

// Splice reads fname and recursively splices #include directives, building
// the concatenated source, its per-line trace table, the ordered file-parts
// list, and (when importEnabled) the #import table.
func Splice(projectRoot, workingDir, fname string, requiredBy []string, importEnabled bool) (*SpliceResult, error) {
	res := &SpliceResult{}
	if importEnabled {
		res.Imports = map[string]*ImportOrigin{}
	}
	var lines []string
	var trace []TraceLine
	if err := spliceFile(projectRoot, workingDir, fname, requiredBy, &lines, &trace, &res.FileParts, res.Imports); err != nil {
		return nil, err
	}
	res.Source = strings.Join(lines, "\n")
	res.Trace = trace
	return res, nil
}

func spliceFile(projectRoot, workingDir, fileToParse string, requiredBy []string, output *[]string, trace *[]TraceLine, fileParts *[]string, imports map[string]*ImportOrigin) error {
	fname := paths.NormalizeOptional(fileToParse, workingDir)
	for _, r := range requiredBy {
		if r == fname {
			return errs.New(errs.DomainDescription, "recursive-include", "recursive instruction #include: file: '%s'", fname)
		}
	}
	dirOfFile := filepath.Dir(fname)

	if !paths.IsFile(fname) {
		switch len(requiredBy) {
		case 0:
			return errs.New(errs.DomainDescription, "missing-file", "no such description: '%s'", fname)
		case 1:
			return errs.New(errs.DomainDescription, "missing-file", "no such description: '%s', required by: '%s'", fname, requiredBy[0])
		default:
			chain := strings.Join(requiredBy, " <= ")
			return errs.New(errs.DomainDescription, "missing-file", "no such description: '%s', required by:\n  %s", fname, chain)
		}
	}

	raw, err := os.ReadFile(fname)
	if err != nil {
		return errs.Wrap(err, errs.DomainDescription, "read-failed", "reading description '%s'", fname)
	}
	*fileParts = append(*fileParts, fname)

	rawLines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if n := len(rawLines); n > 0 && rawLines[n-1] == "" {
		// A trailing newline terminates the last line; it does not start a new one.
		rawLines = rawLines[:n-1]
	}
	stopReparse := false
	nextRequiredBy := append([]string{fname}, requiredBy...)
	for idx, ln := range rawLines {
		lineNo := idx + 1
		if !stopReparse {
			stripped := strings.TrimSpace(ln)
			if stripped != "" && !strings.HasPrefix(stripped, "#") {
				stopReparse = true
			}
			if !stopReparse && strings.HasPrefix(stripped, "#include") {
				m := reInclude.FindStringSubmatch(ln)
				if m == nil {
					return errs.New(errs.DomainDescription, "bad-include", "invalid #include syntax: file: '%s', line: %d", fname, lineNo)
				}
				incFname := resolveInjection(m[1], projectRoot, dirOfFile)
				if incFname == "" {
					return errs.New(errs.DomainDescription, "bad-include", "invalid #include syntax: file: '%s', line: %d", fname, lineNo)
				}
				if err := spliceFile(projectRoot, dirOfFile, incFname, nextRequiredBy, output, trace, fileParts, imports); err != nil {
					return err
				}
			}
			if !stopReparse && strings.HasPrefix(stripped, "#import") {
				if imports == nil {
					return errs.New(errs.DomainDescription, "bad-import", "unexpected #import syntax: file: '%s', line: %d", fname, lineNo)
				}
				m := reImport.FindStringSubmatch(ln)
				if m == nil {
					return errs.New(errs.DomainDescription, "bad-import", "invalid #import syntax: file: '%s', line: %d", fname, lineNo)
				}
				dnameImport := resolveInjection(m[1], projectRoot, dirOfFile)
				if dnameImport == "" {
					return errs.New(errs.DomainDescription, "bad-import", "invalid #import syntax: file: '%s', line: %d", fname, lineNo)
				}
				if !paths.IsDir(dnameImport) {
					return errs.New(errs.DomainDescription, "bad-import", "directory for #import not found: '%s', required by: '%s' at line: %d", dnameImport, fname, lineNo)
				}
				key := paths.Normcase(dnameImport)
				imports[key] = &ImportOrigin{Dir: dnameImport, SrcFile: fname, SrcLine: lineNo}
			}
		}
		*output = append(*output, ln)
		*trace = append(*trace, TraceLine{File: fname, Line: lineNo})
	}
	return nil
}

// Locate translates a 1-based line number in a spliced source back to the
// originating file:line (§4.1 step 7).
func (r *SpliceResult) Locate(line int) (string, int) {
	if line < 1 || line > len(r.Trace) {
		if len(r.FileParts) > 0 {
			return r.FileParts[0], line
		}
		return "<unknown>", line
	}
	t := r.Trace[line-1]
	return t.File, t.Line
}

// TranslateErr wraps a body-evaluation error, naming the originating
// file:line via the trace table.
func (r *SpliceResult) TranslateErr(line int, format string, args ...interface{}) error {
	file, origLine := r.Locate(line)
	msg := fmt.Sprintf(format, args...)
	return errs.New(errs.DomainDescription, "eval-error", "%s: file: '%s', line: %d", msg, file, origLine)
}

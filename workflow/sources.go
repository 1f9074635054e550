package workflow

import (
	"path/filepath"
	"strings"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
)

// sourceKind is which compiler a source file is routed through (§4.6 step 4:
// ".cpp/.cc/.cxx" -> C++, ".c" -> C, ".s/.asm/.S" -> ASM).
type sourceKind int

const (
	sourceUnknown sourceKind = iota
	sourceCPP
	sourceC
	sourceASM
)

var cppExts = map[string]bool{".cpp": true, ".cc": true, ".cxx": true}
var cExts = map[string]bool{".c": true}
var asmExtsLower = map[string]bool{".s": true, ".asm": true}

// classifySource returns the compiler path for path's extension. ".S"
// (capital) is kept case-sensitive: on case-sensitive filesystems it is the
// gcc-family convention for "assemble with the C preprocessor", distinct
// from plain ".s", but both route through the ASM action here.
func classifySource(path string) sourceKind {
	ext := filepath.Ext(path)
	lower := strings.ToLower(ext)
	switch {
	case cppExts[lower]:
		return sourceCPP
	case cExts[lower]:
		return sourceC
	case asmExtsLower[lower] || ext == ".S":
		return sourceASM
	default:
		return sourceUnknown
	}
}

// sourceFile pairs a concrete source path with its compiled object name.
type sourceFile struct {
	Path    string
	ObjName string
	Kind    sourceKind
}

// objNameFor derives a deterministic object base name (no extension) from a
// source path relative to moduleDir: path separators are flattened to "__"
// so that sources in different subdirectories never collide in a module's
// flat object directory, and the original extension is dropped.
func objNameFor(moduleDir, srcPath string) string {
	rel, err := filepath.Rel(moduleDir, srcPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(srcPath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = filepath.ToSlash(rel)
	return strings.ReplaceAll(rel, "/", "__")
}

// ResolveSources computes the concrete, classified source list for a module
// (§4.6 step 4): build_list merged with platform/arch refinements via
// description.ResolveList, each entry resolved to an absolute path under
// moduleDir and classified by extension.
func ResolveSources(desc *description.BuildDescription, moduleDir, platform, arch string) ([]sourceFile, error) {
	raw := description.ResolveList(desc, grammar.KeyBuildList, platform, arch)
	seen := map[string]bool{}
	out := make([]sourceFile, 0, len(raw))
	for _, entry := range raw {
		path := entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(moduleDir, path)
		}
		path = filepath.Clean(path)
		kind := classifySource(path)
		if kind == sourceUnknown {
			return nil, errs.New(errs.DomainDescription, "unrecognized-source-extension",
				"build_list entry '%s' has an unrecognized source extension", entry)
		}
		objName := objNameFor(moduleDir, path)
		if seen[objName] {
			return nil, errs.New(errs.DomainDescription, "duplicate-object-name",
				"two sources in build_list map to the same object name '%s': check for a case-only or extension-only collision", objName)
		}
		seen[objName] = true
		out = append(out, sourceFile{Path: path, ObjName: objName, Kind: kind})
	}
	return out, nil
}

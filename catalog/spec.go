// Package catalog assembles the file list a zip-file/composite module
// publishes, grounded on original_source/minibuild/spec_file.py.
//
// The original's spec-file is a Python literal: a list of dicts naming a
// source directory (or an explicit file list) plus arcname-based inclusion/
// exclusion rules. This port keeps the same entry shape and exclusion-rule
// semantics but persists it as JSON rather than a Python literal — the
// REDESIGN FLAG already applied to the MSVC bootstrap cache (avoid
// exec()-style literal evaluation for a file whose only job is structured
// data, not executable substitution logic). Both the module description's
// composite_spec key and the external spec_file key now name JSON catalog
// descriptor files instead of embedding the list inline.
package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
)

// Entry is one resolved catalog member: an absolute source path and the
// archive-relative name it is published under.
type Entry struct {
	SourcePath string
	ArcName    string
}

// ExclusionRule is one arcname/arcpath matching rule, mirroring
// _pass_exclusion_constraints's twelve independent rule slots.
type ExclusionRule struct {
	IfArcnameEquals         []string `json:"if-arcname-equals,omitempty"`
	IfArcnameStartswith     []string `json:"if-arcname-startswith,omitempty"`
	IfArcnameEndswith       []string `json:"if-arcname-endswith,omitempty"`
	IfArcpathEquals         []string `json:"if-arcpath-equals,omitempty"`
	IfArcpathStartswith     []string `json:"if-arcpath-startswith,omitempty"`
	IfArcpathEndswith       []string `json:"if-arcpath-endswith,omitempty"`
	IfNotArcnameEquals      []string `json:"if-not-arcname-equals,omitempty"`
	IfNotArcnameStartswith  []string `json:"if-not-arcname-startswith,omitempty"`
	IfNotArcnameEndswith    []string `json:"if-not-arcname-endswith,omitempty"`
	IfNotArcpathEquals      []string `json:"if-not-arcpath-equals,omitempty"`
	IfNotArcpathStartswith  []string `json:"if-not-arcpath-startswith,omitempty"`
	IfNotArcpathEndswith    []string `json:"if-not-arcpath-endswith,omitempty"`
}

// Group is one catalog descriptor entry: either a directory walk (Catalog
// nil) filtered by ExcludeDir/ExcludeFile, or an explicit file list.
type Group struct {
	Dirname     string        `json:"dirname,omitempty"`
	Prefix      string        `json:"prefix,omitempty"`
	Catalog     []string      `json:"catalog,omitempty"`
	ExcludeDir  ExclusionRule `json:"exclude-dir,omitempty"`
	ExcludeFile ExclusionRule `json:"exclude-file,omitempty"`
}

// passExclusionConstraints reports whether the arcname/arcpath pair survives
// every populated rule slot, a direct translation of
// _pass_exclusion_constraints (false on the first rule that matches).
func passExclusionConstraints(arcpath, arcname string, rules ExclusionRule) bool {
	for _, r := range rules.IfArcnameEquals {
		if r == arcname {
			return false
		}
	}
	for _, r := range rules.IfArcnameStartswith {
		if strings.HasPrefix(arcname, r) {
			return false
		}
	}
	for _, r := range rules.IfArcnameEndswith {
		if strings.HasSuffix(arcname, r) {
			return false
		}
	}
	for _, r := range rules.IfArcpathEquals {
		if r == arcpath {
			return false
		}
	}
	for _, r := range rules.IfArcpathStartswith {
		if strings.HasPrefix(arcpath, r) {
			return false
		}
	}
	for _, r := range rules.IfArcpathEndswith {
		if strings.HasSuffix(arcpath, r) {
			return false
		}
	}
	for _, r := range rules.IfNotArcnameEquals {
		if r != arcname {
			return false
		}
	}
	for _, r := range rules.IfNotArcnameStartswith {
		if !strings.HasPrefix(arcname, r) {
			return false
		}
	}
	for _, r := range rules.IfNotArcnameEndswith {
		if !strings.HasSuffix(arcname, r) {
			return false
		}
	}
	for _, r := range rules.IfNotArcpathEquals {
		if r != arcpath {
			return false
		}
	}
	for _, r := range rules.IfNotArcpathStartswith {
		if !strings.HasPrefix(arcpath, r) {
			return false
		}
	}
	for _, r := range rules.IfNotArcpathEndswith {
		if !strings.HasSuffix(arcpath, r) {
			return false
		}
	}
	return true
}

// collectFilesInSpec walks dirPath depth-first in sorted order, appending
// every surviving file to catalog, mirroring _collect_files_in_spec.
func collectFilesInSpec(dirPath, dirArcname string, exclDirs, exclFiles ExclusionRule, catalog *[]Entry) error {
	items, err := os.ReadDir(dirPath)
	if err != nil {
		return errs.Wrap(err, errs.DomainDescription, "catalog-readdir-failed", "reading directory '%s'", dirPath)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })
	for _, item := range items {
		name := item.Name()
		itemPath := filepath.Join(dirPath, name)
		var itemArcname string
		if dirArcname != "" {
			itemArcname = dirArcname + "/" + name
		} else {
			itemArcname = name
		}
		if item.IsDir() {
			if passExclusionConstraints(itemArcname, name, exclDirs) {
				if err := collectFilesInSpec(itemPath, itemArcname, exclDirs, exclFiles, catalog); err != nil {
					return err
				}
			}
		} else {
			if passExclusionConstraints(itemArcname, name, exclFiles) {
				*catalog = append(*catalog, Entry{SourcePath: itemPath, ArcName: itemArcname})
			}
		}
	}
	return nil
}

// LoadSpecFile parses the JSON catalog descriptor at fname (an absolute
// path) and resolves it into the flat list of (source, arcname) entries it
// describes, substituting vars into every string field first, mirroring
// parse_spec_file.
func LoadSpecFile(fname string, vars map[string]string) ([]Entry, error) {
	specFname := filepath.Clean(fname)
	if !filepath.IsAbs(specFname) {
		return nil, errs.New(errs.DomainDescription, "catalog-relative-path", "catalog spec path '%s' is not absolute", fname)
	}
	if !paths.IsFile(specFname) {
		return nil, errs.New(errs.DomainDescription, "catalog-spec-missing", "catalog spec file '%s' not found", fname)
	}
	raw, err := os.ReadFile(specFname)
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainDescription, "catalog-spec-read-failed", "reading '%s'", fname)
	}
	var groups []Group
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, errs.Wrap(err, errs.DomainDescription, "catalog-spec-parse-failed", "parsing '%s'", fname)
	}
	if len(groups) == 0 {
		return nil, errs.New(errs.DomainDescription, "catalog-spec-empty", "catalog spec '%s' has no groups", fname)
	}
	if err := substituteGroups(groups, vars); err != nil {
		return nil, errs.Wrap(err, errs.DomainDescription, "catalog-subst-failed", "substituting variables in '%s'", fname)
	}

	landmarkDir := filepath.Dir(specFname)
	var catalog []Entry
	for _, group := range groups {
		homeDirRef := group.Dirname
		if homeDirRef == "" {
			homeDirRef = landmarkDir
		}
		homeDir := paths.NormalizeOptional(homeDirRef, landmarkDir)
		if !paths.IsDir(homeDir) {
			return nil, errs.New(errs.DomainDescription, "catalog-dir-missing", "catalog spec '%s': directory '%s' not found", fname, homeDir)
		}
		if group.Catalog == nil {
			if err := collectFilesInSpec(homeDir, group.Prefix, group.ExcludeDir, group.ExcludeFile, &catalog); err != nil {
				return nil, err
			}
			continue
		}
		for _, entry := range group.Catalog {
			entryPath := paths.NormalizeOptional(entry, homeDir)
			if !paths.IsFile(entryPath) {
				return nil, errs.New(errs.DomainDescription, "catalog-file-missing", "catalog spec '%s': file '%s' not found", fname, entryPath)
			}
			itemArcname := entry
			if group.Prefix != "" {
				itemArcname = group.Prefix + "/" + entry
			}
			catalog = append(catalog, Entry{SourcePath: entryPath, ArcName: itemArcname})
		}
	}
	if len(catalog) == 0 {
		return nil, errs.New(errs.DomainDescription, "catalog-empty", "catalog spec '%s' resolved to an empty catalog", fname)
	}
	return catalog, nil
}

func substituteGroups(groups []Group, vars map[string]string) error {
	for i := range groups {
		g := &groups[i]
		var err error
		if g.Dirname, err = grammar.Subst(g.Dirname, vars); err != nil {
			return err
		}
		if g.Prefix, err = grammar.Subst(g.Prefix, vars); err != nil {
			return err
		}
		if err := substStrings(g.Catalog, vars); err != nil {
			return err
		}
		if err := substRule(&g.ExcludeDir, vars); err != nil {
			return err
		}
		if err := substRule(&g.ExcludeFile, vars); err != nil {
			return err
		}
	}
	return nil
}

func substStrings(list []string, vars map[string]string) error {
	for i, s := range list {
		r, err := grammar.Subst(s, vars)
		if err != nil {
			return err
		}
		list[i] = r
	}
	return nil
}

func substRule(r *ExclusionRule, vars map[string]string) error {
	fields := [][]string{
		r.IfArcnameEquals, r.IfArcnameStartswith, r.IfArcnameEndswith,
		r.IfArcpathEquals, r.IfArcpathStartswith, r.IfArcpathEndswith,
		r.IfNotArcnameEquals, r.IfNotArcnameStartswith, r.IfNotArcnameEndswith,
		r.IfNotArcpathEquals, r.IfNotArcpathStartswith, r.IfNotArcpathEndswith,
	}
	for _, f := range fields {
		if err := substStrings(f, vars); err != nil {
			return err
		}
	}
	return nil
}

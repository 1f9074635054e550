package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
	"github.com/bitswalk/minibuild/toolchain"
)

// ResolveCatalog gathers the flat entry list a composite/zip-file module
// describes via composite_spec (a list of JSON catalog descriptor paths,
// resolved relative to the module directory) and/or spec_file (a single
// JSON catalog descriptor path), mirroring the union of what
// parse_spec_file would return for each. At least one of the two must be
// set, matching TAG_GRAMMAR_SPEC_FILE_ENTAILS's expectation that a
// zip-file/composite module always names its catalog source.
func ResolveCatalog(desc *description.BuildDescription, vars map[string]string) ([]Entry, error) {
	var all []Entry
	if cs := desc.Get(grammar.KeyCompositeSpec); cs.Set() {
		for _, ref := range cs.List() {
			specPath := paths.NormalizeOptional(ref, desc.SelfDir)
			entries, err := LoadSpecFile(specPath, vars)
			if err != nil {
				return nil, err
			}
			all = append(all, entries...)
		}
	}
	if sf := desc.Get(grammar.KeySpecFile); sf.Set() {
		specPath := paths.NormalizeOptional(sf.String(), desc.SelfDir)
		entries, err := LoadSpecFile(specPath, vars)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	if len(all) == 0 {
		return nil, errs.New(errs.DomainDescription, "catalog-source-missing",
			"module '%s' names neither composite_spec nor spec_file", desc.Get(grammar.KeyModuleName).String())
	}
	return all, nil
}

// ZipAction is the zip-file module kind's build action: assembling a
// resolved catalog into a single zip archive (spec.md §1's "ZIP archives
// assembled from a declarative catalog").
type ZipAction struct {
	moduleName string
	outPath    string
	entries    []Entry
	extraDeps  []string
}

// NewZipAction builds a ZipAction for desc, publishing into outDir.
func NewZipAction(desc *description.BuildDescription, outDir string, vars map[string]string) (*ZipAction, error) {
	entries, err := ResolveCatalog(desc, vars)
	if err != nil {
		return nil, err
	}
	zipName := desc.Get(grammar.KeyZipFile).String()
	if zipName == "" {
		zipName = desc.Get(grammar.KeyModuleName).String() + ".zip"
	}
	a := &ZipAction{
		moduleName: desc.Get(grammar.KeyModuleName).String(),
		outPath:    filepath.Join(outDir, zipName),
		entries:    entries,
	}
	a.extraDeps = append(a.extraDeps, desc.FileParts...)
	return a, nil
}

func (a *ZipAction) Describe() string { return filepath.Base(a.outPath) }

func (a *ZipAction) Inputs() []string {
	in := make([]string, 0, len(a.entries)+len(a.extraDeps))
	for _, e := range a.entries {
		in = append(in, e.SourcePath)
	}
	return append(in, a.extraDeps...)
}

func (a *ZipAction) Outputs() []string { return []string{a.outPath} }

func (a *ZipAction) Artifacts() []buildart.Artifact {
	return []buildart.Artifact{{Kind: buildart.KindZip, Path: a.outPath}}
}

func (a *ZipAction) IsUpToDate() bool {
	return depends.IsUpToDateNoDeps(a.outPath, a.Inputs(), nil)
}

func (a *ZipAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	if progress != nil {
		progress(0, fmt.Sprintf("BUILDSYS: ZIP: %s", a.moduleName))
	}
	if err := paths.EnsureDirPath(filepath.Dir(a.outPath)); err != nil {
		return err
	}
	if err := WriteZip(ctx, a.outPath, a.entries); err != nil {
		return err
	}
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

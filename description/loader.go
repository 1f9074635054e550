package description

import (
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
)

// ImportHook resolves a #import directive's target directory into the
// extension description loaded from it. The caller supplies this so the
// description package stays independent of how extensions are located on
// disk (§4.1 step 4).
type ImportHook func(dir, requiredByFile string) (*BuildDescription, error)

// Loader evaluates module and extension descriptions against a fixed
// project root, target platform and toolset name (§4.1).
type Loader struct {
	ProjectRoot  string
	TargetPlatform string
	ToolsetName  string
	ImportHook   ImportHook
}

// NewLoader constructs a Loader bound to projectRoot.
func NewLoader(projectRoot string) *Loader {
	return &Loader{ProjectRoot: projectRoot}
}

func (l *Loader) builtins() map[string]Value {
	b := map[string]Value{}
	if l.TargetPlatform != "" {
		b[grammar.BuiltinTargetPlatform] = stringVal(l.TargetPlatform)
	}
	if l.ToolsetName != "" {
		b[grammar.BuiltinToolsetName] = stringVal(l.ToolsetName)
	}
	return b
}

// LoadModule loads the module description (minibuild.mk) found in
// workingDir, splicing #include directives and resolving #import
// directives through l.ImportHook when set.
func (l *Loader) LoadModule(workingDir string, requiredBy []string) (*BuildDescription, error) {
	subst := grammar.ProjectRootVars(l.ProjectRoot)
	importEnabled := l.ImportHook != nil
	res, err := Splice(l.ProjectRoot, workingDir, grammar.ModuleDescriptionFilename, requiredBy, importEnabled)
	if err != nil {
		return nil, err
	}
	tokens, err := evaluateBody(res, grammar.ModuleGrammar(), subst, l.builtins())
	if err != nil {
		return nil, err
	}
	desc := &BuildDescription{
		tokens:    tokens,
		FileParts: res.FileParts,
		SelfDir:   selfDirname(res.FileParts),
	}
	if len(res.Imports) > 0 {
		for _, origin := range res.Imports {
			ext, err := l.ImportHook(origin.Dir, origin.SrcFile)
			if err != nil {
				return nil, err
			}
			desc.ImportList = append(desc.ImportList, ext.Get(grammar.KeyExtName).String())
			desc.FileParts = append(desc.FileParts, ext.FileParts...)
		}
	}
	return desc, nil
}

// LoadExtension loads the extension description (minibuild.ext) found in
// workingDir. Extensions never enable #import (§4.1 step 4).
func (l *Loader) LoadExtension(workingDir string, requiredBy []string) (*BuildDescription, error) {
	subst := grammar.ProjectRootVars(l.ProjectRoot)
	res, err := Splice(l.ProjectRoot, workingDir, grammar.ExtensionDescriptionFilename, requiredBy, false)
	if err != nil {
		return nil, err
	}
	tokens, err := evaluateBody(res, grammar.ExtensionGrammar(), subst, nil)
	if err != nil {
		return nil, err
	}
	return &BuildDescription{
		tokens:    tokens,
		FileParts: res.FileParts,
		SelfDir:   selfDirname(res.FileParts),
	}, nil
}

// RequireModuleType validates that desc carries a module_type among the
// closed enumeration and returns it (§3 "the closed module_type
// enumeration").
func RequireModuleType(desc *BuildDescription) (string, error) {
	v := desc.Get(grammar.KeyModuleType)
	if !v.Set() {
		return "", errs.New(errs.DomainDescription, "missing-key", "missing required key 'module_type'")
	}
	mt := v.String()
	for _, want := range grammar.AllModuleTypes {
		if mt == want {
			return mt, nil
		}
	}
	return "", errs.New(errs.DomainDescription, "bad-enum", "module_type '%s' is not one of %v", mt, grammar.AllModuleTypes)
}

// RequireModuleName validates that desc carries a non-empty module_name
// and returns it (§3 invariant "module_name is present and non-empty").
func RequireModuleName(desc *BuildDescription) (string, error) {
	v := desc.Get(grammar.KeyModuleName)
	if !v.Set() || v.String() == "" {
		return "", errs.New(errs.DomainDescription, "missing-key", "missing required key 'module_name'")
	}
	return v.String(), nil
}

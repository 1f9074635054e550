package msvc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/toolchain"
)

// SourceType distinguishes the /TC and /TP cl.exe modes (BUILD_TYPE_C /
// BUILD_TYPE_CPP in the reference implementation).
type SourceType int

const (
	SourceC SourceType = iota
	SourceCpp
)

// compileAction is the SourceBuildActionMSVS translation: cl.exe with
// /showIncludes parsed into the dependency-file format.
type compileAction struct {
	clPath      string
	env         []string
	sourcePath  string
	sourceType  SourceType
	objPath     string
	pdbPath     string
	depPath     string
	projectRoot string
	buildConfig string
	includeDirs []string
	definitions []string
	disabledWarnings []string
	extraDeps   []string
}

// NewCompileAction builds a compileAction for req using boot's environment.
func NewCompileAction(boot *Bootstrap, req toolchain.CompileRequest, sourceType SourceType) *compileAction {
	a := &compileAction{
		clPath:      boot.ClPath,
		env:         boot.Environ(),
		sourcePath:  req.SourcePath,
		sourceType:  sourceType,
		objPath:     filepath.Join(req.ObjDir, req.ObjName+".obj"),
		pdbPath:     filepath.Join(req.ObjDir, req.ObjName+".pdb"),
		depPath:     filepath.Join(req.ObjDir, req.ObjName+".dep"),
		projectRoot: req.ProjectRoot,
		buildConfig: req.Config,
		includeDirs: req.IncludeDirs,
		definitions: append(append([]string{}, archDefines[req.Model.ArchitectureABI]...), req.Definitions...),
	}
	a.disabledWarnings = req.Desc.Get(grammar.KeyDisabledWarnings).List()
	a.extraDeps = append(a.extraDeps, req.Desc.FileParts...)
	return a
}

func (a *compileAction) Describe() string  { return filepath.Base(a.sourcePath) }
func (a *compileAction) Inputs() []string  { return append([]string{a.sourcePath}, a.extraDeps...) }
func (a *compileAction) Outputs() []string { return []string{a.objPath} }
func (a *compileAction) Artifacts() []buildart.Artifact { return nil }

func (a *compileAction) IsUpToDate() bool {
	return depends.IsUpToDate(a.objPath, []string{a.sourcePath}, a.extraDeps, a.depPath, a.projectRoot)
}

func (a *compileAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	argv := []string{a.clPath, "/c", "/nologo", "/showIncludes"}
	switch a.sourceType {
	case SourceCpp:
		argv = append(argv, "/TP", "/EHsc", "/GR", "/Zc:forScope", "/Zc:wchar_t")
	case SourceC:
		argv = append(argv, "/TC")
	}
	argv = append(argv, "/W3", "/we4013")
	for _, wd := range a.disabledWarnings {
		argv = append(argv, fmt.Sprintf("/wd%s", wd))
	}
	switch a.buildConfig {
	case grammar.ConfigRelease:
		argv = append(argv, "/O2", "/Ob1", "/Zi", "/MD")
	case grammar.ConfigDebug:
		argv = append(argv, "/Od", "/Ob0", "/Zi", "/MDd")
	default:
		return errs.New(errs.DomainBuild, "bad-config", "unsupported build config: '%s'", a.buildConfig)
	}
	for _, inc := range a.includeDirs {
		argv = append(argv, "/I"+inc)
	}
	for _, def := range a.definitions {
		argv = append(argv, "/D"+def)
	}
	if a.buildConfig != grammar.ConfigDebug {
		argv = append(argv, "/DNDEBUG")
	}
	argv = append(argv, "/Fo"+a.objPath, "/Fd"+a.pdbPath, a.sourcePath)

	if progress != nil {
		label := "C"
		if a.sourceType == SourceCpp {
			label = "CXX"
		}
		progress(0, fmt.Sprintf("BUILDSYS: %s: %s", label, a.sourcePath))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = a.env
	out, runErr := cmd.Output()
	if runErr != nil && !isExitError(runErr) {
		return errs.Wrap(runErr, errs.DomainBuild, "cl-exec-failed", "invoking cl.exe for '%s'", a.sourcePath)
	}
	if runErr != nil {
		return errs.NewExit(errs.DomainBuild, "compile-failed", exitCodeOf(runErr), "compiling '%s'", a.sourcePath)
	}

	if kept := depends.FilterCompilerOutput(string(out)); kept != "" {
		fmt.Fprintln(os.Stdout, kept)
	}

	rec, err := depends.ParseMSVCShowIncludes(string(out), a.projectRoot)
	if err != nil {
		return err
	}
	if err := depends.WriteDepFile(a.depPath, rec); err != nil {
		return err
	}
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

func isExitError(err error) bool {
	_, ok := err.(*exec.ExitError)
	return ok
}

func exitCodeOf(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return errs.DefaultExitCode
}

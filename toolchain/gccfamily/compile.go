package gccfamily

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

// SourceType is the closed set of source kinds a GCC-family compile action
// handles (BUILD_TYPE_CPP/C/ASM in the reference implementation).
type SourceType int

const (
	SourceCpp SourceType = iota
	SourceC
	SourceAsm
)

func (s SourceType) gccDashX() string {
	switch s {
	case SourceCpp:
		return "c++"
	case SourceC:
		return "c"
	default:
		return "assembler-with-cpp"
	}
}

func (s SourceType) label() string {
	switch s {
	case SourceCpp:
		return "CXX"
	case SourceC:
		return "C"
	default:
		return "ASM"
	}
}

// compileAction is the gccfamily SourceBuildActionGCC translation:
// compiles one source file into one object file with -MD/-MF dependency
// tracking (§4.3, §4.4).
type compileAction struct {
	tools       *Tools
	sourcePath  string
	sourceType  SourceType
	objPath     string
	depPath     string
	depTmpPath  string
	projectRoot string
	archFlags   []string
	symbolVisibilityDefault bool
	buildConfig string
	includeDirs []string
	definitions []string
	disabledWarnings []string
	extraDeps   []string
}

// NewCompileAction builds a compileAction for req, taking include dirs and
// definitions from req (already resolved by the caller) and, for C/C++
// sources, disabled-warnings from desc, the way
// SourceBuildActionGCC.__init__ does.
func NewCompileAction(tools *Tools, req toolchain.CompileRequest, sourceType SourceType) *compileAction {
	objName := req.ObjName
	a := &compileAction{
		tools:       tools,
		sourcePath:  req.SourcePath,
		sourceType:  sourceType,
		objPath:     filepath.Join(req.ObjDir, objName+".o"),
		depPath:     filepath.Join(req.ObjDir, objName+".dep"),
		projectRoot: req.ProjectRoot,
		archFlags:   archFlags(req.Model.Name, req.Model.ArchitectureABI),
		symbolVisibilityDefault: req.Desc.Get(grammar.KeySymbolVisibilityDefault).Bool(),
		buildConfig: req.Config,
		includeDirs: req.IncludeDirs,
		definitions: req.Definitions,
	}
	a.depTmpPath = a.depPath + "tmp"
	if sourceType != SourceAsm {
		a.disabledWarnings = req.Desc.Get(grammar.KeyDisabledWarnings).List()
	}
	a.extraDeps = append(a.extraDeps, req.Desc.FileParts...)
	return a
}

func (a *compileAction) Describe() string { return filepath.Base(a.sourcePath) }
func (a *compileAction) Inputs() []string { return append([]string{a.sourcePath}, a.extraDeps...) }
func (a *compileAction) Outputs() []string { return []string{a.objPath} }
func (a *compileAction) Artifacts() []buildart.Artifact { return nil }

func (a *compileAction) IsUpToDate() bool {
	return depends.IsUpToDate(a.objPath, []string{a.sourcePath}, a.extraDeps, a.depPath, a.projectRoot)
}

func (a *compileAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	os.Remove(a.depTmpPath)

	argv := []string{a.tools.GPP, "-Werror-implicit-function-declaration"}
	argv = append(argv, a.archFlags...)
	argv = append(argv, "-x", a.sourceType.gccDashX())
	if !a.tools.IsMinGW {
		argv = append(argv, "-fpic", "-fstack-protector")
	}
	if !a.symbolVisibilityDefault {
		argv = append(argv, "-fvisibility=hidden")
	}
	argv = append(argv, "-Wall", "-MD", "-MF", a.depTmpPath)
	for _, wd := range a.disabledWarnings {
		argv = append(argv, fmt.Sprintf("-Wno-%s", wd))
	}
	switch a.buildConfig {
	case grammar.ConfigRelease:
		argv = append(argv, "-O3")
	case grammar.ConfigDebug:
		argv = append(argv, "-O0", "-g")
	default:
		return errs.New(errs.DomainBuild, "bad-config", "unsupported build config: '%s'", a.buildConfig)
	}
	for _, inc := range a.includeDirs {
		argv = append(argv, "-I"+inc)
	}
	for _, def := range a.definitions {
		argv = append(argv, "-D"+def)
	}
	argv = append(argv, "-c", "-o", a.objPath, a.sourcePath)

	if progress != nil {
		progress(0, fmt.Sprintf("BUILDSYS: %s: %s", a.sourceType.label(), a.sourcePath))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "compile-failed", exitCodeOf(err), "compiling '%s'", a.sourcePath)
	}

	rec, err := depends.ParseGCCDepFile(a.depTmpPath, a.projectRoot)
	if err != nil {
		return err
	}
	if err := depends.WriteDepFile(a.depPath, rec); err != nil {
		return err
	}
	os.Remove(a.depTmpPath)
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

func exitCodeOf(err error) int {
	var ee *exec.ExitError
	if asExitErr(err, &ee) {
		return ee.ExitCode()
	}
	return errs.DefaultExitCode
}

func asExitErr(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

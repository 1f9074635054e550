package msvc

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/toolchain"
)

// asmAction is the MasmSourceBuildAction translation: ml.exe/ml64.exe with
// no dependency-file tracking (the reference implementation only checks
// the source and extra deps for MASM, never a recorded include list).
type asmAction struct {
	mlPath      string
	env         []string
	asmPath     string
	objPath     string
	includeDirs []string
	definitions []string
	extraDeps   []string
}

// NewAsmAction builds an asmAction, selecting ml.exe for x86 and ml64.exe
// for x86_64 from the same directory as cl.exe.
func NewAsmAction(boot *Bootstrap, req toolchain.CompileRequest) *asmAction {
	mlExe := "ml.exe"
	if req.Model.ArchitectureABI == "x86_64" {
		mlExe = "ml64.exe"
	}
	return &asmAction{
		mlPath:      filepath.Join(filepath.Dir(boot.ClPath), mlExe),
		env:         boot.Environ(),
		asmPath:     req.SourcePath,
		objPath:     filepath.Join(req.ObjDir, req.ObjName+".obj"),
		includeDirs: req.IncludeDirs,
		definitions: req.Definitions,
		extraDeps:   append([]string{}, req.Desc.FileParts...),
	}
}

func (a *asmAction) Describe() string  { return filepath.Base(a.asmPath) }
func (a *asmAction) Inputs() []string  { return append([]string{a.asmPath}, a.extraDeps...) }
func (a *asmAction) Outputs() []string { return []string{a.objPath} }
func (a *asmAction) Artifacts() []buildart.Artifact { return nil }

func (a *asmAction) IsUpToDate() bool {
	return depends.IsUpToDateNoDeps(a.objPath, []string{a.asmPath}, a.extraDeps)
}

func (a *asmAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	argv := []string{a.mlPath, "/c", "/nologo"}
	for _, inc := range a.includeDirs {
		argv = append(argv, "/I"+inc)
	}
	for _, def := range a.definitions {
		argv = append(argv, "/D"+def)
	}
	argv = append(argv, "/Fo"+a.objPath, a.asmPath)

	if progress != nil {
		progress(0, fmt.Sprintf("BUILDSYS: ASM: %s", a.asmPath))
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = a.env
	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "masm-failed", exitCodeOf(err), "assembling '%s'", a.asmPath)
	}
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

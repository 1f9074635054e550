// Package nasm implements the NASM assemble-only build action, delegated
// to from toolchain/gccfamily when a module's description sets nasm=True,
// grounded on original_source/minibuild/nasm_action.py.
package nasm

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

// outputFormats mirrors NASM_OUTPUT_FORMATS: the -f argument NASM needs per
// target platform and architecture.
var outputFormats = map[string]map[string]string{
	grammar.PlatformWindows: {grammar.ArchX86: "win32", grammar.ArchX86_64: "win64"},
	grammar.PlatformLinux:   {grammar.ArchX86: "elf32", grammar.ArchX86_64: "elf64"},
}

// Action is the NasmSourceBuildAction translation.
type Action struct {
	nasmExe     string
	asmPath     string
	objPath     string
	depPath     string
	depTmpPath  string
	projectRoot string
	includeDirs []string
	definitions []string
	extraDeps   []string
	arch        string
	platform    string
	buildConfig string
}

// NewAction builds an Action for req, using nasmExe as the NASM binary.
func NewAction(nasmExe string, req toolchain.CompileRequest) (*Action, error) {
	a := &Action{
		nasmExe:     nasmExe,
		asmPath:     req.SourcePath,
		objPath:     filepath.Join(req.ObjDir, req.ObjName+".o"),
		depPath:     filepath.Join(req.ObjDir, req.ObjName+".dep"),
		projectRoot: req.ProjectRoot,
		includeDirs: req.IncludeDirs,
		definitions: req.Definitions,
		arch:        req.Model.ArchitectureABI,
		platform:    req.Model.PlatformName,
		buildConfig: req.Config,
	}
	a.depTmpPath = a.depPath + "tmp"
	a.extraDeps = append(a.extraDeps, req.Desc.FileParts...)
	return a, nil
}

func (a *Action) Describe() string  { return filepath.Base(a.asmPath) }
func (a *Action) Inputs() []string  { return append([]string{a.asmPath}, a.extraDeps...) }
func (a *Action) Outputs() []string { return []string{a.objPath} }
func (a *Action) Artifacts() []buildart.Artifact { return nil }

func (a *Action) IsUpToDate() bool {
	return depends.IsUpToDate(a.objPath, []string{a.asmPath}, a.extraDeps, a.depPath, a.projectRoot)
}

func (a *Action) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	os.Remove(a.depTmpPath)

	outFormat := outputFormats[a.platform][a.arch]
	if outFormat == "" {
		return errs.New(errs.DomainBuild, "nasm-unsupported-target",
			"NASM: got unsupported platform '%s' or arch '%s'", a.platform, a.arch)
	}

	argv := []string{a.nasmExe, "-f", outFormat}
	if a.buildConfig == grammar.ConfigDebug {
		argv = append(argv, "-g")
		if a.platform == grammar.PlatformLinux {
			argv = append(argv, "-F", "dwarf")
		}
	}
	for _, inc := range a.includeDirs {
		argv = append(argv, fmt.Sprintf("-I%s%c", inc, filepath.Separator))
	}
	for _, def := range a.definitions {
		argv = append(argv, "-D"+def)
	}
	argv = append(argv, "-o", a.objPath, "-MD", a.depTmpPath, a.asmPath)

	if progress != nil {
		progress(0, fmt.Sprintf("BUILDSYS: ASM: %s", a.asmPath))
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		exitCode := errs.DefaultExitCode
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return errs.NewExit(errs.DomainBuild, "nasm-failed", exitCode, "assembling '%s'", a.asmPath)
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

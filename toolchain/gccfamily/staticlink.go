package gccfamily

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/toolchain"
)

// staticLinkAction archives compiled objects into a static library,
// grounded on StaticLibLinkActionGCC.
type staticLinkAction struct {
	tools       *Tools
	moduleName  string
	rspFile     string
	outLibPath  string
	objList     []string
	extraDeps   []string
	projectRoot string
}

// NewStaticLinkAction builds a staticLinkAction for req.
func NewStaticLinkAction(tools *Tools, projectRoot string, req toolchain.StaticLinkRequest) *staticLinkAction {
	moduleName := req.Desc.Get("module_name").String()
	a := &staticLinkAction{
		tools:       tools,
		moduleName:  moduleName,
		rspFile:     filepath.Join(req.ObjDir, moduleName+".rsplnk"),
		outLibPath:  filepath.Join(req.LibDir, "lib"+moduleName+".a"),
		projectRoot: projectRoot,
	}
	for _, name := range req.ObjNames {
		objPath := filepath.Join(req.ObjDir, name+".o")
		a.objList = append(a.objList, objPath)
	}
	a.extraDeps = append(a.extraDeps, req.Desc.FileParts...)
	return a
}

func (a *staticLinkAction) Describe() string  { return "lib" + a.moduleName + ".a" }
func (a *staticLinkAction) Inputs() []string  { return append(append([]string{}, a.objList...), a.extraDeps...) }
func (a *staticLinkAction) Outputs() []string { return []string{a.outLibPath} }
func (a *staticLinkAction) Artifacts() []buildart.Artifact {
	return []buildart.Artifact{{Kind: buildart.KindStaticLib, Path: a.outLibPath, Attr: buildart.AttrPublic}}
}

func (a *staticLinkAction) IsUpToDate() bool {
	return depends.IsUpToDateNoDeps(a.outLibPath, a.objList, a.extraDeps)
}

func (a *staticLinkAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	if progress != nil {
		progress(0, fmt.Sprintf("BUILDSYS: Create LIB module '%s' ...", a.moduleName))
	}

	var argv []string
	if a.tools.IsClang {
		var sb []byte
		for _, entry := range a.objList {
			sb = append(sb, []byte(entry+"\n")...)
		}
		if err := os.WriteFile(a.rspFile, sb, 0o644); err != nil {
			return errs.Wrap(err, errs.DomainBuild, "rsp-write-failed", "writing %s", a.rspFile)
		}
		argv = []string{a.tools.AR, "-static", "-filelist", a.rspFile, "-o", a.outLibPath}
	} else {
		argv = []string{a.tools.AR, "ru", a.outLibPath}
		argv = append(argv, a.objList...)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "archive-failed", exitCodeOf(err), "archiving '%s'", a.outLibPath)
	}
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

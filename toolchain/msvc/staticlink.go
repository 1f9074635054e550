package msvc

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/toolchain"
)

// staticLinkAction is the StaticLibLinkActionMSVS translation: lib.exe
// archiving object files, always through an @response-file (MSVC's
// argv-length limits are tighter than GCC's, so unlike gccfamily this
// path never appends objects directly).
type staticLinkAction struct {
	libTool    string
	env        []string
	moduleName string
	rspFile    string
	outLibPath string
	objList    []string
	extraDeps  []string
}

// NewStaticLinkAction builds a staticLinkAction for req using boot's
// environment.
func NewStaticLinkAction(boot *Bootstrap, req toolchain.StaticLinkRequest) *staticLinkAction {
	moduleName := req.Desc.Get(grammar.KeyModuleName).String()
	a := &staticLinkAction{
		libTool:    filepath.Join(filepath.Dir(boot.ClPath), "lib.exe"),
		env:        boot.Environ(),
		moduleName: moduleName,
		rspFile:    filepath.Join(req.ObjDir, moduleName+".rsplnk"),
		outLibPath: filepath.Join(req.LibDir, moduleName+".lib"),
	}
	for _, name := range req.ObjNames {
		a.objList = append(a.objList, filepath.Join(req.ObjDir, name+".obj"))
	}
	a.extraDeps = append(a.extraDeps, req.Desc.FileParts...)
	return a
}

func (a *staticLinkAction) Describe() string  { return a.moduleName + ".lib" }
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

	args := append([]string{"/nologo", "/out:" + a.outLibPath}, a.objList...)
	if err := writeResponseFile(a.rspFile, args); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, a.libTool, "@"+a.rspFile)
	cmd.Env = a.env
	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "archive-failed", exitCodeOf(err), "archiving '%s'", a.outLibPath)
	}
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

package msvc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
	"github.com/bitswalk/minibuild/toolchain"
)

// linkAction is the LinkActionMSVS translation: link.exe followed by
// mt.exe manifest embedding, staged under a private raw/ directory with
// the same atomic-rename publish pattern as gccfamily's link action.
type linkAction struct {
	linkTool, mtTool string
	env              []string
	isDLL            bool
	linkPublicDir    string
	linkPrivateDir   string
	linkStampFile    string
	libDir           string
	sharedLibDir     string
	primaryDeps      []string
	extraDeps        []string
	winConsole       bool
	winStackSize     string
	useWmain         bool
	zipSection       string
	moduleName       string
	binBasename      string
	pdbBasename      string
	implibBasename   string
	binPathPublic, binPathPrivate     string
	pdbPathPublic, pdbPathPrivate     string
	implibPathPublic, implibPathPrivate string
	exportsDefFile   string
	exportList       []string
	manifestStub     string
	manifestBuiltin  string
	rspFile          string
	objList          []string
	buildConfig      string
	staticLibNames   []string
	sharedLibNames   []string
	prebuiltLibNames []string
}

// NewExeLinkAction builds a linkAction producing an executable.
func NewExeLinkAction(boot *Bootstrap, req toolchain.ExeLinkRequest) (*linkAction, error) {
	return newLinkAction(boot, req.Desc, req.ExeDir, req.SharedLibDir, req.LibDir, req.ObjDir,
		req.ObjNames, req.Config, req.DependencyLibs, req.PrebuiltLibs, false)
}

// NewSharedLinkAction builds a linkAction producing a DLL.
func NewSharedLinkAction(boot *Bootstrap, req toolchain.SharedLinkRequest) (*linkAction, error) {
	return newLinkAction(boot, req.Desc, "", req.SharedLibDir, req.LibDir, req.ObjDir,
		req.ObjNames, req.Config, req.DependencyLibs, req.PrebuiltLibs, true)
}

func newLinkAction(boot *Bootstrap, desc *description.BuildDescription, exeDir, sharedLibDir, libDir, objDir string,
	objNames []string, config string, dependencyLibs, prebuiltLibs []string, forceDLL bool) (*linkAction, error) {

	isDLL := forceDLL || exeDir == ""
	linkPublicDir := sharedLibDir
	if !isDLL {
		linkPublicDir = exeDir
	}
	linkPrivateDir := filepath.Join(objDir, "raw")
	if err := paths.EnsureDirPath(linkPrivateDir); err != nil {
		return nil, err
	}

	moduleName := desc.Get(grammar.KeyModuleName).String()
	a := &linkAction{
		linkTool: filepath.Join(filepath.Dir(boot.ClPath), "link.exe"),
		mtTool:   filepath.Join(filepath.Dir(boot.ClPath), "mt.exe"),
		env:      boot.Environ(),
		isDLL:    isDLL, linkPublicDir: linkPublicDir, linkPrivateDir: linkPrivateDir,
		linkStampFile: filepath.Join(linkPrivateDir, "link.stamp"),
		libDir:        libDir, sharedLibDir: sharedLibDir,
		moduleName:  moduleName,
		buildConfig: config,
	}
	a.primaryDeps = append(a.primaryDeps, a.linkStampFile)
	a.extraDeps = append(a.extraDeps, desc.FileParts...)
	a.winConsole = desc.Get(grammar.KeyWinConsole).Bool()
	a.winStackSize = desc.Get(grammar.KeyWinStackSize).String()
	a.useWmain = desc.Get(grammar.KeyWmain).Bool()

	if zs := desc.Get(grammar.KeyZipSection); zs.Set() {
		zipSectionFile := paths.NormalizeOptional(zs.String(), desc.SelfDir)
		a.zipSection = zipSectionFile
		a.primaryDeps = append(a.primaryDeps, zipSectionFile)
	}

	if isDLL {
		a.binBasename = moduleName + ".dll"
		a.implibBasename = moduleName + ".lib"
		a.pdbBasename = moduleName + ".pdb"
	} else {
		exeName := moduleName
		if en := desc.Get(grammar.KeyExeName).String(); en != "" {
			exeName = en
		}
		a.binBasename = exeName + ".exe"
		a.pdbBasename = exeName + ".pdb"
	}
	a.binPathPublic = filepath.Join(linkPublicDir, a.binBasename)
	a.binPathPrivate = filepath.Join(linkPrivateDir, a.binBasename)
	a.pdbPathPublic = filepath.Join(linkPublicDir, a.pdbBasename)
	a.pdbPathPrivate = filepath.Join(linkPrivateDir, a.pdbBasename)

	if isDLL {
		a.implibPathPublic = filepath.Join(linkPublicDir, a.implibBasename)
		a.implibPathPrivate = filepath.Join(linkPrivateDir, a.implibBasename)
		if defFile := desc.Get(grammar.KeyExportDefFile); defFile.Set() {
			resolved := paths.NormalizeOptional(defFile.String(), desc.SelfDir)
			a.exportsDefFile = resolved
			a.extraDeps = append(a.extraDeps, resolved)
		}
		a.exportList = desc.Get(grammar.KeyExportList).List()
	}

	a.manifestStub = filepath.Join(linkPrivateDir, moduleName+".manifest-stub")
	a.manifestBuiltin = filepath.Join(linkPrivateDir, moduleName+".manifest")
	a.rspFile = filepath.Join(linkPrivateDir, moduleName+".rsplnk")
	for _, name := range objNames {
		objPath := filepath.Join(objDir, name+".obj")
		a.objList = append(a.objList, objPath)
		a.primaryDeps = append(a.primaryDeps, objPath)
	}
	a.staticLibNames = append(a.staticLibNames, dependencyLibs...)
	a.prebuiltLibNames = append(a.prebuiltLibNames, prebuiltLibs...)
	return a, nil
}

func (a *linkAction) Describe() string { return a.binBasename }
func (a *linkAction) Inputs() []string { return append(append([]string{}, a.primaryDeps...), a.extraDeps...) }
func (a *linkAction) Outputs() []string { return []string{a.binPathPublic} }

func (a *linkAction) Artifacts() []buildart.Artifact {
	kind := buildart.KindExecutable
	if a.isDLL {
		kind = buildart.KindSharedLib
	}
	arts := []buildart.Artifact{
		{Kind: kind, Path: a.binPathPublic, Attr: buildart.AttrPublic},
		{Kind: buildart.KindPDB, Path: a.pdbPathPublic},
	}
	if a.isDLL {
		arts = append(arts, buildart.Artifact{Kind: buildart.KindStaticLib, Path: a.implibPathPublic, Attr: buildart.AttrPublic})
	}
	return arts
}

func (a *linkAction) IsUpToDate() bool {
	return depends.IsUpToDateNoDeps(a.binPathPublic, a.primaryDeps, a.extraDeps)
}

func (a *linkAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	modType := "EXE"
	if a.isDLL {
		modType = "DLL"
	}
	if progress != nil {
		progress(0, fmt.Sprintf("BUILDSYS: Link %s module '%s' ...", modType, a.moduleName))
	}

	for _, p := range []string{a.binPathPublic, a.pdbPathPublic, a.implibPathPublic} {
		if p != "" && paths.Exists(p) {
			os.Remove(p)
		}
	}
	os.RemoveAll(a.linkPrivateDir)
	if err := paths.EnsureDirPath(a.linkPrivateDir); err != nil {
		return err
	}
	linkStampTmp := a.linkStampFile + ".tmp"
	if f, err := os.Create(linkStampTmp); err == nil {
		f.Close()
	}

	args := []string{"/nologo", "/incremental:no", "/debug", "/pdb:" + a.pdbPathPrivate}
	switch a.buildConfig {
	case grammar.ConfigRelease:
		args = append(args, "/OPT:REF,ICF=2")
	case grammar.ConfigDebug:
		args = append(args, "/OPT:NOREF,NOICF")
	default:
		return errs.New(errs.DomainBuild, "bad-config", "unsupported build config: '%s'", a.buildConfig)
	}
	args = append(args, "-out:"+a.binPathPrivate)
	if len(a.objList) > 0 {
		args = append(args, a.objList...)
	} else {
		args = append(args, "/IGNORE:4001")
	}
	if len(a.staticLibNames) > 0 {
		args = append(args, "/libpath:"+a.libDir)
		for _, lib := range a.staticLibNames {
			args = append(args, lib+".lib")
		}
	}
	if len(a.sharedLibNames) > 0 {
		args = append(args, "/libpath:"+a.sharedLibDir)
		for _, lib := range a.sharedLibNames {
			args = append(args, lib+".lib")
		}
	}
	for _, lib := range a.prebuiltLibNames {
		args = append(args, lib+".lib")
	}
	args = append(args, "/manifest", "/manifestfile:"+a.manifestStub)
	if a.isDLL {
		args = append(args, "/dll", "/implib:"+a.implibPathPrivate)
		if a.exportsDefFile != "" {
			args = append(args, "/def:"+a.exportsDefFile)
		}
		for _, exp := range a.exportList {
			args = append(args, "/EXPORT:"+exp)
		}
	} else {
		if a.winConsole {
			args = append(args, "/subsystem:console")
		} else {
			args = append(args, "/subsystem:windows")
		}
		if a.useWmain {
			args = append(args, "/ENTRY:wmainCRTStartup")
		}
		if a.winStackSize != "" {
			args = append(args, "/STACK:"+a.winStackSize)
		}
	}

	if err := writeResponseFile(a.rspFile, args); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, a.linkTool, "@"+a.rspFile)
	cmd.Env = a.env
	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "link-failed", exitCodeOf(err), "linking '%s'", a.binPathPrivate)
	}

	manifestID := "1"
	if a.isDLL {
		manifestID = "2"
	}
	mtArgv := []string{a.mtTool, "/nologo", "/verbose", "/manifest", a.manifestStub,
		"/out:" + a.manifestBuiltin, fmt.Sprintf("/outputresource:%s;%s", a.binPathPrivate, manifestID)}
	mtCmd := exec.CommandContext(ctx, mtArgv[0], mtArgv[1:]...)
	mtCmd.Env = a.env
	if err := mtCmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "mt-failed", exitCodeOf(err), "embedding manifest into '%s'", a.binPathPrivate)
	}

	if a.zipSection != "" {
		if !paths.IsFile(a.zipSection) {
			return errs.New(errs.DomainBuild, "missing-zip-section", "file '%s' for zip-section not found", a.zipSection)
		}
		if err := appendFile(a.binPathPrivate, a.zipSection); err != nil {
			return err
		}
	}

	if err := os.Rename(a.binPathPrivate, a.binPathPublic); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "publish-rename-failed", "publishing '%s'", a.binPathPublic)
	}
	if err := os.Rename(a.pdbPathPrivate, a.pdbPathPublic); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "publish-rename-failed", "publishing '%s'", a.pdbPathPublic)
	}
	if a.isDLL {
		if err := os.Rename(a.implibPathPrivate, a.implibPathPublic); err != nil {
			return errs.Wrap(err, errs.DomainBuild, "publish-rename-failed", "publishing '%s'", a.implibPathPublic)
		}
	}
	if err := os.Rename(linkStampTmp, a.linkStampFile); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "stamp-rename-failed", "stamping '%s'", a.linkStampFile)
	}
	now := time.Now()
	os.Chtimes(a.linkStampFile, now, now)
	os.Chtimes(a.binPathPublic, now, now)

	if progress != nil {
		progress(100, "done")
	}
	return nil
}

func appendFile(dstPath, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "zip-section-open-failed", "opening '%s'", srcPath)
	}
	defer src.Close()
	dst, err := os.OpenFile(dstPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "zip-section-append-failed", "appending to '%s'", dstPath)
	}
	defer dst.Close()
	buf := make([]byte, 64*1024)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			break
		}
	}
	return nil
}

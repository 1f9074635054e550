package gccfamily

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
	"github.com/bitswalk/minibuild/toolchain"
)

// linkAction links an executable or a shared library, grounded on
// LinkActionGCC: it stages the binary under a private raw/ directory and
// only renames it into the public output directory once the link and any
// post-processing succeeds (§5 "atomic rename ... is the sole publish
// point").
type linkAction struct {
	tools           *Tools
	isDLL           bool
	linkPublicDir   string
	linkPrivateDir  string
	linkStampFile   string
	libDir          string
	sharedLibDir    string
	primaryDeps     []string
	extraDeps       []string
	winConsole      bool
	winStackSize    string
	useWmain        bool
	zipSection      string
	macosxFrameworks []string
	macosxInstallNameOpts []string
	binBasename     string
	binPathPublic   string
	binPathPrivate  string
	exportDefFile   string
	exportList      []string
	exportWinapiOnly []string
	exportMapFile   string
	moduleName      string
	rspFile         string
	objList         []string
	archFlags       []string
	buildConfig     string
	staticLibNames  []string
	sharedLibNames  []string
	prebuiltLibNames []string
	projectRoot     string
}

// NewExeLinkAction builds a linkAction producing an executable.
func NewExeLinkAction(tools *Tools, projectRoot string, req toolchain.ExeLinkRequest) (*linkAction, error) {
	return newLinkAction(tools, projectRoot, req.Desc, req.ExeDir, req.SharedLibDir, req.LibDir, req.ObjDir,
		req.ObjNames, req.Model, req.Config, req.DependencyLibs, req.PrebuiltLibs, false)
}

// NewSharedLinkAction builds a linkAction producing a shared library.
func NewSharedLinkAction(tools *Tools, projectRoot string, req toolchain.SharedLinkRequest) (*linkAction, error) {
	return newLinkAction(tools, projectRoot, req.Desc, "", req.SharedLibDir, req.LibDir, req.ObjDir,
		req.ObjNames, req.Model, req.Config, req.DependencyLibs, req.PrebuiltLibs, true)
}

func newLinkAction(tools *Tools, projectRoot string, desc *description.BuildDescription, exeDir, sharedLibDir, libDir, objDir string,
	objNames []string, model toolchain.Model, config string, dependencyLibs, prebuiltLibs []string, forceDLL bool) (*linkAction, error) {

	isDLL := forceDLL || exeDir == ""
	linkPublicDir := sharedLibDir
	if !isDLL {
		linkPublicDir = exeDir
	}
	linkPrivateDir := filepath.Join(objDir, "raw")
	if err := paths.EnsureDirPath(linkPrivateDir); err != nil {
		return nil, err
	}

	a := &linkAction{
		tools: tools, isDLL: isDLL, linkPublicDir: linkPublicDir, linkPrivateDir: linkPrivateDir,
		linkStampFile: filepath.Join(linkPrivateDir, "link.stamp"),
		libDir:        libDir, sharedLibDir: sharedLibDir,
		moduleName:  desc.Get(grammar.KeyModuleName).String(),
		archFlags:   archFlags(model.Name, model.ArchitectureABI),
		buildConfig: config,
		projectRoot: projectRoot,
	}
	a.primaryDeps = append(a.primaryDeps, a.linkStampFile)
	a.extraDeps = append(a.extraDeps, desc.FileParts...)

	if tools.IsMinGW {
		a.winConsole = desc.Get(grammar.KeyWinConsole).Bool()
		a.winStackSize = desc.Get(grammar.KeyWinStackSize).String()
	}
	a.useWmain = desc.Get(grammar.KeyWmain).Bool()

	if model.PlatformName == grammar.PlatformMacosx {
		a.macosxFrameworks = desc.Get(grammar.KeyMacosxFrameworkList).List()
		if opts := desc.Get(grammar.KeyMacosxInstallNameOptions).String(); opts != "" {
			a.macosxInstallNameOpts = strings.Fields(opts)
		}
	}

	if zs := desc.Get(grammar.KeyZipSection); zs.Set() {
		zipSectionFile := paths.NormalizeOptional(zs.String(), desc.SelfDir)
		a.zipSection = zipSectionFile
		a.primaryDeps = append(a.primaryDeps, zipSectionFile)
	}

	if isDLL {
		if tools.IsMinGW {
			a.binBasename = a.moduleName + ".dll"
		} else {
			a.binBasename = "lib" + a.moduleName + ".so"
		}
	} else {
		exeName := a.moduleName
		if en := desc.Get(grammar.KeyExeName).String(); en != "" {
			exeName = en
		}
		if tools.IsMinGW {
			a.binBasename = exeName + ".exe"
		} else {
			a.binBasename = exeName
		}
	}
	a.binPathPublic = filepath.Join(a.linkPublicDir, a.binBasename)
	a.binPathPrivate = filepath.Join(a.linkPrivateDir, a.binBasename)

	if isDLL {
		if defFile := desc.Get(grammar.KeyExportDefFile); defFile.Set() {
			resolved := paths.NormalizeOptional(defFile.String(), desc.SelfDir)
			a.exportDefFile = resolved
			a.extraDeps = append(a.extraDeps, resolved)
		}
		a.exportList = desc.Get(grammar.KeyExportList).List()
		a.exportWinapiOnly = desc.Get(grammar.KeyExportWinapiOnly).List()
		if len(a.exportList) > 0 || (a.exportDefFile != "" && !tools.IsMinGW) {
			a.exportMapFile = filepath.Join(a.linkPrivateDir, "symbols.map")
		}
	}

	a.rspFile = filepath.Join(a.linkPrivateDir, a.moduleName+".rsplnk")
	for _, name := range objNames {
		objPath := filepath.Join(objDir, name+".o")
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
	return []buildart.Artifact{{Kind: kind, Path: a.binPathPublic, Attr: buildart.AttrPublic}}
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

	if paths.Exists(a.binPathPublic) {
		os.Remove(a.binPathPublic)
	}
	os.RemoveAll(a.linkPrivateDir)
	if err := paths.EnsureDirPath(a.linkPrivateDir); err != nil {
		return err
	}
	linkStampTmp := a.linkStampFile + ".tmp"
	if f, err := os.Create(linkStampTmp); err == nil {
		f.Close()
	}

	argv := []string{a.tools.GPP}
	argv = append(argv, a.archFlags...)

	if a.isDLL {
		argv = append(argv, "-shared")
		if !a.tools.IsClang {
			argv = append(argv, "-Wl,--no-undefined")
		}
		if a.exportMapFile != "" {
			if err := a.writeExportMap(); err != nil {
				return err
			}
			if a.tools.IsClang {
				argv = append(argv, fmt.Sprintf("-Wl,-exported_symbols_list,%s", a.exportMapFile))
			} else {
				argv = append(argv, fmt.Sprintf("-Wl,--version-script=%s", a.exportMapFile))
			}
		}
	} else {
		if a.tools.IsMinGW {
			if a.winConsole {
				argv = append(argv, "-Wl,-subsystem,console")
			} else {
				argv = append(argv, "-Wl,-subsystem,windows")
			}
			if a.useWmain {
				argv = append(argv, "-municode")
			}
			if a.winStackSize != "" {
				argv = append(argv, fmt.Sprintf("-Wl,--stack,%s", a.winStackSize))
			}
		} else if !a.tools.IsClang {
			argv = append(argv, "-pie")
		}
	}

	if !a.tools.IsMinGW && !a.tools.IsClang {
		argv = append(argv, "-Wl,-z,noexecstack")
	}
	if !a.tools.IsClang {
		argv = append(argv, "-Wl,--as-needed")
	}
	argv = append(argv, "-o", a.binPathPrivate)

	if a.isDLL && a.tools.IsMinGW && a.exportDefFile != "" && a.exportMapFile == "" {
		argv = append(argv, a.exportDefFile)
	}
	argv = append(argv, a.objList...)

	wrapGroup := (len(a.staticLibNames) > 0 || len(a.sharedLibNames) > 0) && !a.tools.IsClang
	if wrapGroup {
		argv = append(argv, "-Wl,--start-group")
	}
	if len(a.staticLibNames) > 0 {
		argv = append(argv, "-L"+a.libDir)
		for _, lib := range a.staticLibNames {
			argv = append(argv, "-l"+lib)
		}
	}
	if len(a.sharedLibNames) > 0 {
		argv = append(argv, "-L"+a.sharedLibDir)
		for _, lib := range a.sharedLibNames {
			argv = append(argv, "-l"+lib)
		}
	}
	if wrapGroup {
		argv = append(argv, "-Wl,--end-group")
	}
	for _, lib := range a.prebuiltLibNames {
		argv = append(argv, "-l"+lib)
	}
	if a.tools.IsClang {
		argv = append(argv, fmt.Sprintf("-Wl,-install_name,%s", a.binBasename))
	}
	for _, fw := range a.macosxFrameworks {
		argv = append(argv, "-framework", fw)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errs.NewExit(errs.DomainBuild, "link-failed", exitCodeOf(err), "linking '%s'", a.binPathPrivate)
	}

	if len(a.macosxInstallNameOpts) > 0 {
		argv := append([]string{"install_name_tool"}, a.macosxInstallNameOpts...)
		argv = append(argv, a.binPathPrivate)
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		if err := cmd.Run(); err != nil {
			return errs.NewExit(errs.DomainBuild, "install-name-failed", exitCodeOf(err), "install_name_tool '%s'", a.binPathPrivate)
		}
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

func (a *linkAction) writeExportMap() error {
	var actual []string
	if a.exportDefFile != "" {
		fromDef, err := loadExportListFromDefFile(a.exportDefFile, a.exportWinapiOnly, a.tools.IsMinGW)
		if err != nil {
			return err
		}
		actual = append(actual, fromDef...)
	}
	winapiOnly := map[string]bool{}
	for _, s := range a.exportWinapiOnly {
		winapiOnly[s] = true
	}
	for _, exp := range a.exportList {
		if winapiOnly[exp] && !a.tools.IsMinGW {
			continue
		}
		actual = append(actual, exp)
	}

	f, err := os.Create(a.exportMapFile)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "export-map-write-failed", "writing '%s'", a.exportMapFile)
	}
	defer f.Close()
	if a.tools.IsClang {
		for _, e := range actual {
			fmt.Fprintf(f, "_%s\n", e)
		}
	} else {
		fmt.Fprintln(f, "{")
		fmt.Fprintln(f, "    global:")
		for _, e := range actual {
			fmt.Fprintf(f, "        %s;\n", e)
		}
		fmt.Fprintln(f, "\n    local: *;")
		fmt.Fprintln(f, "};")
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

// loadExportListFromDefFile extracts the EXPORTS section symbol list from
// a Windows .def file, mirroring load_export_list_from_def_file.
func loadExportListFromDefFile(defFile string, winapiOnly []string, forWinapi bool) ([]string, error) {
	f, err := os.Open(defFile)
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "def-file-open-failed", "opening '%s'", defFile)
	}
	defer f.Close()

	winapiSet := map[string]bool{}
	for _, s := range winapiOnly {
		winapiSet[s] = true
	}

	var exportList []string
	exportSectionFound := false
	insideExport := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		text := strings.TrimLeft(line, " \t")
		if text == "" || text[0] == ';' {
			continue
		}
		tokens := strings.Fields(text)
		lineIsKeyword := len(line) == len(text)
		if lineIsKeyword {
			if insideExport {
				insideExport = false
			} else if len(tokens) == 1 && tokens[0] == "EXPORTS" {
				if exportSectionFound {
					return nil, errs.New(errs.DomainBuild, "dup-exports-section", "'EXPORTS' section found more than once inside DEF file: '%s'", defFile)
				}
				exportSectionFound = true
				insideExport = true
			}
			continue
		}
		if insideExport && len(tokens) > 0 && !strings.HasPrefix(tokens[0], "@") {
			symbol := tokens[0]
			if winapiOnly != nil && !forWinapi && winapiSet[symbol] {
				continue
			}
			exportList = append(exportList, symbol)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "def-file-scan-failed", "scanning '%s'", defFile)
	}
	if !exportSectionFound {
		return nil, errs.New(errs.DomainBuild, "missing-exports-section", "'EXPORTS' section not found inside DEF file: '%s'", defFile)
	}
	if len(exportList) == 0 {
		return nil, errs.New(errs.DomainBuild, "empty-exports-section", "cannot load symbols information from 'EXPORTS' section inside DEF file: '%s'", defFile)
	}
	return exportList, nil
}

// Package gccfamily implements the toolchain.Toolset for GCC, Clang, MinGW
// and cross-GCC, grounded on
// original_source/minibuild/toolset_gcc.py (the reference implementation's
// single GCC-family toolset, shared by native GCC, Clang, MinGW and
// cross-GCC by varying its ToolsInfoGCC flags).
package gccfamily

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/toolchain"
)

// Tools describes the concrete compiler/archiver binaries and feature
// flags for one GCC-family instance (native gcc, native clang, a MinGW
// cross-kit, or a Linux cross-gcc kit).
type Tools struct {
	GCC          string
	GPP          string
	AR           string
	NasmExe      string
	IsMinGW      bool
	IsClang      bool
	IsCrossTool  bool
	NasmEnabled  bool
	ArchList     []string
}

// NewTools builds a Tools set, mirroring ToolsInfoGCC's binary-name
// derivation (gcc/g++/ar vs clang/clang++/libtool, optional dir/bin
// prefix).
func NewTools(dirPrefix, binPrefix string, isMinGW, isClang, isCrossTool bool, archList []string, nasmExe string) *Tools {
	gcc, gpp, ar := "gcc", "g++", "ar"
	if isClang {
		gcc, gpp, ar = "clang", "clang++", "libtool"
	}
	if binPrefix != "" {
		gcc, gpp, ar = binPrefix+gcc, binPrefix+gpp, binPrefix+ar
	}
	if dirPrefix != "" {
		gcc = filepath.Join(dirPrefix, gcc)
		gpp = filepath.Join(dirPrefix, gpp)
		ar = filepath.Join(dirPrefix, ar)
	}
	if nasmExe == "" {
		nasmExe = "nasm"
	}
	t := &Tools{
		GCC: gcc, GPP: gpp, AR: ar, NasmExe: nasmExe,
		IsMinGW: isMinGW, IsClang: isClang, IsCrossTool: isCrossTool, ArchList: archList,
	}
	switch {
	case isMinGW:
		t.NasmEnabled = true
	case isCrossTool:
		for _, a := range archList {
			if a == grammar.ArchX86 || a == grammar.ArchX86_64 {
				t.NasmEnabled = true
			}
		}
	default:
		t.NasmEnabled = runtime.GOARCH == "amd64" || runtime.GOARCH == "386"
	}
	return t
}

// InitMinGWTools builds a Tools set from the project config's [mingw]
// toolset config dict (package_path, prefix, arch), mirroring
// init_mingw_tools.
func InitMinGWTools(projectRoot string, config map[string]string, nasmExe string) (*Tools, error) {
	packagePath, ok := config["package_path"]
	if !ok || packagePath == "" {
		return nil, fmt.Errorf("malformed MinGW config: 'package_path' is not given in project config file")
	}
	packagePath = resolvePackagePath(packagePath, projectRoot)
	if fi, err := os.Stat(packagePath); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("malformed MinGW config: 'package_path' resolved as '%s' is not a directory", packagePath)
	}
	binDir := filepath.Join(packagePath, "bin")
	if fi, err := os.Stat(binDir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("malformed MinGW config: '%s' is not a directory", binDir)
	}
	archList := splitArchList(config["arch"])
	if len(archList) == 0 {
		return nil, fmt.Errorf("malformed MinGW config: 'arch' list is not given or empty in project config file")
	}
	for _, a := range archList {
		if !isMinGWArch(a) {
			return nil, fmt.Errorf("malformed cross-tools config: unknown arch value '%s' given, supported: %v", a, grammar.MingwArches)
		}
	}
	return NewTools(binDir, config["prefix"], true, false, false, archList, nasmExe), nil
}

// InitCrossTools builds a Tools set from the project config's [x-tools]
// toolset config dict, mirroring init_cross_tools.
func InitCrossTools(projectRoot string, config map[string]string, nasmExe string) (*Tools, error) {
	packagePath, ok := config["package_path"]
	if !ok || packagePath == "" {
		return nil, fmt.Errorf("malformed cross-tools config: 'package_path' is not given in project config file")
	}
	packagePath = resolvePackagePath(packagePath, projectRoot)
	if fi, err := os.Stat(packagePath); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("malformed cross-tools config: 'package_path' resolved as '%s' is not a directory", packagePath)
	}
	binDir := filepath.Join(packagePath, "bin")
	if fi, err := os.Stat(binDir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("malformed cross-tools config: '%s' is not a directory", binDir)
	}
	archList := splitArchList(config["arch"])
	if len(archList) == 0 {
		return nil, fmt.Errorf("malformed cross-tools config: 'arch' list is not given or empty in project config file")
	}
	for _, a := range archList {
		if !isKnownArch(a) {
			return nil, fmt.Errorf("malformed cross-tools config: unknown arch value '%s' given, supported: %v", a, grammar.AllArches)
		}
	}
	return NewTools(binDir, config["prefix"], false, false, true, archList, nasmExe), nil
}

func resolvePackagePath(p, projectRoot string) string {
	p = os.ExpandEnv(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(projectRoot, p)
	}
	return filepath.Clean(p)
}

func splitArchList(raw string) []string {
	var out []string
	for _, tok := range filepathSplitFields(raw) {
		out = append(out, tok)
	}
	return out
}

func filepathSplitFields(s string) []string {
	var fields []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			fields = append(fields, string(cur))
			cur = cur[:0]
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ',' || c == ' ' || c == '\t' {
			flush()
			continue
		}
		cur = append(cur, c)
	}
	flush()
	return fields
}

func isMinGWArch(a string) bool {
	for _, m := range grammar.MingwArches {
		if a == m {
			return true
		}
	}
	return false
}

func isKnownArch(a string) bool {
	for _, m := range grammar.AllArches {
		if a == m {
			return true
		}
	}
	return false
}

// archFlags returns the compiler/linker flags for building arch from the
// running host, mirroring ARCH_FLAGS_MINGW_WIN32/64 and
// ARCH_FLAGS_X86_FROM_X86_64.
func archFlags(modelName, arch string) []string {
	switch modelName {
	case ModelMinGW32:
		return []string{"-m32"}
	case ModelMinGW64:
		return []string{"-m64"}
	case ModelLinuxX86:
		if runtime.GOARCH == "amd64" {
			return []string{"-m32"}
		}
	}
	return nil
}

// Model names, mirroring toolset_gcc.py's GCC_MODEL_*/CLANG_MODEL_*
// constants.
const (
	ModelLinuxX86     = "gcc-linux-x86"
	ModelLinuxX86_64  = "gcc-linux-x86_64"
	ModelLinuxArm     = "gcc-linux-arm"
	ModelLinuxArm64   = "gcc-linux-arm64"
	ModelMacosxX8664  = "clang-macosx-x86_64"
	ModelXtLinuxX86   = "gcc-xt-linux-x86"
	ModelXtLinuxX8664 = "gcc-xt-linux-x86_64"
	ModelXtLinuxArm   = "gcc-xt-linux-arm"
	ModelXtLinuxArm64 = "gcc-xt-linux-arm64"
	ModelMinGW32      = "mingw-win32"
	ModelMinGW64      = "mingw-win64"
)

var crosstoolModelNames = map[string]string{
	grammar.ArchX86:    ModelXtLinuxX86,
	grammar.ArchX86_64: ModelXtLinuxX86_64,
	grammar.ArchArm:    ModelXtLinuxArm,
	grammar.ArchArm64:  ModelXtLinuxArm64,
}

// Toolset is the gccfamily implementation of toolchain.Toolset.
type Toolset struct {
	name         string
	tools        *Tools
	platformName string
	models       map[string]toolchain.Model
}

// NewToolset builds a Toolset named name (e.g. "gcc" or "clang") around
// tools, deriving the set of supported build models exactly as
// ToolsetGCC.__init__ does.
func NewToolset(name string, tools *Tools) (*Toolset, error) {
	ts := &Toolset{name: name, tools: tools, models: map[string]toolchain.Model{}}

	switch {
	case tools.IsMinGW:
		ts.platformName = grammar.PlatformWindows
		for _, a := range tools.ArchList {
			switch a {
			case grammar.ArchX86:
				ts.addModel(ModelMinGW32, grammar.PlatformWindows, a, runtime.GOOS == "windows" && runtime.GOARCH == "386")
			case grammar.ArchX86_64:
				ts.addModel(ModelMinGW64, grammar.PlatformWindows, a, runtime.GOOS == "windows" && runtime.GOARCH == "amd64")
			}
		}
	case tools.IsCrossTool:
		ts.platformName = grammar.PlatformLinux
		for _, a := range tools.ArchList {
			modelName, ok := crosstoolModelNames[a]
			if !ok {
				return nil, fmt.Errorf("unsupported cross-tool architecture '%s'", a)
			}
			ts.addModel(modelName, grammar.PlatformLinux, a, isNativeArch(a))
		}
	default:
		ts.platformName = nativeHostPlatform()
		switch ts.platformName {
		case grammar.PlatformLinux:
			switch runtime.GOARCH {
			case "amd64":
				ts.addModel(ModelLinuxX86, grammar.PlatformLinux, grammar.ArchX86, false)
				ts.addModel(ModelLinuxX86_64, grammar.PlatformLinux, grammar.ArchX86_64, true)
			case "386":
				ts.addModel(ModelLinuxX86, grammar.PlatformLinux, grammar.ArchX86, true)
			case "arm":
				ts.addModel(ModelLinuxArm, grammar.PlatformLinux, grammar.ArchArm, true)
			case "arm64":
				ts.addModel(ModelLinuxArm64, grammar.PlatformLinux, grammar.ArchArm64, true)
			}
		case grammar.PlatformMacosx:
			if name == "clang" && runtime.GOARCH == "amd64" {
				ts.addModel(ModelMacosxX8664, grammar.PlatformMacosx, grammar.ArchX86_64, true)
			}
		}
		if len(ts.models) == 0 {
			return nil, fmt.Errorf("unsupported platform: '%s,%s'", runtime.GOOS, runtime.GOARCH)
		}
	}
	return ts, nil
}

func (ts *Toolset) addModel(name, platform, arch string, native bool) {
	ts.models[name] = toolchain.Model{
		Name: name, ToolsetName: ts.name, PlatformName: platform, ArchitectureABI: arch, Native: native,
	}
}

func nativeHostPlatform() string {
	switch runtime.GOOS {
	case "windows":
		return grammar.PlatformWindows
	case "darwin":
		return grammar.PlatformMacosx
	default:
		return grammar.PlatformLinux
	}
}

func isNativeArch(arch string) bool {
	switch runtime.GOARCH {
	case "amd64":
		return arch == grammar.ArchX86_64
	case "386":
		return arch == grammar.ArchX86
	case "arm":
		return arch == grammar.ArchArm
	case "arm64":
		return arch == grammar.ArchArm64
	default:
		return false
	}
}

func (ts *Toolset) ToolsetName() string   { return ts.name }
func (ts *Toolset) PlatformName() string  { return ts.platformName }
func (ts *Toolset) SupportedModels() []toolchain.Model {
	out := make([]toolchain.Model, 0, len(ts.models))
	for _, m := range ts.models {
		out = append(out, m)
	}
	return out
}

package workflow

import (
	"github.com/bitswalk/minibuild/toolchain"
	"github.com/bitswalk/minibuild/toolchain/gccfamily"
	"github.com/bitswalk/minibuild/toolchain/msvc"
)

// moduleGCC/moduleClang/moduleMinGW/moduleCrossGCC/moduleMSVS are the
// toolset-module ids a project config's "module" key names (§6
// "module = <toolset-module-id>"). The reference implementation instead
// encodes mingw/xtools as a "subtype" of a single toolset_gcc module
// (gen_bconf.py); since our gccfamily package already exposes MinGW and
// cross-GCC tools construction as distinct entry points
// (InitMinGWTools/InitCrossTools), registering them as distinct module ids
// is the more idiomatic Go shape and is documented as such in DESIGN.md.
const (
	moduleGCC      = "gcc"
	moduleClang    = "clang"
	moduleMinGW    = "mingw"
	moduleCrossGCC = "crossgcc"
	moduleMSVS     = "msvs"
)

// RegisterToolsets binds every built-in toolset module to reg (called once
// by the CLI front-end before loading the project config). projectRoot
// resolves the mingw/crossgcc config dict's relative package_path entries.
func RegisterToolsets(reg *toolchain.Registry, projectRoot string) {
	reg.Register(moduleGCC, func(cfg map[string]string) (toolchain.Toolset, error) {
		tools := gccfamily.NewTools("", "", false, false, false, nil, cfg["nasm"])
		return gccfamily.NewToolset("gcc", tools)
	})
	reg.Register(moduleClang, func(cfg map[string]string) (toolchain.Toolset, error) {
		tools := gccfamily.NewTools("", "", false, true, false, nil, cfg["nasm"])
		return gccfamily.NewToolset("clang", tools)
	})
	reg.Register(moduleMinGW, func(cfg map[string]string) (toolchain.Toolset, error) {
		tools, err := gccfamily.InitMinGWTools(projectRoot, cfg, cfg["nasm"])
		if err != nil {
			return nil, err
		}
		return gccfamily.NewToolset("gcc", tools)
	})
	reg.Register(moduleCrossGCC, func(cfg map[string]string) (toolchain.Toolset, error) {
		tools, err := gccfamily.InitCrossTools(projectRoot, cfg, cfg["nasm"])
		if err != nil {
			return nil, err
		}
		return gccfamily.NewToolset("gcc", tools)
	})
	reg.Register(moduleMSVS, func(cfg map[string]string) (toolchain.Toolset, error) {
		version := cfg["version"]
		if version == "" {
			version = "2015"
		}
		return msvc.NewToolset(version, cfg["bootstrap_dir"]), nil
	})
}

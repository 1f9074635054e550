package msvc

import (
	"runtime"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/toolchain"
)

// archDefines mirrors MsvsModelWin32/64.get_arch_defines: the
// architecture-specific preprocessor defines every compile gets, beyond
// whatever the description's own definitions list adds.
var archDefines = map[string][]string{
	grammar.ArchX86:    {"_WIN32_WINNT=0x0501", "WINVER=0x0501"},
	grammar.ArchX86_64: {"_WIN32_WINNT=0x0502", "WINVER=0x0502"},
}

// Toolset is the msvc implementation of toolchain.Toolset: one vendor
// version (e.g. "2015") with its win32 and win64 build models, each
// carrying its own bootstrapped compiler environment.
type Toolset struct {
	version      string
	bootstrapDir string
	models       map[string]toolchain.Model
	bootstraps   map[string]*Bootstrap // keyed by arch
}

// NewToolset builds a Toolset for version, lazily bootstrapping the win32
// and win64 environments on first use of each arch.
func NewToolset(version, bootstrapDir string) *Toolset {
	ts := &Toolset{version: version, bootstrapDir: bootstrapDir, models: map[string]toolchain.Model{}, bootstraps: map[string]*Bootstrap{}}
	ts.models["msvs"+version+"-win32"] = toolchain.Model{
		Name: "msvs" + version + "-win32", ToolsetName: "msvs", PlatformName: grammar.PlatformWindows,
		ArchitectureABI: grammar.ArchX86, Native: runtime.GOOS == "windows" && runtime.GOARCH == "386",
	}
	ts.models["msvs"+version+"-win64"] = toolchain.Model{
		Name: "msvs" + version + "-win64", ToolsetName: "msvs", PlatformName: grammar.PlatformWindows,
		ArchitectureABI: grammar.ArchX86_64, Native: runtime.GOOS == "windows" && runtime.GOARCH == "amd64",
	}
	return ts
}

func (ts *Toolset) ToolsetName() string  { return "msvs" }
func (ts *Toolset) PlatformName() string { return grammar.PlatformWindows }
func (ts *Toolset) SupportedModels() []toolchain.Model {
	out := make([]toolchain.Model, 0, len(ts.models))
	for _, m := range ts.models {
		out = append(out, m)
	}
	return out
}

// bootstrapFor lazily resolves the environment for arch ("x86" or
// "x86_64"), caching the result for the lifetime of the Toolset.
func (ts *Toolset) bootstrapFor(arch string) (*Bootstrap, error) {
	if b, ok := ts.bootstraps[arch]; ok {
		return b, nil
	}
	b, err := InitBootstrap(ts.bootstrapDir, ts.version, arch)
	if err != nil {
		return nil, err
	}
	ts.bootstraps[arch] = b
	return b, nil
}

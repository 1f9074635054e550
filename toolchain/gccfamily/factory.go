package gccfamily

import (
	"os/exec"
	"sync"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/toolchain"
	"github.com/bitswalk/minibuild/toolchain/nasm"
)

// nasmProber checks (once, lazily) whether the configured NASM executable
// actually runs, mirroring ToolsetGCC._nasm_checked's one-shot
// `nasm -v` probe.
type nasmProber struct {
	once    sync.Once
	checked bool
}

func (p *nasmProber) probe(nasmExe string) bool {
	p.once.Do(func() {
		if err := exec.Command(nasmExe, "-v").Run(); err == nil {
			p.checked = true
		}
	})
	return p.checked
}

// asmProbers keys one nasmProber per Toolset so the probe result is cached across
// every create_asm_build_action call for the lifetime of the toolset.
var asmProbers sync.Map // map[*Toolset]*nasmProber

func (ts *Toolset) prober() *nasmProber {
	v, _ := asmProbers.LoadOrStore(ts, &nasmProber{})
	return v.(*nasmProber)
}

func (ts *Toolset) CreateCppBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	return NewCompileAction(ts.tools, req, SourceCpp), nil
}

func (ts *Toolset) CreateCBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	return NewCompileAction(ts.tools, req, SourceC), nil
}

// CreateAsmBuildAction delegates to the nasm package when
// the module's description sets nasm=True, otherwise falls back to
// compiling the assembly file with GCC's "assembler-with-cpp" mode, exactly
// as ToolsetGCC.create_asm_build_action does.
func (ts *Toolset) CreateAsmBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	if req.Desc.Get(grammar.KeyAsmIsNasm).Bool() {
		if !ts.tools.NasmEnabled {
			return nil, errs.New(errs.DomainBuild, "nasm-disabled",
				"NASM is not enabled for build model '%s', it is required to compile: '%s'", req.Model.Name, req.SourcePath)
		}
		if !ts.prober().probe(ts.tools.NasmExe) {
			return nil, errs.New(errs.DomainBuild, "nasm-not-ready",
				"NASM executable '%s' is not ready, it is required to compile: '%s'", ts.tools.NasmExe, req.SourcePath)
		}
		return nasm.NewAction(ts.tools.NasmExe, req)
	}
	return NewCompileAction(ts.tools, req, SourceAsm), nil
}

func (ts *Toolset) CreateLibStaticLinkAction(req toolchain.StaticLinkRequest) (toolchain.Action, error) {
	return NewStaticLinkAction(ts.tools, req.ProjectRoot, req), nil
}

func (ts *Toolset) CreateExeLinkAction(req toolchain.ExeLinkRequest) (toolchain.Action, error) {
	return NewExeLinkAction(ts.tools, req.ProjectRoot, req)
}

func (ts *Toolset) CreateLibSharedLinkAction(req toolchain.SharedLinkRequest) (toolchain.Action, error) {
	return NewSharedLinkAction(ts.tools, req.ProjectRoot, req)
}

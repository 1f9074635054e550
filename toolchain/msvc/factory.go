package msvc

import (
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/toolchain"
)

// archOf maps a build model's architecture ABI to the bootstrap arch key
// ("x86" / "x86_64") used by InitBootstrap and NewToolset's model table.
func archOf(model toolchain.Model) string {
	if model.ArchitectureABI == grammar.ArchX86_64 {
		return "x86_64"
	}
	return "x86"
}

func (ts *Toolset) CreateCppBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	boot, err := ts.bootstrapFor(archOf(req.Model))
	if err != nil {
		return nil, err
	}
	return NewCompileAction(boot, req, SourceCpp), nil
}

func (ts *Toolset) CreateCBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	boot, err := ts.bootstrapFor(archOf(req.Model))
	if err != nil {
		return nil, err
	}
	return NewCompileAction(boot, req, SourceC), nil
}

func (ts *Toolset) CreateAsmBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	if !req.Desc.Get(grammar.KeyAsmIsNasm).Bool() {
		boot, err := ts.bootstrapFor(archOf(req.Model))
		if err != nil {
			return nil, err
		}
		return NewAsmAction(boot, req), nil
	}
	return nil, errs.New(errs.DomainBuild, "nasm-not-supported", "nasm assembly is not supported by the msvs toolset; use a gcc-family toolset")
}

func (ts *Toolset) CreateLibStaticLinkAction(req toolchain.StaticLinkRequest) (toolchain.Action, error) {
	boot, err := ts.bootstrapFor(archOf(req.Model))
	if err != nil {
		return nil, err
	}
	return NewStaticLinkAction(boot, req), nil
}

func (ts *Toolset) CreateExeLinkAction(req toolchain.ExeLinkRequest) (toolchain.Action, error) {
	boot, err := ts.bootstrapFor(archOf(req.Model))
	if err != nil {
		return nil, err
	}
	return NewExeLinkAction(boot, req)
}

func (ts *Toolset) CreateLibSharedLinkAction(req toolchain.SharedLinkRequest) (toolchain.Action, error) {
	boot, err := ts.bootstrapFor(archOf(req.Model))
	if err != nil {
		return nil, err
	}
	return NewSharedLinkAction(boot, req)
}

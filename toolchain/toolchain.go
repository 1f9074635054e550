// Package toolchain defines the Toolset/Action abstraction every concrete
// compiler family (GCC/Clang/MinGW/cross-GCC in toolchain/gccfamily, MSVC in
// toolchain/msvc, NASM in toolchain/nasm) implements (§4.4).
package toolchain

import (
	"context"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/description"
)

// Model identifies one build model: the toolset, the OS platform it targets,
// and the CPU architecture (§2 "build model = toolset × OS × arch").
type Model struct {
	Name            string
	ToolsetName     string
	PlatformName    string
	ArchitectureABI string
	Native          bool
}

// ProgressFunc reports action progress, mirroring the teacher's stage
// progress callback (build/stage.go ProgressFunc).
type ProgressFunc func(percent int, message string)

// Action is one deferred unit of build work: a compile, archive, or link
// step with explicit inputs/outputs and a freshness check (§4.4 "Action").
type Action interface {
	// Describe returns a short one-line label for non-verbose logging
	// (spec §7: one compiled-source basename, one "BUILDSYS: ..." line).
	Describe() string
	// Inputs lists the files whose mtimes gate this action's freshness.
	Inputs() []string
	// Outputs lists the files this action produces.
	Outputs() []string
	// IsUpToDate reports whether Outputs() are already fresh relative to
	// Inputs() and any recorded dependency file (§4.3).
	IsUpToDate() bool
	// Execute runs the action's subprocess, blocking until it completes.
	Execute(ctx context.Context, progress ProgressFunc) error
	// Artifacts returns the build artifacts this action contributes once
	// it has run (empty before Execute succeeds for compile actions,
	// which have no publishable artifact of their own).
	Artifacts() []buildart.Artifact
}

// CompileRequest carries everything a compile-action factory needs, common
// across C/C++/ASM (§4.4).
type CompileRequest struct {
	Desc        *description.BuildDescription
	SourcePath  string
	ObjDir      string
	ObjName     string
	Model       Model
	Config      string
	IncludeDirs []string
	Definitions []string
	ProjectRoot string
}

// StaticLinkRequest carries the inputs for an archive-static action.
type StaticLinkRequest struct {
	Desc        *description.BuildDescription
	LibDir      string
	ObjDir      string
	ObjNames    []string
	Model       Model
	Config      string
	ProjectRoot string
}

// ExeLinkRequest carries the inputs for a link-executable action.
type ExeLinkRequest struct {
	Desc           *description.BuildDescription
	ExeDir         string
	SharedLibDir   string
	LibDir         string
	ObjDir         string
	ObjNames       []string
	Model          Model
	Config         string
	DependencyLibs []string // static/shared libs this executable links against
	PrebuiltLibs   []string
	ProjectRoot    string
}

// SharedLinkRequest carries the inputs for a link-shared action.
type SharedLinkRequest struct {
	Desc           *description.BuildDescription
	SharedLibDir   string
	LibDir         string
	ObjDir         string
	ObjNames       []string
	Model          Model
	Config         string
	DependencyLibs []string
	PrebuiltLibs   []string
	ProjectRoot    string
}

// Toolset is the per-compiler-family factory producing Actions (§4.4,
// grounded on original_source/minibuild/toolset_base.py's ToolsetBase).
type Toolset interface {
	ToolsetName() string
	PlatformName() string
	SupportedModels() []Model

	CreateCppBuildAction(req CompileRequest) (Action, error)
	CreateCBuildAction(req CompileRequest) (Action, error)
	CreateAsmBuildAction(req CompileRequest) (Action, error)
	CreateLibStaticLinkAction(req StaticLinkRequest) (Action, error)
	CreateExeLinkAction(req ExeLinkRequest) (Action, error)
	CreateLibSharedLinkAction(req SharedLinkRequest) (Action, error)
}

// Registry looks up a Toolset by the module-id its config section named
// (spec §6 "module = <toolset-module-id>").
type Registry struct {
	factories map[string]func(config map[string]string) (Toolset, error)
}

// NewRegistry constructs an empty toolset registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]func(config map[string]string) (Toolset, error){}}
}

// Register binds moduleID (e.g. "gcc", "clang", "msvs") to a Toolset
// factory.
func (r *Registry) Register(moduleID string, factory func(config map[string]string) (Toolset, error)) {
	r.factories[moduleID] = factory
}

// Create instantiates the Toolset registered for moduleID.
func (r *Registry) Create(moduleID string, config map[string]string) (Toolset, error) {
	factory, ok := r.factories[moduleID]
	if !ok {
		return nil, &UnknownToolsetError{ModuleID: moduleID}
	}
	return factory(config)
}

// UnknownToolsetError reports a project config referencing an
// unregistered toolset module (spec §7 "unknown toolset module").
type UnknownToolsetError struct{ ModuleID string }

func (e *UnknownToolsetError) Error() string {
	return "unknown toolset module: " + e.ModuleID
}

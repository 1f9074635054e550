package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/config"
	"github.com/bitswalk/minibuild/internal/logs"
	"github.com/bitswalk/minibuild/toolchain"
)

// fakeAction is a toolchain.Action test double: never up to date, records
// Execute calls, writes an empty file at each artifact path on Execute,
// and returns a fixed artifact list once Execute has run.
type fakeAction struct {
	label     string
	artifacts []buildart.Artifact
	executed  bool
}

func (a *fakeAction) Describe() string    { return a.label }
func (a *fakeAction) Inputs() []string    { return nil }
func (a *fakeAction) Outputs() []string   { return nil }
func (a *fakeAction) IsUpToDate() bool    { return false }
func (a *fakeAction) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	a.executed = true
	for _, art := range a.artifacts {
		if err := os.MkdirAll(filepath.Dir(art.Path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(art.Path, nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}
func (a *fakeAction) Artifacts() []buildart.Artifact {
	if !a.executed {
		return nil
	}
	return a.artifacts
}

var _ toolchain.Action = (*fakeAction)(nil)

// stubToolset is a toolchain.Toolset test double that hands out fakeActions
// instead of running a real compiler, so Workflow.Run's orchestration can be
// exercised without a toolchain on disk.
type stubToolset struct {
	name   string
	models []toolchain.Model
}

func (s *stubToolset) ToolsetName() string               { return s.name }
func (s *stubToolset) PlatformName() string               { return "linux" }
func (s *stubToolset) SupportedModels() []toolchain.Model { return s.models }

func (s *stubToolset) CreateCppBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	return &fakeAction{label: "cxx " + req.SourcePath}, nil
}
func (s *stubToolset) CreateCBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	return &fakeAction{label: "cc " + req.SourcePath}, nil
}
func (s *stubToolset) CreateAsmBuildAction(req toolchain.CompileRequest) (toolchain.Action, error) {
	return &fakeAction{label: "asm " + req.SourcePath}, nil
}
func (s *stubToolset) CreateLibStaticLinkAction(req toolchain.StaticLinkRequest) (toolchain.Action, error) {
	return &fakeAction{label: "ar " + req.LibDir, artifacts: []buildart.Artifact{
		{Kind: buildart.KindStaticLib, Path: filepath.Join(req.LibDir, "libutil.a"), Attr: buildart.AttrPublic},
	}}, nil
}
func (s *stubToolset) CreateExeLinkAction(req toolchain.ExeLinkRequest) (toolchain.Action, error) {
	return &fakeAction{label: "ld " + req.ExeDir, artifacts: []buildart.Artifact{
		{Kind: buildart.KindExecutable, Path: filepath.Join(req.ExeDir, "app"), Attr: buildart.AttrPublic},
	}}, nil
}
func (s *stubToolset) CreateLibSharedLinkAction(req toolchain.SharedLinkRequest) (toolchain.Action, error) {
	return &fakeAction{label: "ld-shared " + req.SharedLibDir}, nil
}

var _ toolchain.Toolset = (*stubToolset)(nil)

func newStubConfig() (*config.ProjectConfig, *toolchain.Registry, string) {
	ts := &stubToolset{name: "gcc", models: []toolchain.Model{
		{Name: "linux-x86_64-gcc-release", ToolsetName: "gcc", PlatformName: "linux", ArchitectureABI: "x86_64", Native: true},
	}}
	registry := toolchain.NewRegistry()
	registry.Register("gcc", func(map[string]string) (toolchain.Toolset, error) { return ts, nil })

	cfg := &config.ProjectConfig{
		ToolsetsByPlatform: map[string][]string{"linux": {"gcc"}},
		NativeModels:       config.NativeModelsDisabled,
		Toolsets: map[string]*config.ToolsetSection{
			"gcc": {ID: "gcc", Module: "gcc", Config: map[string]string{}},
		},
	}
	return cfg, registry, "linux-x86_64-gcc-release"
}

func TestWorkflowRunBuildsLibraryThenExecutableAndPublishes(t *testing.T) {
	root := t.TempDir()
	libDir := filepath.Join(root, "lib")
	exeDir := filepath.Join(root, "exe")

	writeModuleAt(t, libDir, `
module_type = 'lib-static'
module_name = 'util'
build_list = ['util.c']
`)
	writeModuleAt(t, exeDir, `
module_type = 'executable'
module_name = 'app'
build_list = ['main.c']
lib_list = ['`+libDir+`']
`)

	cfg, registry, modelName := newStubConfig()
	log := logs.NewDefault()
	wf, err := NewWorkflow(root, cfg, registry, log)
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}

	result, err := wf.Run(context.Background(), exeDir, Options{ModelName: modelName, Config: "release", Public: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Artifacts["util"]) != 1 || result.Artifacts["util"][0].Kind != buildart.KindStaticLib {
		t.Fatalf("util artifacts = %v", result.Artifacts["util"])
	}
	if len(result.Artifacts["app"]) != 1 || result.Artifacts["app"][0].Kind != buildart.KindExecutable {
		t.Fatalf("app artifacts = %v", result.Artifacts["app"])
	}

	binPath := filepath.Join(wf.Layout.Public, "bin", "app")
	libPath := filepath.Join(wf.Layout.Public, "lib", "libutil.a")
	if _, err := os.Stat(binPath); err != nil {
		t.Errorf("published executable missing: %v", err)
	}
	if _, err := os.Stat(libPath); err != nil {
		t.Errorf("published static lib missing: %v", err)
	}
}

func TestWorkflowRunUnknownModelErrors(t *testing.T) {
	root := t.TempDir()
	exeDir := filepath.Join(root, "exe")
	writeModuleAt(t, exeDir, `
module_type = 'executable'
module_name = 'app'
build_list = ['main.c']
`)
	cfg, registry, _ := newStubConfig()
	wf, err := NewWorkflow(root, cfg, registry, logs.NewDefault())
	if err != nil {
		t.Fatalf("NewWorkflow: %v", err)
	}
	if _, err := wf.Run(context.Background(), exeDir, Options{ModelName: "bogus-model", Config: "release"}); err == nil {
		t.Fatalf("expected error for unknown model")
	}
}

func TestBuildToolsetModelsMappingRejectsClash(t *testing.T) {
	model := toolchain.Model{Name: "linux-x86_64", PlatformName: "linux", ArchitectureABI: "x86_64"}
	tsA := &stubToolset{name: "gcc", models: []toolchain.Model{model}}
	tsB := &stubToolset{name: "clang", models: []toolchain.Model{model}}
	registry := toolchain.NewRegistry()
	registry.Register("gcc", func(map[string]string) (toolchain.Toolset, error) { return tsA, nil })
	registry.Register("clang", func(map[string]string) (toolchain.Toolset, error) { return tsB, nil })

	cfg := &config.ProjectConfig{
		ToolsetsByPlatform: map[string][]string{"linux": {"gcc", "clang"}},
		Toolsets: map[string]*config.ToolsetSection{
			"gcc":   {ID: "gcc", Module: "gcc"},
			"clang": {ID: "clang", Module: "clang"},
		},
	}
	if _, err := buildToolsetModelsMapping(cfg, registry); err == nil {
		t.Fatalf("expected model-clash error")
	}
}

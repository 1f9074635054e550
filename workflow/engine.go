package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/otiai10/copy"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/catalog"
	"github.com/bitswalk/minibuild/config"
	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/download"
	"github.com/bitswalk/minibuild/ext"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/logs"
	"github.com/bitswalk/minibuild/toolchain"
)

// MaxParallelCompiles bounds how many compile actions of a single module
// run concurrently (§5 "parallelizable only across one module's independent
// compile actions").
const MaxParallelCompiles = 8

// Options are the per-run build parameters the CLI front-end collects from
// flags (§6 "--model, --config, --force, --verbose, --public").
type Options struct {
	ModelName string
	Config    string // grammar.ConfigRelease or grammar.ConfigDebug
	Force     bool
	Public    bool
}

// Workflow is the build engine: a project config, a toolset registry, the
// output layout, and the logger, bound together for one invocation
// (script_main.py's BuildWorkflow, re-derived from spec.md §4.6/§5 since no
// build_workflow.py survived into original_source/ — see DESIGN.md).
type Workflow struct {
	ProjectRoot string
	Cfg         *config.ProjectConfig
	Registry    *toolchain.Registry
	Layout      Layout
	Log         *logs.Logger
	RunID       string

	mapping ToolsetModelsMapping
}

// NewWorkflow builds a Workflow bound to cfg/registry, resolving the
// model->toolset mapping once up front.
func NewWorkflow(projectRoot string, cfg *config.ProjectConfig, registry *toolchain.Registry, log *logs.Logger) (*Workflow, error) {
	mapping, err := buildToolsetModelsMapping(cfg, registry)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		ProjectRoot: projectRoot,
		Cfg:         cfg,
		Registry:    registry,
		Layout:      NewLayout(projectRoot),
		Log:         log,
		RunID:       uuid.New().String(),
		mapping:     mapping,
	}, nil
}

// buildToolsetModelsMapping instantiates every toolset section enabled for
// any platform and indexes the result by the model names it supports
// (create_build_workflow's toolset_models_mapping).
func buildToolsetModelsMapping(cfg *config.ProjectConfig, registry *toolchain.Registry) (ToolsetModelsMapping, error) {
	mapping := ToolsetModelsMapping{}
	seen := map[string]bool{}
	for _, ids := range cfg.ToolsetsByPlatform {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			section, ok := cfg.Toolsets[id]
			if !ok {
				return nil, errs.New(errs.DomainConfig, "unknown-toolset", "toolset section '%s' referenced but not defined", id)
			}
			ts, err := registry.Create(section.Module, section.Config)
			if err != nil {
				return nil, errs.Wrap(err, errs.DomainConfig, "toolset-init-failed", "initializing toolset section '%s'", id)
			}
			for _, m := range ts.SupportedModels() {
				if other, ok := mapping[m.Name]; ok && other.ToolsetName() != ts.ToolsetName() {
					return nil, errs.New(errs.DomainConfig, "model-clash",
						"build model '%s' is provided by both toolset '%s' and '%s'", m.Name, other.ToolsetName(), ts.ToolsetName())
				}
				mapping[m.Name] = ts
			}
		}
	}
	return mapping, nil
}

// RunResult is the outcome of one Run: the artifacts produced per module
// and the native-model remap that was applied, if any.
type RunResult struct {
	Artifacts        map[string][]buildart.Artifact // moduleName -> artifacts
	NativeModelRemap string
}

// Run executes the full build workflow (§4.6 steps 1-5) starting from
// startDir, for the model/config named in opts.
func (w *Workflow) Run(ctx context.Context, startDir string, opts Options) (*RunResult, error) {
	model, ts, err := w.resolveModel(opts.ModelName)
	if err != nil {
		return nil, err
	}

	nativeRemap, err := EvalNativeModel(opts.ModelName, w.mapping, w.Cfg, model.PlatformName, model.ArchitectureABI, w.Log)
	if err != nil {
		return nil, err
	}

	loader := description.NewLoader(w.ProjectRoot)
	loader.TargetPlatform = model.PlatformName
	loader.ToolsetName = ts.ToolsetName()
	loader.ImportHook = func(dir, requiredByFile string) (*description.BuildDescription, error) {
		return loader.LoadExtension(dir, []string{requiredByFile})
	}
	cache := NewCache(loader)

	graph, err := Discover(cache, startDir)
	if err != nil {
		return nil, err
	}

	for _, dir := range w.Layout.Dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err, errs.DomainBuild, "mkdir-failed", "creating output directory '%s'", dir)
		}
	}

	result := &RunResult{Artifacts: map[string][]buildart.Artifact{}, NativeModelRemap: nativeRemap}

	for _, node := range graph.Order {
		switch node.moduleType {
		case grammar.ModuleTypeExecutable, grammar.ModuleTypeLibStatic, grammar.ModuleTypeLibShared:
			arts, err := w.buildModule(ctx, cache, node, ts, model, opts)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", node.moduleName, err)
			}
			result.Artifacts[node.moduleName] = arts
		case grammar.ModuleTypeZipFile, grammar.ModuleTypeComposite:
			arts, err := w.buildCatalogModule(ctx, node, model, opts)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", node.moduleName, err)
			}
			result.Artifacts[node.moduleName] = arts
		case grammar.ModuleTypeDownload:
			arts, err := w.buildDownloadModule(ctx, node, opts)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %w", node.moduleName, err)
			}
			result.Artifacts[node.moduleName] = arts
		}
		if err := w.invokePostBuild(ctx, node, model, opts); err != nil {
			return nil, fmt.Errorf("module '%s' post_build: %w", node.moduleName, err)
		}
	}

	if opts.Public {
		if err := w.publish(result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (w *Workflow) resolveModel(name string) (toolchain.Model, toolchain.Toolset, error) {
	resolved := w.Cfg.ResolveModel(name)
	ts, ok := w.mapping[resolved]
	if !ok {
		return toolchain.Model{}, nil, errs.New(errs.DomainConfig, "unknown-model", "build model '%s' is not provided by any enabled toolset", resolved)
	}
	for _, m := range ts.SupportedModels() {
		if m.Name == resolved {
			return m, ts, nil
		}
	}
	return toolchain.Model{}, nil, errs.New(errs.DomainConfig, "unknown-model", "toolset '%s' does not define model '%s'", ts.ToolsetName(), resolved)
}

// buildModule compiles node's sources (bounded parallel), then
// archives/links them (sequenced after every compile succeeds, §5).
func (w *Workflow) buildModule(ctx context.Context, cache *Cache, node *moduleNode, ts toolchain.Toolset, model toolchain.Model, opts Options) ([]buildart.Artifact, error) {
	objDir := w.Layout.ObjDirFor(model.Name, opts.Config, node.moduleName)
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "mkdir-failed", "creating object directory '%s'", objDir)
	}

	sources, err := ResolveSources(node.desc, node.dir, model.PlatformName, model.ArchitectureABI)
	if err != nil {
		return nil, err
	}

	includeDirs := description.ResolveList(node.desc, grammar.KeyIncDirList, model.PlatformName, model.ArchitectureABI)
	asmIncludeDirs := description.ResolveList(node.desc, grammar.KeyAsmIncDirList, model.PlatformName, model.ArchitectureABI)
	definitions := description.ResolveList(node.desc, grammar.KeyDefinitionsList, model.PlatformName, model.ArchitectureABI)
	asmDefinitions := description.ResolveList(node.desc, grammar.KeyAsmDefinitionsList, model.PlatformName, model.ArchitectureABI)

	objNames := make([]string, 0, len(sources))
	actions := make([]toolchain.Action, len(sources))
	for i, src := range sources {
		objNames = append(objNames, src.ObjName)
		req := toolchain.CompileRequest{
			Desc:        node.desc,
			SourcePath:  src.Path,
			ObjDir:      objDir,
			ObjName:     src.ObjName,
			Model:       model,
			Config:      opts.Config,
			ProjectRoot: w.ProjectRoot,
		}
		var action toolchain.Action
		var err error
		switch src.Kind {
		case sourceCPP:
			req.IncludeDirs, req.Definitions = includeDirs, definitions
			action, err = ts.CreateCppBuildAction(req)
		case sourceC:
			req.IncludeDirs, req.Definitions = includeDirs, definitions
			action, err = ts.CreateCBuildAction(req)
		case sourceASM:
			req.IncludeDirs, req.Definitions = asmIncludeDirs, asmDefinitions
			action, err = ts.CreateAsmBuildAction(req)
		}
		if err != nil {
			return nil, err
		}
		actions[i] = action
	}

	if err := w.runCompiles(ctx, actions, opts.Force); err != nil {
		return nil, err
	}

	libNames := transitiveLibNames(cache, node)
	prebuilt := description.ResolveList(node.desc, grammar.KeyPrebuiltLibList, model.PlatformName, model.ArchitectureABI)

	var linkAction toolchain.Action
	switch node.moduleType {
	case grammar.ModuleTypeLibStatic:
		linkAction, err = ts.CreateLibStaticLinkAction(toolchain.StaticLinkRequest{
			Desc: node.desc, LibDir: w.Layout.LibDirFor(model.Name, opts.Config),
			ObjDir: objDir, ObjNames: objNames, Model: model, Config: opts.Config, ProjectRoot: w.ProjectRoot,
		})
	case grammar.ModuleTypeLibShared:
		linkAction, err = ts.CreateLibSharedLinkAction(toolchain.SharedLinkRequest{
			Desc: node.desc, SharedLibDir: w.Layout.SharedDirFor(model.Name, opts.Config),
			LibDir: w.Layout.LibDirFor(model.Name, opts.Config), ObjDir: objDir, ObjNames: objNames,
			Model: model, Config: opts.Config, DependencyLibs: libNames, PrebuiltLibs: prebuilt, ProjectRoot: w.ProjectRoot,
		})
	case grammar.ModuleTypeExecutable:
		linkAction, err = ts.CreateExeLinkAction(toolchain.ExeLinkRequest{
			Desc: node.desc, ExeDir: w.Layout.ExeDirFor(model.Name, opts.Config),
			SharedLibDir: w.Layout.SharedDirFor(model.Name, opts.Config), LibDir: w.Layout.LibDirFor(model.Name, opts.Config),
			ObjDir: objDir, ObjNames: objNames, Model: model, Config: opts.Config,
			DependencyLibs: libNames, PrebuiltLibs: prebuilt, ProjectRoot: w.ProjectRoot,
		})
	}
	if err != nil {
		return nil, err
	}

	if opts.Force || !linkAction.IsUpToDate() {
		if err := linkAction.Execute(ctx, nil); err != nil {
			return nil, err
		}
	}
	return linkAction.Artifacts(), nil
}

// buildCatalogModule assembles a zip-file or composite module's catalog
// into a zip archive (§4.8, §12 "composite module kind and spec-file
// catalog"). zip-file is architecture-independent (grammar.NoArchModuleTypes)
// and publishes once under output/dist; composite packages a per-model
// build output and publishes under output/composite/<model>/<config>.
func (w *Workflow) buildCatalogModule(ctx context.Context, node *moduleNode, model toolchain.Model, opts Options) ([]buildart.Artifact, error) {
	outDir := w.Layout.DistDirFor()
	if node.moduleType == grammar.ModuleTypeComposite {
		outDir = w.Layout.CompositeDirFor(model.Name, opts.Config)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "mkdir-failed", "creating '%s'", outDir)
	}
	vars := grammar.ProjectRootVars(w.ProjectRoot)
	action, err := catalog.NewZipAction(node.desc, outDir, vars)
	if err != nil {
		return nil, err
	}
	if opts.Force || !action.IsUpToDate() {
		if err := action.Execute(ctx, nil); err != nil {
			return nil, err
		}
	}
	return action.Artifacts(), nil
}

// buildDownloadModule fetches and extracts a download module's
// download_list entries (§12 "download module kind"). download is
// architecture-independent (grammar.NoArchModuleTypes), so its output is
// shared across every model/config.
func (w *Workflow) buildDownloadModule(ctx context.Context, node *moduleNode, opts Options) ([]buildart.Artifact, error) {
	outDir := w.Layout.DownloadDirFor(node.moduleName)
	action, err := download.NewAction(node.desc, outDir)
	if err != nil {
		return nil, err
	}
	if opts.Force || !action.IsUpToDate() {
		if err := action.Execute(ctx, nil); err != nil {
			return nil, err
		}
	}
	return action.Artifacts(), nil
}

// runCompiles runs actions up to MaxParallelCompiles at a time. On the
// first failure no new compiles are started, but in-flight ones are
// awaited rather than killed, and the original failure is what's returned
// (§5 "on first compile failure... reports the original failure").
func (w *Workflow) runCompiles(ctx context.Context, actions []toolchain.Action, force bool) error {
	sem := make(chan struct{}, MaxParallelCompiles)
	var wg sync.WaitGroup
	errCh := make(chan error, len(actions))
	var failed atomic.Bool

	for _, action := range actions {
		if !force && action.IsUpToDate() {
			continue
		}
		action := action
		sem <- struct{}{}
		if failed.Load() {
			<-sem
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := action.Execute(ctx, nil); err != nil {
				failed.Store(true)
				errCh <- fmt.Errorf("%s: %w", action.Describe(), err)
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var first error
	for err := range errCh {
		if first == nil {
			first = err
		}
	}
	return first
}

// transitiveLibNames resolves node's full lib-static/lib-shared dependency
// closure to bare library names for the linker's -l flags (gccfamily
// link.go consumes DependencyLibs as names, not paths).
func transitiveLibNames(cache *Cache, node *moduleNode) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(n *moduleNode)
	walk = func(n *moduleNode) {
		for _, dir := range n.libDeps {
			key := filepath.Clean(dir)
			if seen[key] {
				continue
			}
			seen[key] = true
			dep, ok := cache.nodes[key]
			if !ok {
				continue
			}
			names = append(names, dep.moduleName)
			walk(dep)
		}
	}
	walk(node)
	return names
}

// invokePostBuild runs node's post_build extension, if any, after its
// artifacts are produced (§4.7).
func (w *Workflow) invokePostBuild(ctx context.Context, node *moduleNode, model toolchain.Model, opts Options) error {
	extDir := node.desc.Get(grammar.KeyPostBuild).String()
	if extDir == "" {
		return nil
	}
	if !filepath.IsAbs(extDir) {
		extDir = filepath.Join(node.dir, extDir)
	}
	loader := description.NewLoader(w.ProjectRoot)
	extDesc, err := loader.LoadExtension(extDir, []string{node.dir})
	if err != nil {
		return err
	}
	e, err := ext.Load(extDesc)
	if err != nil {
		return err
	}
	objDir := w.Layout.ObjDirFor(model.Name, opts.Config, node.moduleName)
	vars := ext.StandardVars(model.PlatformName, node.dir, objDir, node.dir)
	env := map[string]string{}
	if w.Cfg.NativeModels != config.NativeModelsDisabled {
		// The extension runs under the model actually being built, and
		// that model's name is passed in the environment whenever
		// native-model support is enabled. The remap computed in Run is
		// not passed, and no native-model build of a dependency is made.
		env[ext.NativeModelEnvVar] = model.Name
	}
	return e.Invoke(ctx, node.dir, vars, env)
}

// publish copies every public artifact into output/public, grouped by kind
// (§5/§6 "executables and DLLs together, static and import libs together").
func (w *Workflow) publish(result *RunResult) error {
	binDir := filepath.Join(w.Layout.Public, "bin")
	libDir := filepath.Join(w.Layout.Public, "lib")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "mkdir-failed", "creating '%s'", binDir)
	}
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "mkdir-failed", "creating '%s'", libDir)
	}
	opts := copy.Options{PermissionControl: copy.PerservePermission}

	for _, arts := range result.Artifacts {
		for _, a := range arts {
			if !a.IsPublic() || a.IsNativeOnly() {
				continue
			}
			var dst string
			switch a.Kind {
			case buildart.KindExecutable, buildart.KindSharedLib:
				dst = filepath.Join(binDir, filepath.Base(a.Path))
			case buildart.KindStaticLib:
				dst = filepath.Join(libDir, filepath.Base(a.Path))
			default:
				continue
			}
			if err := copy.Copy(a.Path, dst, opts); err != nil {
				return errs.Wrap(err, errs.DomainBuild, "publish-failed", "copying '%s' to '%s'", a.Path, dst)
			}
		}
	}
	return nil
}

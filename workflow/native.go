package workflow

import (
	"runtime"

	"github.com/bitswalk/minibuild/config"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/logs"
	"github.com/bitswalk/minibuild/toolchain"
)

// ToolsetModelsMapping maps a model name to the toolset that supports it, as
// built by the engine from the project config's enabled toolset sections
// (script_main.py's toolset_models_mapping).
type ToolsetModelsMapping map[string]toolchain.Toolset

func (m ToolsetModelsMapping) model(name string) (toolchain.Model, bool) {
	ts, ok := m[name]
	if !ok {
		return toolchain.Model{}, false
	}
	for _, mod := range ts.SupportedModels() {
		if mod.Name == name {
			return mod, true
		}
	}
	return toolchain.Model{}, false
}

// AutoEvalNativeModel ports script_main.py's auto_eval_native_model: absent
// explicit config, pick the model that represents "build for the machine
// minibuild itself is running on" (§4.6 last paragraph).
//
// It tries, in order: the used model itself if native; the x86 model of a
// 64-bit Windows host running a 32-bit toolset (win32-on-win64 compat);
// any native model from the used model's own toolset; then, failing that,
// the unique native model across every enabled toolset. A clash of more
// than one candidate, or no candidate at all when required, is an error;
// otherwise native-model support is silently disabled.
func AutoEvalNativeModel(usedModelName string, mapping ToolsetModelsMapping, required bool, log *logs.Logger) (string, error) {
	usedToolset, ok := mapping[usedModelName]
	if !ok {
		return "", errs.New(errs.DomainGraph, "unknown-model", "model '%s' is not provided by any enabled toolset", usedModelName)
	}
	usedModel, ok := mapping.model(usedModelName)
	if !ok {
		return "", errs.New(errs.DomainGraph, "unknown-model", "toolset '%s' does not define model '%s'", usedToolset.ToolsetName(), usedModelName)
	}

	if usedModel.Native {
		if log != nil {
			log.Debug("model resolved as native", "model", usedModelName)
		}
		return usedModelName, nil
	}
	if runtime.GOOS == "windows" && runtime.GOARCH == "amd64" {
		if usedModel.PlatformName == grammar.PlatformWindows && usedModel.ArchitectureABI == grammar.ArchX86 {
			if log != nil {
				log.Debug("model resolved as native due to Windows specifics", "model", usedModelName)
			}
			return usedModelName, nil
		}
	}

	for _, mod := range usedToolset.SupportedModels() {
		if mod.Native {
			if log != nil {
				log.Debug("model resolved as native, taken directly from used toolset", "model", mod.Name, "toolset", usedToolset.ToolsetName())
			}
			return mod.Name, nil
		}
	}

	var nativeAll, nativeSameToolset []string
	for name, ts := range mapping {
		mod, ok := mapping.model(name)
		if !ok || !mod.Native {
			continue
		}
		nativeAll = append(nativeAll, name)
		if ts.ToolsetName() == usedToolset.ToolsetName() {
			nativeSameToolset = append(nativeSameToolset, name)
		}
	}
	candidates := nativeSameToolset
	if len(candidates) == 0 {
		candidates = nativeAll
	}

	switch len(candidates) {
	case 0:
		if required {
			return "", errs.New(errs.DomainGraph, "no-native-model", "cannot detect any build model to be treated as native for this platform")
		}
		return "", nil
	case 1:
		if log != nil {
			log.Debug("model resolved as native", "model", candidates[0])
		}
		return candidates[0], nil
	default:
		if required {
			return "", errs.New(errs.DomainGraph, "native-model-clash", "got clash of native models, possible variants: %s", joinComma(candidates))
		}
		if log != nil {
			log.Debug("disabling native model support due to clash of possible variants", "variants", joinComma(candidates))
		}
		return "", nil
	}
}

// EvalNativeModelFromConfig ports eval_native_model_from_config: resolve the
// [MINIBUILD-NATIVE] <platform>-<arch> entry, which may itself request
// auto-detection (disabled/optional/auto) or name a model explicitly.
func EvalNativeModelFromConfig(usedModelName string, mapping ToolsetModelsMapping, cfg *config.ProjectConfig, sysPlatform, sysArch string, log *logs.Logger) (string, error) {
	platformTag := sysPlatform + "-" + sysArch
	remap, ok := cfg.NativeByPlatformArch[platformTag]
	if !ok || remap == "" {
		return "", errs.New(errs.DomainConfig, "missing-native-entry", "malformed project config file: option not found at 'MINIBUILD-NATIVE/%s'", platformTag)
	}
	switch config.NativeModelsMode(remap) {
	case config.NativeModelsDisabled:
		if log != nil {
			log.Debug("project configuration disables native model support")
		}
		return "", nil
	case config.NativeModelsOptional, config.NativeModelsAuto:
		required := config.NativeModelsMode(remap) == config.NativeModelsAuto
		return AutoEvalNativeModel(usedModelName, mapping, required, log)
	}
	if _, ok := mapping[remap]; !ok {
		return "", errs.New(errs.DomainConfig, "unknown-native-model",
			"malformed project config file: got unknown model '%s' at 'MINIBUILD-NATIVE/%s'", remap, platformTag)
	}
	if log != nil {
		log.Debug("model configured as native", "model", remap)
	}
	return remap, nil
}

// EvalNativeModel ports eval_native_model, the top-level entry point
// create_build_workflow calls: dispatch on the project's native-models
// policy ([MINIBUILD] native-models).
func EvalNativeModel(usedModelName string, mapping ToolsetModelsMapping, cfg *config.ProjectConfig, sysPlatform, sysArch string, log *logs.Logger) (string, error) {
	switch cfg.NativeModels {
	case config.NativeModelsDisabled, "":
		if log != nil {
			log.Debug("project configuration disables native model support")
		}
		return "", nil
	case config.NativeModelsConfig:
		return EvalNativeModelFromConfig(usedModelName, mapping, cfg, sysPlatform, sysArch, log)
	default:
		required := cfg.NativeModels == config.NativeModelsAuto
		return AutoEvalNativeModel(usedModelName, mapping, required, log)
	}
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

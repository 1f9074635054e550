// Package config reads the project config file (minibuild.ini, §6): the
// enabled toolsets per platform, the native-model policy, model aliases and
// defaults, and each toolset section's own restricted config dict.
package config

import (
	"strings"

	"gopkg.in/ini.v1"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/internal/errs"
)

// NativeModelsMode is the [MINIBUILD] native-models policy (§6).
type NativeModelsMode string

const (
	NativeModelsDisabled NativeModelsMode = "disabled"
	NativeModelsOptional NativeModelsMode = "optional"
	NativeModelsAuto     NativeModelsMode = "auto"
	NativeModelsConfig   NativeModelsMode = "config"
)

// ToolsetSection is one [<toolset-id>] section: the toolset module it
// instantiates (gcc, clang, msvs, ...) and its own config dict, a
// restricted dictionary literal evaluated with no builtins (§6).
type ToolsetSection struct {
	ID     string
	Module string
	Config map[string]string
}

// ProjectConfig is the parsed, validated minibuild.ini (§6).
type ProjectConfig struct {
	ProjectRoot string
	// ToolsetsByPlatform maps platform name to its space-separated list of
	// enabled toolset section ids ([MINIBUILD] toolset-<platform>).
	ToolsetsByPlatform map[string][]string
	NativeModels       NativeModelsMode
	// NativeByPlatformArch is [MINIBUILD-NATIVE] <platform>-<arch> = model,
	// consulted when NativeModels == NativeModelsConfig.
	NativeByPlatformArch map[string]string
	// Aliases maps an alias name to the model name it stands for
	// ([MINIBUILD-ALIAS]).
	Aliases map[string]string
	// DefaultByPlatformArch is [MINIBUILD-DEFAULT] <platform>-<arch> = model.
	DefaultByPlatformArch map[string]string
	Toolsets              map[string]*ToolsetSection
}

const (
	sectionMinibuild        = "MINIBUILD"
	sectionMinibuildNative  = "MINIBUILD-NATIVE"
	sectionMinibuildAlias   = "MINIBUILD-ALIAS"
	sectionMinibuildDefault = "MINIBUILD-DEFAULT"
	keyNativeModels         = "native-models"
	toolsetKeyPrefix        = "toolset-"
)

// Load reads and validates the project config at fname.
func Load(fname, projectRoot string) (*ProjectConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: false}, fname)
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainConfig, "parse-failed", "reading project config '%s'", fname)
	}

	cfg := &ProjectConfig{
		ProjectRoot:           projectRoot,
		ToolsetsByPlatform:    map[string][]string{},
		NativeByPlatformArch:  map[string]string{},
		Aliases:               map[string]string{},
		DefaultByPlatformArch: map[string]string{},
		Toolsets:              map[string]*ToolsetSection{},
	}

	if main := f.Section(sectionMinibuild); main != nil {
		for _, key := range main.Keys() {
			name := key.Name()
			if strings.HasPrefix(name, toolsetKeyPrefix) {
				platform := strings.TrimPrefix(name, toolsetKeyPrefix)
				cfg.ToolsetsByPlatform[platform] = strings.Fields(key.Value())
			} else if name == keyNativeModels {
				cfg.NativeModels = NativeModelsMode(key.Value())
			}
		}
	}
	switch cfg.NativeModels {
	case "", NativeModelsDisabled, NativeModelsOptional, NativeModelsAuto, NativeModelsConfig:
	default:
		return nil, errs.New(errs.DomainConfig, "bad-native-models", "native-models value '%s' not in {disabled, optional, auto, config}", cfg.NativeModels)
	}
	if cfg.NativeModels == "" {
		cfg.NativeModels = NativeModelsDisabled
	}

	if sec := f.Section(sectionMinibuildNative); sec != nil {
		for _, key := range sec.Keys() {
			cfg.NativeByPlatformArch[key.Name()] = key.Value()
		}
	}
	if sec := f.Section(sectionMinibuildAlias); sec != nil {
		for _, key := range sec.Keys() {
			cfg.Aliases[key.Name()] = key.Value()
		}
	}
	if sec := f.Section(sectionMinibuildDefault); sec != nil {
		for _, key := range sec.Keys() {
			cfg.DefaultByPlatformArch[key.Name()] = key.Value()
		}
	}

	reserved := map[string]bool{
		sectionMinibuild: true, sectionMinibuildNative: true,
		sectionMinibuildAlias: true, sectionMinibuildDefault: true,
		ini.DefaultSection: true,
	}
	for _, sec := range f.Sections() {
		if reserved[sec.Name()] {
			continue
		}
		ts, err := parseToolsetSection(sec)
		if err != nil {
			return nil, err
		}
		cfg.Toolsets[ts.ID] = ts
	}

	if err := cfg.validateToolsetRefs(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseToolsetSection(sec *ini.Section) (*ToolsetSection, error) {
	ts := &ToolsetSection{ID: sec.Name(), Config: map[string]string{}}
	if sec.HasKey("module") {
		ts.Module = sec.Key("module").Value()
	}
	if ts.Module == "" {
		return nil, errs.New(errs.DomainConfig, "missing-module", "toolset section '%s' is missing required key 'module'", sec.Name())
	}
	if sec.HasKey("config") {
		raw := sec.Key("config").Value()
		dict, err := description.ParseConfigDict(raw)
		if err != nil {
			return nil, errs.Wrap(err, errs.DomainConfig, "bad-config-dict", "toolset section '%s' config", sec.Name())
		}
		ts.Config = dict
	}
	return ts, nil
}

// validateToolsetRefs ensures every toolset-<platform> entry names a
// section that actually exists, and rejects an alias that names itself.
// Default-model entries and clashes between toolsets' model names are not
// checked here.
func (c *ProjectConfig) validateToolsetRefs() error {
	for platform, ids := range c.ToolsetsByPlatform {
		for _, id := range ids {
			if _, ok := c.Toolsets[id]; !ok {
				return errs.New(errs.DomainConfig, "unknown-toolset", "platform '%s' references unknown toolset section '%s'", platform, id)
			}
		}
	}
	for alias, model := range c.Aliases {
		if alias == model {
			return errs.New(errs.DomainConfig, "alias-clash", "alias '%s' cannot name itself", alias)
		}
	}
	return nil
}

// ResolveModel expands name through the alias table, returning the model
// name unchanged if it is not an alias.
func (c *ProjectConfig) ResolveModel(name string) string {
	if m, ok := c.Aliases[name]; ok {
		return m
	}
	return name
}

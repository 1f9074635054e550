// Package genbconf generates a project's minibuild.ini from a
// "#pragma"-annotated prototype file (§6 "minibuild.ini can be generated
// from a checked-in prototype"), ported from gen_bconf.py. The companion
// `minibuild genconfig` CLI subcommand is the usual entry point.
package genbconf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bitswalk/minibuild/config"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/logs"
	"github.com/bitswalk/minibuild/toolchain"
)

// toolsetRequest is one "#pragma os:<platform> toolset module=<id> ..."
// directive, carrying its own (already module-key-stripped) config options
// and optional model-alias token text.
type toolsetRequest struct {
	lineNo    int
	moduleID  string
	config    map[string]string
	aliasText string
}

// Generate regenerates destFile from protoFile unless destFile exists and
// its stamp file is no older than protoFile, mirroring
// generate_build_config's mtime short-circuit.
func Generate(protoFile, destFile, sysPlatform, sysArch string, registry *toolchain.Registry, verbose bool, log *logs.Logger) error {
	stampFile := strings.TrimSuffix(destFile, filepath.Ext(destFile)) + ".stamp"
	if upToDate(protoFile, stampFile, destFile) {
		if verbose && log != nil {
			log.Debug("config prototype unchanged, skipping regeneration", "proto", protoFile)
		}
		return nil
	}
	if err := generateImp(protoFile, destFile, sysPlatform, sysArch, registry, verbose, log); err != nil {
		return err
	}
	if err := os.WriteFile(stampFile, nil, 0o644); err != nil {
		return errs.Wrap(err, errs.DomainConfig, "stamp-write-failed", "writing stamp file '%s'", stampFile)
	}
	return nil
}

func upToDate(protoFile, stampFile, destFile string) bool {
	protoInfo, err := os.Stat(protoFile)
	if err != nil {
		return false
	}
	stampInfo, errS := os.Stat(stampFile)
	_, errD := os.Stat(destFile)
	if errS != nil || errD != nil {
		return false
	}
	return !stampInfo.ModTime().Before(protoInfo.ModTime())
}

func generateImp(protoFile, destFile, sysPlatform, sysArch string, registry *toolchain.Registry, verbose bool, log *logs.Logger) error {
	pragmas, err := loadPragmas(protoFile)
	if err != nil {
		return err
	}

	var nasmExecutable string
	nativeModelMode := config.NativeModelsOptional
	var nativeModelValue string
	var defaultModelsArchOrder []string
	defaultModelsPerArch := map[string]string{}
	archSubstitutions := map[string]string{"sys": sysArch}
	var requests []*toolsetRequest

	for _, p := range pragmas {
		if p.os != sysPlatform && p.os != "all" {
			continue
		}
		switch p.token {
		case pragmaNASM:
			if exe, ok := p.options["executable"]; ok {
				nasmExecutable = exe
				if verbose && log != nil {
					log.Debug("pragma nasm executable", "line", p.lineNo, "executable", exe)
				}
			}
		case pragmaNative:
			model, ok := p.options["model"]
			if !ok || model == "" {
				return errs.New(errs.DomainConfig, "bad-pragma", "instruction #pragma at line: %d, token 'model' not given", p.lineNo)
			}
			switch config.NativeModelsMode(model) {
			case config.NativeModelsDisabled, config.NativeModelsOptional, config.NativeModelsAuto:
				nativeModelMode = config.NativeModelsMode(model)
			default:
				nativeModelMode = config.NativeModelsConfig
				nativeModelValue = model
			}
		case pragmaToolset:
			moduleID, ok := p.options["module"]
			if !ok || moduleID == "" {
				return errs.New(errs.DomainConfig, "bad-pragma", "instruction #pragma at line: %d, token 'module' not given", p.lineNo)
			}
			opts := map[string]string{}
			for k, v := range p.options {
				if k == "module" || k == "alias" {
					continue
				}
				opts[k] = v
			}
			requests = append(requests, &toolsetRequest{
				lineNo: p.lineNo, moduleID: moduleID, config: opts, aliasText: p.options["alias"],
			})
		case pragmaDefaultModels:
			if p.os == "all" {
				return errs.New(errs.DomainConfig, "bad-pragma", "instruction #pragma at line: %d, token 'model' must be OS specific", p.lineNo)
			}
			model, ok := p.options["model"]
			if !ok || model == "" {
				return errs.New(errs.DomainConfig, "bad-pragma", "instruction #pragma at line: %d, token 'model' not given", p.lineNo)
			}
			archList, perArch, err := parseArchTokens(model, grammar.AllArches, archSubstitutions)
			if err != nil {
				return err
			}
			if verbose && log != nil {
				log.Debug("pragma default models", "line", p.lineNo, "value", model)
			}
			defaultModelsArchOrder = archList
			defaultModelsPerArch = perArch
		}
	}

	if len(requests) == 0 {
		return errs.New(errs.DomainConfig, "no-toolsets", "config prototype '%s' gives no #pragma toolset instructions for platform '%s'", protoFile, sysPlatform)
	}

	var toolsetIDs []string
	seenToolsetID := map[string]int{}
	aliasesMapping := map[string]string{}
	var sectionBlocks []string

	for _, req := range requests {
		conf := map[string]string{}
		for k, v := range req.config {
			conf[k] = v
		}
		if nasmExecutable != "" {
			if _, has := conf["nasm_executable"]; !has {
				conf["nasm_executable"] = nasmExecutable
			}
		}

		ts, err := registry.Create(req.moduleID, conf)
		if err != nil {
			return errs.Wrap(err, errs.DomainConfig, "toolset-init-failed", "instruction #pragma at line %d, toolset module '%s'", req.lineNo, req.moduleID)
		}
		toolsetID := ts.ToolsetName()
		if prevLine, dup := seenToolsetID[toolsetID]; dup {
			return errs.New(errs.DomainConfig, "toolset-conflict",
				"instruction #pragma at line %d, i.e. toolset '%s', conflicts with already registered toolset at line %d", req.lineNo, toolsetID, prevLine)
		}
		seenToolsetID[toolsetID] = req.lineNo
		toolsetIDs = append(toolsetIDs, toolsetID)

		if verbose && log != nil {
			log.Debug("pragma toolset", "line", req.lineNo, "id", toolsetID, "module", req.moduleID)
		}

		modelsPerArch := map[string]string{}
		for _, m := range ts.SupportedModels() {
			modelsPerArch[m.ArchitectureABI] = m.Name
		}
		if req.aliasText != "" {
			archList, aliasPerArch, err := parseArchTokens(req.aliasText, grammar.AllArches, archSubstitutions)
			if err != nil {
				return err
			}
			for _, arch := range archList {
				modelName, ok := modelsPerArch[arch]
				if !ok {
					continue
				}
				aliasesMapping[aliasPerArch[arch]] = modelName
			}
		}

		sectionBlocks = append(sectionBlocks, "", "["+toolsetID+"]", "module = "+req.moduleID)
		if len(conf) > 0 {
			sectionBlocks = append(sectionBlocks, "config = "+dictLiteral(conf))
		}
	}

	var out []string
	out = append(out,
		"["+sectionMain+"]",
		fmt.Sprintf("toolset-%s = %s", sysPlatform, strings.Join(toolsetIDs, " ")),
		fmt.Sprintf("native-models = %s", nativeModelMode),
	)

	if nativeModelMode == config.NativeModelsConfig {
		out = append(out, "", "["+sectionNative+"]", fmt.Sprintf("%s-%s = %s", sysPlatform, sysArch, nativeModelValue))
	}

	if len(aliasesMapping) > 0 {
		out = append(out, "", "["+sectionAlias+"]")
		keys := make([]string, 0, len(aliasesMapping))
		for k := range aliasesMapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, alias := range keys {
			out = append(out, fmt.Sprintf("%s = %s", alias, aliasesMapping[alias]))
		}
	}

	if len(defaultModelsArchOrder) > 0 {
		out = append(out, "", "["+sectionDefault+"]")
		for _, arch := range defaultModelsArchOrder {
			out = append(out, fmt.Sprintf("%s-%s = %s", sysPlatform, arch, defaultModelsPerArch[arch]))
		}
	}

	out = append(out, sectionBlocks...)

	body := strings.Join(out, "\n") + "\n"
	if err := os.WriteFile(destFile, []byte(body), 0o644); err != nil {
		return errs.Wrap(err, errs.DomainConfig, "write-failed", "writing generated config '%s'", destFile)
	}
	if verbose && log != nil {
		log.Info("config generated", "file", destFile)
	}
	return nil
}

const (
	sectionMain    = "MINIBUILD"
	sectionNative  = "MINIBUILD-NATIVE"
	sectionAlias   = "MINIBUILD-ALIAS"
	sectionDefault = "MINIBUILD-DEFAULT"
)

// dictLiteral renders conf as the dict literal
// description.ParseConfigDict expects ({"key": "value", ...}, each string
// double-quoted by strconv.Quote, keys sorted for reproducible output).
func dictLiteral(conf map[string]string) string {
	keys := make([]string, 0, len(conf))
	for k := range conf {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(k))
		b.WriteString(": ")
		b.WriteString(strconv.Quote(conf[k]))
	}
	b.WriteByte('}')
	return b.String()
}

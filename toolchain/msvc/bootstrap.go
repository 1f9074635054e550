// Package msvc implements the toolchain.Toolset for Microsoft's compiler
// family (cl/link/lib/mt), grounded on
// original_source/minibuild/toolset_msvs.py, plus the one-time environment
// bootstrap spec §4.5 describes (delta-capturing a vendor batch script's
// environment additions instead of re-invoking it on every build).
package msvc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
)

// versionCommonTools maps an MSVC marketing version to the environment
// variable its installer publishes, mirroring MSVS_VERSIONS_MAPPING.
var versionCommonTools = map[string]string{
	"2005": "VS80COMNTOOLS",
	"2008": "VS90COMNTOOLS",
	"2013": "VS120COMNTOOLS",
	"2015": "VS140COMNTOOLS",
	"2017": "VS150COMNTOOLS",
	"2019": "VS160COMNTOOLS",
	"2022": "VS170COMNTOOLS",
}

// EnvPatch is one variable's delta relative to the host environment: a
// scalar replacement, or (for PATH) a list of directories to prepend.
type EnvPatch struct {
	Scalar string   `json:"scalar,omitempty"`
	Paths  []string `json:"paths,omitempty"`
}

// Bootstrap is the resolved compiler environment for one (version, arch)
// pair: the cl.exe path and the environment delta to merge into every
// subprocess this toolset spawns.
type Bootstrap struct {
	ClPath   string              `json:"cl_path"`
	EnvPatch map[string]EnvPatch `json:"env_patch"`
}

const envDumpBatch = "@echo off\r\ncall \"%s\" 1>nul 2>nul\r\nset\r\n"

// InitBootstrap resolves (or loads from cache) the MSVC environment for
// version (e.g. "2015") and arch ("x86" or "x86_64"), mirroring
// init_msvs_toolset's cache-stamp short-circuit.
func InitBootstrap(bootstrapDir, version, arch string) (*Bootstrap, error) {
	cacheDir := filepath.Join(bootstrapDir, "msvc-"+version+"-"+arch)
	stampFile := filepath.Join(cacheDir, "init.stamp")
	cacheFile := filepath.Join(cacheDir, "bootstrap.json")

	if paths.Exists(stampFile) {
		raw, err := os.ReadFile(cacheFile)
		if err != nil {
			return nil, errs.Wrap(err, errs.DomainBuild, "bootstrap-cache-read-failed", "reading %s", cacheFile)
		}
		var b Bootstrap
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, errs.Wrap(err, errs.DomainBuild, "bootstrap-cache-corrupt", "parsing %s", cacheFile)
		}
		return &b, nil
	}

	batch, err := locateVarsBatch(version, arch)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirPath(cacheDir); err != nil {
		return nil, err
	}

	wrapperPath := filepath.Join(cacheDir, "vars_dump_"+arch+".bat")
	if err := os.WriteFile(wrapperPath, []byte(fmt.Sprintf(envDumpBatch, batch)), 0o644); err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "bootstrap-wrapper-write-failed", "writing %s", wrapperPath)
	}

	dump, err := exec.Command("cmd", "/c", wrapperPath).Output()
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "bootstrap-exec-failed", "running %s", wrapperPath)
	}

	b, err := diffEnvironment(string(dump))
	if err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "bootstrap-diff-failed", "diffing environment for MSVC %s/%s", version, arch)
	}

	raw, err := json.MarshalIndent(b, "", "    ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(cacheFile, raw, 0o644); err != nil {
		return nil, errs.Wrap(err, errs.DomainBuild, "bootstrap-cache-write-failed", "writing %s", cacheFile)
	}
	if f, err := os.Create(stampFile); err == nil {
		f.Close()
	}
	return b, nil
}

// locateVarsBatch resolves the 32-bit or 64-bit vendor setup batch for
// version: vsvars32.bat for x86, vcvarsamd64.bat for x86_64, mirroring
// init_msvs_toolset's resolution. vcvarsx86_amd64.bat is not tried.
func locateVarsBatch(version, arch string) (string, error) {
	envVar, ok := versionCommonTools[version]
	if !ok {
		return "", errs.New(errs.DomainBuild, "unknown-msvc-version", "unknown MSVC version: '%s'", version)
	}
	commonToolsDir := os.Getenv(envVar)
	if commonToolsDir == "" {
		if dir, ok := vsCommonToolsFromRegistry(version); ok {
			commonToolsDir = dir
		}
	}
	if commonToolsDir == "" {
		return "", errs.New(errs.DomainBuild, "msvc-env-missing",
			"cannot bootstrap MSVC(%s): variable '%s' not found in environment", version, envVar)
	}

	var batch string
	switch arch {
	case "x86":
		batch = filepath.Join(commonToolsDir, "vsvars32.bat")
	case "x86_64":
		batch = filepath.Join(commonToolsDir, "..", "..", "VC", "bin", "amd64", "vcvarsamd64.bat")
	default:
		return "", errs.New(errs.DomainBuild, "unsupported-msvc-arch", "unsupported MSVC arch: '%s'", arch)
	}
	if !paths.IsFile(batch) {
		return "", errs.New(errs.DomainBuild, "msvc-batch-missing",
			"cannot bootstrap MSVC(%s): file '%s' not found", version, batch)
	}
	return batch, nil
}

// diffEnvironment parses a `set` dump of a subshell's environment and
// retains only what the vendor batch actually added or changed, mirroring
// get_cl_and_envmap_from_dump / get_path_difference.
func diffEnvironment(dump string) (*Bootstrap, error) {
	host := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			host[strings.ToUpper(kv[:i])] = kv[i+1:]
		}
	}

	patch := map[string]EnvPatch{}
	var clPath string
	scanner := bufio.NewScanner(strings.NewReader(dump))
	for scanner.Scan() {
		line := scanner.Text()
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		name, value := line[:i], line[i+1:]
		upper := strings.ToUpper(name)
		if upper == "PATH" {
			added := pathDifference(host["PATH"], value)
			patch[name] = EnvPatch{Paths: added}
			if clPath == "" {
				clPath = resolveCompilerPath(added)
			}
			continue
		}
		if hostVal, ok := host[upper]; ok && hostVal == value {
			continue
		}
		patch[name] = EnvPatch{Scalar: value}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if clPath == "" {
		return nil, errs.New(errs.DomainBuild, "cl-not-found", "cannot bootstrap MSVC: cl.exe not found in captured PATH additions")
	}
	return &Bootstrap{ClPath: clPath, EnvPatch: patch}, nil
}

func pathDifference(original, final string) []string {
	origSet := map[string]bool{}
	for _, p := range strings.Split(original, ";") {
		if p != "" {
			origSet[p] = true
		}
	}
	var added []string
	for _, p := range strings.Split(final, ";") {
		if p != "" && !origSet[p] {
			added = append(added, p)
		}
	}
	return added
}

func resolveCompilerPath(candidates []string) string {
	for _, dir := range candidates {
		candidate := filepath.Join(dir, "cl.exe")
		if paths.IsFile(candidate) {
			return candidate
		}
	}
	return ""
}

// Environ merges b's environment patch on top of the host process
// environment, mirroring apply_environ_patch: PATH entries are prepended,
// every other variable is replaced outright.
func (b *Bootstrap) Environ() []string {
	host := os.Environ()
	merged := map[string]string{}
	order := make([]string, 0, len(host))
	for _, kv := range host {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		name := kv[:i]
		merged[strings.ToUpper(name)] = kv[i+1:]
		order = append(order, name)
	}
	seen := map[string]bool{}
	for _, n := range order {
		seen[strings.ToUpper(n)] = true
	}
	for name, p := range b.EnvPatch {
		upper := strings.ToUpper(name)
		if len(p.Paths) > 0 {
			joined := strings.Join(p.Paths, ";")
			if existing, ok := merged[upper]; ok && upper == "PATH" {
				joined = joined + ";" + existing
			}
			merged[upper] = joined
		} else {
			merged[upper] = p.Scalar
		}
		if !seen[upper] {
			order = append(order, name)
			seen[upper] = true
		}
	}
	out := make([]string, 0, len(order))
	for _, n := range order {
		out = append(out, n+"="+merged[strings.ToUpper(n)])
	}
	return out
}

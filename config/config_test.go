package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeIni(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "minibuild.ini")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

func TestLoadBasicConfig(t *testing.T) {
	dir := t.TempDir()
	fname := writeIni(t, dir, `
[MINIBUILD]
toolset-linux = gcc
native-models = auto

[MINIBUILD-ALIAS]
default = linux-x86_64-gcc-release

[gcc]
module = gcc
config = {"cc": "gcc", "cxx": "g++"}
`)
	cfg, err := Load(fname, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.ToolsetsByPlatform["linux"]; len(got) != 1 || got[0] != "gcc" {
		t.Errorf("toolset-linux = %v", got)
	}
	if cfg.NativeModels != NativeModelsAuto {
		t.Errorf("native-models = %q, want auto", cfg.NativeModels)
	}
	ts, ok := cfg.Toolsets["gcc"]
	if !ok {
		t.Fatal("expected toolset section 'gcc'")
	}
	if ts.Module != "gcc" {
		t.Errorf("module = %q", ts.Module)
	}
	if ts.Config["cc"] != "gcc" || ts.Config["cxx"] != "g++" {
		t.Errorf("config dict = %v", ts.Config)
	}
	if got := cfg.ResolveModel("default"); got != "linux-x86_64-gcc-release" {
		t.Errorf("ResolveModel(default) = %q", got)
	}
}

func TestLoadUnknownToolsetReferenceFails(t *testing.T) {
	dir := t.TempDir()
	fname := writeIni(t, dir, `
[MINIBUILD]
toolset-linux = ghost
`)
	_, err := Load(fname, dir)
	if err == nil {
		t.Fatal("expected unknown-toolset error, got nil")
	}
}

func TestLoadInvalidNativeModelsFails(t *testing.T) {
	dir := t.TempDir()
	fname := writeIni(t, dir, `
[MINIBUILD]
native-models = bogus
`)
	_, err := Load(fname, dir)
	if err == nil {
		t.Fatal("expected bad-native-models error, got nil")
	}
}

func TestLoadToolsetMissingModuleFails(t *testing.T) {
	dir := t.TempDir()
	fname := writeIni(t, dir, `
[gcc]
config = {"cc": "gcc"}
`)
	_, err := Load(fname, dir)
	if err == nil {
		t.Fatal("expected missing-module error, got nil")
	}
}

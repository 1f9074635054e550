package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bitswalk/minibuild/grammar"
)

func TestHostPlatformArchKnownCombos(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Skip("unsupported host OS for this test")
	}
	platform, arch, err := hostPlatformArch()
	if err != nil {
		t.Fatalf("hostPlatformArch: %v", err)
	}
	if platform == "" || arch == "" {
		t.Fatalf("hostPlatformArch returned empty platform/arch: %q/%q", platform, arch)
	}
}

func TestResolveProjectRootFindsNearestConfig(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, grammar.ProjectConfigFile), []byte("[MINIBUILD]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := resolveProjectRoot(sub)
	if err != nil {
		t.Fatalf("resolveProjectRoot: %v", err)
	}
	if got != root {
		t.Fatalf("resolveProjectRoot = %q, want %q", got, root)
	}
}

func TestResolveProjectRootErrorsWhenNotFound(t *testing.T) {
	root := t.TempDir()
	if _, err := resolveProjectRoot(root); err == nil {
		t.Fatalf("expected error when no minibuild.ini exists anywhere above %s", root)
	}
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd := rootCmd
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestGenConfigSubcommandGeneratesConfig(t *testing.T) {
	dir := t.TempDir()
	proto := filepath.Join(dir, "minibuild.ini.proto")
	body := "#pragma os:" + hostOSOrSkip(t) + " toolset module=gcc\n"
	if err := os.WriteFile(proto, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	defer func() {
		flagDirectory, flagGenProto, flagGenOutput, flagVerbose = "", "", "", false
	}()
	if _, err := executeRoot(t, "genconfig", "--directory", dir); err != nil {
		t.Fatalf("genconfig: %v", err)
	}
	out := filepath.Join(dir, grammar.ProjectConfigFile)
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected generated config at %s: %v", out, err)
	}
}

// hostOSOrSkip returns the grammar platform tag for the current host,
// skipping the test on unsupported hosts, so the generated prototype's
// os: pragma always matches.
func hostOSOrSkip(t *testing.T) string {
	t.Helper()
	platform, _, err := hostPlatformArch()
	if err != nil {
		t.Skip(err)
	}
	return platform
}

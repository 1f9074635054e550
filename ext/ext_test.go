package ext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
)

func writeExtDesc(t *testing.T, dir, body string) *description.BuildDescription {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, grammar.ExtensionDescriptionFilename), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := description.NewLoader(dir)
	desc, err := loader.LoadExtension(dir, nil)
	if err != nil {
		t.Fatalf("LoadExtension: %v", err)
	}
	return desc
}

func TestLoadValidExtension(t *testing.T) {
	dir := t.TempDir()
	desc := writeExtDesc(t, dir, `
ext_name = 'strip-symbols'
ext_type = 'post-build'
ext_call_type = 'process'
ext_call_cmdline = 'strip ${DIR_HERE}/out.bin'
ext_vars_required = ['DIR_HERE']
`)
	e, err := Load(desc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.Name != "strip-symbols" || e.Type != grammar.ExtTypePostBuild || e.CallType != grammar.ExtCallTypeProcess {
		t.Fatalf("e = %+v, unexpected fields", e)
	}
}

func TestLoadRejectsBadExtType(t *testing.T) {
	dir := t.TempDir()
	desc := writeExtDesc(t, dir, `
ext_name = 'bogus'
ext_type = 'mid-build'
ext_call_type = 'process'
ext_call_cmdline = 'true'
`)
	if _, err := Load(desc); err == nil {
		t.Fatalf("expected error for bad ext_type enum")
	}
}

func TestLoadRejectsBadCallType(t *testing.T) {
	dir := t.TempDir()
	desc := writeExtDesc(t, dir, `
ext_name = 'bogus'
ext_type = 'post-build'
ext_call_type = 'interactive'
ext_call_cmdline = 'true'
`)
	if _, err := Load(desc); err == nil {
		t.Fatalf("expected error for bad ext_call_type enum")
	}
}

func TestLoadRejectsMissingCmdline(t *testing.T) {
	dir := t.TempDir()
	desc := writeExtDesc(t, dir, `
ext_name = 'bogus'
ext_type = 'post-build'
ext_call_type = 'process'
`)
	if _, err := Load(desc); err == nil {
		t.Fatalf("expected error for missing ext_call_cmdline")
	}
}

func TestResolveCmdlineSubstitutesAndChecksRequired(t *testing.T) {
	dir := t.TempDir()
	desc := writeExtDesc(t, dir, `
ext_name = 'pack'
ext_type = 'post-build'
ext_call_type = 'shell'
ext_call_cmdline = 'zip ${DIR_HERE}/x${EXE_SUFFIX}'
ext_vars_required = ['DIR_HERE', 'EXE_SUFFIX']
`)
	e, err := Load(desc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := e.resolveCmdline(map[string]string{"DIR_HERE": "/proj/mod", "EXE_SUFFIX": ".exe"})
	if err != nil {
		t.Fatalf("resolveCmdline: %v", err)
	}
	if want := "zip /proj/mod/x.exe"; got != want {
		t.Fatalf("resolveCmdline = %q, want %q", got, want)
	}
	if _, err := e.resolveCmdline(map[string]string{"DIR_HERE": "/proj/mod"}); err == nil {
		t.Fatalf("expected error for missing required var EXE_SUFFIX")
	}
}

func TestStandardVarsWindowsVsPosix(t *testing.T) {
	win := StandardVars(grammar.PlatformWindows, "/h", "/o", "/s")
	if win[grammar.ExtVarExeSuffix] != ".exe" || win[grammar.ExtVarOSSep] != "\\" {
		t.Fatalf("windows vars = %+v", win)
	}
	posix := StandardVars(grammar.PlatformLinux, "/h", "/o", "/s")
	if posix[grammar.ExtVarExeSuffix] != "" || posix[grammar.ExtVarOSSep] != "/" {
		t.Fatalf("posix vars = %+v", posix)
	}
}

package gccfamily

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/toolchain"
)

func TestNewExeLinkActionBasics(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'executable'
module_name = 'demo'
build_list = ['main.c']
`)
	objDir := filepath.Join(dir, "obj")
	exeDir := filepath.Join(dir, "bin")
	libDir := filepath.Join(dir, "lib")
	os.MkdirAll(objDir, 0o755)
	os.MkdirAll(exeDir, 0o755)
	os.MkdirAll(libDir, 0o755)

	tools := nativeGCCTools()
	req := toolchain.ExeLinkRequest{
		Desc: desc, ExeDir: exeDir, LibDir: libDir, ObjDir: objDir, ObjNames: []string{"main"},
		Model:       toolchain.Model{Name: ModelLinuxX86_64, PlatformName: grammar.PlatformLinux, ArchitectureABI: grammar.ArchX86_64},
		Config:      grammar.ConfigRelease,
		ProjectRoot: dir,
	}
	action, err := NewExeLinkAction(tools, dir, req)
	if err != nil {
		t.Fatalf("NewExeLinkAction: %v", err)
	}
	if got, want := action.Describe(), "demo"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	wantOut := filepath.Join(exeDir, "demo")
	if got := action.Outputs(); len(got) != 1 || got[0] != wantOut {
		t.Fatalf("Outputs() = %v, want [%s]", got, wantOut)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date: binary never produced")
	}
	arts := action.Artifacts()
	if len(arts) != 1 || arts[0].Path != wantOut {
		t.Fatalf("Artifacts() = %v", arts)
	}
}

func TestNewSharedLinkActionDLLNaming(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'lib-shared'
module_name = 'widget'
build_list = ['widget.c']
export = ['widget_init', 'widget_fini']
`)
	objDir := filepath.Join(dir, "obj")
	sharedLibDir := filepath.Join(dir, "shlib")
	libDir := filepath.Join(dir, "lib")
	os.MkdirAll(objDir, 0o755)
	os.MkdirAll(sharedLibDir, 0o755)
	os.MkdirAll(libDir, 0o755)

	tools := nativeGCCTools()
	req := toolchain.SharedLinkRequest{
		Desc: desc, SharedLibDir: sharedLibDir, LibDir: libDir, ObjDir: objDir, ObjNames: []string{"widget"},
		Model:       toolchain.Model{Name: ModelLinuxX86_64, PlatformName: grammar.PlatformLinux, ArchitectureABI: grammar.ArchX86_64},
		Config:      grammar.ConfigRelease,
		ProjectRoot: dir,
	}
	action, err := NewSharedLinkAction(tools, dir, req)
	if err != nil {
		t.Fatalf("NewSharedLinkAction: %v", err)
	}
	if got, want := action.Describe(), "libwidget.so"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	if action.exportMapFile == "" {
		t.Fatalf("expected an export map file to be planned when export list is non-empty")
	}
}

func TestLoadExportListFromDefFile(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "widget.def")
	content := "LIBRARY widget\nEXPORTS\n    widget_init\n    widget_fini @2\n"
	os.WriteFile(defPath, []byte(content), 0o644)

	list, err := loadExportListFromDefFile(defPath, nil, false)
	if err != nil {
		t.Fatalf("loadExportListFromDefFile: %v", err)
	}
	if len(list) != 2 || list[0] != "widget_init" || list[1] != "widget_fini" {
		t.Fatalf("unexpected export list: %v", list)
	}
}

func TestLoadExportListFromDefFileMissingSection(t *testing.T) {
	dir := t.TempDir()
	defPath := filepath.Join(dir, "bad.def")
	os.WriteFile(defPath, []byte("LIBRARY widget\n"), 0o644)

	if _, err := loadExportListFromDefFile(defPath, nil, false); err == nil {
		t.Fatalf("expected an error for a DEF file with no EXPORTS section")
	}
}

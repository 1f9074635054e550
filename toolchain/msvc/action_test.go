package msvc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/toolchain"
)

func writeModuleDesc(t *testing.T, dir, body string) *description.BuildDescription {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, grammar.ModuleDescriptionFilename), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := description.NewLoader(dir)
	desc, err := loader.LoadModule(dir, nil)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	return desc
}

func fakeBootstrap(t *testing.T, dir string) *Bootstrap {
	t.Helper()
	return &Bootstrap{ClPath: filepath.Join(dir, "cl.exe"), EnvPatch: map[string]EnvPatch{}}
}

func TestCompileActionDescribeAndFreshness(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'executable'
module_name = 'demo'
build_list = ['main.cpp']
`)
	objDir := filepath.Join(dir, "obj")
	os.MkdirAll(objDir, 0o755)
	srcPath := filepath.Join(dir, "main.cpp")
	os.WriteFile(srcPath, []byte("int main(){return 0;}\n"), 0o644)

	boot := fakeBootstrap(t, dir)
	req := toolchain.CompileRequest{
		Desc: desc, SourcePath: srcPath, ObjDir: objDir, ObjName: "main",
		Model:       toolchain.Model{Name: "msvs2015-win64", PlatformName: grammar.PlatformWindows, ArchitectureABI: grammar.ArchX86_64},
		Config:      grammar.ConfigRelease,
		ProjectRoot: dir,
	}
	action := NewCompileAction(boot, req, SourceCpp)

	if got, want := action.Describe(), "main.cpp"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	if got, want := action.Outputs(), filepath.Join(objDir, "main.obj"); got[0] != want {
		t.Fatalf("Outputs() = %v, want [%q]", got, want)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date before any build")
	}
}

func TestStaticLinkActionNaming(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'lib-static'
module_name = 'util'
build_list = ['util.c']
`)
	objDir := filepath.Join(dir, "obj")
	libDir := filepath.Join(dir, "lib")
	os.MkdirAll(objDir, 0o755)
	os.MkdirAll(libDir, 0o755)

	boot := fakeBootstrap(t, dir)
	req := toolchain.StaticLinkRequest{
		Desc: desc, LibDir: libDir, ObjDir: objDir, ObjNames: []string{"util"},
		Model:       toolchain.Model{Name: "msvs2015-win32", PlatformName: grammar.PlatformWindows, ArchitectureABI: grammar.ArchX86},
		Config:      grammar.ConfigDebug,
		ProjectRoot: dir,
	}
	action := NewStaticLinkAction(boot, req)

	if got, want := action.Describe(), "util.lib"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	want := filepath.Join(libDir, "util.lib")
	if got := action.Outputs(); got[0] != want {
		t.Fatalf("Outputs() = %v, want [%q]", got, want)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date before archive exists")
	}
}

func TestAsmActionPicksMl64ForX8664(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'lib-static'
module_name = 'asmlib'
build_list = ['code.asm']
`)
	objDir := filepath.Join(dir, "obj")
	os.MkdirAll(objDir, 0o755)
	srcPath := filepath.Join(dir, "code.asm")
	os.WriteFile(srcPath, []byte("END\n"), 0o644)

	boot := fakeBootstrap(t, dir)
	req := toolchain.CompileRequest{
		Desc: desc, SourcePath: srcPath, ObjDir: objDir, ObjName: "code",
		Model:       toolchain.Model{Name: "msvs2015-win64", PlatformName: grammar.PlatformWindows, ArchitectureABI: grammar.ArchX86_64},
		Config:      grammar.ConfigRelease,
		ProjectRoot: dir,
	}
	action := NewAsmAction(boot, req)
	if got, want := filepath.Base(action.mlPath), "ml64.exe"; got != want {
		t.Fatalf("mlPath = %q, want basename %q", action.mlPath, want)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date before any object exists")
	}
}

func TestNewExeLinkActionBasics(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'executable'
module_name = 'demo'
build_list = ['main.cpp']
`)
	exeDir := filepath.Join(dir, "bin")
	objDir := filepath.Join(dir, "obj")
	os.MkdirAll(exeDir, 0o755)
	os.MkdirAll(objDir, 0o755)

	boot := fakeBootstrap(t, dir)
	req := toolchain.ExeLinkRequest{
		Desc: desc, ExeDir: exeDir, ObjDir: objDir, ObjNames: []string{"main"},
		Model:       toolchain.Model{Name: "msvs2015-win64", PlatformName: grammar.PlatformWindows, ArchitectureABI: grammar.ArchX86_64},
		Config:      grammar.ConfigRelease,
		ProjectRoot: dir,
	}
	action, err := NewExeLinkAction(boot, req)
	if err != nil {
		t.Fatalf("NewExeLinkAction: %v", err)
	}
	if got, want := action.Describe(), "demo.exe"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date before link")
	}
	artifacts := action.Artifacts()
	if len(artifacts) != 2 {
		t.Fatalf("Artifacts() = %v, want binary+pdb", artifacts)
	}
}

func TestNewSharedLinkActionDLLArtifacts(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'lib-shared'
module_name = 'widget'
build_list = ['widget.c']
export = ['widget_init']
`)
	sharedDir := filepath.Join(dir, "shared")
	libDir := filepath.Join(dir, "lib")
	objDir := filepath.Join(dir, "obj")
	os.MkdirAll(sharedDir, 0o755)
	os.MkdirAll(libDir, 0o755)
	os.MkdirAll(objDir, 0o755)

	boot := fakeBootstrap(t, dir)
	req := toolchain.SharedLinkRequest{
		Desc: desc, SharedLibDir: sharedDir, LibDir: libDir, ObjDir: objDir, ObjNames: []string{"widget"},
		Model:       toolchain.Model{Name: "msvs2015-win32", PlatformName: grammar.PlatformWindows, ArchitectureABI: grammar.ArchX86},
		Config:      grammar.ConfigDebug,
		ProjectRoot: dir,
	}
	action, err := NewSharedLinkAction(boot, req)
	if err != nil {
		t.Fatalf("NewSharedLinkAction: %v", err)
	}
	if got, want := action.Describe(), "widget.dll"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	artifacts := action.Artifacts()
	if len(artifacts) != 3 {
		t.Fatalf("Artifacts() = %v, want binary+pdb+implib", artifacts)
	}
}

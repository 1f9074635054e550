package gccfamily

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/toolchain"
)

func TestStaticLinkActionFreshness(t *testing.T) {
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

	tools := nativeGCCTools()
	req := toolchain.StaticLinkRequest{
		Desc: desc, LibDir: libDir, ObjDir: objDir, ObjNames: []string{"util"},
		Model: toolchain.Model{Name: ModelLinuxX86_64, PlatformName: grammar.PlatformLinux, ArchitectureABI: grammar.ArchX86_64},
		Config: grammar.ConfigRelease, ProjectRoot: dir,
	}
	action := NewStaticLinkAction(tools, dir, req)

	if got, want := action.Describe(), "libutil.a"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date: archive never produced")
	}

	objPath := filepath.Join(objDir, "util.o")
	os.WriteFile(objPath, []byte("fake"), 0o644)
	libPath := filepath.Join(libDir, "libutil.a")
	os.WriteFile(libPath, []byte("fake archive"), 0o644)
	future := time.Now().Add(time.Hour)
	os.Chtimes(libPath, future, future)

	if !action.IsUpToDate() {
		t.Fatalf("expected up to date: archive newer than object and description")
	}

	past := time.Now().Add(-time.Hour)
	os.Chtimes(objPath, time.Now(), time.Now())
	os.Chtimes(libPath, past, past)
	if action.IsUpToDate() {
		t.Fatalf("expected stale: object newer than archive")
	}
}

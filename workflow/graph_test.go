package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
)

func writeModuleAt(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, grammar.ModuleDescriptionFilename), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverOrdersLibraryBeforeExecutable(t *testing.T) {
	root := t.TempDir()
	libDir := filepath.Join(root, "lib")
	exeDir := filepath.Join(root, "exe")

	writeModuleAt(t, libDir, `
module_type = 'lib-static'
module_name = 'util'
build_list = ['util.c']
`)
	writeModuleAt(t, exeDir, `
module_type = 'executable'
module_name = 'app'
build_list = ['main.c']
lib_list = ['`+libDir+`']
`)

	cache := NewCache(description.NewLoader(root))
	graph, err := Discover(cache, exeDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(graph.Order) != 2 {
		t.Fatalf("Order = %v, want 2 modules", graph.Order)
	}
	if graph.Order[0].moduleName != "util" || graph.Order[1].moduleName != "app" {
		t.Fatalf("Order = [%s, %s], want [util, app]", graph.Order[0].moduleName, graph.Order[1].moduleName)
	}
}

func TestDiscoverRejectsLibListNamingNonLibrary(t *testing.T) {
	root := t.TempDir()
	otherExeDir := filepath.Join(root, "other")
	exeDir := filepath.Join(root, "exe")

	writeModuleAt(t, otherExeDir, `
module_type = 'executable'
module_name = 'other'
build_list = ['main.c']
`)
	writeModuleAt(t, exeDir, `
module_type = 'executable'
module_name = 'app'
build_list = ['main.c']
lib_list = ['`+otherExeDir+`']
`)

	cache := NewCache(description.NewLoader(root))
	if _, err := Discover(cache, exeDir); err == nil {
		t.Fatalf("expected error when lib_list names a non-library module")
	}
}

func TestDiscoverDetectsCycle(t *testing.T) {
	root := t.TempDir()
	aDir := filepath.Join(root, "a")
	bDir := filepath.Join(root, "b")

	writeModuleAt(t, aDir, `
module_type = 'lib-static'
module_name = 'a'
build_list = ['a.c']
lib_list = ['`+bDir+`']
`)
	writeModuleAt(t, bDir, `
module_type = 'lib-static'
module_name = 'b'
build_list = ['b.c']
lib_list = ['`+aDir+`']
`)

	cache := NewCache(description.NewLoader(root))
	if _, err := Discover(cache, aDir); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestDiscoverFollowsExplicitDependsForOrderingOnly(t *testing.T) {
	root := t.TempDir()
	genDir := filepath.Join(root, "gen")
	exeDir := filepath.Join(root, "exe")

	writeModuleAt(t, genDir, `
module_type = 'executable'
module_name = 'codegen'
build_list = ['gen.c']
`)
	writeModuleAt(t, exeDir, `
module_type = 'executable'
module_name = 'app'
build_list = ['main.c']
explicit_depends = ['`+genDir+`']
`)

	cache := NewCache(description.NewLoader(root))
	graph, err := Discover(cache, exeDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(graph.Order) != 2 || graph.Order[1].moduleName != "app" {
		t.Fatalf("Order = %v, want [codegen, app]", graph.Order)
	}
}

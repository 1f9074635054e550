package workflow

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
)

func TestClassifySource(t *testing.T) {
	cases := map[string]sourceKind{
		"foo.cpp": sourceCPP, "foo.cc": sourceCPP, "foo.cxx": sourceCPP,
		"foo.c": sourceC, "foo.s": sourceASM, "foo.asm": sourceASM, "foo.S": sourceASM,
		"foo.txt": sourceUnknown,
	}
	for name, want := range cases {
		if got := classifySource(name); got != want {
			t.Errorf("classifySource(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestObjNameForFlattensSubdirectories(t *testing.T) {
	got := objNameFor("/proj/mod", "/proj/mod/sub/dir/file.cpp")
	if want := "sub__dir__file"; got != want {
		t.Fatalf("objNameFor = %q, want %q", got, want)
	}
}

func TestResolveSourcesClassifiesAndNames(t *testing.T) {
	dir := t.TempDir()
	writeModuleAt(t, dir, `
module_type = 'lib-static'
module_name = 'util'
build_list = ['main.cpp', 'helper.c', 'boot.asm']
`)
	loader := description.NewLoader(dir)
	desc, err := loader.LoadModule(dir, nil)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	sources, err := ResolveSources(desc, dir, grammar.PlatformLinux, grammar.ArchX86_64)
	if err != nil {
		t.Fatalf("ResolveSources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("got %d sources, want 3", len(sources))
	}
	want := map[string]sourceKind{"main": sourceCPP, "helper": sourceC, "boot": sourceASM}
	for _, s := range sources {
		k, ok := want[s.ObjName]
		if !ok {
			t.Errorf("unexpected obj name %q", s.ObjName)
			continue
		}
		if k != s.Kind {
			t.Errorf("source %q kind = %v, want %v", s.ObjName, s.Kind, k)
		}
		if !filepath.IsAbs(s.Path) {
			t.Errorf("source %q path not absolute: %s", s.ObjName, s.Path)
		}
	}
}

func TestResolveSourcesRejectsUnrecognizedExtension(t *testing.T) {
	dir := t.TempDir()
	writeModuleAt(t, dir, `
module_type = 'lib-static'
module_name = 'util'
build_list = ['weird.rs']
`)
	loader := description.NewLoader(dir)
	desc, err := loader.LoadModule(dir, nil)
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, err := ResolveSources(desc, dir, grammar.PlatformLinux, grammar.ArchX86_64); err == nil {
		t.Fatalf("expected error for unrecognized source extension")
	}
}

func TestLayoutDirsAndHelpers(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root)
	outputRoot := filepath.Join(root, "output")
	for _, d := range l.Dirs() {
		if !strings.HasPrefix(d, outputRoot) {
			t.Errorf("dir %q not under output/", d)
		}
	}
	want := filepath.Join(root, "output", "obj", "linux-x86_64", "release", "util")
	if got := l.ObjDirFor("linux-x86_64", "release", "util"); got != want {
		t.Fatalf("ObjDirFor = %q, want %q", got, want)
	}
}

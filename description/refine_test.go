package description

import (
	"reflect"
	"testing"

	"github.com/bitswalk/minibuild/grammar"
)

func TestResolveListOrdering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "minibuild.mk", strJoin(
		"module_type = 'executable'",
		"build_list = ['neutral.c']",
		"build_list_posix = ['posix.c']",
		"build_list_linux = ['linux.c']",
		"build_list_posix_x86_64 = ['posix64.c']",
		"build_list_linux_x86_64 = ['linux64.c']",
		"build_list_windows = ['win.c']",
	))

	desc, err := NewLoader(dir).LoadModule(dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ResolveList(desc, grammar.KeyBuildList, grammar.PlatformLinux, grammar.ArchX86_64)
	want := []string{"neutral.c", "posix.c", "linux.c", "posix64.c", "linux64.c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveList = %v, want %v", got, want)
	}
}

func TestResolvePlatformOnlyList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "minibuild.mk", strJoin(
		"module_type = 'executable'",
		"prebuilt_lib_list = ['base.lib']",
		"prebuilt_lib_list_linux = ['linux.lib']",
	))
	desc, err := NewLoader(dir).LoadModule(dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ResolvePlatformOnlyList(desc, grammar.KeyPrebuiltLibList, grammar.PlatformLinux)
	want := []string{"base.lib", "linux.lib"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolvePlatformOnlyList = %v, want %v", got, want)
	}
}

package msvc

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestPathDifference(t *testing.T) {
	orig := `C:\Windows;C:\Windows\System32`
	final := `C:\VS\bin;C:\Windows;C:\Windows\System32;C:\VS\VC\bin`
	got := pathDifference(orig, final)
	want := []string{`C:\VS\bin`, `C:\VS\VC\bin`}
	if len(got) != len(want) {
		t.Fatalf("pathDifference() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pathDifference()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveCompilerPath(t *testing.T) {
	dir := t.TempDir()
	binDir := filepath.Join(dir, "VC", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}
	clPath := filepath.Join(binDir, "cl.exe")
	if err := os.WriteFile(clPath, []byte("fake"), 0o755); err != nil {
		t.Fatal(err)
	}

	other := filepath.Join(dir, "other")
	if err := os.MkdirAll(other, 0o755); err != nil {
		t.Fatal(err)
	}

	got := resolveCompilerPath([]string{other, binDir})
	if got != clPath {
		t.Fatalf("resolveCompilerPath() = %q, want %q", got, clPath)
	}

	if got := resolveCompilerPath([]string{other}); got != "" {
		t.Fatalf("resolveCompilerPath() = %q, want empty", got)
	}
}

func TestDiffEnvironmentFindsCompilerAndScalarPatch(t *testing.T) {
	dir := t.TempDir()
	binDir := filepath.Join(dir, "VC", "bin")
	os.MkdirAll(binDir, 0o755)
	os.WriteFile(filepath.Join(binDir, "cl.exe"), []byte("fake"), 0o755)

	t.Setenv("PATH", `C:\Windows`)
	t.Setenv("INCLUDE", "")
	t.Setenv("MBTEST_UNCHANGED", "same-value")

	dump := "PATH=" + binDir + `;C:\Windows` + "\r\n" +
		`INCLUDE=` + dir + `\VC\include` + "\r\n" +
		"MBTEST_UNCHANGED=same-value\r\n" +
		"MBTEST_NEW=added-value\r\n"

	b, err := diffEnvironment(dump)
	if err != nil {
		t.Fatalf("diffEnvironment: %v", err)
	}
	if b.ClPath != filepath.Join(binDir, "cl.exe") {
		t.Fatalf("ClPath = %q, want cl.exe under %q", b.ClPath, binDir)
	}
	if _, ok := b.EnvPatch["MBTEST_UNCHANGED"]; ok {
		t.Fatalf("expected unchanged var to be skipped from patch")
	}
	patch, ok := b.EnvPatch["MBTEST_NEW"]
	if !ok || patch.Scalar != "added-value" {
		t.Fatalf("expected MBTEST_NEW patch with scalar 'added-value', got %+v, ok=%v", patch, ok)
	}
	pathPatch, ok := b.EnvPatch["PATH"]
	if !ok || len(pathPatch.Paths) != 1 || pathPatch.Paths[0] != binDir {
		t.Fatalf("expected PATH patch to add only %q, got %+v", binDir, pathPatch)
	}
}

func TestBootstrapEnvironMergesPatch(t *testing.T) {
	t.Setenv("PATH", `C:\Windows`)
	t.Setenv("MBTEST_REPLACE", "old")

	b := &Bootstrap{
		ClPath: `C:\VS\VC\bin\cl.exe`,
		EnvPatch: map[string]EnvPatch{
			"PATH":           {Paths: []string{`C:\VS\VC\bin`}},
			"MBTEST_REPLACE": {Scalar: "new"},
			"MBTEST_BRANDNEW": {Scalar: "brand-new"},
		},
	}
	env := b.Environ()

	asMap := map[string]string{}
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				asMap[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	if asMap["PATH"] != `C:\VS\VC\bin;C:\Windows` {
		t.Fatalf("PATH = %q, want prepended form", asMap["PATH"])
	}
	if asMap["MBTEST_REPLACE"] != "new" {
		t.Fatalf("MBTEST_REPLACE = %q, want 'new'", asMap["MBTEST_REPLACE"])
	}
	if asMap["MBTEST_BRANDNEW"] != "brand-new" {
		t.Fatalf("MBTEST_BRANDNEW = %q, want 'brand-new'", asMap["MBTEST_BRANDNEW"])
	}

	var names []string
	for _, kv := range env {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				names = append(names, kv[:i])
				break
			}
		}
	}
	sort.Strings(names)
	found := false
	for _, n := range names {
		if n == "MBTEST_BRANDNEW" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected MBTEST_BRANDNEW to be present in merged environment")
	}
}

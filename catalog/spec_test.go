package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSpecFileDirectoryWalkWithExclusions(t *testing.T) {
	dir := t.TempDir()
	payloadDir := filepath.Join(dir, "payload")
	os.MkdirAll(filepath.Join(payloadDir, "obj"), 0o755)
	os.MkdirAll(filepath.Join(payloadDir, "bin"), 0o755)
	os.WriteFile(filepath.Join(payloadDir, "readme.txt"), []byte("hi"), 0o644)
	os.WriteFile(filepath.Join(payloadDir, "obj", "junk.o"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(payloadDir, "bin", "app.exe"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(payloadDir, "notes.log"), []byte("x"), 0o644)

	groups := []Group{
		{
			Dirname: "payload",
			Prefix:  "dist",
			ExcludeDir: ExclusionRule{
				IfArcnameEquals: []string{"obj"},
			},
			ExcludeFile: ExclusionRule{
				IfArcnameEndswith: []string{".log"},
			},
		},
	}
	specPath := filepath.Join(dir, "spec.json")
	writeJSON(t, specPath, groups)

	entries, err := LoadSpecFile(specPath, nil)
	if err != nil {
		t.Fatalf("LoadSpecFile: %v", err)
	}
	var arcnames []string
	for _, e := range entries {
		arcnames = append(arcnames, e.ArcName)
	}
	sort.Strings(arcnames)
	want := []string{"dist/bin/app.exe", "dist/readme.txt"}
	if len(arcnames) != len(want) {
		t.Fatalf("arcnames = %v, want %v", arcnames, want)
	}
	for i := range want {
		if arcnames[i] != want[i] {
			t.Fatalf("arcnames = %v, want %v", arcnames, want)
		}
	}
}

func TestLoadSpecFileExplicitCatalog(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644)

	groups := []Group{
		{Dirname: dir, Prefix: "out", Catalog: []string{"a.txt", "b.txt"}},
	}
	specPath := filepath.Join(dir, "spec.json")
	writeJSON(t, specPath, groups)

	entries, err := LoadSpecFile(specPath, nil)
	if err != nil {
		t.Fatalf("LoadSpecFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %v, want 2", entries)
	}
	if entries[0].ArcName != "out/a.txt" || entries[1].ArcName != "out/b.txt" {
		t.Fatalf("entries = %+v, want out/a.txt + out/b.txt", entries)
	}
}

func TestLoadSpecFileSubstitutesVars(t *testing.T) {
	dir := t.TempDir()
	payloadDir := filepath.Join(dir, "payload")
	os.MkdirAll(payloadDir, 0o755)
	os.WriteFile(filepath.Join(payloadDir, "f.txt"), []byte("x"), 0o644)

	groups := []Group{
		{Dirname: "${SRC_SUBDIR}", Prefix: "${ARC_PREFIX}"},
	}
	specPath := filepath.Join(dir, "spec.json")
	writeJSON(t, specPath, groups)

	entries, err := LoadSpecFile(specPath, map[string]string{"SRC_SUBDIR": "payload", "ARC_PREFIX": "pkg"})
	if err != nil {
		t.Fatalf("LoadSpecFile: %v", err)
	}
	if len(entries) != 1 || entries[0].ArcName != "pkg/f.txt" {
		t.Fatalf("entries = %+v, want single pkg/f.txt entry", entries)
	}
}

func TestLoadSpecFileRejectsRelativePath(t *testing.T) {
	if _, err := LoadSpecFile("relative/spec.json", nil); err == nil {
		t.Fatalf("expected error for relative spec path")
	}
}

func TestLoadSpecFileRejectsEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	payloadDir := filepath.Join(dir, "empty")
	os.MkdirAll(payloadDir, 0o755)
	groups := []Group{{Dirname: "empty"}}
	specPath := filepath.Join(dir, "spec.json")
	writeJSON(t, specPath, groups)

	if _, err := LoadSpecFile(specPath, nil); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
}

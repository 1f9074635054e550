package depends

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParseGCCDepFile(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	headerPath := filepath.Join(srcDir, "util.h")
	if err := os.WriteFile(headerPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	depContent := "main.o: src/main.c \\\n  " + headerPath + " \\\n  /usr/include/stdio.h\n"
	depFile := filepath.Join(root, "main.d")
	if err := os.WriteFile(depFile, []byte(depContent), 0o644); err != nil {
		t.Fatal(err)
	}

	rec, err := ParseGCCDepFile(depFile, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"src/main.c", "src/util.h"}
	if !reflect.DeepEqual(rec.Entries, want) {
		t.Errorf("Entries = %v, want %v", rec.Entries, want)
	}
}

func TestParseMSVCShowIncludes(t *testing.T) {
	root := t.TempDir()
	incPath := filepath.Join(root, "inc", "foo.h")
	if err := os.MkdirAll(filepath.Dir(incPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(incPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout := "main.cpp\nNote: including file: " + incPath + "\nNote: including file:  /outside/outside.h\n"
	rec, err := ParseMSVCShowIncludes(stdout, root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Entries) != 1 || rec.Entries[0] != "inc/foo.h" {
		t.Errorf("Entries = %v", rec.Entries)
	}
}

func TestDepFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "obj.dep")
	rec := &Record{Entries: []string{"src/a.h", "src/b.h"}}
	if err := WriteDepFile(fname, rec); err != nil {
		t.Fatalf("WriteDepFile: %v", err)
	}
	got, err := ReadDepFile(fname)
	if err != nil {
		t.Fatalf("ReadDepFile: %v", err)
	}
	if !reflect.DeepEqual(got.Entries, rec.Entries) {
		t.Errorf("round trip = %v, want %v", got.Entries, rec.Entries)
	}
}

func TestIsUpToDateFreshAndDirty(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "main.c")
	obj := filepath.Join(root, "main.o")
	dep := filepath.Join(root, "main.o.dep")

	writeAt(t, src, "1", time.Now().Add(-2*time.Hour))
	writeAt(t, obj, "1", time.Now().Add(-time.Hour))
	if err := os.WriteFile(dep, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	os.Chtimes(dep, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour))

	if !IsUpToDate(obj, []string{src}, nil, dep, root) {
		t.Error("expected fresh before touching input")
	}

	writeAt(t, src, "1", time.Now().Add(time.Hour))
	if IsUpToDate(obj, []string{src}, nil, dep, root) {
		t.Error("expected dirty after touching input")
	}
}

func TestIsUpToDateMissingTarget(t *testing.T) {
	root := t.TempDir()
	if IsUpToDate(filepath.Join(root, "nope.o"), nil, nil, filepath.Join(root, "nope.dep"), root) {
		t.Error("expected not-fresh for missing target")
	}
}

func TestIsUpToDateEqualMtimeIsFresh(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "main.c")
	obj := filepath.Join(root, "main.o")
	same := time.Now().Truncate(time.Second)
	writeAt(t, src, "1", same)
	writeAt(t, obj, "1", same)

	if !IsUpToDate(obj, []string{src}, nil, filepath.Join(root, "missing.dep"), root) {
		t.Error("equal mtimes should count as fresh")
	}
}

func writeAt(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

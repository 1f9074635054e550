package download

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewActionBasics(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'download'
module_name = 'zlib-src'
download_list = [
    '{"url": "https://example.com/zlib-1.3.tar.xz"}',
]
`)
	outDir := filepath.Join(dir, "out")
	action, err := NewAction(desc, outDir)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	if got, want := action.Describe(), "zlib-src"; got != want {
		t.Fatalf("Describe() = %q, want %q", got, want)
	}
	if action.IsUpToDate() {
		t.Fatalf("expected not up to date before any fetch")
	}
	if got, want := action.Outputs(), filepath.Join(outDir, ".download.stamp"); got[0] != want {
		t.Fatalf("Outputs() = %v, want [%q]", got, want)
	}
}

func TestNewActionUpToDateAfterFakeRun(t *testing.T) {
	dir := t.TempDir()
	desc := writeModuleDesc(t, dir, `
module_type = 'download'
module_name = 'zlib-src'
download_list = [
    '{"url": "https://example.com/zlib-1.3.tar.xz"}',
]
`)
	outDir := filepath.Join(dir, "out")
	os.MkdirAll(outDir, 0o755)
	action, err := NewAction(desc, outDir)
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	stampPath := filepath.Join(outDir, ".download.stamp")
	os.WriteFile(stampPath, []byte(""), 0o644)
	future := time.Now().Add(time.Hour)
	os.Chtimes(stampPath, future, future)
	if !action.IsUpToDate() {
		t.Fatalf("expected up to date after faking a prior fetch")
	}
}

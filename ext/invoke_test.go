package ext

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/bitswalk/minibuild/grammar"
)

func TestSplitCmdlineHonorsQuotes(t *testing.T) {
	got, err := splitCmdline(`cp "a file.txt" 'b dir'/out`)
	if err != nil {
		t.Fatalf("splitCmdline: %v", err)
	}
	want := []string{"cp", "a file.txt", "b dir/out"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitCmdlineRejectsUnterminatedQuote(t *testing.T) {
	if _, err := splitCmdline(`echo "unterminated`); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

func TestInvokeProcessWritesMarkerFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	e := &Extension{
		Name:         "touch-marker",
		CallType:     grammar.ExtCallTypeProcess,
		Cmdline:      "touch ${MARKER}",
		VarsRequired: []string{"MARKER"},
	}
	if err := e.Invoke(context.Background(), dir, map[string]string{"MARKER": marker}, nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected marker file: %v", err)
	}
}

func TestInvokeShellMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	e := &Extension{
		Name:     "shell-marker",
		CallType: grammar.ExtCallTypeShell,
		Cmdline:  "echo hi > ${MARKER}",
	}
	if err := e.Invoke(context.Background(), dir, map[string]string{"MARKER": marker}, nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected marker file from shell redirection: %v", err)
	}
}

func TestInvokeFailsOnNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	dir := t.TempDir()
	e := &Extension{
		Name:     "always-fails",
		CallType: grammar.ExtCallTypeProcess,
		Cmdline:  "false",
	}
	if err := e.Invoke(context.Background(), dir, nil, nil); err == nil {
		t.Fatalf("expected error from non-zero exit")
	}
}

func TestInvokeRejectsMissingRequiredVar(t *testing.T) {
	dir := t.TempDir()
	e := &Extension{
		Name:         "needs-var",
		CallType:     grammar.ExtCallTypeProcess,
		Cmdline:      "echo ${NOT_SUPPLIED}",
		VarsRequired: []string{"NOT_SUPPLIED"},
	}
	if err := e.Invoke(context.Background(), dir, nil, nil); err == nil {
		t.Fatalf("expected error for missing required var")
	}
}

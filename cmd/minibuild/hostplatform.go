package main

import (
	"fmt"
	"runtime"

	"github.com/bitswalk/minibuild/grammar"
)

// hostPlatformArch maps the running Go binary's GOOS/GOARCH to the
// platform/arch tags the rest of minibuild uses, replacing
// script_main.py's SUPPORTED_PLATFORMS_PROBE table of os_utils.py
// is_linux_x86_64/is_windows_64bit/... predicates with the Go runtime's own
// identification (no probing needed).
func hostPlatformArch() (platform, arch string, err error) {
	switch runtime.GOOS {
	case "linux":
		platform = grammar.PlatformLinux
	case "windows":
		platform = grammar.PlatformWindows
	case "darwin":
		platform = grammar.PlatformMacosx
	default:
		return "", "", fmt.Errorf("current platform '%s' is not supported", runtime.GOOS)
	}
	switch runtime.GOARCH {
	case "amd64":
		arch = grammar.ArchX86_64
	case "386":
		arch = grammar.ArchX86
	case "arm64":
		arch = grammar.ArchArm64
	case "arm":
		arch = grammar.ArchArm
	default:
		return "", "", fmt.Errorf("current architecture '%s' is not supported", runtime.GOARCH)
	}
	return platform, arch, nil
}

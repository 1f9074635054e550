//go:build windows

package msvc

import "golang.org/x/sys/windows/registry"

// vsCommonToolsFromRegistry falls back to the registry when the
// %VSnnnCOMNTOOLS% environment variable the vendor batch scripts rely on
// isn't set in the current process environment, probing the same
// per-version app-paths key the vendor installer writes
// (HKLM\SOFTWARE\Microsoft\VisualStudio\<version>\Setup\VC).
func vsCommonToolsFromRegistry(version string) (string, bool) {
	keyPath := `SOFTWARE\Microsoft\VisualStudio\` + version + `\Setup\VC`
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, keyPath, registry.QUERY_VALUE|registry.WOW64_32KEY)
	if err != nil {
		return "", false
	}
	defer k.Close()
	val, _, err := k.GetStringValue("ProductDir")
	if err != nil || val == "" {
		return "", false
	}
	return val, true
}

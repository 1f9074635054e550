//go:build !windows

package msvc

// vsCommonToolsFromRegistry is unavailable off Windows: there is no
// registry to probe, so bootstrap falls back to requiring the
// %VSnnnCOMNTOOLS% environment variable.
func vsCommonToolsFromRegistry(version string) (string, bool) {
	return "", false
}

// Package paths provides path manipulation helpers shared across the build
// driver: home-dir expansion, safe directory creation and the case/prefix
// comparisons the dependency tracker and description loader rely on.
package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand expands a leading "~" to the current user's home directory and
// resolves environment variable references.
func Expand(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~/") {
		if usr, err := user.Current(); err == nil {
			return filepath.Join(usr.HomeDir, path[2:])
		}
	} else if path == "~" {
		if usr, err := user.Current(); err == nil {
			return usr.HomeDir
		}
	}
	return path
}

// EnsureDirPath creates dirPath (and parents) if it does not already exist.
func EnsureDirPath(dirPath string) error {
	return os.MkdirAll(dirPath, 0o755)
}

// Exists returns true if path exists (file or directory).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir returns true if path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile returns true if path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// NormalizeOptional resolves rel against workingDir when rel is not already
// absolute, then cleans the result. Mirrors minibuild's
// normalize_path_optional: a path that is already absolute is left alone.
func NormalizeOptional(rel, workingDir string) string {
	if rel == "" {
		return rel
	}
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(workingDir, rel))
}

// Normcase is the hook for case-folding a path before prefix comparison.
// It is the identity function on every platform (case-sensitive
// filesystems are the build assumption); no case folding is applied.
func Normcase(path string) string {
	return path
}

// HasPathPrefix reports whether path is rooted under prefix, comparing
// cleaned, separator-terminated forms so "/proj2" is never mistaken for a
// child of "/proj".
func HasPathPrefix(path, prefix string) bool {
	prefix = filepath.Clean(prefix)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(filepath.Clean(path)+string(filepath.Separator), prefix)
}

// StripPathPrefix removes prefix from path assuming HasPathPrefix(path,
// prefix) already holds.
func StripPathPrefix(path, prefix string) string {
	prefix = filepath.Clean(prefix)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	rel := strings.TrimPrefix(filepath.Clean(path)+string(filepath.Separator), prefix)
	return strings.TrimSuffix(rel, string(filepath.Separator))
}

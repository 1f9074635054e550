package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/paths"
)

// resolveProjectRoot walks upward from buildDirectory looking for
// minibuild.ini, exactly as script_main.py's resolve_project_landmark does
// (the project root is wherever the nearest enclosing minibuild.ini lives).
func resolveProjectRoot(buildDirectory string) (string, error) {
	var lookups []string
	dir := buildDirectory
	for {
		candidate := filepath.Join(dir, grammar.ProjectConfigFile)
		lookups = append(lookups, candidate)
		if paths.IsFile(candidate) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("can't resolve project root, tried:\n  %s", joinLines(lookups))
}

func joinLines(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += "\n  "
		}
		out += s
	}
	return out
}

func currentDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving current directory: %w", err)
	}
	return dir, nil
}

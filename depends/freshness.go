package depends

import (
	"os"
	"path/filepath"
)

// IsUpToDate implements the is_up_to_date query (§4.3): target is fresh
// when it exists, every primary and extra input is no newer than it, and
// (when present) every entry recorded in its dependency file is no newer
// than it. mtime comparison is non-strict: equal mtimes count as fresh
// (§4.3 "Tie-breaks").
func IsUpToDate(target string, primaryInputs, extraInputs []string, depFilePath, projectRoot string) bool {
	targetInfo, err := os.Stat(target)
	if err != nil {
		return false
	}
	tModTime := targetInfo.ModTime()

	for _, in := range primaryInputs {
		info, err := os.Stat(in)
		if err != nil {
			return false
		}
		if info.ModTime().After(tModTime) {
			return false
		}
	}
	for _, in := range extraInputs {
		info, err := os.Stat(in)
		if err != nil {
			return false
		}
		if info.ModTime().After(tModTime) {
			return false
		}
	}

	depInfo, err := os.Stat(depFilePath)
	if err != nil {
		// No dep file recorded yet: nothing more to check.
		return true
	}
	olderThanEveryPrimary := true
	for _, in := range primaryInputs {
		info, err := os.Stat(in)
		if err != nil {
			continue
		}
		if !depInfo.ModTime().Before(info.ModTime()) {
			olderThanEveryPrimary = false
			break
		}
	}
	if olderThanEveryPrimary && len(primaryInputs) > 0 {
		return false
	}

	rec, err := ReadDepFile(depFilePath)
	if err != nil {
		return false
	}
	for _, rel := range rec.Entries {
		abs := filepath.Join(projectRoot, rel)
		info, err := os.Stat(abs)
		if err != nil {
			return false
		}
		if info.ModTime().After(tModTime) {
			return false
		}
	}
	return true
}

// IsUpToDateNoDeps is is_target_up_to_date without a dependency file: used
// by archive and link actions, whose freshness depends only on their
// object-file and description-file inputs (§4.4, StaticLibLinkActionGCC /
// LinkActionGCC).
func IsUpToDateNoDeps(target string, primaryInputs, extraInputs []string) bool {
	targetInfo, err := os.Stat(target)
	if err != nil {
		return false
	}
	tModTime := targetInfo.ModTime()
	for _, in := range append(append([]string{}, primaryInputs...), extraInputs...) {
		info, err := os.Stat(in)
		if err != nil {
			return false
		}
		if info.ModTime().After(tModTime) {
			return false
		}
	}
	return true
}

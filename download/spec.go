// Package download implements the download module kind: fetching and
// extracting a module's declared download_list entries. spec.md names
// download_list as a description field but defers the module kind itself
// to a plug-in behind the action interface (§1 "Out of scope"); this
// package is that plug-in.
package download

import (
	"encoding/json"

	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
)

// Spec is one download_list entry. Each entry is a JSON object literal
// string rather than a nested dict, since the grammar's list shape (§3)
// only holds strings — the same ShapeList-of-string constraint that drove
// catalog's spec-file redesign ([[catalog]]).
type Spec struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256,omitempty"`
	Subdir string `json:"subdir,omitempty"`
}

// ParseDownloadList decodes desc's download_list into its Spec entries.
func ParseDownloadList(desc *description.BuildDescription) ([]Spec, error) {
	raw := desc.Get(grammar.KeyDownloadList)
	if !raw.Set() {
		return nil, errs.New(errs.DomainDescription, "download-list-missing",
			"module '%s' has module_type = 'download' but no download_list", desc.Get(grammar.KeyModuleName).String())
	}
	entries := raw.List()
	specs := make([]Spec, 0, len(entries))
	for i, entry := range entries {
		var s Spec
		if err := json.Unmarshal([]byte(entry), &s); err != nil {
			return nil, errs.Wrap(err, errs.DomainDescription, "download-entry-malformed",
				"download_list entry %d is not valid JSON", i)
		}
		if s.URL == "" {
			return nil, errs.New(errs.DomainDescription, "download-entry-no-url", "download_list entry %d has no url", i)
		}
		specs = append(specs, s)
	}
	return specs, nil
}

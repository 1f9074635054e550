package catalog

import (
	"context"
	"os"

	"github.com/mholt/archives"

	"github.com/bitswalk/minibuild/internal/errs"
)

// WriteZip archives entries into outPath as a zip file, using
// github.com/mholt/archives the way the zip-file module kind's "optional
// output kind" (spec.md §1) is wired into the domain stack.
func WriteZip(ctx context.Context, outPath string, entries []Entry) error {
	fileMap := make(map[string]string, len(entries))
	for _, e := range entries {
		fileMap[e.SourcePath] = e.ArcName
	}
	files, err := archives.FilesFromDisk(ctx, nil, fileMap)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "zip-collect-failed", "collecting files for '%s'", outPath)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "zip-create-failed", "creating '%s'", outPath)
	}
	defer out.Close()

	zipFormat := archives.Zip{}
	if err := zipFormat.Archive(ctx, out, files); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "zip-archive-failed", "writing '%s'", outPath)
	}
	return nil
}

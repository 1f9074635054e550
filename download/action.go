package download

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mholt/archives"
	"github.com/ulikunitz/xz"

	"github.com/bitswalk/minibuild/buildart"
	"github.com/bitswalk/minibuild/depends"
	"github.com/bitswalk/minibuild/description"
	"github.com/bitswalk/minibuild/grammar"
	"github.com/bitswalk/minibuild/internal/errs"
	"github.com/bitswalk/minibuild/internal/paths"
	"github.com/bitswalk/minibuild/toolchain"
)

// Action is the download module kind's build action: fetch every
// download_list entry, verify its checksum when one is given, and extract
// it under the module's output directory.
type Action struct {
	moduleName string
	specs      []Spec
	outDir     string
	stampFile  string
	extraDeps  []string
	client     *http.Client
}

// NewAction builds an Action for desc, publishing extracted content under
// outDir (one subdirectory per entry, named by Spec.Subdir or, when Subdir
// is empty, the URL's basename with any recognized archive extension
// removed).
func NewAction(desc *description.BuildDescription, outDir string) (*Action, error) {
	specs, err := ParseDownloadList(desc)
	if err != nil {
		return nil, err
	}
	a := &Action{
		moduleName: desc.Get(grammar.KeyModuleName).String(),
		specs:      specs,
		outDir:     outDir,
		stampFile:  filepath.Join(outDir, ".download.stamp"),
		client:     &http.Client{Timeout: 10 * time.Minute},
	}
	a.extraDeps = append(a.extraDeps, desc.FileParts...)
	return a, nil
}

func (a *Action) Describe() string  { return a.moduleName }
func (a *Action) Inputs() []string  { return append([]string{}, a.extraDeps...) }
func (a *Action) Outputs() []string { return []string{a.stampFile} }

func (a *Action) Artifacts() []buildart.Artifact {
	return []buildart.Artifact{{Kind: buildart.KindResource, Path: a.outDir}}
}

// IsUpToDate checks only the module's own description parts, since the
// remote content a download module names has no local mtime of its own;
// re-fetching is triggered by a description edit (a new URL/checksum) or
// --force, never by clock skew against a URL.
func (a *Action) IsUpToDate() bool {
	return depends.IsUpToDateNoDeps(a.stampFile, nil, a.extraDeps)
}

func (a *Action) Execute(ctx context.Context, progress toolchain.ProgressFunc) error {
	if err := paths.EnsureDirPath(a.outDir); err != nil {
		return err
	}
	for i, spec := range a.specs {
		if progress != nil {
			progress(i*100/len(a.specs), fmt.Sprintf("BUILDSYS: DOWNLOAD: %s", spec.URL))
		}
		destDir := filepath.Join(a.outDir, subdirFor(spec))
		if err := fetchAndExtract(ctx, a.client, spec, destDir); err != nil {
			return err
		}
	}
	if err := os.Remove(a.stampFile); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(err, errs.DomainBuild, "download-stamp-reset-failed", "resetting '%s'", a.stampFile)
	}
	if f, err := os.Create(a.stampFile); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-stamp-write-failed", "writing '%s'", a.stampFile)
	} else {
		f.Close()
	}
	if progress != nil {
		progress(100, "done")
	}
	return nil
}

func subdirFor(spec Spec) string {
	if spec.Subdir != "" {
		return spec.Subdir
	}
	base := filepath.Base(spec.URL)
	for _, ext := range []string{".tar.xz", ".txz", ".tar.gz", ".tgz", ".zip", ".tar"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

func fetchAndExtract(ctx context.Context, client *http.Client, spec Spec, destDir string) error {
	tmpFile, err := os.CreateTemp("", "minibuild-download-*")
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-tmp-create-failed", "creating temp file for '%s'", spec.URL)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		tmpFile.Close()
		return errs.Wrap(err, errs.DomainBuild, "download-request-failed", "building request for '%s'", spec.URL)
	}
	resp, err := client.Do(req)
	if err != nil {
		tmpFile.Close()
		return errs.Wrap(err, errs.DomainBuild, "download-fetch-failed", "fetching '%s'", spec.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		tmpFile.Close()
		return errs.New(errs.DomainBuild, "download-bad-status", "fetching '%s': HTTP %d", spec.URL, resp.StatusCode)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body); err != nil {
		tmpFile.Close()
		return errs.Wrap(err, errs.DomainBuild, "download-write-failed", "saving '%s'", spec.URL)
	}
	tmpFile.Close()

	if spec.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, spec.SHA256) {
			return errs.New(errs.DomainBuild, "download-checksum-mismatch",
				"'%s': expected sha256 %s, got %s", spec.URL, spec.SHA256, got)
		}
	}

	if err := paths.EnsureDirPath(destDir); err != nil {
		return err
	}
	return extractArchive(ctx, tmpPath, spec.URL, destDir)
}

func extractArchive(ctx context.Context, archivePath, sourceName, destDir string) error {
	lower := strings.ToLower(sourceName)
	if strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz") {
		return extractTarXz(archivePath, destDir)
	}
	return extractGeneric(ctx, archivePath, sourceName, destDir)
}

// extractTarXz handles .tar.xz/.txz directly via ulikunitz/xz, per
// SPEC_FULL.md's domain-stack wiring for this dependency: mholt/archives'
// own xz support (through klauspost/compress's xz reader) is bypassed here
// so the download module kind exercises ulikunitz/xz the way the original
// author's other tooling does.
func extractTarXz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-open-failed", "opening '%s'", archivePath)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-xz-failed", "decompressing '%s'", archivePath)
	}
	tr := tar.NewReader(xr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Wrap(err, errs.DomainBuild, "download-tar-failed", "reading tar stream from '%s'", archivePath)
		}
		target := filepath.Join(destDir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
	return nil
}

func extractGeneric(ctx context.Context, archivePath, sourceName, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-open-failed", "opening '%s'", archivePath)
	}
	defer f.Close()

	format, input, err := archives.Identify(ctx, sourceName, f)
	if err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-identify-failed", "identifying archive format of '%s'", sourceName)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return errs.New(errs.DomainBuild, "download-unsupported-format", "'%s' is not an extractable archive format", sourceName)
	}
	var reader io.Reader = input
	if _, ok := format.(archives.Decompressor); !ok {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		reader = f
	}
	handler := func(ctx context.Context, fi archives.FileInfo) error {
		target := filepath.Join(destDir, fi.NameInArchive)
		if fi.IsDir() {
			return os.MkdirAll(target, fi.Mode())
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := fi.Open()
		if err != nil {
			return err
		}
		defer src.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode())
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, src)
		return err
	}
	if err := ex.Extract(ctx, reader, handler); err != nil {
		return errs.Wrap(err, errs.DomainBuild, "download-extract-failed", "extracting '%s'", sourceName)
	}
	return nil
}

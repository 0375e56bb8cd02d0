package runact

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/go-github/v48/github"
	"github.com/mholt/archiver/v4"
	"github.com/runact/runact/internal/errors"
	"golang.org/x/sync/errgroup"
)

// DownloadArtifacts fetches and extracts every artifact of run whose name
// matches glob into dest. The caller asked for artifacts explicitly, so an
// empty result is an error, not a no-op. Per-artifact downloads run
// concurrently; any failure fails the whole operation with the artifact's
// name attached.
func (r *Runner) DownloadArtifacts(ctx context.Context, run *github.WorkflowRun, dest, glob string) error {
	artifacts, err := r.Gateway.ListArtifacts(ctx, run.GetID())
	if err != nil {
		return errors.Wrap(err, "ListArtifacts")
	}
	if glob == "" {
		glob = "*"
	}
	var selected []*github.Artifact
	for _, artifact := range artifacts {
		match, err := doublestar.Match(glob, artifact.GetName())
		if err != nil {
			return errors.Wrap(err, "Match")
		}
		if match {
			selected = append(selected, artifact)
		}
	}
	if len(selected) == 0 {
		return ErrNoArtifacts
	}
	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		return errors.Wrap(err, "MkdirAll")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, artifact := range selected {
		artifact := artifact
		g.Go(func() error {
			if err := r.downloadArtifact(ctx, artifact, dest); err != nil {
				return errors.Wrapf(err, "artifact %q", artifact.GetName())
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) downloadArtifact(ctx context.Context, artifact *github.Artifact, dest string) error {
	r.Log.Logf("downloading artifact %q (%s)", artifact.GetName(), humanize.Bytes(uint64(artifact.GetSizeInBytes())))

	// The signed URL expires after about a minute, so it is fetched here,
	// immediately before the download, never earlier.
	u, err := r.Gateway.ArtifactURL(ctx, artifact.GetID())
	if err != nil {
		return errors.Wrap(err, "ArtifactURL")
	}
	archive, err := r.fetchArchive(ctx, u.String())
	if err != nil {
		return err
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	if err := extractZip(ctx, archive, dest); err != nil {
		return err
	}
	r.Log.Logf("extracted artifact %q to %s", artifact.GetName(), dest)
	return nil
}

// fetchArchive streams url into a temporary file, enforcing the configured
// byte ceiling, and returns the file positioned at its start. The caller
// removes the file when done.
func (r *Runner) fetchArchive(ctx context.Context, url string) (*os.File, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "NewRequest")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Do")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("bad response status: %s", resp.Status)
	}

	f, err := os.CreateTemp("", "run-action-*.zip")
	if err != nil {
		return nil, errors.Wrap(err, "CreateTemp")
	}
	cleanup := func() {
		f.Close()
		os.Remove(f.Name())
	}
	max := r.maxArchiveBytes()
	n, err := io.Copy(f, io.LimitReader(resp.Body, max+1))
	if err != nil {
		cleanup()
		return nil, errors.Wrap(err, "Copy")
	}
	if n > max {
		cleanup()
		return nil, errors.Errorf("archive exceeds %s limit", humanize.Bytes(uint64(max)))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, errors.Wrap(err, "Seek")
	}
	return f, nil
}

// extractZip writes every entry of the zip archive under dst.
func extractZip(ctx context.Context, archive *os.File, dst string) error {
	handler := func(ctx context.Context, fi archiver.File) error {
		dstPath := filepath.Join(dst, fi.NameInArchive)
		if fi.IsDir() {
			return errors.Wrap(os.MkdirAll(dstPath, os.ModePerm), "MkdirAll")
		}
		if err := os.MkdirAll(filepath.Dir(dstPath), os.ModePerm); err != nil {
			return errors.Wrap(err, "MkdirAll")
		}
		src, err := fi.Open()
		if err != nil {
			return errors.Wrap(err, "Open")
		}
		defer src.Close()
		out, err := os.Create(dstPath)
		if err != nil {
			return errors.Wrap(err, "Create")
		}
		defer out.Close()
		if _, err := io.Copy(out, src); err != nil {
			return errors.Wrap(err, "Copy")
		}
		return errors.Wrap(os.Chmod(dstPath, fi.Mode().Perm()), "Chmod")
	}
	return errors.Wrap((archiver.Zip{}).Extract(ctx, archive, nil, handler), "Extract")
}

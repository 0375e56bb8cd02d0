package runact

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/mholt/archiver/v4"
	"github.com/runact/runact/internal/errors"
)

const (
	logStartMarker = "==================== workflow logs start ===================="
	logEndMarker   = "==================== workflow logs end ======================"
)

// FetchLogs downloads the run's log archive and returns the consolidated
// run log wrapped in start/end markers. The archive holds one file per job
// step; entries named 0_*.txt are the per-job full logs in GitHub's
// archive layout, so only those are kept. Everything else is skipped
// unread.
func (r *Runner) FetchLogs(ctx context.Context, runID int64) (string, error) {
	u, err := r.Gateway.RunLogsURL(ctx, runID)
	if err != nil {
		return "", errors.Wrap(err, "RunLogsURL")
	}
	archive, err := r.fetchArchive(ctx, u.String())
	if err != nil {
		return "", errors.Wrap(err, "fetching log archive")
	}
	defer func() {
		archive.Close()
		os.Remove(archive.Name())
	}()

	var buf strings.Builder
	handler := func(ctx context.Context, fi archiver.File) error {
		if fi.IsDir() || !isFullRunLog(fi.NameInArchive) {
			return nil
		}
		src, err := fi.Open()
		if err != nil {
			return errors.Wrap(err, "Open")
		}
		defer src.Close()
		_, err = io.Copy(&buf, src)
		return errors.Wrap(err, "Copy")
	}
	if err := (archiver.Zip{}).Extract(ctx, archive, nil, handler); err != nil {
		return "", errors.Wrap(err, "Extract")
	}
	return logStartMarker + "\n" + buf.String() + logEndMarker, nil
}

func isFullRunLog(name string) bool {
	return strings.HasPrefix(name, "0_") && strings.HasSuffix(name, ".txt")
}

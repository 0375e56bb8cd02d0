package runact

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/go-github/v48/github"
	"github.com/jxskiss/base62"
	"github.com/runact/runact/internal/errors"
)

// newRunToken returns a fresh correlation token: a URL-safe random string
// passed as the dispatch event's "id" input. The workflow's run-name embeds
// it, which is the only way to find the run afterwards since the dispatch
// call returns no run identifier.
func newRunToken() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", errors.Wrap(err, "Read")
	}
	return base62.EncodeToString(buf[:]), nil
}

// findRun scans runs created within the correlation window for one whose
// display name contains token. Substring containment, not equality: the
// run-name template wraps the token in other text. Returns nil when no run
// matches yet.
func (r *Runner) findRun(ctx context.Context, workflowFile, branch, token string) (*github.WorkflowRun, error) {
	since := time.Now().Add(-r.window())
	runs, err := r.Gateway.ListRecentRuns(ctx, workflowFile, branch, since)
	if err != nil {
		return nil, errors.Wrap(err, "ListRecentRuns")
	}
	var matches []*github.WorkflowRun
	for _, run := range runs {
		if strings.Contains(run.GetName(), token) {
			matches = append(matches, run)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		r.Log.Logf("warning: %d runs match token %s, taking the first", len(matches), token)
	}
	return matches[0], nil
}

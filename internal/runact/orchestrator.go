package runact

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/go-github/v48/github"
	"github.com/runact/runact/internal/errors"
)

// Gateway is the remote GitHub API surface the orchestrator calls. The
// production implementation lives in internal/gh; tests substitute a fake.
type Gateway interface {
	// Branch returns nil if the branch exists.
	Branch(ctx context.Context, name string) error

	// Commit returns nil if the revision exists.
	Commit(ctx context.Context, rev string) error

	// DispatchWorkflow requests a workflow_dispatch event and reports the
	// observed HTTP status. GitHub returns no run identifier here; the run
	// is found later via the correlation token passed in inputs.
	DispatchWorkflow(ctx context.Context, workflowFile, branch string, inputs map[string]interface{}) (int, error)

	// ListRecentRuns lists runs of the workflow on branch created at or
	// after since.
	ListRecentRuns(ctx context.Context, workflowFile, branch string, since time.Time) ([]*github.WorkflowRun, error)

	ListArtifacts(ctx context.Context, runID int64) ([]*github.Artifact, error)

	// ArtifactURL returns a short-lived signed download URL. Fetch it
	// immediately before use; it expires after about a minute.
	ArtifactURL(ctx context.Context, artifactID int64) (*url.URL, error)

	// RunLogsURL returns a short-lived signed URL for the run's log archive.
	RunLogsURL(ctx context.Context, runID int64) (*url.URL, error)

	PublicKey(ctx context.Context) (*github.PublicKey, error)
	SecretNames(ctx context.Context) ([]string, error)
	UpsertSecret(ctx context.Context, name, keyID, encryptedValue string) error
	DeleteSecret(ctx context.Context, name string) error
}

// RunRequest describes one orchestration: which workflow to dispatch where,
// how long each wait stage may take, and what to do before and after.
type RunRequest struct {
	Owner, Repo  string
	WorkflowFile string
	Branch       string
	Rev          string

	// ArtifactsPath is the directory run artifacts are extracted into.
	// Artifacts are not downloaded if empty.
	ArtifactsPath string

	// ArtifactsGlob filters artifacts by name. Defaults to "*".
	ArtifactsGlob string

	CommitTimeout        time.Duration
	BranchTimeout        time.Duration
	RunCreationTimeout   time.Duration
	RunCompletionTimeout time.Duration

	// Secrets are KEY=VALUE entries upserted before dispatching. Entries
	// not matching KEY=VALUE are skipped with a warning.
	Secrets []string

	// SyncSecrets deletes repository secrets not present in Secrets.
	SyncSecrets bool
}

const (
	defaultPollInterval    = 2 * time.Second
	defaultRunQueryWindow  = 5 * time.Minute
	defaultMaxArchiveBytes = 1 << 30 // 1 GiB
	conclusionSuccess      = "success"
)

// inProgressStatuses is the closed-world set of non-terminal run statuses.
// Any status outside it is treated as terminal, so future GitHub status
// values terminate the wait without a code change here.
var inProgressStatuses = map[string]bool{
	"queued":      true,
	"requested":   true,
	"waiting":     true,
	"pending":     true,
	"in_progress": true,
}

// Runner sequences a single workflow orchestration: wait for the commit and
// branch, optionally sync secrets, dispatch, wait for the run to appear and
// finish, fetch its logs, check its conclusion, and optionally download
// artifacts. A Runner holds no per-run state and performs no retries beyond
// the wait stages' own polling.
type Runner struct {
	Gateway Gateway
	Log     *Logger

	// Interval between poll attempts. Defaults to 2s.
	Interval time.Duration

	// Window bounds the created>= filter when listing runs for
	// correlation. Defaults to 5m.
	Window time.Duration

	// MaxArchiveBytes caps each artifact or log archive download.
	// Defaults to 1 GiB.
	MaxArchiveBytes int64
}

// NewRunner builds a Runner from a Config, applying defaults for unset
// fields.
func NewRunner(gateway Gateway, log *Logger, config *Config) (*Runner, error) {
	r := &Runner{Gateway: gateway, Log: log}
	if config.PollInterval != "" {
		d, err := time.ParseDuration(config.PollInterval)
		if err != nil {
			return nil, errors.Wrap(err, "parsing PollInterval")
		}
		r.Interval = d
	}
	if config.RunQueryWindow != "" {
		d, err := time.ParseDuration(config.RunQueryWindow)
		if err != nil {
			return nil, errors.Wrap(err, "parsing RunQueryWindow")
		}
		r.Window = d
	}
	if config.MaxArtifactSize != "" {
		n, err := humanize.ParseBytes(config.MaxArtifactSize)
		if err != nil {
			return nil, errors.Wrap(err, "parsing MaxArtifactSize")
		}
		r.MaxArchiveBytes = int64(n)
	}
	return r, nil
}

func (r *Runner) interval() time.Duration {
	if r.Interval > 0 {
		return r.Interval
	}
	return defaultPollInterval
}

func (r *Runner) window() time.Duration {
	if r.Window > 0 {
		return r.Window
	}
	return defaultRunQueryWindow
}

func (r *Runner) maxArchiveBytes() int64 {
	if r.MaxArchiveBytes > 0 {
		return r.MaxArchiveBytes
	}
	return defaultMaxArchiveBytes
}

// Run executes the orchestration stages strictly in order. Any stage error
// aborts the whole run. The completed run is returned when known, so
// callers can report its URL and conclusion even on failure.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*github.WorkflowRun, error) {
	r.Log.Logf("waiting for commit %s (timeout %s)", req.Rev, req.CommitTimeout)
	if err := r.waitForCommit(ctx, req.Rev, req.CommitTimeout); err != nil {
		return nil, err
	}
	r.Log.Logf("waiting for branch %s (timeout %s)", req.Branch, req.BranchTimeout)
	if err := r.waitForBranch(ctx, req.Branch, req.BranchTimeout); err != nil {
		return nil, err
	}

	if len(req.Secrets) > 0 || req.SyncSecrets {
		if err := r.SetSecrets(ctx, req.Secrets, req.SyncSecrets); err != nil {
			return nil, err
		}
	}

	token, err := newRunToken()
	if err != nil {
		return nil, errors.Wrap(err, "newRunToken")
	}
	r.Log.Logf("dispatching workflow %s on %s (id %s)", req.WorkflowFile, req.Branch, token)
	status, err := r.Gateway.DispatchWorkflow(ctx, req.WorkflowFile, req.Branch, map[string]interface{}{"id": token})
	if status != http.StatusNoContent {
		return nil, &DispatchError{Status: status, Err: err}
	}
	if err != nil {
		return nil, errors.Wrap(err, "DispatchWorkflow")
	}

	r.Log.Logf("waiting for workflow run to be created (timeout %s)", req.RunCreationTimeout)
	run, err := r.waitForRunCreation(ctx, req, token)
	if err != nil {
		return nil, err
	}
	r.Log.Logf("workflow run created: %s", run.GetHTMLURL())

	run, err = r.waitForRunCompletion(ctx, req, token)
	if err != nil {
		return run, err
	}

	logs, err := r.FetchLogs(ctx, run.GetID())
	if err != nil {
		return run, errors.Wrap(err, "FetchLogs")
	}
	r.Log.Logf("%s", logs)

	if conclusion := run.GetConclusion(); conclusion != conclusionSuccess {
		return run, &WorkflowFailedError{Conclusion: conclusion}
	}
	r.Log.Logf("workflow run succeeded")

	if req.ArtifactsPath != "" {
		if err := r.DownloadArtifacts(ctx, run, req.ArtifactsPath, req.ArtifactsGlob); err != nil {
			return run, err
		}
	}
	return run, nil
}

// waitForCommit polls until the revision is queryable. 404 means GitHub has
// not seen the push yet; 422 means the SHA is not yet resolvable. Both are
// retried. Any other failure is fatal so permission and configuration
// errors are not masked behind a timeout.
func (r *Runner) waitForCommit(ctx context.Context, rev string, timeout time.Duration) error {
	_, err := await(fmt.Sprintf("commit %s", rev), timeout, r.interval(), func() (struct{}, bool, error) {
		err := r.Gateway.Commit(ctx, rev)
		if err == nil {
			return struct{}{}, true, nil
		}
		switch responseStatus(err) {
		case http.StatusNotFound, http.StatusUnprocessableEntity:
			r.Log.Verbosef("commit %s not visible yet", rev)
			return struct{}{}, false, nil
		}
		return struct{}{}, false, errors.Wrap(err, "Commit")
	})
	return err
}

func (r *Runner) waitForBranch(ctx context.Context, branch string, timeout time.Duration) error {
	_, err := await(fmt.Sprintf("branch %s", branch), timeout, r.interval(), func() (struct{}, bool, error) {
		err := r.Gateway.Branch(ctx, branch)
		if err == nil {
			return struct{}{}, true, nil
		}
		if isNotFound(err) {
			r.Log.Verbosef("branch %s not visible yet", branch)
			return struct{}{}, false, nil
		}
		return struct{}{}, false, errors.Wrap(err, "Branch")
	})
	return err
}

// waitForRunCreation polls until the dispatched run is visible, whatever
// its status.
func (r *Runner) waitForRunCreation(ctx context.Context, req RunRequest, token string) (*github.WorkflowRun, error) {
	return await("workflow run creation", req.RunCreationTimeout, r.interval(), func() (*github.WorkflowRun, bool, error) {
		run, err := r.findRun(ctx, req.WorkflowFile, req.Branch, token)
		if err != nil {
			return nil, false, err
		}
		if run == nil {
			r.Log.Verbosef("workflow run not visible yet")
			return nil, false, nil
		}
		return run, true, nil
	})
}

// waitForRunCompletion polls until the run reaches a terminal status. A run
// that disappears from the query window after having been seen is treated
// as still running, not as an error.
func (r *Runner) waitForRunCompletion(ctx context.Context, req RunRequest, token string) (*github.WorkflowRun, error) {
	return await("workflow run completion", req.RunCompletionTimeout, r.interval(), func() (*github.WorkflowRun, bool, error) {
		run, err := r.findRun(ctx, req.WorkflowFile, req.Branch, token)
		if err != nil {
			return nil, false, err
		}
		if run == nil {
			r.Log.Verbosef("workflow run not visible in query window, still waiting")
			return nil, false, nil
		}
		if inProgressStatuses[run.GetStatus()] {
			elapsed := time.Since(run.GetRunStartedAt().Time).Round(time.Second)
			r.Log.Logf("workflow run %s for %s", run.GetStatus(), elapsed)
			return nil, false, nil
		}
		return run, true, nil
	})
}

package runact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v48/github"
	"github.com/hexops/autogold/v2"
	"github.com/runact/runact/internal/errors"
)

// fakeGateway scripts Gateway responses and records every call, in order.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	commitErrs []error // consumed one per Commit call; empty means success
	branchErrs []error

	dispatchStatus int // 0 means 204
	dispatchErr    error
	dispatchedID   string

	// runStatuses is consumed one per ListRecentRuns call; "" yields no
	// runs, anything else yields a single run named after the dispatched
	// correlation token with that status. The last entry repeats.
	runStatuses   []string
	runConclusion string
	// runPages overrides runStatuses with explicit result pages.
	runPages [][]*github.WorkflowRun

	artifacts    []*github.Artifact
	artifactsErr error
	artifactURL  string
	logsURL      string

	secretNames    []string
	secretNamesErr error
	publicKey      *github.PublicKey
	publicKeyErr   error
	upsertErrs     map[string]error
	deleteErrs     map[string]error
	upserted       []string
	deleted        []string
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func popErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (g *fakeGateway) Commit(ctx context.Context, rev string) error {
	g.record("Commit")
	return popErr(&g.commitErrs)
}

func (g *fakeGateway) Branch(ctx context.Context, name string) error {
	g.record("Branch")
	return popErr(&g.branchErrs)
}

func (g *fakeGateway) DispatchWorkflow(ctx context.Context, workflowFile, branch string, inputs map[string]interface{}) (int, error) {
	g.record("DispatchWorkflow")
	if id, ok := inputs["id"].(string); ok {
		g.dispatchedID = id
	}
	if g.dispatchStatus == 0 {
		return http.StatusNoContent, g.dispatchErr
	}
	return g.dispatchStatus, g.dispatchErr
}

func (g *fakeGateway) ListRecentRuns(ctx context.Context, workflowFile, branch string, since time.Time) ([]*github.WorkflowRun, error) {
	g.record("ListRecentRuns")
	if len(g.runPages) > 0 {
		page := g.runPages[0]
		if len(g.runPages) > 1 {
			g.runPages = g.runPages[1:]
		}
		return page, nil
	}
	if len(g.runStatuses) == 0 {
		return nil, nil
	}
	status := g.runStatuses[0]
	if len(g.runStatuses) > 1 {
		g.runStatuses = g.runStatuses[1:]
	}
	if status == "" {
		return nil, nil
	}
	conclusion := g.runConclusion
	if conclusion == "" {
		conclusion = "success"
	}
	return []*github.WorkflowRun{{
		ID:           github.Int64(7),
		Name:         github.String(fmt.Sprintf("CI run %s", g.dispatchedID)),
		Status:       github.String(status),
		Conclusion:   github.String(conclusion),
		HTMLURL:      github.String("https://github.com/owner/repo/actions/runs/7"),
		RunStartedAt: &github.Timestamp{Time: time.Now()},
	}}, nil
}

func (g *fakeGateway) ListArtifacts(ctx context.Context, runID int64) ([]*github.Artifact, error) {
	g.record("ListArtifacts")
	return g.artifacts, g.artifactsErr
}

func (g *fakeGateway) ArtifactURL(ctx context.Context, artifactID int64) (*url.URL, error) {
	g.record("ArtifactURL")
	return url.Parse(g.artifactURL)
}

func (g *fakeGateway) RunLogsURL(ctx context.Context, runID int64) (*url.URL, error) {
	g.record("RunLogsURL")
	return url.Parse(g.logsURL)
}

func (g *fakeGateway) PublicKey(ctx context.Context) (*github.PublicKey, error) {
	g.record("PublicKey")
	return g.publicKey, g.publicKeyErr
}

func (g *fakeGateway) SecretNames(ctx context.Context) ([]string, error) {
	g.record("SecretNames")
	return g.secretNames, g.secretNamesErr
}

func (g *fakeGateway) UpsertSecret(ctx context.Context, name, keyID, encryptedValue string) error {
	g.record("UpsertSecret")
	g.mu.Lock()
	g.upserted = append(g.upserted, name)
	g.mu.Unlock()
	return g.upsertErrs[name]
}

func (g *fakeGateway) DeleteSecret(ctx context.Context, name string) error {
	g.record("DeleteSecret")
	g.mu.Lock()
	g.deleted = append(g.deleted, name)
	g.mu.Unlock()
	return g.deleteErrs[name]
}

func newTestRunner(g *fakeGateway) *Runner {
	return &Runner{
		Gateway:  g,
		Log:      NewLogger(io.Discard, true),
		Interval: time.Millisecond,
		Window:   time.Minute,
	}
}

// statusErr mimics a go-github error response with the given status code.
func statusErr(code int) error {
	return &github.ErrorResponse{
		Response: &http.Response{
			StatusCode: code,
			Request:    &http.Request{Method: "GET", URL: &url.URL{}},
		},
		Message: http.StatusText(code),
	}
}

// makeZip builds an in-memory zip archive with the given entries.
func makeZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, contents := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(contents)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// serveZip returns the URL of a test server responding with the archive.
func serveZip(t *testing.T, archive []byte) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestWaitForCommit_retriesNotFoundAndUnprocessable(t *testing.T) {
	g := &fakeGateway{commitErrs: []error{statusErr(404), statusErr(422)}}
	r := newTestRunner(g)
	if err := r.waitForCommit(context.Background(), "abc1234", time.Second); err != nil {
		t.Fatal(err)
	}
	if got := len(g.calls); got != 3 {
		t.Fatalf("got %d commit probes, want 3", got)
	}
}

func TestWaitForCommit_serverErrorIsFatal(t *testing.T) {
	g := &fakeGateway{commitErrs: []error{statusErr(500)}}
	r := newTestRunner(g)
	err := r.waitForCommit(context.Background(), "abc1234", time.Second)
	if err == nil {
		t.Fatal("expected error")
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		t.Fatalf("got timeout, want immediate failure: %v", err)
	}
	if got := len(g.calls); got != 1 {
		t.Fatalf("got %d commit probes, want 1", got)
	}
}

func TestWaitForCommit_timesOut(t *testing.T) {
	g := &fakeGateway{commitErrs: []error{
		statusErr(404), statusErr(404), statusErr(404), statusErr(404),
		statusErr(404), statusErr(404), statusErr(404), statusErr(404),
	}}
	r := newTestRunner(g)
	err := r.waitForCommit(context.Background(), "abc1234", 5*time.Millisecond)
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("got %v, want TimeoutError", err)
	}
	autogold.Expect("timed out waiting for commit abc1234 after 5ms").Equal(t, timeout.Error())
}

func TestWaitForBranch_unprocessableIsFatal(t *testing.T) {
	// 422 is retried for commits only; a branch lookup must fail.
	g := &fakeGateway{branchErrs: []error{statusErr(422)}}
	r := newTestRunner(g)
	if err := r.waitForBranch(context.Background(), "main", time.Second); err == nil {
		t.Fatal("expected error")
	}
	if got := len(g.calls); got != 1 {
		t.Fatalf("got %d branch probes, want 1", got)
	}
}

func TestWaitForRunCompletion_pollsWhileInProgress(t *testing.T) {
	g := &fakeGateway{dispatchedID: "tok", runStatuses: []string{"queued", "in_progress", "completed"}, runConclusion: "success"}
	r := newTestRunner(g)
	run, err := r.waitForRunCompletion(context.Background(), RunRequest{RunCompletionTimeout: time.Second}, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if got := run.GetStatus(); got != "completed" {
		t.Fatalf("got status %q, want completed", got)
	}
	if got := len(g.calls); got != 3 {
		t.Fatalf("got %d polls, want 3", got)
	}
}

func TestWaitForRunCompletion_unknownStatusIsTerminal(t *testing.T) {
	for _, status := range []string{"completed", "cancelled", "skipped", "some_future_status"} {
		g := &fakeGateway{dispatchedID: "tok", runStatuses: []string{status}, runConclusion: "cancelled"}
		r := newTestRunner(g)
		run, err := r.waitForRunCompletion(context.Background(), RunRequest{RunCompletionTimeout: time.Second}, "tok")
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if got := run.GetStatus(); got != status {
			t.Fatalf("got status %q, want %q", got, status)
		}
	}
}

func TestWaitForRunCompletion_toleratesRunDisappearing(t *testing.T) {
	// A run that drops out of the query window is "not yet complete", not
	// an error.
	g := &fakeGateway{dispatchedID: "tok", runStatuses: []string{"in_progress", "", "completed"}}
	r := newTestRunner(g)
	run, err := r.waitForRunCompletion(context.Background(), RunRequest{RunCompletionTimeout: time.Second}, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if got := run.GetStatus(); got != "completed" {
		t.Fatalf("got status %q, want completed", got)
	}
}

func TestRun_dispatchFailure(t *testing.T) {
	g := &fakeGateway{dispatchStatus: http.StatusUnprocessableEntity}
	r := newTestRunner(g)
	_, err := r.Run(context.Background(), RunRequest{
		WorkflowFile:  "build.yml",
		Branch:        "main",
		Rev:           "abc1234",
		CommitTimeout: time.Second, BranchTimeout: time.Second,
	})
	var dispatch *DispatchError
	if !errors.As(err, &dispatch) {
		t.Fatalf("got %v, want DispatchError", err)
	}
	if dispatch.Status != http.StatusUnprocessableEntity {
		t.Fatalf("got status %d, want 422", dispatch.Status)
	}
}

func TestRun_endToEnd(t *testing.T) {
	logsURL := serveZip(t, makeZip(t, map[string]string{
		"0_build.txt": "it works\n",
		"1_build.txt": "per-step noise\n",
	}))
	g := &fakeGateway{runStatuses: []string{"completed"}, runConclusion: "success", logsURL: logsURL}
	r := newTestRunner(g)
	var out bytes.Buffer
	r.Log = NewLogger(&out, false)

	run, err := r.Run(context.Background(), RunRequest{
		Owner: "owner", Repo: "repo",
		WorkflowFile: "build.yml",
		Branch:       "main",
		Rev:          "abc1234",
		CommitTimeout: time.Second, BranchTimeout: time.Second,
		RunCreationTimeout: time.Second, RunCompletionTimeout: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if run.GetConclusion() != "success" {
		t.Fatalf("got conclusion %q", run.GetConclusion())
	}

	// No secrets and no artifacts path were given, so no secret or
	// artifact calls may occur.
	autogold.Expect([]string{
		"Commit", "Branch", "DispatchWorkflow", "ListRecentRuns",
		"ListRecentRuns", "RunLogsURL",
	}).Equal(t, g.calls)

	if want := "it works"; !bytes.Contains(out.Bytes(), []byte(want)) {
		t.Fatalf("log output missing %q:\n%s", want, out.String())
	}
}

func TestRun_failedConclusionStillFetchesLogs(t *testing.T) {
	logsURL := serveZip(t, makeZip(t, map[string]string{"0_build.txt": "boom\n"}))
	g := &fakeGateway{runStatuses: []string{"completed"}, runConclusion: "failure", logsURL: logsURL}
	r := newTestRunner(g)

	_, err := r.Run(context.Background(), RunRequest{
		WorkflowFile: "build.yml", Branch: "main", Rev: "abc1234",
		CommitTimeout: time.Second, BranchTimeout: time.Second,
		RunCreationTimeout: time.Second, RunCompletionTimeout: time.Second,
	})
	var failed *WorkflowFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("got %v, want WorkflowFailedError", err)
	}
	if failed.Conclusion != "failure" {
		t.Fatalf("got conclusion %q, want failure", failed.Conclusion)
	}
	if got := g.calls[len(g.calls)-1]; got != "RunLogsURL" {
		t.Fatalf("logs were not fetched before the conclusion check: %v", g.calls)
	}
}

package runact

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v48/github"
	"github.com/runact/runact/internal/errors"
)

// TimeoutError reports that a wait stage did not observe its condition
// within the stage's timeout.
type TimeoutError struct {
	// What names the condition being awaited, e.g. "commit abc1234".
	What string

	// After is the timeout that elapsed.
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %s", e.What, e.After)
}

// DispatchError reports that the workflow dispatch call did not return
// HTTP 204.
type DispatchError struct {
	Status int
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("workflow dispatch failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("workflow dispatch failed with status %d", e.Status)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// WorkflowFailedError reports a run that completed with a conclusion other
// than "success".
type WorkflowFailedError struct {
	Conclusion string
}

func (e *WorkflowFailedError) Error() string {
	return fmt.Sprintf("workflow concluded with %q", e.Conclusion)
}

// ErrNoArtifacts is returned when artifact download was requested but the
// completed run produced no matching artifacts.
var ErrNoArtifacts = errors.New("no artifacts found for run")

// SecretsSyncError aggregates per-secret failures from a synchronization
// pass. Every operation is attempted before this is returned.
type SecretsSyncError struct {
	// Failed holds the secret names whose delete or upsert failed.
	Failed []string
}

func (e *SecretsSyncError) Error() string {
	return fmt.Sprintf("failed to sync secrets: %s", strings.Join(e.Failed, ", "))
}

// responseStatus extracts the HTTP status code from a go-github error, or
// zero if err carries none (e.g. a transport error).
func responseStatus(err error) int {
	var gerr *github.ErrorResponse
	if errors.As(err, &gerr) && gerr.Response != nil {
		return gerr.Response.StatusCode
	}
	return 0
}

func isNotFound(err error) bool {
	return responseStatus(err) == http.StatusNotFound
}

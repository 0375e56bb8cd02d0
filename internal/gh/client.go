// Package gh wraps the GitHub REST API surface the orchestrator consumes.
package gh

import (
	"context"
	"net/url"
	"time"

	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"
)

// Client implements runact.Gateway against a single repository.
type Client struct {
	Owner string
	Repo  string

	gh *github.Client
}

func NewClient(ctx context.Context, accessToken, owner, repo string) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: accessToken},
	)
	tc := oauth2.NewClient(ctx, ts)
	return &Client{Owner: owner, Repo: repo, gh: github.NewClient(tc)}
}

func (c *Client) Branch(ctx context.Context, name string) error {
	_, _, err := c.gh.Repositories.GetBranch(ctx, c.Owner, c.Repo, name, false)
	return err
}

func (c *Client) Commit(ctx context.Context, rev string) error {
	_, _, err := c.gh.Repositories.GetCommit(ctx, c.Owner, c.Repo, rev, nil)
	return err
}

func (c *Client) DispatchWorkflow(ctx context.Context, workflowFile, branch string, inputs map[string]interface{}) (int, error) {
	resp, err := c.gh.Actions.CreateWorkflowDispatchEventByFileName(ctx, c.Owner, c.Repo, workflowFile, github.CreateWorkflowDispatchEventRequest{
		Ref:    branch,
		Inputs: inputs,
	})
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return status, err
}

func (c *Client) ListRecentRuns(ctx context.Context, workflowFile, branch string, since time.Time) ([]*github.WorkflowRun, error) {
	runs, _, err := c.gh.Actions.ListWorkflowRunsByFileName(ctx, c.Owner, c.Repo, workflowFile, &github.ListWorkflowRunsOptions{
		Branch:  branch,
		Created: ">=" + since.UTC().Format(time.RFC3339),
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	})
	if err != nil {
		return nil, err
	}
	return runs.WorkflowRuns, nil
}

func (c *Client) ListArtifacts(ctx context.Context, runID int64) ([]*github.Artifact, error) {
	var artifacts []*github.Artifact
	page := 0
	for {
		list, resp, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, c.Owner, c.Repo, runID, &github.ListOptions{
			Page:    page,
			PerPage: 100,
		})
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, list.Artifacts...)
		if resp.NextPage == 0 {
			return artifacts, nil
		}
		page = resp.NextPage
	}
}

func (c *Client) ArtifactURL(ctx context.Context, artifactID int64) (*url.URL, error) {
	u, _, err := c.gh.Actions.DownloadArtifact(ctx, c.Owner, c.Repo, artifactID, true)
	return u, err
}

func (c *Client) RunLogsURL(ctx context.Context, runID int64) (*url.URL, error) {
	u, _, err := c.gh.Actions.GetWorkflowRunLogs(ctx, c.Owner, c.Repo, runID, true)
	return u, err
}

func (c *Client) PublicKey(ctx context.Context) (*github.PublicKey, error) {
	key, _, err := c.gh.Actions.GetRepoPublicKey(ctx, c.Owner, c.Repo)
	return key, err
}

func (c *Client) SecretNames(ctx context.Context) ([]string, error) {
	var names []string
	page := 0
	for {
		secrets, resp, err := c.gh.Actions.ListRepoSecrets(ctx, c.Owner, c.Repo, &github.ListOptions{
			Page:    page,
			PerPage: 100,
		})
		if err != nil {
			return nil, err
		}
		for _, secret := range secrets.Secrets {
			names = append(names, secret.Name)
		}
		if resp.NextPage == 0 {
			return names, nil
		}
		page = resp.NextPage
	}
}

func (c *Client) UpsertSecret(ctx context.Context, name, keyID, encryptedValue string) error {
	_, err := c.gh.Actions.CreateOrUpdateRepoSecret(ctx, c.Owner, c.Repo, &github.EncryptedSecret{
		Name:           name,
		KeyID:          keyID,
		EncryptedValue: encryptedValue,
	})
	return err
}

func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	_, err := c.gh.Actions.DeleteRepoSecret(ctx, c.Owner, c.Repo, name)
	return err
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/hexops/cmder"
	"github.com/runact/runact/internal/errors"
	"github.com/runact/runact/internal/gh"
	"github.com/runact/runact/internal/runact"
)

func init() {
	const usage = `
Examples:

  Trigger build.yml on main at a revision and wait for it to succeed:

    $ run-action run -repo=owner/repo -workflow=build.yml -branch=main -rev=abc1234

  Also sync repository secrets and download produced artifacts:

    $ run-action run -repo=owner/repo -workflow=build.yml -branch=main -rev=abc1234 \
        -secret=FOO=bar -sync-secrets -artifacts-path=out/

The GitHub access token is read from the GITHUB_TOKEN environment variable.
`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		configFile           = flagSet.String("config", defaultConfigFilePath(), "Path to TOML configuration file (see internal/runact/config.go)")
		repo                 = flagSet.String("repo", "", "GitHub repository in owner/name form (required)")
		workflow             = flagSet.String("workflow", "", "workflow file to dispatch, e.g. build.yml (required)")
		branch               = flagSet.String("branch", "", "branch to run the workflow on (required)")
		rev                  = flagSet.String("rev", "", "commit SHA the workflow run is for (required)")
		artifactsPath        = flagSet.String("artifacts-path", "", "directory to download run artifacts into (artifacts are skipped if empty)")
		artifactsGlob        = flagSet.String("artifacts-glob", "*", "artifact name pattern selecting which artifacts to download")
		commitTimeout        = flagSet.Int("commit-timeout", 300, "seconds to wait for the commit to exist")
		branchTimeout        = flagSet.Int("branch-timeout", 300, "seconds to wait for the branch to exist")
		runCreationTimeout   = flagSet.Int("workflow-run-creation-timeout", 300, "seconds to wait for the workflow run to be created")
		runCompletionTimeout = flagSet.Int("workflow-run-completion-timeout", 300, "seconds to wait for the workflow run to complete")
		syncSecrets          = flagSet.Bool("sync-secrets", false, "delete repository secrets not passed via -secret")
		verbose              = flagSet.Bool("verbose", false, "enable verbose logging")
	)
	var secrets repeatedFlag
	flagSet.Var(&secrets, "secret", "KEY=VALUE repository secret to set before dispatching (repeatable)")

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)
		owner, name, err := splitRepo(*repo)
		if err != nil {
			return &cmder.UsageError{Err: err}
		}
		if *workflow == "" || *branch == "" || *rev == "" {
			return &cmder.UsageError{Err: errors.New("-workflow, -branch and -rev are required")}
		}
		accessToken := os.Getenv("GITHUB_TOKEN")
		if accessToken == "" {
			return errors.New("GITHUB_TOKEN must be set")
		}

		var config runact.Config
		if err := runact.LoadConfig(*configFile, &config); err != nil {
			return errors.Wrap(err, "LoadConfig")
		}

		ctx := context.Background()
		logger := runact.NewLogger(os.Stderr, *verbose)
		runner, err := runact.NewRunner(gh.NewClient(ctx, accessToken, owner, name), logger, &config)
		if err != nil {
			return errors.Wrap(err, "NewRunner")
		}

		req := runact.RunRequest{
			Owner:                owner,
			Repo:                 name,
			WorkflowFile:         *workflow,
			Branch:               *branch,
			Rev:                  *rev,
			ArtifactsPath:        *artifactsPath,
			ArtifactsGlob:        *artifactsGlob,
			CommitTimeout:        time.Duration(*commitTimeout) * time.Second,
			BranchTimeout:        time.Duration(*branchTimeout) * time.Second,
			RunCreationTimeout:   time.Duration(*runCreationTimeout) * time.Second,
			RunCompletionTimeout: time.Duration(*runCompletionTimeout) * time.Second,
			Secrets:              secrets,
			SyncSecrets:          *syncSecrets,
		}

		started := time.Now()
		run, runErr := runner.Run(ctx, req)

		outcome := "success"
		runURL := ""
		if runErr != nil {
			outcome = runErr.Error()
		}
		if run != nil {
			runURL = run.GetHTMLURL()
		}
		summary := fmt.Sprintf("workflow %s on %s/%s@%s: %s", *workflow, *repo, *branch, *rev, outcome)
		if runURL != "" {
			summary += " " + runURL
		}

		notifier := &runact.Notifier{WebhookURL: config.DiscordWebhookURL, Log: logger}
		notifier.Notify(summary)
		recordHistory(ctx, logger, &config, req, run, started)

		return runErr
	}

	// Register the command.
	commands = append(commands, &cmder.Command{
		FlagSet: flagSet,
		Aliases: []string{},
		Handler: handler,
		UsageFunc: func() {
			fmt.Fprintf(flag.CommandLine.Output(), "Usage of 'run-action %s':\n", flagSet.Name())
			flagSet.PrintDefaults()
			fmt.Printf("%s", usage)
		},
	})
}

// repeatedFlag collects every occurrence of a repeatable string flag.
type repeatedFlag []string

func (f *repeatedFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *repeatedFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", errors.New("-repo must be in owner/name form")
	}
	return owner, name, nil
}

func defaultConfigFilePath() string {
	u, err := user.Current()
	if err == nil {
		return filepath.Join(u.HomeDir, ".run-action/config.toml")
	}
	return "config.toml"
}

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/go-github/v48/github"
	"github.com/hexops/cmder"
	"github.com/runact/runact/internal/errors"
	"github.com/runact/runact/internal/runact"
)

func init() {
	const usage = `
Examples:

  List recorded workflow runs:

    $ run-action history

History is recorded only when HistoryFile is set in the config file.
`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("history", flag.ExitOnError)
	configFile := flagSet.String("config", defaultConfigFilePath(), "Path to TOML configuration file (see internal/runact/config.go)")
	limit := flagSet.Int("n", 20, "maximum number of runs to list")

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)

		var config runact.Config
		if err := runact.LoadConfig(*configFile, &config); err != nil {
			return errors.Wrap(err, "LoadConfig")
		}
		if config.HistoryFile == "" {
			return errors.New("HistoryFile is not configured; see internal/runact/config.go")
		}
		store, err := runact.OpenStore(config.HistoryFile)
		if err != nil {
			return errors.Wrap(err, "OpenStore")
		}
		defer store.Close()

		records, err := store.Runs(context.Background(), *limit)
		if err != nil {
			return errors.Wrap(err, "Runs")
		}
		if len(records) == 0 {
			fmt.Println("no recorded runs found")
		}
		for _, rec := range records {
			fmt.Printf("%s %s@%s (%s)\n", rec.Repo, rec.Workflow, rec.Branch, rec.Conclusion)
			fmt.Printf("    revision: %s\n", rec.Revision)
			if rec.RunURL != "" {
				fmt.Printf("    run: %s\n", rec.RunURL)
			}
			fmt.Printf("    started: %v ago, took %v\n\n", time.Since(rec.StartedAt).Round(time.Second), rec.Duration.Round(time.Second))
		}
		return nil
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

// recordHistory best-effort records a finished orchestration; failures are
// logged and never change the command's outcome.
func recordHistory(ctx context.Context, logger *runact.Logger, config *runact.Config, req runact.RunRequest, run *github.WorkflowRun, started time.Time) {
	if config.HistoryFile == "" {
		return
	}
	store, err := runact.OpenStore(config.HistoryFile)
	if err != nil {
		logger.Logf("history: OpenStore: %v", err)
		return
	}
	defer store.Close()

	conclusion := "error"
	runURL := ""
	if run != nil {
		runURL = run.GetHTMLURL()
		if run.GetConclusion() != "" {
			conclusion = run.GetConclusion()
		}
	}
	err = store.RecordRun(ctx, runact.RunRecord{
		Repo:       req.Owner + "/" + req.Repo,
		Workflow:   req.WorkflowFile,
		Branch:     req.Branch,
		Revision:   req.Rev,
		RunURL:     runURL,
		Conclusion: conclusion,
		StartedAt:  started,
		Duration:   time.Since(started),
	})
	if err != nil {
		logger.Logf("history: RecordRun: %v", err)
	}
}

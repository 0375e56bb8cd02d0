package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hexops/cmder"
	"github.com/manifoldco/promptui"
	"github.com/runact/runact/internal/runact"
)

func init() {
	const usage = `
Examples:

  Set secrets, leaving others untouched:

    $ run-action secret -repo=owner/name sync FOO=bar BAZ=qux

  Set secrets and delete every other repository secret:

    $ run-action secret -repo=owner/name sync -prune FOO=bar

`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("sync", flag.ExitOnError)
	prune := flagSet.Bool("prune", false, "delete repository secrets not listed in the arguments")
	yes := flagSet.Bool("yes", false, "skip the confirmation prompt before pruning")
	verbose := flagSet.Bool("verbose", false, "enable verbose logging")

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)
		entries := flagSet.Args()

		if *prune && !*yes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Delete repository secrets not among the %d listed", len(entries)),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				fmt.Println("aborted")
				return nil
			}
		}

		ctx := context.Background()
		client, err := secretClient(ctx)
		if err != nil {
			return err
		}
		runner := &runact.Runner{
			Gateway: client,
			Log:     runact.NewLogger(os.Stderr, *verbose),
		}
		return runner.SetSecrets(ctx, entries, *prune)
	}

	// Register the command.
	secretCommands = append(secretCommands, &cmder.Command{
		FlagSet: flagSet,
		Handler: handler,
		UsageFunc: func() {
			fmt.Fprintf(flag.CommandLine.Output(), "Usage of 'run-action secret %s':\n", flagSet.Name())
			flagSet.PrintDefaults()
			fmt.Printf("%s", usage)
		},
	})
}

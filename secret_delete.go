package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/hexops/cmder"
	"github.com/runact/runact/internal/errors"
)

func init() {
	const usage = `
Examples:

  Delete a secret:

    $ run-action secret -repo=owner/name delete [name]

`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("delete", flag.ExitOnError)

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)
		if len(args) != 1 {
			return &cmder.UsageError{Err: errors.New("expected [name] argument")}
		}

		ctx := context.Background()
		client, err := secretClient(ctx)
		if err != nil {
			return err
		}
		if err := client.DeleteSecret(ctx, args[0]); err != nil {
			return errors.Wrap(err, "DeleteSecret")
		}
		return nil
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

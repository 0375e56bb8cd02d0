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

  List secret names:

    $ run-action secret -repo=owner/name list

`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("list", flag.ExitOnError)

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)

		ctx := context.Background()
		client, err := secretClient(ctx)
		if err != nil {
			return err
		}
		names, err := client.SecretNames(ctx)
		if err != nil {
			return errors.Wrap(err, "SecretNames")
		}
		for _, name := range names {
			fmt.Println(name)
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

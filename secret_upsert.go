package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/hexops/cmder"
	"github.com/runact/runact/internal/errors"
	"github.com/runact/runact/internal/runact"
)

func init() {
	const usage = `
Examples:

  Upsert a secret:

    $ run-action secret -repo=owner/name upsert [name] [value]

`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("upsert", flag.ExitOnError)

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)
		if len(args) != 2 {
			return &cmder.UsageError{Err: errors.New("expected [name] [value] arguments")}
		}

		ctx := context.Background()
		client, err := secretClient(ctx)
		if err != nil {
			return err
		}
		key, err := client.PublicKey(ctx)
		if err != nil {
			return errors.Wrap(err, "PublicKey")
		}
		sealed, err := runact.SealSecret(args[1], key.GetKey())
		if err != nil {
			return errors.Wrap(err, "SealSecret")
		}
		if err := client.UpsertSecret(ctx, args[0], key.GetKeyID(), sealed); err != nil {
			return errors.Wrap(err, "UpsertSecret")
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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hexops/cmder"
	"github.com/runact/runact/internal/errors"
	"github.com/runact/runact/internal/gh"
)

// secretCommands contains all registered 'run-action secret' subcommands.
var secretCommands cmder.Commander

var (
	secretFlagSet = flag.NewFlagSet("secret", flag.ExitOnError)
	secretRepo    = secretFlagSet.String("repo", "", "GitHub repository in owner/name form (required)")
)

func init() {
	const usage = `run-action secret: manage repository secrets

Usage:

	run-action secret -repo=owner/name <command> [arguments]

The commands are:

	list         list all secret names
	upsert       create or update a secret
	delete       delete a secret
	sync         reconcile secrets with a desired set

Use "run-action secret <command> -h" for more information about a command.
`

	usageFunc := func() {
		fmt.Printf("%s", usage)
	}
	secretFlagSet.Usage = usageFunc

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = secretFlagSet.Parse(args)
		secretCommands.Run(secretFlagSet, "run-action secret", usage, secretFlagSet.Args())
		return nil
	}

	// Register the command.
	commands = append(commands, &cmder.Command{
		FlagSet:   secretFlagSet,
		Handler:   handler,
		UsageFunc: usageFunc,
	})
}

// secretClient builds a gateway for the repository named by the group's
// -repo flag, authenticated from GITHUB_TOKEN.
func secretClient(ctx context.Context) (*gh.Client, error) {
	owner, name, err := splitRepo(*secretRepo)
	if err != nil {
		return nil, err
	}
	accessToken := os.Getenv("GITHUB_TOKEN")
	if accessToken == "" {
		return nil, errors.New("GITHUB_TOKEN must be set")
	}
	return gh.NewClient(ctx, accessToken, owner, name), nil
}

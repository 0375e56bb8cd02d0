package main

import (
	"flag"
	"fmt"

	"github.com/hexops/cmder"
	"github.com/runact/runact/internal/errors"
	"github.com/runact/runact/internal/runact"
)

func init() {
	usage := `run-action version: print the run-action version

Usage:

	run-action version

`

	// Parse flags for our subcommand.
	flagSet := flag.NewFlagSet("version", flag.ExitOnError)

	// Handles calls to our subcommand.
	handler := func(args []string) error {
		_ = flagSet.Parse(args)
		if len(args) != 0 {
			return &cmder.UsageError{Err: errors.New("expected no arguments")}
		}

		fmt.Println("run-action version", runact.Version, "built using", runact.GoVersion)

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

package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/hexops/cmder"
)

// commands contains all registered subcommands.
var commands cmder.Commander

var usageText = `run-action: trigger a GitHub Actions workflow and wait for it

Usage:

	run-action <command> [arguments]

The commands are:

	run        dispatch a workflow run and wait for it to complete
	secret     manage repository secrets
	history    list recorded workflow runs
	version    print the run-action version

Use "run-action <command> -h" for more information about a command.
`

func main() {
	// Configure logging if desired.
	log.SetFlags(0)
	log.SetPrefix("")

	args := os.Args[1:]
	// `run-action -repo=... -workflow=...` is shorthand for
	// `run-action run -repo=... -workflow=...`.
	if len(args) > 0 && strings.HasPrefix(args[0], "-") {
		args = append([]string{"run"}, args...)
	}
	commands.Run(flag.CommandLine, "run-action", usageText, args)
}

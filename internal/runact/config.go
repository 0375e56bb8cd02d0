package runact

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/runact/runact/internal/errors"
)

// Config holds tunables that rarely change per invocation and so live in a
// TOML file rather than CLI flags. Every field is optional.
type Config struct {
	// PollInterval between probe attempts while waiting, as a Go duration
	// string e.g. "2s".
	PollInterval string

	// RunQueryWindow bounds how far back the run listing looks when
	// correlating a dispatched run, e.g. "5m". Must exceed the slowest
	// expected delay between dispatch and run visibility.
	RunQueryWindow string

	// MaxArtifactSize is the per-archive download ceiling, parsed with
	// humanize.ParseBytes, e.g. "1 GB".
	MaxArtifactSize string

	// DiscordWebhookURL to post a run summary to when an orchestration
	// finishes.
	//
	// Disabled if an empty string.
	DiscordWebhookURL string

	// HistoryFile is the path of a SQLite database recording finished
	// orchestrations, shown by 'run-action history'.
	//
	// Disabled if an empty string.
	HistoryFile string
}

// LoadConfig reads a TOML config file into config. A missing file is not an
// error; all fields have working defaults.
func LoadConfig(file string, config *Config) error {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(file, config)
	return errors.Wrap(err, "DecodeFile")
}

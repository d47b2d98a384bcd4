package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/output"
	"opsconsole/internal/syncs"
)

var (
	Version    = "0.1.0"
	jsonOutput bool
	verbose    bool
	envFile    string
)

// commandsExemptFromDB lists commands that don't require database initialization
var commandsExemptFromDB = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
}

var rootCmd = &cobra.Command{
	Use:   "opc",
	Short: "opsconsole - keeps billing, CRM, source control and team tools in sync",
	Long: `opsconsole (opc) mirrors records from external business systems into a
local database, keeps operator-curated mappings between them, and performs
follow-up actions exactly once.

QUICK START:
  opc init                              # Initialize in current directory
  opc config token billing              # Store an API token (reads stdin)
  opc config set billing.account_id 42  # Non-secret settings
  opc sync companies                    # Mirror billing clients
  opc sync all                          # Run every kind in order

KINDS: companies, crm-companies, repositories, channels, transcripts,
       invoices, releases

MAPPINGS:
  opc mapping add company <billing-id> <crm-id>
  opc mapping add repository <crm-id> <owner/repo>
  opc mapping suggest --apply           # Link exact name matches

HISTORY:
  opc runs list --stale                 # Runs left running past the limit
  opc runs show <id>                    # Counts, errors and details

SERVER: opc serve runs the HTTP API and the cron schedules.

JSON OUTPUT: Add --json flag to any command for machine-readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFiles()...); err != nil {
			return err
		}
		slog.SetDefault(newLogger())
		if commandsExemptFromDB[cmd.Name()] {
			return nil
		}
		return db.EnsureInitialized()
	},
}

func Execute() {
	defer db.CloseDB()

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// reportedError wraps an error whose details are already part of the
// command's JSON output.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// reported marks err as already written when output is JSON, so stdout holds
// a single document.
func reported(err error) error {
	if err == nil || !jsonOutput {
		return err
	}
	return &reportedError{err: err}
}

func printError(err error) {
	var rep *reportedError
	switch {
	case errors.As(err, &rep) && jsonOutput:
		// already in the output
	case jsonOutput:
		OutputJSON(map[string]interface{}{"error": true, "message": err.Error()})
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file instead of .env")
	rootCmd.Version = Version
}

func envFiles() []string {
	if envFile != "" {
		return []string{envFile}
	}
	return nil
}

// newLogger logs to stderr so stdout stays parseable. Without --verbose only
// warnings and errors are shown.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func OutputJSON(data interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(data)
}

func IsJSONOutput() bool {
	return jsonOutput
}

func formatter() output.Formatter {
	return output.New(jsonOutput)
}

// configGetter reads settings from the config table.
func configGetter(key string) (string, error) {
	return db.GetConfig(key)
}

// newRunner builds a Runner from the stored settings and credentials.
func newRunner(opts syncs.Options) *syncs.Runner {
	settings := config.LoadSettings(configGetter)
	if opts.PageSize <= 0 {
		opts.PageSize = settings.PageSize
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = settings.MaxItems
	}
	return &syncs.Runner{
		DB:      db.GetDB(),
		Logger:  slog.Default(),
		Creds:   config.Load(configGetter),
		Options: opts,
	}
}

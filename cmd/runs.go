package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"opsconsole/internal/config"
	"opsconsole/internal/db"
	"opsconsole/internal/models"
	"opsconsole/internal/syncs"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect sync run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Long: `List recent sync runs.

A run still marked running after the max run duration (config key
sync.max_run_duration, default 2h) is reported as stale: the process that
owned it most likely died.`,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a run with its errors and action details",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var (
	runsKind      string
	runsStatus    string
	runsStale     bool
	runsLimit     int
	runsAllErrors bool
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsShowCmd)

	runsListCmd.Flags().StringVarP(&runsKind, "kind", "k", "", "Filter by kind")
	runsListCmd.Flags().StringVarP(&runsStatus, "status", "s", "", "Filter by status (running, completed, failed)")
	runsListCmd.Flags().BoolVar(&runsStale, "stale", false, "Only runs left running past the max run duration")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")

	runsShowCmd.Flags().BoolVar(&runsAllErrors, "all-errors", false, "Show every error instead of a summary")
}

func validRunStatus(status string) bool {
	switch status {
	case "", models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed:
		return true
	}
	return false
}

func runRunsList(cmd *cobra.Command, args []string) error {
	if runsKind != "" && !syncs.IsKind(runsKind) {
		return fmt.Errorf("unknown kind %q", runsKind)
	}
	if !validRunStatus(runsStatus) {
		return fmt.Errorf("invalid status %q", runsStatus)
	}

	maxDuration := config.LoadSettings(configGetter).MaxRunDuration
	runs, err := syncs.ListRuns(context.Background(), db.GetDB(), syncs.RunFilter{
		Kind:           runsKind,
		Status:         runsStatus,
		Stale:          runsStale,
		MaxRunDuration: maxDuration,
		Limit:          runsLimit,
	})
	if err != nil {
		return err
	}

	if len(runs) == 0 && !IsJSONOutput() {
		fmt.Println("No runs found")
		return nil
	}
	formatter().RunList(runs, maxDuration)
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	run, err := syncs.GetRun(context.Background(), db.GetDB(), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}

	formatter().Run(run, runsAllErrors)
	return nil
}

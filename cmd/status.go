package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"opsconsole/internal/db"
	"opsconsole/internal/syncs"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mirrored record counts and the last run of every kind",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	kinds, err := syncs.Overview(context.Background(), db.GetDB())
	if err != nil {
		return err
	}
	formatter().Status(kinds)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"opsconsole/internal/models"
	"opsconsole/internal/syncs"
)

var syncCmd = &cobra.Command{
	Use:   "sync <kind|all>",
	Short: "Mirror records from an external system",
	Long: `Fetch every record of a kind, reconcile it into the local database by
its external id and perform follow-up actions.

Kinds:
  companies      billing clients
  crm-companies  CRM companies
  repositories   source-control repositories
  channels       messaging channels
  transcripts    meeting transcripts
  invoices       billing invoices; creates a CRM deal per mapped invoice
  releases       posts the latest release of mapped repositories to the CRM
  all            every kind above, in this order

Each run is recorded; see 'opc runs list'. Deals and release notes are
created at most once. --no-actions reconciles without creating either.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(append([]string{}, syncs.Kinds...), "all"),
	RunE:      runSync,
}

var (
	syncNoActions bool
	syncPageSize  int
	syncMaxItems  int
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncNoActions, "no-actions", false, "Reconcile without creating deals or notes")
	syncCmd.Flags().IntVar(&syncPageSize, "page-size", 0, "Items per request (default from config)")
	syncCmd.Flags().IntVar(&syncMaxItems, "max-items", 0, "Stop after this many items (default from config)")
}

func runSync(cmd *cobra.Command, args []string) error {
	kind := args[0]
	if kind != "all" && !syncs.IsKind(kind) {
		return fmt.Errorf("unknown kind %q (expected one of %s, all)", kind, strings.Join(syncs.Kinds, ", "))
	}

	runner := newRunner(syncs.Options{
		PageSize:    syncPageSize,
		MaxItems:    syncMaxItems,
		SkipActions: syncNoActions,
	})

	// Ctrl-C stops fetching; the run log is still closed
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := formatter()
	if kind == "all" {
		results, err := runner.RunAll(ctx, models.TriggerManual)
		if IsJSONOutput() {
			OutputJSON(map[string]interface{}{"results": results})
		} else {
			for _, res := range results {
				f.SyncResult(res)
			}
		}
		if err != nil {
			return reported(fmt.Errorf("one or more syncs failed (first: %w)", err))
		}
		return nil
	}

	res, err := runner.Run(ctx, kind, models.TriggerManual)
	if err != nil && res.RunID == 0 {
		// Nothing ran; the error says why
		return err
	}
	f.SyncResult(res)
	return reported(err)
}

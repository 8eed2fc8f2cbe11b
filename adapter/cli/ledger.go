package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var ledgerPruneOlderThan time.Duration

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Maintain the processed-event ledger",
}

var ledgerPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete ledger rows older than the retention window",
	Long: `Prune deletes processed-event records older than --older-than.
A pruned event that the processor redelivers is applied again, so keep the
window well beyond the processor's retry horizon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ledgerPruneOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}

		c, err := containerFor(cmd.Context())
		if err != nil {
			return err
		}

		deleted, err := c.Deduplicator.Prune(cmd.Context(), ledgerPruneOlderThan)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d ledger rows older than %s\n", deleted, ledgerPruneOlderThan)
		return nil
	},
}

func init() {
	ledgerPruneCmd.Flags().DurationVar(&ledgerPruneOlderThan, "older-than", 90*24*time.Hour, "retention window")
	ledgerCmd.AddCommand(ledgerPruneCmd)
	rootCmd.AddCommand(ledgerCmd)
}

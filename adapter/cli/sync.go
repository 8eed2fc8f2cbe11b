package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var syncTrainerID string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync a trainer's connected account from the payment processor",
	RunE: func(cmd *cobra.Command, args []string) error {
		trainerID, err := uuid.Parse(syncTrainerID)
		if err != nil {
			return fmt.Errorf("invalid --trainer %q: %w", syncTrainerID, err)
		}

		c, err := containerFor(cmd.Context())
		if err != nil {
			return err
		}

		status, err := c.Synchronizer.Sync(cmd.Context(), trainerID)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncTrainerID, "trainer", "", "trainer id")
	_ = syncCmd.MarkFlagRequired("trainer")
	rootCmd.AddCommand(syncCmd)
}

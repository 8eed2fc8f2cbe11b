package cli

import (
	"github.com/felixgeelhaar/coachpay/internal/app"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the outbox processor and scheduled compliance sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := containerFor(cmd.Context())
		if err != nil {
			return err
		}
		w, err := app.NewWorker(c)
		if err != nil {
			return err
		}
		return w.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

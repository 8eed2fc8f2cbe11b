package cli

import (
	"fmt"

	"github.com/felixgeelhaar/coachpay/internal/app"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil {
			return errAppNotInitialized
		}
		conn, err := app.Connect(cmd.Context(), a.Config, a.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		applied, err := migrations.Run(cmd.Context(), conn)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
			return nil
		}
		for _, version := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/spf13/cobra"
)

var verbose bool

type commandStartKey struct{}

var rootCmd = &cobra.Command{
	Use:   "coachpay",
	Short: "coachpay - payment reconciliation and compliance for coach marketplaces",
	Long: `coachpay reconciles payment processor events into subscriptions,
subscriber counts, payouts and trainer risk levels.

It serves the processor webhook and compliance API, runs the background
worker, and provides operator commands for account syncs, webhook replays
and ledger maintenance.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if a := GetApp(); a != nil && verbose {
			a.EnableDebug()
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = observability.WithCorrelationID(ctx, "")
		ctx = observability.WithOperation(ctx, cmd.CommandPath())
		ctx = context.WithValue(ctx, commandStartKey{}, time.Now())
		cmd.SetContext(ctx)
		commandLogger().DebugContext(ctx, "command start")
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		started, ok := ctx.Value(commandStartKey{}).(time.Time)
		if !ok {
			return
		}
		commandLogger().DebugContext(ctx, "command end", "duration_ms", time.Since(started).Milliseconds())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// ExecuteContext runs the command tree with ctx. Cancelling ctx stops
// long-running commands such as serve and worker.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func commandLogger() *slog.Logger {
	if a := GetApp(); a != nil && a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

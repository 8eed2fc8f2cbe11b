package cli

import (
	"fmt"

	"github.com/felixgeelhaar/coachpay/adapter/api"
	"github.com/felixgeelhaar/coachpay/internal/shared/infrastructure/security"
	"github.com/felixgeelhaar/coachpay/pkg/observability"
	"github.com/spf13/cobra"
)

var (
	replayEventFile string
	replaySignature string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-deliver a captured webhook payload through the reconciler",
	Long: `Replay reads a webhook body captured from the payment processor and
runs it through signature verification and reconciliation, exactly as the
webhook endpoint would. Events already in the ledger are reported as
already processed and change nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := security.ReadFileLimited(replayEventFile, api.MaxWebhookBodyBytes)
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		c, err := containerFor(cmd.Context())
		if err != nil {
			return err
		}

		ev, err := c.Authenticator.Authenticate(payload, replaySignature)
		if err != nil {
			return err
		}

		ctx := observability.WithCorrelationID(cmd.Context(), ev.ID)
		result, err := c.Reconciler.Reconcile(ctx, ev)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", ev.ID, ev.Type, result)
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayEventFile, "event", "", "path to the raw webhook body")
	replayCmd.Flags().StringVar(&replaySignature, "signature", "", "Stripe-Signature header captured with the body")
	_ = replayCmd.MarkFlagRequired("event")
	_ = replayCmd.MarkFlagRequired("signature")
	rootCmd.AddCommand(replayCmd)
}

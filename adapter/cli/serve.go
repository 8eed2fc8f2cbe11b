package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/felixgeelhaar/coachpay/adapter/api"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the webhook endpoint and compliance API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := containerFor(ctx)
		if err != nil {
			return err
		}

		// The in-process bus only delivers to subscribers in this process,
		// so the API server drains the outbox itself.
		if c.InProcessEventBus != nil && c.Config.OutboxProcessorEnabled {
			if err := c.OutboxProcessor.Start(ctx); err != nil {
				return err
			}
			defer c.OutboxProcessor.Stop()
		}

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = c.Config.HTTPAddr
		if serveAddr != "" {
			serverCfg.Addr = serveAddr
		}

		server := api.NewServer(serverCfg, api.Handlers{
			Webhooks: api.NewWebhookHandler(c.Authenticator, c.Reconciler, c.Metrics, c.Logger),
			Compliance: api.NewComplianceHandler(api.ComplianceHandlerConfig{
				Synchronizer: c.Synchronizer,
				Terms:        c.Terms,
				Queries:      c.Queries,
				Logger:       c.Logger,
			}),
			Metrics: c.Metrics,
			Health:  c.HealthRegistry(),
		}, c.Logger)

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

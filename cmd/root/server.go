package root

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCmdServer(cliCtx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API server",
		Long:  `Start the quayside HTTP API: deploy requests, status polling, archive downloads, and credential ingestion.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cliCtx.app.Server().ListenAndServe(ctx)
		},
	}
}

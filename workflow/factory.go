package workflow

import (
	"context"

	"github.com/quayside-cd/quayside/config"
	"github.com/quayside-cd/quayside/manager"
	"github.com/quayside-cd/quayside/metrics"
	"github.com/quayside-cd/quayside/target"
)

// NewManagerFactory returns the production ManagerFactory: one deployment
// manager per workflow invocation, built from that invocation's resolved
// credentials.
func NewManagerFactory(cfg *config.Config, pusher target.RepoPusher, m *metrics.Metrics) ManagerFactory {
	return func(ctx context.Context, creds manager.Credentials) Deployer {
		return manager.NewManager(ctx, manager.Options{
			Config:      cfg,
			Credentials: creds,
			RepoPusher:  pusher,
			Metrics:     m,
		})
	}
}

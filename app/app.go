// Package app wires the deployment engine together: database, credential
// chain, repository integration, metrics, and the orchestrator. Everything is
// constructor-injected so embedders and tests can swap collaborators.
package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quayside-cd/quayside/config"
	"github.com/quayside-cd/quayside/credentials"
	"github.com/quayside-cd/quayside/db"
	"github.com/quayside-cd/quayside/encryption"
	"github.com/quayside-cd/quayside/ghrepo"
	"github.com/quayside-cd/quayside/metrics"
	"github.com/quayside-cd/quayside/store"
	"github.com/quayside-cd/quayside/target"
	"github.com/quayside-cd/quayside/web"
	"github.com/quayside-cd/quayside/workflow"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// App is the assembled engine.
type App struct {
	Config          *config.Config
	DB              *gorm.DB
	Encryption      *encryption.Service
	CredentialStore *credentials.Store
	Resolver        *credentials.Resolver
	Projects        store.ProjectStore
	RepoService     *ghrepo.Service
	Metrics         *metrics.Metrics
	Archives        *target.LocalTarget
	Orchestrator    *workflow.Orchestrator
}

// New builds the full dependency graph from configuration.
func New(cfg *config.Config) (*App, error) {
	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	enc, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}

	credStore := credentials.NewStore(enc)
	resolver := credentials.NewResolver(credStore, cfg)
	projects := store.NewProjectStore(database)

	var repoOpts []ghrepo.Option
	if cfg.GitHubAPIURL != "" {
		repoOpts = append(repoOpts, ghrepo.WithBaseURL(cfg.GitHubAPIURL))
	}
	repoService := ghrepo.NewService(repoOpts...)

	m := metrics.NewMetrics()
	archives := target.NewLocalTarget(cfg.ArchiveDir)

	orchestrator := workflow.NewOrchestrator(
		resolver,
		projects,
		repoService,
		workflow.NewManagerFactory(cfg, repoService, m),
	)

	return &App{
		Config:          cfg,
		DB:              database,
		Encryption:      enc,
		CredentialStore: credStore,
		Resolver:        resolver,
		Projects:        projects,
		RepoService:     repoService,
		Metrics:         m,
		Archives:        archives,
		Orchestrator:    orchestrator,
	}, nil
}

// Server assembles the HTTP server on the configured address.
func (a *App) Server() *web.Server {
	return web.NewServer(web.Config{
		Addr:         fmt.Sprintf("%s:%d", a.Config.HTTPHost, a.Config.HTTPPort),
		Orchestrator: a.Orchestrator,
		Credentials:  a.CredentialStore,
		Projects:     a.Projects,
		Archives:     a.Archives,
		Metrics:      a.Metrics,
	})
}

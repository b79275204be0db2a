package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/ghrepo"
	"github.com/quayside-cd/quayside/manager"
	"github.com/quayside-cd/quayside/store"
)

// memoryProjectStore is a map-backed ProjectStore for workflow tests.
type memoryProjectStore struct {
	mu          sync.Mutex
	projects    map[string]*store.Project
	deployments map[string][]*store.DeploymentRecord

	updateErr error
	getErr    error
}

func newMemoryProjectStore() *memoryProjectStore {
	return &memoryProjectStore{
		projects:    map[string]*store.Project{},
		deployments: map[string][]*store.DeploymentRecord{},
	}
}

func (s *memoryProjectStore) ProjectExists(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.projects[id]
	return ok, nil
}

func (s *memoryProjectStore) GetProject(id string) (*store.Project, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[id]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	copied := *project
	return &copied, nil
}

func (s *memoryProjectStore) UpdateProject(id, name string, partial map[string]any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[id]
	if !ok {
		project = &store.Project{ID: id, Name: name, Metadata: map[string]any{}}
		s.projects[id] = project
	}
	if name != "" {
		project.Name = name
	}
	for k, v := range partial {
		project.Metadata[k] = v
	}
	return nil
}

func (s *memoryProjectStore) AddDeployment(id string, record *store.DeploymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[id] = append(s.deployments[id], record)
	return nil
}

func (s *memoryProjectStore) ListDeployments(id string) ([]*store.DeploymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deployments[id], nil
}

// mockRepoService counts creation calls so tests can assert at-most-once
// repository creation.
type mockRepoService struct {
	SetupRepositoryFunc func(ctx context.Context, cfg ghrepo.SetupConfig) (*ghrepo.SetupResult, error)
	UploadFilesFunc     func(ctx context.Context, cfg ghrepo.SetupConfig) (*ghrepo.SetupResult, error)

	setupCalls    int
	creationCalls int
	uploadCalls   int
}

func (m *mockRepoService) SetupRepository(ctx context.Context, cfg ghrepo.SetupConfig) (*ghrepo.SetupResult, error) {
	m.setupCalls++
	if m.SetupRepositoryFunc != nil {
		return m.SetupRepositoryFunc(ctx, cfg)
	}

	tracking := ghrepo.ExtractTracking(cfg.Metadata)
	if tracking.RepoCreated && tracking.Repository != nil {
		return &ghrepo.SetupResult{Repository: tracking.Repository, Metadata: cfg.Metadata}, nil
	}

	m.creationCalls++
	repo := &domain.RepositoryInfo{
		Owner:         "quayside-bot",
		Repo:          "my-site-abc12345",
		FullName:      "quayside-bot/my-site-abc12345",
		URL:           "https://github.com/quayside-bot/my-site-abc12345",
		DefaultBranch: "main",
		CommitSHA:     "abc123",
	}
	metadata := map[string]any{}
	for k, v := range cfg.Metadata {
		metadata[k] = v
	}
	metadata[ghrepo.MetadataKey] = map[string]any{
		"repoCreated":   true,
		"filesUploaded": true,
		"repository": map[string]any{
			"owner":         repo.Owner,
			"repo":          repo.Repo,
			"fullName":      repo.FullName,
			"url":           repo.URL,
			"defaultBranch": repo.DefaultBranch,
		},
	}
	return &ghrepo.SetupResult{Repository: repo, Metadata: metadata}, nil
}

func (m *mockRepoService) UploadFiles(ctx context.Context, cfg ghrepo.SetupConfig) (*ghrepo.SetupResult, error) {
	m.uploadCalls++
	if m.UploadFilesFunc != nil {
		return m.UploadFilesFunc(ctx, cfg)
	}

	tracking := ghrepo.ExtractTracking(cfg.Metadata)
	if tracking.Repository == nil {
		return nil, fmt.Errorf("no repository recorded")
	}
	metadata := map[string]any{}
	for k, v := range cfg.Metadata {
		metadata[k] = v
	}
	if block, ok := metadata[ghrepo.MetadataKey].(map[string]any); ok {
		block["filesUploaded"] = true
	}
	return &ghrepo.SetupResult{Repository: tracking.Repository, Metadata: metadata}, nil
}

// mockDeployer records what the orchestrator asked for.
type mockDeployer struct {
	DeployFunc func(ctx context.Context, requested string, opts domain.DeployOptions) (*domain.DeploymentResult, error)
	StatusFunc func(ctx context.Context, targetName, deploymentID string) (*domain.DeploymentStatus, error)

	requestedTarget string
	deployOpts      domain.DeployOptions
	deployCalls     int
}

func (m *mockDeployer) WaitReady(ctx context.Context) error { return nil }

func (m *mockDeployer) DeployWithBestTarget(ctx context.Context, requested string, opts domain.DeployOptions) (*domain.DeploymentResult, error) {
	m.deployCalls++
	m.requestedTarget = requested
	m.deployOpts = opts
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, requested, opts)
	}
	provider := requested
	if provider == "" {
		provider = "local"
	}
	return &domain.DeploymentResult{
		ID:       opts.DeploymentID,
		URL:      "https://" + provider + ".example.com",
		Status:   domain.DeploymentStateSuccess,
		Provider: provider,
	}, nil
}

func (m *mockDeployer) GetDeploymentStatus(ctx context.Context, targetName, deploymentID string) (*domain.DeploymentStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, targetName, deploymentID)
	}
	return &domain.DeploymentStatus{ID: deploymentID, Status: domain.DeploymentStateSuccess}, nil
}

func staticFactory(d Deployer) ManagerFactory {
	return func(ctx context.Context, creds manager.Credentials) Deployer { return d }
}

package manager

import (
	"context"

	"github.com/quayside-cd/quayside/domain"
)

// mockTarget implements target.Target with overridable funcs.
type mockTarget struct {
	name     string
	provider string

	IsAvailableFunc         func(ctx context.Context) bool
	ProjectExistsFunc       func(ctx context.Context, name string) (bool, error)
	InitializeProjectFunc   func(ctx context.Context, opts domain.ProjectOptions) (*domain.ProjectMetadata, error)
	DeployFunc              func(ctx context.Context, opts domain.DeployOptions) (*domain.DeploymentResult, error)
	GetDeploymentStatusFunc func(ctx context.Context, id string) (*domain.DeploymentStatus, error)
	RemoveDeploymentFunc    func(ctx context.Context, id string) (bool, error)

	initializeCalls int
	deployCalls     int
}

func (m *mockTarget) Name() string         { return m.name }
func (m *mockTarget) ProviderType() string { return m.provider }

func (m *mockTarget) IsAvailable(ctx context.Context) bool {
	if m.IsAvailableFunc != nil {
		return m.IsAvailableFunc(ctx)
	}
	return true
}

func (m *mockTarget) ProjectExists(ctx context.Context, name string) (bool, error) {
	if m.ProjectExistsFunc != nil {
		return m.ProjectExistsFunc(ctx, name)
	}
	return false, nil
}

func (m *mockTarget) InitializeProject(ctx context.Context, opts domain.ProjectOptions) (*domain.ProjectMetadata, error) {
	m.initializeCalls++
	if m.InitializeProjectFunc != nil {
		return m.InitializeProjectFunc(ctx, opts)
	}
	return &domain.ProjectMetadata{ID: m.name + "-project", Name: opts.Name, Provider: m.provider}, nil
}

func (m *mockTarget) Deploy(ctx context.Context, opts domain.DeployOptions) (*domain.DeploymentResult, error) {
	m.deployCalls++
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, opts)
	}
	return &domain.DeploymentResult{
		ID:       "deploy-1",
		URL:      "https://" + m.name + ".example.com",
		Status:   domain.DeploymentStateSuccess,
		Provider: m.provider,
	}, nil
}

func (m *mockTarget) Update(ctx context.Context, opts domain.UpdateOptions) (*domain.DeploymentResult, error) {
	return m.Deploy(ctx, opts)
}

func (m *mockTarget) GetDeploymentStatus(ctx context.Context, id string) (*domain.DeploymentStatus, error) {
	if m.GetDeploymentStatusFunc != nil {
		return m.GetDeploymentStatusFunc(ctx, id)
	}
	return &domain.DeploymentStatus{ID: id, Status: domain.DeploymentStateSuccess}, nil
}

func (m *mockTarget) RemoveDeployment(ctx context.Context, id string) (bool, error) {
	if m.RemoveDeploymentFunc != nil {
		return m.RemoveDeploymentFunc(ctx, id)
	}
	return true, nil
}

package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-cd/quayside/credentials"
	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/encryption"
	"github.com/quayside-cd/quayside/ghrepo"
	"github.com/quayside-cd/quayside/store"
	"github.com/quayside-cd/quayside/target"
)

type mapEnv map[string]string

func (e mapEnv) Getenv(key string) string { return e[key] }

func newTestResolver(t *testing.T, env mapEnv) (*credentials.Resolver, *credentials.Store) {
	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	enc, err := encryption.NewService(key)
	require.NoError(t, err)
	credStore := credentials.NewStore(enc)
	return credentials.NewResolver(credStore, env), credStore
}

type fixture struct {
	orchestrator *Orchestrator
	projects     *memoryProjectStore
	repos        *mockRepoService
	deployer     *mockDeployer
	credStore    *credentials.Store
}

func newFixture(t *testing.T, env mapEnv) *fixture {
	resolver, credStore := newTestResolver(t, env)
	projects := newMemoryProjectStore()
	repos := &mockRepoService{}
	deployer := &mockDeployer{}
	return &fixture{
		orchestrator: NewOrchestrator(resolver, projects, repos, staticFactory(deployer)),
		projects:     projects,
		repos:        repos,
		deployer:     deployer,
		credStore:    credStore,
	}
}

func testFiles() map[string]string {
	return map[string]string{"index.html": "<html></html>"}
}

func TestRun_RejectsMalformedInput(t *testing.T) {
	f := newFixture(t, mapEnv{})

	_, err := f.orchestrator.Run(context.Background(), Request{Files: testFiles()})
	assert.Error(t, err)

	_, err = f.orchestrator.Run(context.Background(), Request{ProjectID: "proj-1"})
	assert.Error(t, err)
}

func TestRun_SuccessWithFallbackTarget(t *testing.T) {
	f := newFixture(t, mapEnv{})

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:   "proj-1",
		ProjectName: "My Site",
		Files:       testFiles(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DeploymentStateSuccess, result.Status)
	assert.Equal(t, 1, f.deployer.deployCalls)
	assert.NotEmpty(t, result.Logs)

	project, err := f.projects.GetProject("proj-1")
	require.NoError(t, err)
	assert.Equal(t, result.URL, project.Metadata["lastDeployedUrl"])
	assert.Equal(t, result.Provider, project.Metadata["lastDeploymentTarget"])

	history, err := f.projects.ListDeployments("proj-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeploymentStateSuccess, history[0].Status)
	require.NotNil(t, history[0].CompletedAt)
}

func TestRun_ProviderErrorBecomesFailedResult(t *testing.T) {
	f := newFixture(t, mapEnv{})
	f.deployer.DeployFunc = func(ctx context.Context, requested string, opts domain.DeployOptions) (*domain.DeploymentResult, error) {
		return nil, target.NewDeploymentError("netlify", "provider rejected the payload", nil)
	}

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:   "proj-1",
		ProjectName: "My Site",
		Files:       testFiles(),
		Target:      "netlify",
	})
	require.NoError(t, err, "expected failures never propagate as errors")

	assert.Equal(t, domain.DeploymentStateFailed, result.Status)
	assert.Empty(t, result.URL)
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, result.Logs)

	history, err := f.projects.ListDeployments("proj-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.DeploymentStateFailed, history[0].Status)
}

func TestRun_TenantDeniedBecomesFailedResult(t *testing.T) {
	f := newFixture(t, mapEnv{"NETLIFY_AUTH_TOKEN": "env-token"})
	require.NoError(t, f.credStore.Put("tenant-a", "netlify", "tenant-a-token", ""))

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:   "proj-1",
		ProjectName: "My Site",
		Files:       testFiles(),
		TenantID:    "tenant-b",
	})
	require.NoError(t, err)

	// The only cached netlify credential belongs to tenant-a. The denial
	// is explicit: resolution must not fall through to the environment
	// token, so the whole workflow fails.
	assert.Equal(t, domain.DeploymentStateFailed, result.Status)
	assert.Equal(t, 0, f.deployer.deployCalls)
}

func TestRun_RepositorySetupFullTransitions(t *testing.T) {
	f := newFixture(t, mapEnv{"GITHUB_TOKEN": "gh-token"})

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:       "proj-1",
		ProjectName:     "My Site",
		Files:           testFiles(),
		SetupRepository: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DeploymentStateSuccess, result.Status)
	assert.Equal(t, 1, f.repos.creationCalls)
	require.NotNil(t, f.deployer.deployOpts.Repository)
	assert.Equal(t, "quayside-bot/my-site-abc12345", f.deployer.deployOpts.Repository.FullName)

	// Every state the machine passed through shows up in the log trail.
	joined := strings.Join(result.Logs, "\n")
	for _, want := range []string{
		"State: project_loaded",
		"State: github_repo_created",
		"State: github_files_uploaded",
		"State: deploying",
		"State: deployment_complete",
	} {
		assert.Contains(t, joined, want)
	}
}

func TestRun_SecondDeployPerformsZeroRepoCreations(t *testing.T) {
	f := newFixture(t, mapEnv{"GITHUB_TOKEN": "gh-token"})

	req := Request{
		ProjectID:       "proj-1",
		ProjectName:     "My Site",
		Files:           testFiles(),
		SetupRepository: true,
	}

	_, err := f.orchestrator.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, f.repos.creationCalls)

	_, err = f.orchestrator.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repos.creationCalls, "second deploy must reuse the recorded repository")
}

func TestRun_RepositorySetupWithoutGitHubCredentialsFails(t *testing.T) {
	f := newFixture(t, mapEnv{})

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:       "proj-1",
		ProjectName:     "My Site",
		Files:           testFiles(),
		SetupRepository: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DeploymentStateFailed, result.Status)
	assert.Equal(t, 0, f.deployer.deployCalls)
	assert.Equal(t, 0, f.repos.creationCalls)
}

func TestRun_CallerSuppliedRepositoryWinsOverMetadata(t *testing.T) {
	f := newFixture(t, mapEnv{"GITHUB_TOKEN": "gh-token"})

	require.NoError(t, f.projects.UpdateProject("proj-1", "My Site", map[string]any{
		ghrepo.MetadataKey: map[string]any{
			"repoCreated":   true,
			"filesUploaded": true,
			"repository": map[string]any{
				"fullName":      "someone/stale-repo",
				"owner":         "someone",
				"repo":          "stale-repo",
				"defaultBranch": "main",
			},
		},
	}))

	supplied := &domain.RepositoryInfo{
		Owner:         "quayside-bot",
		Repo:          "fresh-repo",
		FullName:      "quayside-bot/fresh-repo",
		DefaultBranch: "main",
	}
	_, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:       "proj-1",
		ProjectName:     "My Site",
		Files:           testFiles(),
		SetupRepository: true,
		Repository:      supplied,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.repos.setupCalls)
	require.NotNil(t, f.deployer.deployOpts.Repository)
	assert.Equal(t, "quayside-bot/fresh-repo", f.deployer.deployOpts.Repository.FullName)
}

func TestRun_DeprecatedTargetRewrittenWhenRepoExists(t *testing.T) {
	f := newFixture(t, mapEnv{"GITHUB_TOKEN": "gh-token", "VERCEL_TOKEN": "v-token"})

	req := Request{
		ProjectID:   "proj-1",
		ProjectName: "My Site",
		Files:       testFiles(),
		Target:      target.TargetNameVercelGitHub,
	}

	// First deploy: the combined variant drives repository creation in the
	// repository phase, then the deploy is redirected to the plain hosting
	// variant so the target cannot create a second repository.
	_, err := f.orchestrator.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, f.repos.creationCalls)
	assert.Equal(t, target.TargetNameVercel, f.deployer.requestedTarget)
	require.NotNil(t, f.deployer.deployOpts.Repository)

	// Second deploy: repository reused from metadata, still zero new
	// creation calls.
	_, err = f.orchestrator.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repos.creationCalls)
	assert.Equal(t, target.TargetNameVercel, f.deployer.requestedTarget)
	require.NotNil(t, f.deployer.deployOpts.Repository)
}

func TestRun_CorruptMetadataDoesNotAbort(t *testing.T) {
	f := newFixture(t, mapEnv{})
	f.projects.getErr = store.ErrMetadataCorrupt

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:   "proj-1",
		ProjectName: "My Site",
		Files:       testFiles(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStateSuccess, result.Status)
}

func TestRun_InProgressResultHasNoCompletedAt(t *testing.T) {
	f := newFixture(t, mapEnv{})
	f.deployer.DeployFunc = func(ctx context.Context, requested string, opts domain.DeployOptions) (*domain.DeploymentResult, error) {
		return &domain.DeploymentResult{
			ID:       opts.DeploymentID,
			URL:      "https://my-site.vercel.app",
			Status:   domain.DeploymentStateInProgress,
			Provider: "vercel",
		}, nil
	}

	result, err := f.orchestrator.Run(context.Background(), Request{
		ProjectID:   "proj-1",
		ProjectName: "My Site",
		Files:       testFiles(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentStateInProgress, result.Status)

	history, err := f.projects.ListDeployments("proj-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].CompletedAt)
}

func TestGetDeploymentStatus_Passthrough(t *testing.T) {
	f := newFixture(t, mapEnv{})

	status, err := f.orchestrator.GetDeploymentStatus(context.Background(), "local", "dep-1", "")
	require.NoError(t, err)
	assert.Equal(t, "dep-1", status.ID)
}

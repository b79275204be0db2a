// Package workflow implements the top-level deployment state machine. One
// orchestration call carries a deploy request from credential resolution
// through optional repository provisioning to target selection and deploy,
// and persists the outcome.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quayside-cd/quayside/credentials"
	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/ghrepo"
	"github.com/quayside-cd/quayside/manager"
	"github.com/quayside-cd/quayside/store"
	"github.com/quayside-cd/quayside/target"
)

// Request is one deploy request crossing the API boundary.
type Request struct {
	ProjectID   string            `json:"projectId"`
	ProjectName string            `json:"projectName"`
	Files       map[string]string `json:"files"`

	// Target is the requested target name. Empty selects by preference.
	Target string `json:"target,omitempty"`

	// SetupRepository asks for source-repository provisioning before the
	// hosting deploy.
	SetupRepository bool `json:"setupRepository,omitempty"`

	// Repository is caller-supplied repository info. It wins over anything
	// recorded in project metadata.
	Repository *domain.RepositoryInfo `json:"repository,omitempty"`

	// Credentials is the in-flight credential payload handed to the
	// resolver (structured blocks plus legacy flat aliases).
	Credentials map[string]any `json:"credentials,omitempty"`

	// Overrides are explicit per-call credentials, the resolver's highest
	// priority tier.
	Overrides map[string]*domain.Credential `json:"-"`

	TenantID          string `json:"tenantId,omitempty"`
	PrivateRepository bool   `json:"privateRepository,omitempty"`
}

// RepositoryService is the slice of the repository integration service the
// orchestrator drives.
type RepositoryService interface {
	SetupRepository(ctx context.Context, cfg ghrepo.SetupConfig) (*ghrepo.SetupResult, error)
	UploadFiles(ctx context.Context, cfg ghrepo.SetupConfig) (*ghrepo.SetupResult, error)
}

// Deployer is the slice of the deployment manager the orchestrator drives.
type Deployer interface {
	WaitReady(ctx context.Context) error
	DeployWithBestTarget(ctx context.Context, requested string, opts domain.DeployOptions) (*domain.DeploymentResult, error)
	GetDeploymentStatus(ctx context.Context, targetName, deploymentID string) (*domain.DeploymentStatus, error)
}

// ManagerFactory builds a deployment manager for one workflow invocation from
// the credentials resolved for that invocation.
type ManagerFactory func(ctx context.Context, creds manager.Credentials) Deployer

// Orchestrator runs deployment workflows. Its public contract never returns an
// error for expected failure modes (missing credentials, provider rejection);
// those become a failed DeploymentResult. An error return means the request
// itself was malformed.
type Orchestrator struct {
	resolver   *credentials.Resolver
	projects   store.ProjectStore
	repos      RepositoryService
	newManager ManagerFactory
}

func NewOrchestrator(resolver *credentials.Resolver, projects store.ProjectStore, repos RepositoryService, factory ManagerFactory) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver,
		projects:   projects,
		repos:      repos,
		newManager: factory,
	}
}

// workflowContext is the per-invocation state. It is never persisted as-is;
// only the derived DeploymentResult and metadata updates are.
type workflowContext struct {
	state      domain.WorkflowState
	startedAt  time.Time
	logs       []string
	creds      manager.Credentials
	repository *domain.RepositoryInfo
	metadata   map[string]any
	targetName string
}

func newWorkflowContext(req Request) *workflowContext {
	c := &workflowContext{
		state:      domain.WorkflowStateInitialized,
		startedAt:  time.Now(),
		metadata:   map[string]any{},
		targetName: req.Target,
	}
	c.logf("Workflow initialized for project %s", req.ProjectID)
	return c
}

func (c *workflowContext) transition(next domain.WorkflowState) {
	if !c.state.CanTransition(next) {
		// Forward-only machine; a skipped-backward transition is a
		// programming error, not a runtime condition.
		slog.Error("Illegal workflow transition",
			"layer", "workflow",
			"operation", "transition",
			"from", c.state.String(),
			"to", next.String())
		return
	}
	c.state = next
	c.logf("State: %s", next.String())
}

func (c *workflowContext) logf(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// Run executes the full workflow for one deploy request.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*domain.DeploymentResult, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("file set is empty")
	}
	if req.ProjectName == "" {
		req.ProjectName = req.ProjectID
	}

	wctx := newWorkflowContext(req)

	if err := o.initialize(wctx, req); err != nil {
		return o.fail(wctx, req, err), nil
	}

	o.loadProject(wctx, req)

	if req.SetupRepository || req.Target == target.TargetNameVercelGitHub {
		if err := o.setupRepository(ctx, wctx, req); err != nil {
			return o.fail(wctx, req, err), nil
		}
	}

	result, err := o.deploy(ctx, wctx, req)
	if err != nil {
		return o.fail(wctx, req, err), nil
	}

	wctx.transition(domain.WorkflowStateComplete)
	wctx.logf("Deployment complete: %s", result.URL)
	result.Logs = append(wctx.logs, result.Logs...)
	o.persist(wctx, req, result)
	return result, nil
}

// initialize resolves credentials for every provider. A provider with no
// credentials anywhere is fine (its targets are simply not constructed); a
// tenant-scoped denial is an explicit failure.
func (o *Orchestrator) initialize(wctx *workflowContext, req Request) error {
	resolve := func(provider string) (*domain.Credential, error) {
		cred, err := o.resolver.Resolve(provider, credentials.ResolveOptions{
			Override: req.Overrides[provider],
			Request:  req.Credentials,
			TenantID: req.TenantID,
		})
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolving %s credentials: %w", provider, err)
		}
		wctx.logf("Resolved %s credentials from %s", provider, cred.Source)
		return cred, nil
	}

	var err error
	if wctx.creds.GitHub, err = resolve(credentials.ProviderGitHub); err != nil {
		return err
	}
	if wctx.creds.Netlify, err = resolve(credentials.ProviderNetlify); err != nil {
		return err
	}
	if wctx.creds.Vercel, err = resolve(credentials.ProviderVercel); err != nil {
		return err
	}
	return nil
}

// loadProject fetches prior metadata for the project id. Absence is a new
// project; a read or parse error is logged and treated as "no metadata".
func (o *Orchestrator) loadProject(wctx *workflowContext, req Request) {
	project, err := o.projects.GetProject(req.ProjectID)
	switch {
	case store.IsNotFound(err):
		wctx.logf("New project %s, no prior metadata", req.ProjectID)
	case err != nil:
		slog.Warn("Failed to load project metadata, continuing without",
			"layer", "workflow",
			"operation", "load_project",
			"project_id", req.ProjectID,
			"error", err)
		wctx.logf("Could not load prior metadata, continuing without")
	default:
		wctx.metadata = project.Metadata
		wctx.logf("Loaded project %s metadata", req.ProjectID)
	}

	// Caller-supplied repository info wins over loaded metadata.
	if req.Repository != nil {
		wctx.repository = req.Repository
	} else if tracking := ghrepo.ExtractTracking(wctx.metadata); tracking.Repository != nil {
		wctx.repository = tracking.Repository
	}

	wctx.transition(domain.WorkflowStateProjectLoaded)
}

func (o *Orchestrator) setupRepository(ctx context.Context, wctx *workflowContext, req Request) error {
	if req.Repository != nil {
		wctx.logf("Reusing caller-supplied repository %s", req.Repository.FullName)
		wctx.transition(domain.WorkflowStateRepoCreated)
		wctx.transition(domain.WorkflowStateFilesUploaded)
		return nil
	}

	if wctx.creds.GitHub == nil {
		return fmt.Errorf("github credentials are required for repository setup")
	}

	cfg := ghrepo.SetupConfig{
		ProjectID:   req.ProjectID,
		ProjectName: req.ProjectName,
		Token:       wctx.creds.GitHub.Token,
		Files:       req.Files,
		Metadata:    wctx.metadata,
		Private:     req.PrivateRepository,
	}

	result, err := o.repos.SetupRepository(ctx, cfg)
	if result != nil {
		// The repository survives an upload failure; checkpoint it so a
		// retry resumes at the upload phase.
		wctx.metadata = result.Metadata
		wctx.repository = result.Repository
		o.checkpoint(req, result.Metadata)
	}
	if err != nil {
		return fmt.Errorf("repository setup: %w", err)
	}

	wctx.transition(domain.WorkflowStateRepoCreated)
	wctx.logf("Repository ready: %s", wctx.repository.FullName)

	if tracking := ghrepo.ExtractTracking(wctx.metadata); !tracking.FilesUploaded {
		cfg.Metadata = wctx.metadata
		upload, err := o.repos.UploadFiles(ctx, cfg)
		if upload != nil {
			wctx.metadata = upload.Metadata
			wctx.repository = upload.Repository
			o.checkpoint(req, upload.Metadata)
		}
		if err != nil {
			return fmt.Errorf("file upload: %w", err)
		}
	}

	wctx.transition(domain.WorkflowStateFilesUploaded)
	wctx.logf("Files uploaded to %s", wctx.repository.FullName)
	return nil
}

func (o *Orchestrator) deploy(ctx context.Context, wctx *workflowContext, req Request) (*domain.DeploymentResult, error) {
	// The combined always-create variant must never trigger a second
	// repository creation: with a repository in hand, redirect to the plain
	// hosting variant carrying the existing repository info.
	if wctx.targetName == target.TargetNameVercelGitHub && wctx.repository != nil {
		wctx.targetName = target.TargetNameVercel
		wctx.logf("Rewrote deprecated target %s to %s, repository %s already exists",
			target.TargetNameVercelGitHub, target.TargetNameVercel, wctx.repository.FullName)
	}

	wctx.transition(domain.WorkflowStateDeploying)

	mgr := o.newManager(ctx, wctx.creds)
	if err := mgr.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("waiting for deployment targets: %w", err)
	}

	result, err := mgr.DeployWithBestTarget(ctx, wctx.targetName, domain.DeployOptions{
		ProjectID:    req.ProjectID,
		ProjectName:  req.ProjectName,
		Files:        req.Files,
		Metadata:     wctx.metadata,
		TenantID:     req.TenantID,
		DeploymentID: uuid.New().String(),
		Repository:   wctx.repository,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fail converts a phase error into the synthesized failed result. This is the
// single boundary where errors stop propagating toward the caller.
func (o *Orchestrator) fail(wctx *workflowContext, req Request, err error) *domain.DeploymentResult {
	slog.Error("Deployment workflow failed",
		"layer", "workflow",
		"operation", "run",
		"project_id", req.ProjectID,
		"state", wctx.state.String(),
		"error", err)

	wctx.logf("Workflow failed: %s", target.FormatErrorForUser(err))
	wctx.transition(domain.WorkflowStateFailed)

	result := &domain.DeploymentResult{
		ID:       uuid.New().String(),
		Status:   domain.DeploymentStateFailed,
		Logs:     wctx.logs,
		Provider: wctx.targetName,
		Error:    err.Error(),
	}
	o.persist(wctx, req, result)
	return result
}

// checkpoint durably merges partial metadata mid-workflow. Failures are
// logged, never fatal: the workflow outcome does not depend on bookkeeping.
func (o *Orchestrator) checkpoint(req Request, metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	if err := o.projects.UpdateProject(req.ProjectID, req.ProjectName, metadata); err != nil {
		slog.Warn("Failed to checkpoint project metadata",
			"layer", "workflow",
			"operation", "checkpoint",
			"project_id", req.ProjectID,
			"error", err)
	}
}

// persist records the workflow outcome: merged metadata plus one appended
// deployment-history entry.
func (o *Orchestrator) persist(wctx *workflowContext, req Request, result *domain.DeploymentResult) {
	now := time.Now()

	partial := make(map[string]any, len(wctx.metadata)+4)
	for k, v := range wctx.metadata {
		partial[k] = v
	}
	partial["lastDeploymentId"] = result.ID
	partial["lastDeploymentTarget"] = result.Provider
	partial["lastDeploymentTimestamp"] = now.UTC().Format(time.RFC3339)
	if result.URL != "" {
		partial["lastDeployedUrl"] = result.URL
	}

	if err := o.projects.UpdateProject(req.ProjectID, req.ProjectName, partial); err != nil {
		slog.Error("Failed to persist project metadata",
			"layer", "workflow",
			"operation", "persist",
			"project_id", req.ProjectID,
			"error", err)
	}

	record := &store.DeploymentRecord{
		ID:           result.ID,
		Provider:     result.Provider,
		URL:          result.URL,
		Status:       result.Status,
		ErrorMessage: result.Error,
		Logs:         result.Logs,
		CreatedAt:    wctx.startedAt,
	}
	if result.Status != domain.DeploymentStateInProgress {
		record.CompletedAt = &now
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Provider == "" {
		record.Provider = "unknown"
	}

	if err := o.projects.AddDeployment(req.ProjectID, record); err != nil {
		slog.Error("Failed to append deployment history",
			"layer", "workflow",
			"operation", "persist",
			"project_id", req.ProjectID,
			"error", err)
	}
}

// GetDeploymentStatus polls a provider for the state of a deploy. Credentials
// resolve through the same chain as a deploy request.
func (o *Orchestrator) GetDeploymentStatus(ctx context.Context, targetName, deploymentID, tenantID string) (*domain.DeploymentStatus, error) {
	wctx := &workflowContext{}
	if err := o.initialize(wctx, Request{TenantID: tenantID}); err != nil {
		return nil, err
	}

	mgr := o.newManager(ctx, wctx.creds)
	if err := mgr.WaitReady(ctx); err != nil {
		return nil, err
	}
	return mgr.GetDeploymentStatus(ctx, targetName, deploymentID)
}

// Package manager owns the live set of constructed deployment targets and
// implements best-target selection with preference-order fallback.
package manager

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/quayside-cd/quayside/config"
	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/metrics"
	"github.com/quayside-cd/quayside/target"
)

// ErrNoTargetsAvailable is the hard stop when neither the requested target nor
// any preferred target is registered and available.
var ErrNoTargetsAvailable = errors.New("no deployment targets available")

// Credentials carries the per-provider credentials resolved for this manager's
// lifetime. A nil entry means the provider's targets are not constructed.
type Credentials struct {
	GitHub  *domain.Credential
	Netlify *domain.Credential
	Vercel  *domain.Credential
}

// Options bundles everything NewManager needs.
type Options struct {
	Config      *config.Config
	Credentials Credentials

	// RepoPusher is handed to Git-backed targets for their repository
	// deploy path.
	RepoPusher target.RepoPusher

	// HTTPClient overrides the provider HTTP client. Nil means a default
	// client bounded by the configured HTTP timeout.
	HTTPClient *http.Client

	Registry *target.Registry
	Metrics  *metrics.Metrics
}

// Manager holds registered targets behind a mutex. The archive fallback is
// registered synchronously during construction; cloud targets are probed and
// registered by background goroutines, so a manager is minimally usable the
// instant NewManager returns.
type Manager struct {
	mu      sync.RWMutex
	targets map[string]target.Target

	preference []string
	metrics    *metrics.Metrics
	probes     sync.WaitGroup
}

// NewManager constructs a manager, registers the archive fallback, and kicks
// off availability probes for every cloud target whose credentials resolved.
func NewManager(ctx context.Context, opts Options) *Manager {
	registry := opts.Registry
	if registry == nil {
		registry = target.NewRegistry()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}

	m := &Manager{
		targets:    make(map[string]target.Target),
		preference: opts.Config.TargetPreference,
		metrics:    opts.Metrics,
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Config.HTTPTimeout}
	}

	// The local fallback needs no I/O, so it is registered before any
	// network probe starts.
	if local := registry.CreateTarget(target.TargetNameLocal, target.Config{
		ArchiveDir: opts.Config.ArchiveDir,
	}); local != nil {
		m.register(local)
		m.metrics.SetTargetAvailable(target.TargetNameLocal, true)
	}

	for _, candidate := range m.cloudCandidates(opts, httpClient) {
		m.probes.Add(1)
		go func(name string, cfg target.Config) {
			defer m.probes.Done()
			m.probeAndRegister(ctx, registry, name, cfg)
		}(candidate.name, candidate.cfg)
	}

	return m
}

type cloudCandidate struct {
	name string
	cfg  target.Config
}

func (m *Manager) cloudCandidates(opts Options, httpClient *http.Client) []cloudCandidate {
	var candidates []cloudCandidate

	if cred := opts.Credentials.Netlify; cred != nil {
		candidates = append(candidates, cloudCandidate{
			name: target.TargetNameNetlify,
			cfg: target.Config{
				Token:        cred.Token,
				AccountID:    cred.AccountID,
				BaseURL:      opts.Config.NetlifyAPIURL,
				HTTPClient:   httpClient,
				PollAttempts: opts.Config.PollAttempts,
				PollInterval: opts.Config.PollInterval,
			},
		})
	}

	if cred := opts.Credentials.Vercel; cred != nil {
		vercelCfg := target.Config{
			Token:        cred.Token,
			AccountID:    cred.AccountID,
			BaseURL:      opts.Config.VercelAPIURL,
			HTTPClient:   httpClient,
			PollAttempts: opts.Config.PollAttempts,
			PollInterval: opts.Config.PollInterval,
			RepoPusher:   opts.RepoPusher,
		}
		if gh := opts.Credentials.GitHub; gh != nil {
			vercelCfg.GitHubToken = gh.Token
		}
		candidates = append(candidates, cloudCandidate{name: target.TargetNameVercel, cfg: vercelCfg})
		if vercelCfg.GitHubToken != "" {
			candidates = append(candidates, cloudCandidate{name: target.TargetNameVercelGitHub, cfg: vercelCfg})
		}
	}

	return candidates
}

func (m *Manager) probeAndRegister(ctx context.Context, registry *target.Registry, name string, cfg target.Config) {
	t := registry.CreateTarget(name, cfg)
	if t == nil {
		m.metrics.SetTargetAvailable(name, false)
		return
	}

	if !t.IsAvailable(ctx) {
		slog.Info("Deployment target unavailable",
			"layer", "manager",
			"operation", "probe",
			"target", name)
		m.metrics.SetTargetAvailable(name, false)
		return
	}

	m.register(t)
	m.metrics.SetTargetAvailable(name, true)
	slog.Info("Deployment target registered",
		"layer", "manager",
		"operation", "probe",
		"target", name)
}

func (m *Manager) register(t target.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[t.Name()] = t
}

// RegisterTarget adds or replaces a target. Exposed for embedders wiring
// custom targets and for tests.
func (m *Manager) RegisterTarget(t target.Target) {
	m.register(t)
}

// WaitReady blocks until every background availability probe has finished or
// the context is done. Callers that can serve with the fallback alone need not
// wait.
func (m *Manager) WaitReady(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.probes.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetTarget returns a registered target by name.
func (m *Manager) GetTarget(name string) (target.Target, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[name]
	return t, ok
}

// RegisteredTargets returns the sorted names of all registered targets.
func (m *Manager) RegisteredTargets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.targets))
	for name := range m.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// selectTarget picks the target to deploy with. An explicitly requested name
// wins when registered; otherwise the preference list is walked and each
// candidate's availability is re-checked live, since credentials can expire
// after registration.
func (m *Manager) selectTarget(ctx context.Context, requested string) (target.Target, bool, error) {
	if requested != "" {
		if t, ok := m.GetTarget(requested); ok {
			return t, false, nil
		}
		slog.Warn("Requested target not registered, falling back to preference order",
			"layer", "manager",
			"operation", "select_target",
			"target", requested)
	}

	fellBack := requested != ""
	for i, name := range m.preference {
		t, ok := m.GetTarget(name)
		if !ok {
			continue
		}
		if !t.IsAvailable(ctx) {
			slog.Warn("Registered target no longer available",
				"layer", "manager",
				"operation", "select_target",
				"target", name)
			continue
		}
		return t, fellBack || i > 0, nil
	}

	return nil, false, ErrNoTargetsAvailable
}

// DeployWithBestTarget selects a target, initializes the project on it, and
// deploys. Initialization is never skipped, even for targets with
// always-exists semantics.
func (m *Manager) DeployWithBestTarget(ctx context.Context, requested string, opts domain.DeployOptions) (*domain.DeploymentResult, error) {
	started := time.Now()

	t, fellBack, err := m.selectTarget(ctx, requested)
	if err != nil {
		return nil, err
	}
	if fellBack {
		m.metrics.RecordFallback()
	}

	slog.Info("Deploying with target",
		"layer", "manager",
		"operation", "deploy_with_best_target",
		"target", t.Name(),
		"project_id", opts.ProjectID)

	meta, err := t.InitializeProject(ctx, domain.ProjectOptions{
		Name:     opts.ProjectName,
		Files:    opts.Files,
		Metadata: opts.Metadata,
		TenantID: opts.TenantID,
	})
	if err != nil {
		m.metrics.RecordDeployment(t.Name(), domain.DeploymentStateFailed, time.Since(started))
		return nil, err
	}

	// Thread the provider-native resource identity into the deploy so the
	// target does not re-resolve it.
	if meta != nil && len(meta.Metadata) > 0 {
		merged := make(map[string]any, len(opts.Metadata)+len(meta.Metadata))
		for k, v := range opts.Metadata {
			merged[k] = v
		}
		for k, v := range meta.Metadata {
			merged[k] = v
		}
		opts.Metadata = merged
	}

	result, err := t.Deploy(ctx, opts)
	if err != nil {
		m.metrics.RecordDeployment(t.Name(), domain.DeploymentStateFailed, time.Since(started))
		return nil, err
	}

	m.metrics.RecordDeployment(t.Name(), result.Status, time.Since(started))
	return result, nil
}

// GetDeploymentStatus polls the named target for the state of a deploy.
func (m *Manager) GetDeploymentStatus(ctx context.Context, targetName, deploymentID string) (*domain.DeploymentStatus, error) {
	t, ok := m.GetTarget(targetName)
	if !ok {
		return nil, target.NewNotAvailableError(targetName, "target not registered")
	}
	return t.GetDeploymentStatus(ctx, deploymentID)
}

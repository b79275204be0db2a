// Package ghrepo integrates with GitHub as the source-control intermediate:
// it creates a repository for a project at most once and uploads generated
// files to it, tracking progress through project metadata flags.
package ghrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/go-github/v55/github"
	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/target"
	"golang.org/x/oauth2"
)

// MetadataKey is the namespaced project-metadata key under which repository
// tracking state lives.
const MetadataKey = "github"

// repoNameSlugLimit leaves room for the "-<hash>" suffix inside the overall
// name limit.
const repoNameSlugLimit = 52

// Tracking is the repository state recorded in project metadata. RepoCreated
// is the idempotency gate: once set alongside a RepositoryInfo, repository
// creation is never attempted again for that project.
type Tracking struct {
	RepoCreated   bool
	FilesUploaded bool
	Repository    *domain.RepositoryInfo
}

// SetupConfig is the input to repository setup and file upload.
type SetupConfig struct {
	ProjectID   string
	ProjectName string
	Token       string
	Files       map[string]string
	Metadata    map[string]any // caller-supplied project metadata blob
	Private     bool
}

// SetupResult carries the repository plus the metadata updates to merge back
// into the project record.
type SetupResult struct {
	Repository *domain.RepositoryInfo
	Metadata   map[string]any
}

// Service coordinates at-most-once repository creation per project.
type Service struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithBaseURL points the service at a non-public GitHub API endpoint (test
// server or GitHub Enterprise).
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = u }
}

// WithHTTPClient overrides the HTTP client; the caller becomes responsible
// for authentication.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ target.RepoPusher = (*Service)(nil)

func (s *Service) client(ctx context.Context, token string) (*github.Client, error) {
	hc := s.httpClient
	if hc == nil {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(hc)
	if s.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(s.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// ValidateToken performs a real authenticated probe and returns the login of
// the token's owner.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("github token is required")
	}

	client, err := s.client(ctx, token)
	if err != nil {
		return "", err
	}

	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("github token validation failed: %w", err)
	}
	return user.GetLogin(), nil
}

// GenerateRepoName builds a collision-resistant repository name: the
// sanitized project name plus a short hash of the project id. Regenerating
// for the same project id is stable; distinct projects with the same display
// name never collide.
func GenerateRepoName(projectName, projectID string) string {
	base := target.SanitizeProjectNameWithLimit(projectName, repoNameSlugLimit)
	return fmt.Sprintf("%s-%s", base, target.ShortHash(projectID))
}

// SetupRepository creates (or confirms) the source repository for a project
// and uploads the full file set. Creation is gated on the tracking metadata:
// if repoCreated is already recorded with a RepositoryInfo, the existing info
// is returned and no provider call is made.
//
// When an individual file upload fails mid-sequence, the returned error is
// accompanied by a non-nil result preserving the just-created repository
// metadata, so a retry resumes at the upload phase without recreating the
// repository.
func (s *Service) SetupRepository(ctx context.Context, cfg SetupConfig) (*SetupResult, error) {
	tracking := ExtractTracking(cfg.Metadata)

	// Idempotency gate
	if tracking.RepoCreated && tracking.Repository != nil {
		slog.Info("Repository already created, skipping",
			"layer", "ghrepo",
			"operation", "setup_repository",
			"project_id", cfg.ProjectID,
			"repo", tracking.Repository.FullName)
		return &SetupResult{
			Repository: tracking.Repository,
			Metadata:   mergeTracking(cfg.Metadata, tracking),
		}, nil
	}

	owner, err := s.ValidateToken(ctx, cfg.Token)
	if err != nil {
		return nil, err
	}

	repo, err := s.ensureRepository(ctx, cfg, owner)
	if err != nil {
		return nil, err
	}

	tracking.RepoCreated = true
	tracking.Repository = repo

	commitSHA, err := s.uploadAll(ctx, cfg.Token, repo, cfg.Files)
	if err != nil {
		// Preserve the created repository so a retry replays only the
		// upload phase.
		return &SetupResult{
			Repository: repo,
			Metadata:   mergeTracking(cfg.Metadata, tracking),
		}, err
	}

	tracking.FilesUploaded = true
	repo.CommitSHA = commitSHA

	return &SetupResult{
		Repository: repo,
		Metadata:   mergeTracking(cfg.Metadata, tracking),
	}, nil
}

// UploadFiles pushes fresh file contents to an already-created repository.
// It is gated on the filesUploaded flag only when the caller marks this as
// the first upload; subsequent deploys always push.
func (s *Service) UploadFiles(ctx context.Context, cfg SetupConfig) (*SetupResult, error) {
	tracking := ExtractTracking(cfg.Metadata)
	if tracking.Repository == nil {
		return nil, fmt.Errorf("no repository recorded for project %s; run repository setup first", cfg.ProjectID)
	}

	commitSHA, err := s.uploadAll(ctx, cfg.Token, tracking.Repository, cfg.Files)
	if err != nil {
		return &SetupResult{
			Repository: tracking.Repository,
			Metadata:   mergeTracking(cfg.Metadata, tracking),
		}, err
	}

	tracking.FilesUploaded = true
	tracking.Repository.CommitSHA = commitSHA

	return &SetupResult{
		Repository: tracking.Repository,
		Metadata:   mergeTracking(cfg.Metadata, tracking),
	}, nil
}

// PushFiles implements target.RepoPusher for Git-backed hosting targets.
func (s *Service) PushFiles(ctx context.Context, token string, repo *domain.RepositoryInfo, files map[string]string) (string, error) {
	return s.uploadAll(ctx, token, repo, files)
}

// ensureRepository returns the provider repository for this project, creating
// it only when a same-named repository does not already exist.
func (s *Service) ensureRepository(ctx context.Context, cfg SetupConfig, owner string) (*domain.RepositoryInfo, error) {
	client, err := s.client(ctx, cfg.Token)
	if err != nil {
		return nil, err
	}

	name := GenerateRepoName(cfg.ProjectName, cfg.ProjectID)

	existing, _, err := client.Repositories.Get(ctx, owner, name)
	if err == nil && existing != nil {
		slog.Info("Reusing existing repository",
			"layer", "ghrepo",
			"operation", "ensure_repository",
			"project_id", cfg.ProjectID,
			"repo", existing.GetFullName())
		return repositoryInfo(existing), nil
	}
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to check for existing repository: %w", err)
	}

	created, _, err := client.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Private:     github.Bool(cfg.Private),
		Description: github.String(fmt.Sprintf("Generated application: %s", cfg.ProjectName)),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create repository %s: %w", name, err)
	}

	slog.Info("Repository created",
		"layer", "ghrepo",
		"operation", "ensure_repository",
		"project_id", cfg.ProjectID,
		"repo", created.GetFullName())
	return repositoryInfo(created), nil
}

// uploadAll uploads the file set one file per API call, sequentially. The
// provider has no batch endpoint, and sequential order gives a well-defined
// "N files uploaded" checkpoint when a mid-sequence upload fails.
func (s *Service) uploadAll(ctx context.Context, token string, repo *domain.RepositoryInfo, files map[string]string) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("file set is empty")
	}

	client, err := s.client(ctx, token)
	if err != nil {
		return "", err
	}

	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	branch := repo.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	var lastCommit string
	for i, path := range paths {
		opts := &github.RepositoryContentFileOptions{
			Message: github.String(fmt.Sprintf("Add %s", path)),
			Content: []byte(files[path]),
			Branch:  github.String(branch),
		}

		// Updating an existing file requires its blob SHA.
		existing, _, _, getErr := client.Repositories.GetContents(ctx, repo.Owner, repo.Repo, path,
			&github.RepositoryContentGetOptions{Ref: branch})
		if getErr == nil && existing != nil {
			opts.SHA = existing.SHA
			opts.Message = github.String(fmt.Sprintf("Update %s", path))
		}

		resp, _, err := client.Repositories.CreateFile(ctx, repo.Owner, repo.Repo, path, opts)
		if err != nil {
			return "", fmt.Errorf("uploaded %d of %d files; failed at %s: %w", i, len(paths), path, err)
		}
		if resp.Commit.SHA != nil {
			lastCommit = *resp.Commit.SHA
		}
	}

	slog.Info("File upload complete",
		"layer", "ghrepo",
		"operation", "upload_files",
		"repo", repo.FullName,
		"files", len(paths),
		"commit", lastCommit)
	return lastCommit, nil
}

func repositoryInfo(repo *github.Repository) *domain.RepositoryInfo {
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}
	return &domain.RepositoryInfo{
		Owner:         repo.GetOwner().GetLogin(),
		Repo:          repo.GetName(),
		FullName:      repo.GetFullName(),
		URL:           repo.GetHTMLURL(),
		DefaultBranch: branch,
		IsPrivate:     repo.GetPrivate(),
	}
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// ExtractTracking reads repository tracking state from a project metadata
// blob. It tolerates missing keys and JSON-decoded shapes (map[string]any).
func ExtractTracking(metadata map[string]any) Tracking {
	var tracking Tracking

	block, ok := metadata[MetadataKey].(map[string]any)
	if !ok {
		return tracking
	}

	tracking.RepoCreated, _ = block["repoCreated"].(bool)
	tracking.FilesUploaded, _ = block["filesUploaded"].(bool)

	if repoBlock, ok := block["repository"].(map[string]any); ok {
		// JSON round-trip keeps the field mapping in one place.
		data, err := json.Marshal(repoBlock)
		if err == nil {
			var info domain.RepositoryInfo
			if json.Unmarshal(data, &info) == nil && info.FullName != "" {
				tracking.Repository = &info
			}
		}
	}

	return tracking
}

// mergeTracking returns a copy of the original metadata with the github block
// replaced. Unrelated keys are never touched.
func mergeTracking(original map[string]any, tracking Tracking) map[string]any {
	merged := make(map[string]any, len(original)+1)
	for k, v := range original {
		merged[k] = v
	}

	block := map[string]any{
		"repoCreated":   tracking.RepoCreated,
		"filesUploaded": tracking.FilesUploaded,
	}
	if tracking.Repository != nil {
		data, err := json.Marshal(tracking.Repository)
		if err == nil {
			var repoBlock map[string]any
			if json.Unmarshal(data, &repoBlock) == nil {
				block["repository"] = repoBlock
			}
		}
	}

	merged[MetadataKey] = block
	return merged
}

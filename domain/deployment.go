// Package domain holds the core types shared by the deployment engine.
package domain

import (
	"fmt"
	"time"
)

type DeploymentState int

const (
	DeploymentStateInProgress DeploymentState = iota
	DeploymentStateSuccess
	DeploymentStateFailed
)

func (s DeploymentState) String() string {
	switch s {
	case DeploymentStateInProgress:
		return "in-progress"
	case DeploymentStateSuccess:
		return "success"
	case DeploymentStateFailed:
		return "failed"
	default:
		return "failed"
	}
}

func (s DeploymentState) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

func (s *DeploymentState) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDeploymentState(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseDeploymentState(s string) (DeploymentState, error) {
	switch s {
	case "in-progress":
		return DeploymentStateInProgress, nil
	case "success":
		return DeploymentStateSuccess, nil
	case "failed":
		return DeploymentStateFailed, nil
	default:
		return DeploymentStateFailed, fmt.Errorf("invalid deployment state: %q", s)
	}
}

// ProjectOptions is the input to target project initialization. Name is free
// text; each target sanitizes it to its own naming rules.
type ProjectOptions struct {
	Name     string            `json:"name"`
	Files    map[string]string `json:"files,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
	TenantID string            `json:"tenantId,omitempty"`
}

// ProjectMetadata is returned by a target after project initialization. ID is
// the provider-native identifier (site id, repo full name) and is only unique
// within one provider.
type ProjectMetadata struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	URL      string         `json:"url,omitempty"`
	Provider string         `json:"provider"`
	Metadata map[string]any `json:"metadata,omitempty"`
	TenantID string         `json:"tenantId,omitempty"`
}

// DeployOptions carries the complete desired file set for one deploy. Files is
// not a diff; targets must never merge it with a previous file set.
type DeployOptions struct {
	ProjectID    string            `json:"projectId"`
	ProjectName  string            `json:"projectName"`
	Files        map[string]string `json:"files"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	TenantID     string            `json:"tenantId,omitempty"`
	DeploymentID string            `json:"deploymentId,omitempty"`

	// Repository is the linked source repository, when one exists. It is
	// threaded through every deploy so targets never re-create it.
	Repository *RepositoryInfo `json:"repository,omitempty"`
}

// UpdateOptions is semantically a deploy against an existing resource.
type UpdateOptions = DeployOptions

// DeploymentResult is the terminal or near-terminal record of one deploy
// attempt. A state of in-progress means the provider accepted the deploy and
// completes it out of band.
type DeploymentResult struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Status   DeploymentState `json:"status"`
	Logs     []string        `json:"logs"`
	Provider string          `json:"provider"`
	Metadata map[string]any  `json:"metadata,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// DeploymentStatus is returned by a status poll. CompletedAt is set only once
// Status leaves in-progress.
type DeploymentStatus struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	Status      DeploymentState `json:"status"`
	Logs        []string        `json:"logs"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// RepositoryInfo identifies a created source-control repository. Once created
// for a project it is treated as immutable.
type RepositoryInfo struct {
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
	FullName      string `json:"fullName"`
	URL           string `json:"url"`
	DefaultBranch string `json:"defaultBranch"`
	IsPrivate     bool   `json:"isPrivate"`
	CommitSHA     string `json:"commitSha,omitempty"`
}

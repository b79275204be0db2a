// Package store is the durable project-storage collaborator: project
// metadata keyed by logical project id plus an append-only deployment
// history.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/quayside-cd/quayside/domain"
	"gorm.io/gorm"
)

// Project is the stored project record. Metadata holds namespaced keys
// (github, netlifySite, lastDeployedUrl, ...) owned by different parts of the
// engine; callers merge updates rather than replacing the blob.
type Project struct {
	ID        string
	Name      string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeploymentRecord is one entry of a project's append-only deployment
// history.
type DeploymentRecord struct {
	ID           string
	Provider     string
	URL          string
	Status       domain.DeploymentState
	ErrorMessage string
	Logs         []string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// ErrProjectNotFound is returned when a project id is unknown.
var ErrProjectNotFound = errors.New("project not found")

// ErrMetadataCorrupt is returned when a stored metadata blob cannot be
// parsed. Callers may treat it as "no metadata" but must log it.
var ErrMetadataCorrupt = errors.New("project metadata is corrupt")

// ProjectStore is the storage contract the orchestrator depends on. Each
// operation is individually atomic.
type ProjectStore interface {
	ProjectExists(id string) (bool, error)
	GetProject(id string) (*Project, error)

	// UpdateProject merges partial into the stored metadata at the top
	// level, creating the project when it does not exist yet. Keys absent
	// from partial are never touched.
	UpdateProject(id, name string, partial map[string]any) error

	// AddDeployment appends one record to the project's history.
	AddDeployment(id string, record *DeploymentRecord) error

	ListDeployments(id string) ([]*DeploymentRecord, error)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func validateRecord(record *DeploymentRecord) error {
	if record == nil {
		return fmt.Errorf("deployment record is required")
	}
	if record.Provider == "" {
		return fmt.Errorf("deployment record provider is required")
	}
	return nil
}

// Package db provides database models and utilities for Quayside.
package db

import (
	"time"

	"github.com/google/uuid"
)

type ProjectModel struct {
	// ID is the caller-supplied logical project id, not a generated key.
	ID        string `gorm:"type:varchar(64);primaryKey"`
	Name      string `gorm:"not null;check:name <> ''"`
	Metadata  string `gorm:"type:text;not null"` // JSON blob with namespaced keys (github, netlifySite, ...)
	CreatedAt time.Time
	UpdatedAt time.Time

	Deployments []DeploymentModel `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

func (ProjectModel) TableName() string {
	return "projects"
}

type DeploymentModel struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey"`
	ProjectID    string    `gorm:"not null;index"`
	Provider     string    `gorm:"not null;check:provider <> ''"`
	URL          string
	Status       string `gorm:"not null;check:status <> ''"` // in-progress, success, failed
	ErrorMessage *string
	Logs         string `gorm:"type:text"` // log lines separated by null character (\0)
	CreatedAt    time.Time
	CompletedAt  *time.Time

	Project ProjectModel `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

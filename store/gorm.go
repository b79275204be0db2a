package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quayside-cd/quayside/db"
	"github.com/quayside-cd/quayside/domain"
	"gorm.io/gorm"
)

type gormProjectStore struct {
	db *gorm.DB
}

// NewProjectStore returns the GORM-backed ProjectStore.
func NewProjectStore(gormDB *gorm.DB) ProjectStore {
	return &gormProjectStore{db: gormDB}
}

var _ ProjectStore = (*gormProjectStore)(nil)

func (s *gormProjectStore) ProjectExists(id string) (bool, error) {
	var count int64
	if err := s.db.Model(&db.ProjectModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormProjectStore) GetProject(id string) (*Project, error) {
	var model db.ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrProjectNotFound
		}
		slog.Error("Database operation failed",
			"layer", "store",
			"operation", "get_project",
			"project_id", id,
			"error", err)
		return nil, err
	}
	return toProject(&model)
}

func toProject(model *db.ProjectModel) (*Project, error) {
	project := &Project{
		ID:        model.ID,
		Name:      model.Name,
		Metadata:  map[string]any{},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
	if model.Metadata != "" {
		if err := json.Unmarshal([]byte(model.Metadata), &project.Metadata); err != nil {
			return project, fmt.Errorf("%w: %v", ErrMetadataCorrupt, err)
		}
	}
	return project, nil
}

func (s *gormProjectStore) UpdateProject(id, name string, partial map[string]any) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model db.ProjectModel
		err := tx.First(&model, "id = ?", id).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			metadata, marshalErr := json.Marshal(partial)
			if marshalErr != nil {
				return fmt.Errorf("failed to serialize metadata: %w", marshalErr)
			}
			if name == "" {
				name = id
			}
			return tx.Create(&db.ProjectModel{
				ID:       id,
				Name:     name,
				Metadata: string(metadata),
			}).Error
		case err != nil:
			return err
		}

		// Merge at the top level; unrelated keys survive. A corrupt
		// stored blob is replaced rather than failing the update.
		existing := map[string]any{}
		if model.Metadata != "" {
			if err := json.Unmarshal([]byte(model.Metadata), &existing); err != nil {
				slog.Warn("Replacing corrupt project metadata",
					"layer", "store",
					"operation", "update_project",
					"project_id", id,
					"error", err)
				existing = map[string]any{}
			}
		}
		for k, v := range partial {
			existing[k] = v
		}

		metadata, err := json.Marshal(existing)
		if err != nil {
			return fmt.Errorf("failed to serialize metadata: %w", err)
		}

		updates := map[string]any{"metadata": string(metadata)}
		if name != "" {
			updates["name"] = name
		}
		return tx.Model(&db.ProjectModel{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (s *gormProjectStore) AddDeployment(id string, record *DeploymentRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	deploymentID, err := uuid.Parse(record.ID)
	if err != nil {
		// Provider-native ids are not always UUIDs; keep history keyed
		// by our own id and record the provider id in the URL/logs.
		deploymentID = uuid.New()
	}

	var errorMessage *string
	if record.ErrorMessage != "" {
		errorMessage = &record.ErrorMessage
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	model := &db.DeploymentModel{
		ID:           deploymentID,
		ProjectID:    id,
		Provider:     record.Provider,
		URL:          record.URL,
		Status:       record.Status.String(),
		ErrorMessage: errorMessage,
		Logs:         serializeLogs(record.Logs),
		CreatedAt:    createdAt,
		CompletedAt:  record.CompletedAt,
	}

	if err := s.db.Create(model).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "store",
			"operation", "add_deployment",
			"project_id", id,
			"provider", record.Provider,
			"error", err)
		return err
	}
	return nil
}

func (s *gormProjectStore) ListDeployments(id string) ([]*DeploymentRecord, error) {
	var models []db.DeploymentModel
	if err := s.db.Where("project_id = ?", id).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*DeploymentRecord, len(models))
	for i := range models {
		records[i] = toRecord(&models[i])
	}
	return records, nil
}

func toRecord(model *db.DeploymentModel) *DeploymentRecord {
	status, err := domain.ParseDeploymentState(model.Status)
	if err != nil {
		status = domain.DeploymentStateFailed
	}

	record := &DeploymentRecord{
		ID:          model.ID.String(),
		Provider:    model.Provider,
		URL:         model.URL,
		Status:      status,
		Logs:        parseLogs(model.Logs),
		CreatedAt:   model.CreatedAt,
		CompletedAt: model.CompletedAt,
	}
	if model.ErrorMessage != nil {
		record.ErrorMessage = *model.ErrorMessage
	}
	return record
}

// Log lines are null-separated in the column; lines may contain newlines.
func serializeLogs(logs []string) string {
	return strings.Join(logs, "\x00")
}

func parseLogs(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\x00")
}

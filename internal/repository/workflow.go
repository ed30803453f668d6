package repository

import (
	"context"

	"cmms/internal/models"

	"gorm.io/gorm"
)

type WorkflowRepository struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func scope(q *gorm.DB, tenantID string, plantID *string) *gorm.DB {
	q = q.Where("tenant_id = ?", tenantID)
	if plantID == nil {
		return q.Where("plant_id IS NULL")
	}
	return q.Where("plant_id = ?", *plantID)
}

// ListByScope returns the workflows of one scope, oldest first. A nil
// plantID selects the tenant-wide bucket.
func (r *WorkflowRepository) ListByScope(ctx context.Context, tenantID string, plantID *string) ([]models.WorkOrderWorkflow, error) {
	var rows []models.WorkOrderWorkflow
	err := scope(r.db.WithContext(ctx), tenantID, plantID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *WorkflowRepository) ListByTenant(ctx context.Context, tenantID string) ([]models.WorkOrderWorkflow, error) {
	var rows []models.WorkOrderWorkflow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *WorkflowRepository) Get(ctx context.Context, tenantID, id string) (*models.WorkOrderWorkflow, error) {
	var wf models.WorkOrderWorkflow
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&wf).Error; err != nil {
		return nil, notFound(err)
	}
	return &wf, nil
}

// Save inserts or updates wf. When wf is the default, every sibling in the
// same scope loses its default flag first, inside the same transaction.
func (r *WorkflowRepository) Save(ctx context.Context, wf *models.WorkOrderWorkflow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if wf.IsDefault {
			q := scope(tx.Model(&models.WorkOrderWorkflow{}), wf.TenantID, wf.PlantID).
				Where("is_default = ?", true)
			if wf.ID != "" {
				q = q.Where("id <> ?", wf.ID)
			}
			if err := q.Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if wf.ID == "" {
			return tx.Create(wf).Error
		}
		return tx.Save(wf).Error
	})
}

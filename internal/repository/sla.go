package repository

import (
	"context"
	"errors"

	"cmms/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SlaRuleRepository struct {
	db *gorm.DB
}

func NewSlaRuleRepository(db *gorm.DB) *SlaRuleRepository {
	return &SlaRuleRepository{db: db}
}

// ActiveRule returns nil, nil when the tenant has no active rule.
func (r *SlaRuleRepository) ActiveRule(ctx context.Context, tenantID string, entity models.SlaEntity, priority models.Priority) (*models.SlaRule, error) {
	var rule models.SlaRule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND priority = ? AND is_active = ?", tenantID, entity, priority, true).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *SlaRuleRepository) List(ctx context.Context, tenantID string) ([]models.SlaRule, error) {
	var rules []models.SlaRule
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("entity_type ASC").Order("priority ASC").
		Find(&rules).Error
	return rules, err
}

// Upsert updates the rule for (tenant, entity, priority) in place or
// inserts it.
func (r *SlaRuleRepository) Upsert(ctx context.Context, rule *models.SlaRule) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}, {Name: "priority"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"response_time_hours", "resolution_time_hours", "is_active", "updated_at",
		}),
	}).Create(rule).Error
	if err != nil {
		return err
	}
	// On conflict the generated id is not the stored one; reload it.
	var stored models.SlaRule
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND priority = ?", rule.TenantID, rule.EntityType, rule.Priority).
		First(&stored).Error
	if err != nil {
		return err
	}
	*rule = stored
	return nil
}

package repository

import (
	"context"
	"time"

	"cmms/internal/models"

	"gorm.io/gorm"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

func (r *WorkOrderRepository) Create(ctx context.Context, wo *models.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *WorkOrderRepository) Get(ctx context.Context, tenantID, plantID, id string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND plant_id = ? AND id = ?", tenantID, plantID, id).
		Preload("Attachments").
		First(&wo).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &wo, nil
}

// SaveTransition writes every column of wo, including cleared timestamps,
// only while the stored status is still from. It reports false when a
// concurrent change got there first and nothing was written.
func (r *WorkOrderRepository) SaveTransition(ctx context.Context, wo *models.WorkOrder, from models.WorkOrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(wo).
		Where("tenant_id = ? AND status = ?", wo.TenantID, from).
		Select("*").
		Omit("id", "tenant_id", "created_at", "Attachments").
		Updates(wo)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListOpen pages through non-terminal work orders with a deadline, in id
// order, for the SLA sweep.
func (r *WorkOrderRepository) ListOpen(ctx context.Context, afterID string, limit int) ([]models.WorkOrder, error) {
	var rows []models.WorkOrder
	q := r.db.WithContext(ctx).
		Where("status NOT IN ?", []models.WorkOrderStatus{models.StatusConcluida, models.StatusFechada, models.StatusCancelada}).
		Where("sla_deadline IS NOT NULL").
		Where("sla_alerted_at IS NULL")
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	err := q.Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *WorkOrderRepository) MarkAlerted(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.WorkOrder{}).
		Where("id = ?", id).
		Update("sla_alerted_at", at).Error
}

func (r *WorkOrderRepository) AddAttachment(ctx context.Context, f *models.File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TicketRepository) Get(ctx context.Context, tenantID, id string) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// SaveStatus writes t only while the stored status is still from.
func (r *TicketRepository) SaveStatus(ctx context.Context, t *models.Ticket, from models.TicketStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(t).
		Where("tenant_id = ? AND status = ?", t.TenantID, from).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(t)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListOverdue returns open tickets whose response or resolution deadline
// is at or before now and which have not been alerted yet.
func (r *TicketRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Ticket, error) {
	var rows []models.Ticket
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.TicketStatus{models.TicketAberto, models.TicketEmAtendimento}).
		Where("sla_alerted_at IS NULL").
		Where(r.db.Where("responded_at IS NULL AND sla_response_deadline <= ?", now).
			Or("sla_resolution_deadline <= ?", now)).
		Order("id ASC").Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *TicketRepository) MarkAlerted(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ?", id).
		Update("sla_alerted_at", at).Error
}

package repository

import (
	"context"

	"cmms/internal/models"

	"gorm.io/gorm"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindOldest returns the earliest-created live tenant.
func (r *TenantRepository) FindOldest(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *TenantRepository) List(ctx context.Context, page, limit int) ([]models.Tenant, int64, error) {
	var (
		tenants []models.Tenant
		total   int64
	)
	q := r.db.WithContext(ctx).Model(&models.Tenant{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, size := Page(page, limit)
	if err := q.Order("created_at ASC").Offset(offset).Limit(size).Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}

func (r *TenantRepository) Create(ctx context.Context, t *models.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// SetReadOnly flips the read-only lock and returns the tenant before and
// after the change.
func (r *TenantRepository) SetReadOnly(ctx context.Context, id string, readOnly bool) (before, after *models.Tenant, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tenant
		if err := tx.Where("id = ?", id).First(&t).Error; err != nil {
			return notFound(err)
		}
		prev := t
		if err := tx.Model(&t).Update("is_read_only", readOnly).Error; err != nil {
			return err
		}
		t.IsReadOnly = readOnly
		before, after = &prev, &t
		return nil
	})
	return before, after, err
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// Create inserts u. Duplicate emails surface as the driver's unique
// violation.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

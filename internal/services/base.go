package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"cmms/internal/events"
	"cmms/internal/repository"

	"gorm.io/gorm"
)

// BaseService defines tenant-scoped CRUD operations. Every call is
// restricted to rows whose tenant_id matches tenantID.
type BaseService[T any] interface {
	Create(ctx context.Context, tenantID string, entity *T) error
	Get(ctx context.Context, tenantID, id string) (*T, error)
	List(ctx context.Context, tenantID string, q ListQuery) ([]T, int64, error)
	Update(ctx context.Context, tenantID, id string, entity *T) error
	Delete(ctx context.Context, tenantID, id string) error
}

// ListQuery carries pagination, equality filters and a sort column.
// Filter and sort keys must be column names present in Columns.
type ListQuery struct {
	Page    int
	Limit   int
	Filters map[string]string
	Sort    string
	Desc    bool
}

// BaseServiceImpl implements BaseService
type BaseServiceImpl[T any] struct {
	db        *gorm.DB
	modelType T
	table     string
	columns   map[string]bool
}

func GormTableName(db *gorm.DB, v any) string {
	structName := reflect.TypeOf(v).Name()
	return db.NamingStrategy.TableName(structName)
}

// NewBaseService creates a new base service. T must carry a TenantID
// field.
func NewBaseService[T any](db *gorm.DB, modelType T) BaseService[T] {
	if _, ok := reflect.TypeOf(modelType).FieldByName("TenantID"); !ok {
		panic(fmt.Sprintf("services: %T has no TenantID field", modelType))
	}
	return &BaseServiceImpl[T]{
		db:        db,
		modelType: modelType,
		table:     GormTableName(db, modelType),
		columns:   columnsOf(db, modelType),
	}
}

// columnsOf lists the snake_case columns of the model's exported fields,
// including embedded ones.
func columnsOf(db *gorm.DB, v any) map[string]bool {
	cols := make(map[string]bool)
	var walk func(t reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type)
				continue
			}
			cols[db.NamingStrategy.ColumnName("", f.Name)] = true
		}
	}
	walk(reflect.TypeOf(v))
	return cols
}

func (s *BaseServiceImpl[T]) scoped(ctx context.Context, tenantID string) *gorm.DB {
	return s.db.WithContext(ctx).Model(new(T)).Where("tenant_id = ?", tenantID)
}

func setTenant(entity any, tenantID string) {
	v := reflect.ValueOf(entity).Elem().FieldByName("TenantID")
	if v.IsValid() && v.CanSet() && v.Kind() == reflect.String {
		v.SetString(tenantID)
	}
}

func (s *BaseServiceImpl[T]) Create(ctx context.Context, tenantID string, entity *T) error {
	setTenant(entity, tenantID)
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return err
	}
	events.Emit(fmt.Sprintf("%s.created", s.table), entity)
	return nil
}

func (s *BaseServiceImpl[T]) Get(ctx context.Context, tenantID, id string) (*T, error) {
	var entity T
	if err := s.scoped(ctx, tenantID).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &entity, nil
}

func (s *BaseServiceImpl[T]) List(ctx context.Context, tenantID string, q ListQuery) ([]T, int64, error) {
	var (
		entities []T
		total    int64
	)
	query := s.scoped(ctx, tenantID)
	for key, value := range q.Filters {
		if !s.columns[key] || key == "tenant_id" {
			continue
		}
		query = query.Where(key+" = ?", value)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sort := "created_at"
	if s.columns[q.Sort] {
		sort = q.Sort
	}
	order := sort + " ASC"
	if q.Desc {
		order = sort + " DESC"
	}
	offset, size := repository.Page(q.Page, q.Limit)
	if err := query.Order(order).Offset(offset).Limit(size).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

func (s *BaseServiceImpl[T]) Update(ctx context.Context, tenantID, id string, entity *T) error {
	setTenant(entity, tenantID)
	res := s.scoped(ctx, tenantID).Where("id = ?", id).Omit("id", "tenant_id", "created_at").Updates(entity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	if err := s.scoped(ctx, tenantID).Where("id = ?", id).First(entity).Error; err != nil {
		return err
	}
	events.Emit(fmt.Sprintf("%s.updated", s.table), entity)
	return nil
}

// Delete soft-deletes through the model's gorm.DeletedAt.
func (s *BaseServiceImpl[T]) Delete(ctx context.Context, tenantID, id string) error {
	res := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	events.Emit(fmt.Sprintf("%s.deleted", s.table), id)
	return nil
}

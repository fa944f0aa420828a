package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/item-engine/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	Page     int
	PageSize int
}

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	List(ctx context.Context, params ListParams) ([]domain.Item, int64, error)
	// ListIDs returns the identifier of every item currently in the store.
	// It backs the batch processor's work-set enumeration.
	ListIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id string) error
}

type GormItemRepo struct {
	db *gorm.DB
}

func NewGormItemRepo(db *gorm.DB) *GormItemRepo {
	return &GormItemRepo{db: db}
}

func (r *GormItemRepo) Create(ctx context.Context, item *domain.Item) error {
	model := itemModelFromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if item != nil {
		*item = *itemModelToDomain(model)
	}
	return nil
}

func (r *GormItemRepo) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	var model ItemModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return itemModelToDomain(&model), nil
}

func (r *GormItemRepo) List(ctx context.Context, params ListParams) ([]domain.Item, int64, error) {
	query := r.db.WithContext(ctx).Model(&ItemModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []ItemModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.Item, 0, len(models))
	for i := range models {
		items = append(items, *itemModelToDomain(&models[i]))
	}

	return items, total, nil
}

func (r *GormItemRepo) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&ItemModel{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormItemRepo) Update(ctx context.Context, item *domain.Item) error {
	if item == nil {
		return domain.ErrNotFound
	}

	model := itemModelFromDomain(item)
	result := r.db.WithContext(ctx).
		Model(&ItemModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"name":        model.Name,
			"description": model.Description,
			"status":      model.Status,
			"email":       model.Email,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormItemRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&ItemModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/item-engine/internal/domain"
	"github.com/kursadbilgin/item-engine/internal/repository"
	"go.uber.org/zap"
)

type ItemService struct {
	items  repository.ItemRepository
	logger *zap.Logger
}

func NewItemService(items repository.ItemRepository, logger *zap.Logger) (*ItemService, error) {
	if items == nil {
		return nil, fmt.Errorf("item repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ItemService{
		items:  items,
		logger: logger,
	}, nil
}

func (s *ItemService) Create(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := prepareItemForCreate(item); err != nil {
		return nil, err
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("item created", zap.String("itemId", item.ID))
	return item, nil
}

func (s *ItemService) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: item id is required", domain.ErrValidation)
	}
	return s.items.GetByID(ctx, strings.TrimSpace(id))
}

func (s *ItemService) List(ctx context.Context, params repository.ListParams) ([]domain.Item, int64, error) {
	return s.items.List(ctx, params)
}

func (s *ItemService) Update(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item is required", domain.ErrValidation)
	}

	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return nil, fmt.Errorf("%w: item id is required", domain.ErrValidation)
	}

	normalizeItemFields(item)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	return s.items.GetByID(ctx, item.ID)
}

func (s *ItemService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: item id is required", domain.ErrValidation)
	}

	if err := s.items.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}

	s.logger.Info("item deleted", zap.String("itemId", id))
	return nil
}

func prepareItemForCreate(item *domain.Item) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", domain.ErrValidation)
	}

	normalizeItemFields(item)

	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	if item.Status == "" {
		item.Status = domain.StatusNew
	}

	return item.Validate()
}

func normalizeItemFields(item *domain.Item) {
	item.Name = strings.TrimSpace(item.Name)
	item.Description = strings.TrimSpace(item.Description)
	item.Email = strings.TrimSpace(item.Email)
}

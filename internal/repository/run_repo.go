package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/item-engine/internal/domain"
	"gorm.io/gorm"
)

type RunRepository interface {
	// Create persists a run together with its per-item failure records.
	Create(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error
	GetByID(ctx context.Context, id string) (*domain.ProcessRun, []domain.ProcessFailure, error)
	List(ctx context.Context, limit int) ([]domain.ProcessRun, error)
}

type GormRunRepo struct {
	db *gorm.DB
}

func NewGormRunRepo(db *gorm.DB) *GormRunRepo {
	return &GormRunRepo{db: db}
}

func (r *GormRunRepo) Create(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error {
	runModel := runModelFromDomain(run)
	if runModel == nil {
		return errors.New("run is required")
	}

	failureModels := make([]ProcessFailureModel, 0, len(failures))
	for i := range failures {
		failureModels = append(failureModels, *failureModelFromDomain(&failures[i]))
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(runModel).Error; err != nil {
			return err
		}
		if len(failureModels) == 0 {
			return nil
		}
		return tx.CreateInBatches(&failureModels, 100).Error
	})
}

func (r *GormRunRepo) GetByID(ctx context.Context, id string) (*domain.ProcessRun, []domain.ProcessFailure, error) {
	var runModel ProcessRunModel
	err := r.db.WithContext(ctx).First(&runModel, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var failureModels []ProcessFailureModel
	err = r.db.WithContext(ctx).
		Where("run_id = ?", id).
		Order("created_at ASC").
		Find(&failureModels).Error
	if err != nil {
		return nil, nil, err
	}

	failures := make([]domain.ProcessFailure, 0, len(failureModels))
	for i := range failureModels {
		failures = append(failures, *failureModelToDomain(&failureModels[i]))
	}

	return runModelToDomain(&runModel), failures, nil
}

func (r *GormRunRepo) List(ctx context.Context, limit int) ([]domain.ProcessRun, error) {
	if limit < 1 {
		limit = 50
	}

	var models []ProcessRunModel
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	runs := make([]domain.ProcessRun, 0, len(models))
	for i := range models {
		runs = append(runs, *runModelToDomain(&models[i]))
	}

	return runs, nil
}

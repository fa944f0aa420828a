package repository

import (
	"time"

	"github.com/kursadbilgin/item-engine/internal/domain"
)

// ItemModel is the persistence model for the items table.
type ItemModel struct {
	ID          string        `gorm:"type:uuid;primaryKey"`
	Name        string        `gorm:"type:varchar(100);not null"`
	Description string        `gorm:"type:varchar(500)"`
	Status      domain.Status `gorm:"type:varchar(20);not null"`
	Email       string        `gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ItemModel) TableName() string {
	return "items"
}

// ProcessRunModel is the persistence model for process_runs.
type ProcessRunModel struct {
	ID             string           `gorm:"type:uuid;primaryKey"`
	TotalCount     int              `gorm:"not null"`
	SucceededCount int              `gorm:"not null"`
	FailedCount    int              `gorm:"not null"`
	Status         domain.RunStatus `gorm:"type:varchar(20);not null"`
	StartedAt      time.Time        `gorm:"not null"`
	FinishedAt     time.Time        `gorm:"not null"`
}

func (ProcessRunModel) TableName() string {
	return "process_runs"
}

// ProcessFailureModel is the persistence model for process_failures.
type ProcessFailureModel struct {
	ID        string               `gorm:"type:uuid;primaryKey"`
	RunID     string               `gorm:"type:uuid;not null"`
	ItemID    string               `gorm:"type:uuid;not null"`
	Reason    domain.FailureReason `gorm:"type:varchar(20);not null"`
	Detail    string               `gorm:"type:text"`
	CreatedAt time.Time
}

func (ProcessFailureModel) TableName() string {
	return "process_failures"
}

func itemModelFromDomain(i *domain.Item) *ItemModel {
	if i == nil {
		return nil
	}

	return &ItemModel{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		Status:      i.Status,
		Email:       i.Email,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func itemModelToDomain(m *ItemModel) *domain.Item {
	if m == nil {
		return nil
	}

	return &domain.Item{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Status:      m.Status,
		Email:       m.Email,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func runModelFromDomain(r *domain.ProcessRun) *ProcessRunModel {
	if r == nil {
		return nil
	}

	return &ProcessRunModel{
		ID:             r.ID,
		TotalCount:     r.TotalCount,
		SucceededCount: r.SucceededCount,
		FailedCount:    r.FailedCount,
		Status:         r.Status,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

func runModelToDomain(m *ProcessRunModel) *domain.ProcessRun {
	if m == nil {
		return nil
	}

	return &domain.ProcessRun{
		ID:             m.ID,
		TotalCount:     m.TotalCount,
		SucceededCount: m.SucceededCount,
		FailedCount:    m.FailedCount,
		Status:         m.Status,
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
	}
}

func failureModelFromDomain(f *domain.ProcessFailure) *ProcessFailureModel {
	if f == nil {
		return nil
	}

	return &ProcessFailureModel{
		ID:        f.ID,
		RunID:     f.RunID,
		ItemID:    f.ItemID,
		Reason:    f.Reason,
		Detail:    f.Detail,
		CreatedAt: f.CreatedAt,
	}
}

func failureModelToDomain(m *ProcessFailureModel) *domain.ProcessFailure {
	if m == nil {
		return nil
	}

	return &domain.ProcessFailure{
		ID:        m.ID,
		RunID:     m.RunID,
		ItemID:    m.ItemID,
		Reason:    m.Reason,
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
}

package domain

import "time"

// RunStatus represents the terminal state of one batch processing run.
type RunStatus string

const (
	RunStatusCompleted      RunStatus = "COMPLETED"
	RunStatusPartialFailure RunStatus = "PARTIAL_FAILURE"
	RunStatusEmpty          RunStatus = "EMPTY"
)

func (s RunStatus) String() string { return string(s) }

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartialFailure, RunStatusEmpty:
		return true
	}
	return false
}

// ProcessRun is the audit record for one batch invocation.
type ProcessRun struct {
	ID             string    `gorm:"type:uuid;primaryKey"`
	TotalCount     int       `gorm:"not null"`
	SucceededCount int       `gorm:"not null"`
	FailedCount    int       `gorm:"not null"`
	Status         RunStatus `gorm:"type:varchar(20);not null"`
	StartedAt      time.Time `gorm:"not null"`
	FinishedAt     time.Time `gorm:"not null"`
}

// FailureReason classifies why a single item failed inside a run.
type FailureReason string

const (
	FailureNotFound  FailureReason = "NOT_FOUND"
	FailureLoadError FailureReason = "LOAD_ERROR"
	FailureSaveError FailureReason = "SAVE_ERROR"
)

func (r FailureReason) String() string { return string(r) }

// ProcessFailure records a single item that did not survive a run.
// It carries no item data, only the identifier and cause.
type ProcessFailure struct {
	ID        string        `gorm:"type:uuid;primaryKey"`
	RunID     string        `gorm:"type:uuid;not null"`
	ItemID    string        `gorm:"type:uuid;not null"`
	Reason    FailureReason `gorm:"type:varchar(20);not null"`
	Detail    string        `gorm:"type:text"`
	CreatedAt time.Time
}

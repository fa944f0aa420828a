package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status represents the processing lifecycle state of an item.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusProcessed  Status = "PROCESSED"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusProcessed, StatusCompleted:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Field limits (in characters).
const (
	MinNameLength        = 2
	MaxNameLength        = 100
	MaxDescriptionLength = 500
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Item is the core domain entity managed by the service.
type Item struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:varchar(500)"`
	Status      Status `gorm:"type:varchar(20);not null"`
	Email       string `gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (i *Item) Validate() error {
	nameLen := len([]rune(i.Name))
	if nameLen == 0 {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if nameLen < MinNameLength || nameLen > MaxNameLength {
		return fmt.Errorf("%w: name must be between %d and %d characters (got %d)",
			ErrValidation, MinNameLength, MaxNameLength, nameLen)
	}

	if descLen := len([]rune(i.Description)); descLen > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters (got %d)",
			ErrValidation, MaxDescriptionLength, descLen)
	}

	if !i.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, i.Status)
	}

	if i.Email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !emailPattern.MatchString(i.Email) {
		return fmt.Errorf("%w: email %q is not a valid address", ErrValidation, i.Email)
	}

	return nil
}

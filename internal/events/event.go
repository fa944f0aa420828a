package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// QueueItemProcessed is the durable queue run completion events are
// published to for downstream consumers.
const QueueItemProcessed = "item.processed"

// RunCompletedEvent is the broker payload emitted after a batch run finishes.
type RunCompletedEvent struct {
	RunID          string    `json:"runId"`
	Status         string    `json:"status"`
	TotalCount     int       `json:"totalCount"`
	SucceededCount int       `json:"succeededCount"`
	FailedCount    int       `json:"failedCount"`
	FinishedAt     time.Time `json:"finishedAt"`
}

func (e RunCompletedEvent) Validate() error {
	if strings.TrimSpace(e.RunID) == "" {
		return fmt.Errorf("runId is required")
	}
	if strings.TrimSpace(e.Status) == "" {
		return fmt.Errorf("status is required")
	}
	if e.TotalCount < 0 {
		return fmt.Errorf("totalCount must be >= 0")
	}
	if e.SucceededCount+e.FailedCount != e.TotalCount {
		return fmt.Errorf("succeeded (%d) + failed (%d) must equal total (%d)",
			e.SucceededCount, e.FailedCount, e.TotalCount)
	}
	return nil
}

// Publisher publishes run completion events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event RunCompletedEvent) error
	Close() error
}

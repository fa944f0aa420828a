package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/item-engine/internal/domain"
	"github.com/kursadbilgin/item-engine/internal/events"
	"github.com/kursadbilgin/item-engine/internal/notify"
	"github.com/kursadbilgin/item-engine/internal/observability"
	"github.com/kursadbilgin/item-engine/internal/repository"
	"go.uber.org/zap"
)

// TaskPool is the bounded executor the processor dispatches per-item work to.
type TaskPool interface {
	Submit(task func())
}

// taskOutcome is the per-item result of one processing task. Exactly one of
// item or err is set; err never crosses the task boundary.
type taskOutcome struct {
	itemID string
	item   *domain.Item
	reason domain.FailureReason
	err    error
}

// BatchProcessor converts the full item set into a best-effort collection of
// processed items. Per-item work runs concurrently on a shared bounded pool;
// a single item's failure never aborts the rest of the batch.
type BatchProcessor struct {
	items    repository.ItemRepository
	runs     repository.RunRepository
	pool     TaskPool
	events   events.Publisher
	notifier notify.Notifier
	logger   *zap.Logger
	metrics  *observability.Metrics

	// delay simulates per-item processing work, matching production timing
	// in load tests; zero disables it.
	delay time.Duration
	sleep func(d time.Duration)
	now   func() time.Time
}

func NewBatchProcessor(
	items repository.ItemRepository,
	runs repository.RunRepository,
	pool TaskPool,
	delay time.Duration,
	logger *zap.Logger,
) (*BatchProcessor, error) {
	if items == nil {
		return nil, fmt.Errorf("item repository is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("task pool is required")
	}
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchProcessor{
		items:  items,
		runs:   runs,
		pool:   pool,
		logger: logger,
		delay:  delay,
		sleep:  time.Sleep,
		now:    time.Now,
	}, nil
}

func (p *BatchProcessor) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// SetEventPublisher wires optional run completion event publishing.
func (p *BatchProcessor) SetEventPublisher(publisher events.Publisher) {
	if p == nil {
		return
	}
	p.events = publisher
}

// SetNotifier wires optional run summary webhook delivery.
func (p *BatchProcessor) SetNotifier(notifier notify.Notifier) {
	if p == nil {
		return
	}
	p.notifier = notifier
}

// ProcessItems enumerates every item currently in the store, processes each
// one on the worker pool, waits for all tasks to reach a terminal state, and
// returns the successfully processed subset. Only a failure to enumerate the
// work set surfaces as an error (domain.ErrDispatch); per-item failures are
// contained, recorded, and filtered out.
func (p *BatchProcessor) ProcessItems(ctx context.Context) ([]domain.Item, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.WithContextLogger(p.logger, ctx)
	startedAt := p.now().UTC()

	ids, err := p.items.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list item ids: %v", domain.ErrDispatch, err)
	}

	if len(ids) == 0 {
		logger.Info("no items to process")
		p.recordRun(ctx, &domain.ProcessRun{
			ID:         uuid.NewString(),
			TotalCount: 0,
			Status:     domain.RunStatusEmpty,
			StartedAt:  startedAt,
			FinishedAt: p.now().UTC(),
		}, nil)
		return []domain.Item{}, nil
	}

	logger.Info("processing batch", zap.Int("itemCount", len(ids)))

	outcomes := make(chan taskOutcome, len(ids))
	var pending sync.WaitGroup
	for _, id := range ids {
		id := id
		pending.Add(1)
		p.pool.Submit(func() {
			defer pending.Done()
			outcomes <- p.processOne(ctx, id)
		})
	}

	// Join barrier: every task reaches a terminal state before aggregation.
	pending.Wait()
	close(outcomes)

	processed := make([]domain.Item, 0, len(ids))
	failures := make([]domain.ProcessFailure, 0)
	runID := uuid.NewString()
	finishedAt := p.now().UTC()

	for outcome := range outcomes {
		if outcome.err != nil {
			failures = append(failures, domain.ProcessFailure{
				ID:        uuid.NewString(),
				RunID:     runID,
				ItemID:    outcome.itemID,
				Reason:    outcome.reason,
				Detail:    outcome.err.Error(),
				CreatedAt: finishedAt,
			})
			p.metrics.IncItemProcessFailed(outcome.reason.String())
			continue
		}
		processed = append(processed, *outcome.item)
	}

	run := &domain.ProcessRun{
		ID:             runID,
		TotalCount:     len(ids),
		SucceededCount: len(processed),
		FailedCount:    len(failures),
		Status:         domain.RunStatusCompleted,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
	}
	if len(failures) > 0 {
		run.Status = domain.RunStatusPartialFailure
		logger.Warn("batch completed with failures",
			zap.String("runId", run.ID),
			zap.Int("failed", len(failures)),
			zap.Int("total", len(ids)),
		)
	}

	p.metrics.AddItemsProcessed(len(processed))
	p.metrics.ObserveProcessRunDuration(finishedAt.Sub(startedAt))

	p.recordRun(ctx, run, failures)
	p.announceRun(ctx, run)

	return processed, nil
}

// GetRun returns one recorded run and its per-item failures.
func (p *BatchProcessor) GetRun(ctx context.Context, id string) (*domain.ProcessRun, []domain.ProcessFailure, error) {
	if p.runs == nil {
		return nil, nil, domain.ErrNotFound
	}
	return p.runs.GetByID(ctx, id)
}

// processOne is the per-item task body. All failures are converted into a
// failure-marker outcome; nothing escapes to sibling tasks.
func (p *BatchProcessor) processOne(ctx context.Context, id string) taskOutcome {
	item, err := p.items.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		p.logger.Warn("item missing during processing", zap.String("itemId", id))
		return taskOutcome{itemID: id, reason: domain.FailureNotFound, err: err}
	}
	if err != nil {
		p.logger.Error("failed to load item",
			zap.String("itemId", id),
			zap.Error(err),
		)
		return taskOutcome{itemID: id, reason: domain.FailureLoadError, err: err}
	}

	item.Status = domain.StatusProcessed

	if p.delay > 0 {
		p.sleep(p.delay)
	}

	if err := p.items.Update(ctx, item); err != nil {
		p.logger.Error("failed to save processed item",
			zap.String("itemId", id),
			zap.Error(err),
		)
		return taskOutcome{itemID: id, reason: domain.FailureSaveError, err: err}
	}

	return taskOutcome{itemID: id, item: item}
}

func (p *BatchProcessor) recordRun(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) {
	if p.runs == nil {
		return
	}

	if err := p.runs.Create(ctx, run, failures); err != nil {
		p.logger.Error("failed to record process run",
			zap.String("runId", run.ID),
			zap.Error(err),
		)
	}
}

// announceRun delivers best-effort completion signals; failures are logged
// and never affect the batch result.
func (p *BatchProcessor) announceRun(ctx context.Context, run *domain.ProcessRun) {
	if p.events != nil {
		event := events.RunCompletedEvent{
			RunID:          run.ID,
			Status:         run.Status.String(),
			TotalCount:     run.TotalCount,
			SucceededCount: run.SucceededCount,
			FailedCount:    run.FailedCount,
			FinishedAt:     run.FinishedAt,
		}
		if err := p.events.Publish(ctx, events.QueueItemProcessed, event); err != nil {
			p.logger.Error("failed to publish run completed event",
				zap.String("runId", run.ID),
				zap.Error(err),
			)
		}
	}

	if p.notifier != nil {
		if err := p.notifier.NotifyRunCompleted(ctx, notify.NewRunSummary(run)); err != nil {
			p.logger.Error("failed to deliver run summary webhook",
				zap.String("runId", run.ID),
				zap.Error(err),
			)
		}
	}
}

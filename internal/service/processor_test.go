package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/item-engine/internal/domain"
	"github.com/kursadbilgin/item-engine/internal/events"
	"github.com/kursadbilgin/item-engine/internal/notify"
	"github.com/kursadbilgin/item-engine/internal/pool"
	"github.com/kursadbilgin/item-engine/internal/repository"
)

func newTestPool(t *testing.T, cfg pool.Config) *pool.Pool {
	t.Helper()

	p := pool.New(cfg, nil)
	t.Cleanup(p.Close)
	return p
}

func smallPoolConfig() pool.Config {
	return pool.Config{
		CoreWorkers: 2,
		MaxWorkers:  4,
		QueueSize:   8,
		IdleTimeout: time.Second,
	}
}

func TestProcessItemsAllSucceed(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a", "b", "c")
	var gotRun *domain.ProcessRun
	runs := &fakeRunRepo{
		createFn: func(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error {
			gotRun = run
			if len(failures) != 0 {
				t.Fatalf("failures = %d, want 0", len(failures))
			}
			return nil
		},
	}

	proc, err := NewBatchProcessor(repo, runs, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for _, item := range items {
		if item.Status != domain.StatusProcessed {
			t.Fatalf("item %s status = %s, want PROCESSED", item.ID, item.Status)
		}
	}

	if gotRun == nil {
		t.Fatal("expected run to be recorded")
	}
	if gotRun.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %s, want COMPLETED", gotRun.Status)
	}
	if gotRun.TotalCount != 3 || gotRun.SucceededCount != 3 || gotRun.FailedCount != 0 {
		t.Fatalf("run counts = %d/%d/%d, want 3/3/0",
			gotRun.TotalCount, gotRun.SucceededCount, gotRun.FailedCount)
	}
}

func TestProcessItemsMissingItemsAreExcluded(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a", "b")
	repo.listIDsFn = func(ctx context.Context) ([]string, error) {
		return []string{"a", "ghost", "b"}, nil
	}

	var gotFailures []domain.ProcessFailure
	runs := &fakeRunRepo{
		createFn: func(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error {
			gotFailures = failures
			return nil
		},
	}

	proc, err := NewBatchProcessor(repo, runs, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if len(gotFailures) != 1 {
		t.Fatalf("len(failures) = %d, want 1", len(gotFailures))
	}
	if gotFailures[0].ItemID != "ghost" {
		t.Fatalf("failure item = %s, want ghost", gotFailures[0].ItemID)
	}
	if gotFailures[0].Reason != domain.FailureNotFound {
		t.Fatalf("failure reason = %s, want NOT_FOUND", gotFailures[0].Reason)
	}
}

func TestProcessItemsSaveFailureIsIsolated(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a", "b", "c")
	repo.updateFn = func(ctx context.Context, item *domain.Item) error {
		if item.ID == "b" {
			return errors.New("disk full")
		}
		return repo.update(ctx, item)
	}

	var gotRun *domain.ProcessRun
	var gotFailures []domain.ProcessFailure
	runs := &fakeRunRepo{
		createFn: func(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error {
			gotRun = run
			gotFailures = failures
			return nil
		},
	}

	proc, err := NewBatchProcessor(repo, runs, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.ID == "b" {
			t.Fatal("failed item should be excluded from the result")
		}
	}

	if gotRun.Status != domain.RunStatusPartialFailure {
		t.Fatalf("run status = %s, want PARTIAL_FAILURE", gotRun.Status)
	}
	if len(gotFailures) != 1 || gotFailures[0].Reason != domain.FailureSaveError {
		t.Fatalf("failures = %+v, want one SAVE_ERROR", gotFailures)
	}
}

func TestProcessItemsAllFailReturnsEmptyResult(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a", "b")
	repo.getByIDFn = func(ctx context.Context, id string) (*domain.Item, error) {
		return nil, errors.New("connection reset")
	}

	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v, total per-item failure is not an operation fault", err)
	}
	if len(items) != 0 {
		t.Fatalf("len(items) = %d, want 0", len(items))
	}
}

func TestProcessItemsListIDsFailureIsDispatchFailure(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo()
	repo.listIDsFn = func(ctx context.Context) ([]string, error) {
		return nil, errors.New("store unreachable")
	}

	counting := &countingPool{}
	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, counting, 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	_, err = proc.ProcessItems(context.Background())
	if !errors.Is(err, domain.ErrDispatch) {
		t.Fatalf("ProcessItems() error = %v, want ErrDispatch", err)
	}
	if counting.submitted() != 0 {
		t.Fatalf("submitted = %d, want 0 tasks dispatched", counting.submitted())
	}
}

func TestProcessItemsEmptyStoreSkipsPool(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo()
	counting := &countingPool{}

	var gotRun *domain.ProcessRun
	runs := &fakeRunRepo{
		createFn: func(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error {
			gotRun = run
			return nil
		},
	}

	proc, err := NewBatchProcessor(repo, runs, counting, 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("len(items) = %d, want 0", len(items))
	}
	if counting.submitted() != 0 {
		t.Fatalf("submitted = %d, want pool untouched", counting.submitted())
	}
	if gotRun == nil || gotRun.Status != domain.RunStatusEmpty {
		t.Fatalf("run = %+v, want EMPTY run recorded", gotRun)
	}
}

func TestProcessItemsDuplicateIDsProcessedIndependently(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a")
	repo.listIDsFn = func(ctx context.Context) ([]string, error) {
		return []string{"a", "a", "a"}, nil
	}

	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3 (duplicates are not deduplicated)", len(items))
	}
}

func TestProcessItemsIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a", "b", "c", "d")

	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	first, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("first ProcessItems() error = %v", err)
	}
	second, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("second ProcessItems() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}

	firstIDs := resultIDs(first)
	secondIDs := resultIDs(second)
	for i := range firstIDs {
		if firstIDs[i] != secondIDs[i] {
			t.Fatalf("result id sets differ: %v vs %v", firstIDs, secondIDs)
		}
	}
	for _, item := range second {
		if item.Status != domain.StatusProcessed {
			t.Fatalf("item %s status = %s, want PROCESSED", item.ID, item.Status)
		}
	}
}

func TestProcessItemsSaturatedPoolStillCompletes(t *testing.T) {
	t.Parallel()

	ids := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		ids = append(ids, string(rune('a'+i%26))+string(rune('a'+i/26)))
	}
	repo := newMemoryItemRepo(ids...)

	// A pool far smaller than the batch forces queueing, burst workers,
	// and caller-runs overflow.
	tight := newTestPool(t, pool.Config{
		CoreWorkers: 1,
		MaxWorkers:  2,
		QueueSize:   2,
		IdleTimeout: 100 * time.Millisecond,
	})

	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, tight, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}

	done := make(chan struct{})
	var items []domain.Item
	go func() {
		defer close(done)
		items, err = proc.ProcessItems(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("ProcessItems() did not terminate on a saturated pool")
	}

	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}
	if len(items) != len(ids) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(ids))
	}
}

func TestProcessItemsAnnouncesRunCompletion(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a", "b")

	var publishedEvent *events.RunCompletedEvent
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, queue string, event events.RunCompletedEvent) error {
			if queue != events.QueueItemProcessed {
				t.Fatalf("queue = %s, want %s", queue, events.QueueItemProcessed)
			}
			publishedEvent = &event
			return nil
		},
	}

	var notified *notify.RunSummary
	notifier := &fakeNotifier{
		notifyFn: func(ctx context.Context, summary notify.RunSummary) error {
			notified = &summary
			return nil
		},
	}

	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}
	proc.SetEventPublisher(publisher)
	proc.SetNotifier(notifier)

	if _, err := proc.ProcessItems(context.Background()); err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}

	if publishedEvent == nil {
		t.Fatal("expected run completed event to be published")
	}
	if publishedEvent.SucceededCount != 2 {
		t.Fatalf("event succeededCount = %d, want 2", publishedEvent.SucceededCount)
	}
	if notified == nil {
		t.Fatal("expected run summary webhook to be delivered")
	}
	if notified.RunID != publishedEvent.RunID {
		t.Fatalf("webhook runId = %s, event runId = %s, want equal", notified.RunID, publishedEvent.RunID)
	}
}

func TestProcessItemsAnnounceFailureDoesNotFailBatch(t *testing.T) {
	t.Parallel()

	repo := newMemoryItemRepo("a")

	proc, err := NewBatchProcessor(repo, &fakeRunRepo{}, newTestPool(t, smallPoolConfig()), 0, nil)
	if err != nil {
		t.Fatalf("NewBatchProcessor() error = %v", err)
	}
	proc.SetEventPublisher(&fakePublisher{
		publishFn: func(ctx context.Context, queue string, event events.RunCompletedEvent) error {
			return errors.New("broker unavailable")
		},
	})
	proc.SetNotifier(&fakeNotifier{
		notifyFn: func(ctx context.Context, summary notify.RunSummary) error {
			return errors.New("webhook down")
		},
	})

	items, err := proc.ProcessItems(context.Background())
	if err != nil {
		t.Fatalf("ProcessItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
}

func resultIDs(items []domain.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	sort.Strings(ids)
	return ids
}

// memoryItemRepo is a concurrency-safe in-memory ItemRepository for
// processor tests. Individual operations can be overridden per test.
type memoryItemRepo struct {
	mu    sync.Mutex
	store map[string]domain.Item

	listIDsFn func(ctx context.Context) ([]string, error)
	getByIDFn func(ctx context.Context, id string) (*domain.Item, error)
	updateFn  func(ctx context.Context, item *domain.Item) error
}

func newMemoryItemRepo(ids ...string) *memoryItemRepo {
	store := make(map[string]domain.Item, len(ids))
	for _, id := range ids {
		store[id] = domain.Item{
			ID:     id,
			Name:   "item " + id,
			Status: domain.StatusNew,
			Email:  "owner@example.com",
		}
	}
	return &memoryItemRepo{store: store}
}

func (r *memoryItemRepo) Create(ctx context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[item.ID] = *item
	return nil
}

func (r *memoryItemRepo) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	if r.getByIDFn != nil {
		return r.getByIDFn(ctx, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := item
	return &copied, nil
}

func (r *memoryItemRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Item, int64, error) {
	return nil, 0, nil
}

func (r *memoryItemRepo) ListIDs(ctx context.Context) ([]string, error) {
	if r.listIDsFn != nil {
		return r.listIDsFn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.store))
	for id := range r.store {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memoryItemRepo) Update(ctx context.Context, item *domain.Item) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, item)
	}
	return r.update(ctx, item)
}

func (r *memoryItemRepo) update(ctx context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[item.ID]; !ok {
		return domain.ErrNotFound
	}
	r.store[item.ID] = *item
	return nil
}

func (r *memoryItemRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.store, id)
	return nil
}

type fakeRunRepo struct {
	createFn func(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error
	getFn    func(ctx context.Context, id string) (*domain.ProcessRun, []domain.ProcessFailure, error)
}

func (r *fakeRunRepo) Create(ctx context.Context, run *domain.ProcessRun, failures []domain.ProcessFailure) error {
	if r.createFn != nil {
		return r.createFn(ctx, run, failures)
	}
	return nil
}

func (r *fakeRunRepo) GetByID(ctx context.Context, id string) (*domain.ProcessRun, []domain.ProcessFailure, error) {
	if r.getFn != nil {
		return r.getFn(ctx, id)
	}
	return nil, nil, domain.ErrNotFound
}

func (r *fakeRunRepo) List(ctx context.Context, limit int) ([]domain.ProcessRun, error) {
	return nil, nil
}

// countingPool records submissions without running anything concurrently.
type countingPool struct {
	mu    sync.Mutex
	count int
}

func (p *countingPool) Submit(task func()) {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	task()
}

func (p *countingPool) submitted() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queue string, event events.RunCompletedEvent) error
}

func (p *fakePublisher) Publish(ctx context.Context, queue string, event events.RunCompletedEvent) error {
	if p.publishFn != nil {
		return p.publishFn(ctx, queue, event)
	}
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeNotifier struct {
	notifyFn func(ctx context.Context, summary notify.RunSummary) error
}

func (n *fakeNotifier) NotifyRunCompleted(ctx context.Context, summary notify.RunSummary) error {
	if n.notifyFn != nil {
		return n.notifyFn(ctx, summary)
	}
	return nil
}

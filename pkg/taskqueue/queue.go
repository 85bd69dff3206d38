package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fika-labs/agentrelay/internal/observability"
	"github.com/fika-labs/agentrelay/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Task is one asynchronous operation
type Task func(ctx context.Context) error

// ErrShuttingDown is returned for tasks enqueued after Shutdown
var ErrShuttingDown = errors.New("task queue is shutting down")

type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan error
}

// laneState manages execution state for a single lane
type laneState struct {
	mu          sync.Mutex
	concurrency int
	queue       []*taskRecord
	running     int
}

// Queue schedules tasks per lane with bounded concurrency
type Queue struct {
	mu        sync.RWMutex
	lanes     map[string]*laneState
	taskIDSeq int
	closed    bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	logger    zerolog.Logger
}

// New creates an empty queue. Lanes are created on first use with
// concurrency one.
func New(logger zerolog.Logger) *Queue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// SetLaneConcurrency fixes a lane's concurrency before use
func (q *Queue) SetLaneConcurrency(lane string, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if ls, exists := q.lanes[lane]; exists {
		ls.mu.Lock()
		ls.concurrency = concurrency
		ls.mu.Unlock()
		return
	}
	q.lanes[lane] = &laneState{concurrency: concurrency}
}

// Enqueue submits a task to a lane and waits for its result
func (q *Queue) Enqueue(ctx context.Context, lane string, task Task) error {
	record, err := q.submit(ctx, lane, task)
	if err != nil {
		return err
	}
	return <-record.result
}

// EnqueueAsync submits a task to a lane without awaiting it. A failed
// task is logged with its lane and task id; nothing else observes it.
func (q *Queue) EnqueueAsync(ctx context.Context, lane string, task Task) {
	record, err := q.submit(ctx, lane, task)
	if err != nil {
		q.logger.Error().Err(err).Str("lane", lane).Msg("Failed to enqueue task")
		return
	}

	go func() {
		if err := <-record.result; err != nil {
			log := tracing.LoggerFromContext(record.ctx, q.logger)
			log.Error().
				Err(err).
				Str("lane", lane).
				Str("task_id", record.id).
				Msg("Background task failed")
		}
	}()
}

func (q *Queue) submit(ctx context.Context, lane string, task Task) (*taskRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"agentrelay.taskqueue",
		"taskqueue.enqueue",
		attribute.String("lane", lane),
	)
	defer span.End()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrShuttingDown
	}
	ls, exists := q.lanes[lane]
	if !exists {
		ls = &laneState{concurrency: 1}
		q.lanes[lane] = ls
	}
	q.taskIDSeq++
	taskID := fmt.Sprintf("%s-%d", lane, q.taskIDSeq)
	q.mu.Unlock()

	record := &taskRecord{
		id:         taskID,
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan error, 1),
	}

	// Counted here, not in processLane, so Shutdown's wait covers
	// tasks that are accepted but not yet picked up by a worker.
	q.wg.Add(1)

	ls.mu.Lock()
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	observability.RecordQueueEnqueue(lane, queueSize)
	log := tracing.LoggerFromContext(ctx, q.logger)
	log.Debug().
		Str("lane", lane).
		Str("task_id", taskID).
		Int("queue_size", queueSize).
		Msg("Task enqueued")

	go q.processLane(lane, ls)
	return record, nil
}

// processLane starts queued tasks while the lane has capacity
func (q *Queue) processLane(lane string, ls *laneState) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]
		ls.running++

		go q.executeTask(lane, ls, record)
	}
}

func (q *Queue) executeTask(lane string, ls *laneState, record *taskRecord) {
	defer q.wg.Done()

	ctx, span := tracing.StartSpan(
		record.ctx,
		"agentrelay.taskqueue",
		"taskqueue.execute_task",
		attribute.String("lane", lane),
		attribute.String("task_id", record.id),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, q.logger)

	// The queue's shutdown cancels in-flight task contexts
	runCtx, cancel := context.WithCancel(ctx)
	stopCancel := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	start := time.Now()
	err := record.task(runCtx)
	duration := time.Since(start)

	ls.mu.Lock()
	ls.running--
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	record.result <- err
	close(record.result)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().
			Str("lane", lane).
			Str("task_id", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	} else {
		logger.Debug().
			Str("lane", lane).
			Str("task_id", record.id).
			Dur("duration", duration).
			Msg("Task completed")
	}

	observability.RecordQueueCompletion(lane, duration, err == nil, queueSize)

	go q.processLane(lane, ls)
}

// QueueSize returns the number of queued (not running) tasks for a lane
func (q *Queue) QueueSize(lane string) int {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()
	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.queue)
}

// RunningCount returns the number of executing tasks for a lane
func (q *Queue) RunningCount(lane string) int {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()
	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.running
}

// Shutdown rejects new tasks, cancels the contexts of running tasks,
// and waits for every accepted task to finish or ctx to expire.
// Tasks are interrupted, not drained to completion.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info().Msg("Task queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task queue shutdown timed out: %w", ctx.Err())
	}
}

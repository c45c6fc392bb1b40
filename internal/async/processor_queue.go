package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
)

type ProcessorQueue struct {
	extractor Extractor
	handler   Handler
	logger    *slog.Logger
	workers   int
	timeout   time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// senders hold the read lock while blocked on a full channel, so close(ch)
	// waits for them under the write lock.
	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithHandler sets the callback run after each job, on the worker goroutine.
func WithHandler(h Handler) Option {
	return func(q *ProcessorQueue) {
		if h != nil {
			q.handler = h
		}
	}
}

func NewProcessorQueue(extractor Extractor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		extractor: extractor,
		handler:   func(context.Context, Job, *pipeline.Result, error) {},
		logger:    logger,
		workers:   4,
		timeout:   3 * time.Minute,
		ch:        make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.worker.start", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Debug("async.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	log := q.logger.With("worker_id", workerID, "job", job.ID, "label", job.Label)
	res, err := q.extractor.Extract(ctx, job.Request)
	if err != nil {
		log.Error("async.extract.failed", "code", common.ErrorCode(err), "err", err)
	} else {
		log.Info("async.extract.ok",
			"extraction_job_id", res.JobID,
			"queued_ms", time.Since(job.SubmittedAt).Milliseconds(),
		)
	}
	q.handler(ctx, job, res, err)
}

// Enqueue hands a job to the workers, blocking while the queue is full until
// ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("async.enqueue.closed", "job", job.ID)
		return ErrQueueClosed
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	select {
	case q.ch <- job:
		q.logger.Debug("async.enqueue.ok", "job", job.ID, "images", len(job.Request.Images))
		return nil
	default:
	}
	q.logger.Warn("async.enqueue.backpressure", "job", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-done:
		q.logger.Info("async.shutdown.ok")
	}
}

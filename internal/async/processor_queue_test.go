package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
)

type fakeExtractor struct {
	started chan struct{}
	release chan struct{}
	fail    map[uuid.UUID]error

	mu   sync.Mutex
	rids []string
}

func (f *fakeExtractor) Extract(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	f.rids = append(f.rids, common.RequestIDFromContext(ctx))
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if err := f.fail[req.ProfileID]; err != nil {
		return &pipeline.Result{JobID: uuid.New(), ProfileID: req.ProfileID}, err
	}
	return &pipeline.Result{JobID: uuid.New(), ProfileID: req.ProfileID}, nil
}

type outcome struct {
	job Job
	res *pipeline.Result
	err error
}

type collector struct {
	mu  sync.Mutex
	out []outcome
}

func (c *collector) handle(_ context.Context, job Job, res *pipeline.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, outcome{job: job, res: res, err: err})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessorQueueDrainsOnShutdown(t *testing.T) {
	bad := uuid.New()
	ext := &fakeExtractor{fail: map[uuid.UUID]error{bad: &common.RecognitionUnavailableError{Provider: "fake", Cause: errors.New("down")}}}
	c := &collector{}
	q := NewProcessorQueue(ext, quietLogger(), WithWorkers(3), WithQueueSize(8), WithHandler(c.handle))

	profiles := []uuid.UUID{uuid.New(), bad, uuid.New(), uuid.New()}
	for i, p := range profiles {
		job := Job{Label: "batch", Request: pipeline.Request{ProfileID: p}}
		if i == 0 {
			job.TraceID = "trace-1"
		}
		require.NoError(t, q.Enqueue(context.Background(), job))
	}
	q.Shutdown(context.Background())

	require.Len(t, c.out, len(profiles))
	failed := 0
	for _, o := range c.out {
		assert.NotEqual(t, uuid.Nil, o.job.ID)
		assert.False(t, o.job.SubmittedAt.IsZero())
		require.NotNil(t, o.res)
		assert.Equal(t, o.job.Request.ProfileID, o.res.ProfileID)
		if o.err != nil {
			failed++
			assert.Equal(t, bad, o.job.Request.ProfileID)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Contains(t, ext.rids, "trace-1")
}

func TestProcessorQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeExtractor{}, quietLogger())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueueBackpressureHonorsContext(t *testing.T) {
	ext := &fakeExtractor{started: make(chan struct{}, 4), release: make(chan struct{})}
	q := NewProcessorQueue(ext, quietLogger(), WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{}))
	<-ext.started // worker busy
	require.NoError(t, q.Enqueue(context.Background(), Job{}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, Job{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(ext.release)
	q.Shutdown(context.Background())
}

func TestProcessorQueueShutdownInterrupted(t *testing.T) {
	ext := &fakeExtractor{started: make(chan struct{}, 1), release: make(chan struct{})}
	q := NewProcessorQueue(ext, quietLogger(), WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), Job{}))
	<-ext.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Shutdown(ctx)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	close(ext.release)
}

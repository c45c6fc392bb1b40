package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one extraction request waiting for a worker.
type Job struct {
	ID          uuid.UUID
	Label       string // caller tag, e.g. the directory a batch came from
	Request     pipeline.Request
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Extractor is satisfied by *pipeline.Extractor.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Handler receives every finished job. res may be non-nil alongside err when
// the pipeline failed after its job record was started.
type Handler func(ctx context.Context, job Job, res *pipeline.Result, err error)

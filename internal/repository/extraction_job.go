package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
)

type ExtractionJobRepository interface {
	Start(ctx context.Context, profileID uuid.UUID, provider string, imageCount int) (*entity.ExtractionJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, modelName, rawResponse string) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, code, message string, rawResponse *string) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionJob, error)
}

type extractionJobRepo struct {
	store
	log *slog.Logger
}

func NewExtractionJobRepository(drv *entsql.Driver, log *slog.Logger) ExtractionJobRepository {
	return &extractionJobRepo{store: store{drv: drv}, log: log}
}

var extractionJobColumns = []string{
	"id", "profile_id", "status", "provider", "model_name", "image_count",
	"raw_response", "error_code", "error_message", "started_at", "finished_at",
}

func (r *extractionJobRepo) Start(ctx context.Context, profileID uuid.UUID, provider string, imageCount int) (*entity.ExtractionJob, error) {
	job := &entity.ExtractionJob{
		ID:         uuid.New(),
		ProfileID:  profileID,
		Status:     string(constants.JobStatusRunning),
		Provider:   provider,
		ImageCount: imageCount,
		StartedAt:  time.Now().UTC(),
	}
	query, args := r.builder().Insert(ExtractionJobsTable.Name).
		Columns("id", "profile_id", "status", "provider", "image_count", "started_at").
		Values(job.ID, job.ProfileID, job.Status, job.Provider, job.ImageCount, job.StartedAt).
		Query()
	if _, err := r.db().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("extraction_job start failed", "profile_id", profileID, "err", err)
		return nil, err
	}
	r.log.Info("extraction_job started", "job_id", job.ID, "profile_id", profileID, "images", imageCount)
	return job, nil
}

func (r *extractionJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, modelName, rawResponse string) error {
	query, args := r.builder().Update(ExtractionJobsTable.Name).
		Set("status", string(constants.JobStatusExtracted)).
		Set("model_name", modelName).
		Set("raw_response", rawResponse).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.And(entsql.EQ("id", jobID), entsql.EQ("status", string(constants.JobStatusRunning)))).
		Query()
	return r.finish(ctx, jobID, constants.JobStatusExtracted, query, args)
}

// FinishFailure closes a running job with a terminal status other than
// EXTRACTED. rawResponse is kept for audit when recognition did answer.
func (r *extractionJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, code, message string, rawResponse *string) error {
	if !status.Terminal() || status == constants.JobStatusExtracted {
		return fmt.Errorf("finish job %s: %w", status, common.ErrInvalidInput)
	}
	upd := r.builder().Update(ExtractionJobsTable.Name).
		Set("status", string(status)).
		Set("error_code", code).
		Set("error_message", message).
		Set("finished_at", time.Now().UTC())
	if rawResponse != nil {
		upd = upd.Set("raw_response", *rawResponse)
	}
	query, args := upd.
		Where(entsql.And(entsql.EQ("id", jobID), entsql.EQ("status", string(constants.JobStatusRunning)))).
		Query()
	return r.finish(ctx, jobID, status, query, args)
}

func (r *extractionJobRepo) finish(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, query string, args []any) error {
	n, err := exec(ctx, r.db(), query, args)
	if err != nil {
		r.log.Error("extraction_job finish failed", "job_id", jobID, "status", status, "err", err)
		return err
	}
	if n == 0 {
		return fmt.Errorf("running extraction job %s: %w", jobID, common.ErrNotFound)
	}
	r.log.Info("extraction_job finished", "job_id", jobID, "status", status)
	return nil
}

func (r *extractionJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractionJob, error) {
	query, args := r.builder().Select(extractionJobColumns...).
		From(entsql.Table(ExtractionJobsTable.Name)).
		Where(entsql.EQ("id", jobID)).
		Query()

	var (
		job                       entity.ExtractionJob
		model, raw, code, message sql.NullString
		finished                  sql.NullTime
	)
	err := r.db().QueryRowContext(ctx, query, args...).Scan(
		&job.ID, &job.ProfileID, &job.Status, &job.Provider, &model, &job.ImageCount,
		&raw, &code, &message, &job.StartedAt, &finished,
	)
	if err != nil {
		return nil, notFound(err, "extraction job "+jobID.String())
	}
	job.ModelName = stringPtr(model)
	job.RawResponse = stringPtr(raw)
	job.ErrorCode = stringPtr(code)
	job.ErrorMessage = stringPtr(message)
	job.StartedAt = job.StartedAt.UTC()
	job.FinishedAt = timePtr(finished)
	return &job, nil
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/imaging"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
	"github.com/joseph-ayodele/vitals-tracker/internal/storage"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// MaxImages bounds the photos of one extraction request.
const MaxImages = 5

// Request is one extraction: up to MaxImages photos of the same kiosk session.
type Request struct {
	ProfileID uuid.UUID
	Images    []imaging.RawImage
}

// Result is a validated extraction ready for review. On failure after the job
// was started, Extract still returns a Result carrying JobID, SourceImages and
// RawText for audit, with a zero Reading.
type Result struct {
	JobID        uuid.UUID
	ProfileID    uuid.UUID
	Reading      vitals.ValidatedReading
	SourceImages []entity.SourceImage
	RawText      string
	Model        string
	// Candidates counts JSON objects found in RawText.
	Candidates int
}

// Normalizer is satisfied by *imaging.Normalizer.
type Normalizer interface {
	Normalize(ctx context.Context, imgs []imaging.RawImage) ([]imaging.NormalizedImage, error)
}

// Extractor runs normalize, archive, recognize, parse and validate for one
// request.
type Extractor struct {
	logger     *slog.Logger
	normalizer Normalizer
	store      storage.Store
	recognizer llm.Recognizer
	jobs       repository.ExtractionJobRepository
	images     repository.SourceImageRepository
}

func NewExtractor(
	logger *slog.Logger,
	normalizer Normalizer,
	store storage.Store,
	recognizer llm.Recognizer,
	jobs repository.ExtractionJobRepository,
	images repository.SourceImageRepository,
) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger:     logger,
		normalizer: normalizer,
		store:      store,
		recognizer: recognizer,
		jobs:       jobs,
		images:     images,
	}
}

func validateRequest(req Request) error {
	v := common.NewValidator().Field("profile_id", req.ProfileID, common.Required)
	switch {
	case len(req.Images) == 0:
		v.Field("images", nil, common.Required)
	case len(req.Images) > MaxImages:
		v.Field("images", len(req.Images), func(name string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: fmt.Sprintf("at most %d images per request", MaxImages)}
		})
	}
	for i, img := range req.Images {
		if len(img.Data) == 0 {
			v.Field(fmt.Sprintf("images[%d]", i), img.Filename, func(name string, value interface{}) *common.ValidationError {
				return &common.ValidationError{Field: name, Value: value, Message: "is empty"}
			})
		}
	}
	return v.Err()
}

// Extract processes one request end to end. Archived originals are never
// removed, whatever the outcome. Cancelling ctx while recognition is pending
// stops the request: nothing is parsed and the job is marked CANCELED.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()
	log := e.logger.With("req_id", rid, "profile_id", req.ProfileID)

	job, err := e.jobs.Start(ctx, req.ProfileID, e.recognizer.Name(), len(req.Images))
	if err != nil {
		return nil, fmt.Errorf("start extraction job: %w", err)
	}
	log = log.With("job_id", job.ID)
	log.Info("pipeline.extract.start", "images", len(req.Images), "provider", e.recognizer.Name())

	res := &Result{JobID: job.ID, ProfileID: req.ProfileID}
	fail := func(err error) (*Result, error) {
		e.finishFailure(ctx, log, job.ID, err, res.RawText)
		log.Warn("pipeline.extract.failed",
			"code", common.ErrorCode(err),
			"retryable", common.IsRetryable(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"err", err,
		)
		return res, err
	}

	normalized, err := e.normalizer.Normalize(ctx, req.Images)
	if err != nil {
		return fail(err)
	}

	res.SourceImages, err = e.archive(ctx, req.ProfileID, job.ID, normalized)
	if err != nil {
		return fail(err)
	}
	log.Info("pipeline.archive.ok", "images", len(res.SourceImages))

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	rr := llm.RecognitionRequest{Images: make([]llm.Image, len(normalized))}
	for i, ni := range normalized {
		rr.Images[i] = llm.Image{Data: ni.Data, MediaType: ni.MediaType, Name: ni.Original.Filename}
	}
	recStart := time.Now()
	raw, err := e.recognizer.Recognize(ctx, rr)
	if err == nil && ctx.Err() != nil {
		// a result that lands after cancellation is discarded
		err = ctx.Err()
	}
	if err != nil {
		return fail(err)
	}
	res.RawText, res.Model = raw.Text, raw.Model
	log.Info("llm.recognize.ok", "model", raw.Model, "chars", len(raw.Text), "elapsed_ms", time.Since(recStart).Milliseconds())

	parsed, err := llm.ParseExtraction(raw.Text, log)
	if err != nil {
		return fail(err)
	}
	res.Candidates = parsed.Candidates

	validated, err := vitals.Validate(parsed.Reading)
	if err != nil {
		return fail(err)
	}
	res.Reading = validated

	if err := e.jobs.FinishSuccess(ctx, job.ID, raw.Model, raw.Text); err != nil {
		log.Error("pipeline.job.finish_failed", "err", err)
		return res, fmt.Errorf("finish extraction job: %w", err)
	}
	log.Info("pipeline.extract.ok",
		"fields", len(validated.Measurements().Present()),
		"bmi_derived", validated.BMIDerived(),
		"notes", len(validated.MachineNotes()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// archive stores every original before recognition so provenance survives a
// failed or cancelled call.
func (e *Extractor) archive(ctx context.Context, profileID, jobID uuid.UUID, imgs []imaging.NormalizedImage) ([]entity.SourceImage, error) {
	out := make([]entity.SourceImage, 0, len(imgs))
	for i, ni := range imgs {
		name := ni.Original.Filename
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		ref, err := e.store.Put(ctx, ni.Original.Data, name)
		if err != nil {
			return out, fmt.Errorf("archive %s: %w", name, err)
		}
		row := entity.SourceImage{
			ProfileID:    profileID,
			JobID:        &jobID,
			StorageRef:   ref,
			OriginalName: name,
			MediaType:    ni.Original.MediaType,
			SizeBytes:    int64(len(ni.Original.Data)),
			Position:     i,
			ContentHash:  ni.ContentHash,
		}
		if err := e.images.Create(ctx, &row); err != nil {
			return out, fmt.Errorf("record %s: %w", name, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// finishFailure records the terminal status. It runs detached from ctx so a
// cancelled request is still closed out.
func (e *Extractor) finishFailure(ctx context.Context, log *slog.Logger, jobID uuid.UUID, cause error, rawText string) {
	status := constants.JobStatusFailed
	if errors.Is(cause, context.Canceled) {
		status = constants.JobStatusCanceled
	}
	var raw *string
	if rawText != "" {
		raw = &rawText
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.jobs.FinishFailure(ctx, jobID, status, common.ErrorCode(cause), cause.Error(), raw); err != nil {
		log.Error("pipeline.job.finish_failed", "status", status, "err", err)
	}
}

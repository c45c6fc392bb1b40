package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// ConfirmRequest carries what the reviewer adds on confirmation.
type ConfirmRequest struct {
	MeasuredAt time.Time
	Notes      *string
}

// Gate turns pipeline results into drafts and drafts into persisted readings.
// Operations on one draft are serialized within the process.
type Gate struct {
	logger   *slog.Logger
	drafts   DraftStore
	readings repository.ReadingRepository
	locks    [64]sync.Mutex
}

func NewGate(logger *slog.Logger, drafts DraftStore, readings repository.ReadingRepository) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger, drafts: drafts, readings: readings}
}

func (g *Gate) lock(id uuid.UUID) func() {
	m := &g.locks[int(id[0])%len(g.locks)]
	m.Lock()
	return m.Unlock
}

// Open stores a draft for a successful extraction.
func (g *Gate) Open(ctx context.Context, res *pipeline.Result) (*Draft, error) {
	if res == nil || res.JobID == uuid.Nil || len(res.SourceImages) == 0 {
		return nil, common.NewAppError("INVALID_ARGUMENT", "extraction result has no job or source images", common.ErrInvalidInput)
	}
	ids := make([]uuid.UUID, len(res.SourceImages))
	for i, img := range res.SourceImages {
		ids[i] = img.ID
	}
	d := NewDraft(res.ProfileID, res.JobID, res.Reading, ids)
	if err := g.drafts.Save(ctx, d); err != nil {
		g.logger.Error("review.open.failed", "job_id", res.JobID, "err", err)
		return nil, err
	}
	g.logger.Info("review.open", "draft_id", d.ID, "job_id", d.JobID, "profile_id", d.ProfileID, "state", d.State())
	return d, nil
}

// load returns the caller's open draft. Drafts of other profiles look missing.
func (g *Gate) load(ctx context.Context, profileID, draftID uuid.UUID) (*Draft, error) {
	d, err := g.drafts.Load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.ProfileID != profileID {
		return nil, fmt.Errorf("draft %s: %w", draftID, common.ErrNotFound)
	}
	if d.Confirmed() {
		return nil, fmt.Errorf("draft %s: %w", draftID, common.ErrDraftClosed)
	}
	return d, nil
}

func (g *Gate) Get(ctx context.Context, profileID, draftID uuid.UUID) (*Draft, error) {
	return g.load(ctx, profileID, draftID)
}

// Edit applies edits and saves the draft. Nothing is range checked until
// Confirm, so a reviewer can fix values step by step.
func (g *Gate) Edit(ctx context.Context, profileID, draftID uuid.UUID, edits ...Edit) (*Draft, error) {
	defer g.lock(draftID)()
	d, err := g.load(ctx, profileID, draftID)
	if err != nil {
		return nil, err
	}
	if err := d.Apply(edits...); err != nil {
		return nil, err
	}
	if err := g.drafts.Save(ctx, d); err != nil {
		g.logger.Error("review.edit.failed", "draft_id", draftID, "err", err)
		return nil, err
	}
	g.logger.Info("review.edit", "draft_id", draftID, "edits", len(edits), "state", d.State())
	return d, nil
}

func validateConfirm(req ConfirmRequest) error {
	return common.NewValidator().
		Field("measured_at", req.MeasuredAt, common.Required, common.NotAfter(time.Now().Add(5*time.Minute))).
		Field("notes", req.Notes, common.MaxLength(2000)).
		Err()
}

// Confirm re-validates the draft and persists it as a reading linked to its
// source images. The draft survives any failure so it can be fixed and
// confirmed again.
func (g *Gate) Confirm(ctx context.Context, profileID, draftID uuid.UUID, req ConfirmRequest) (*entity.Reading, error) {
	if err := validateConfirm(req); err != nil {
		return nil, err
	}
	defer g.lock(draftID)()
	d, err := g.load(ctx, profileID, draftID)
	if err != nil {
		return nil, err
	}

	validated, err := vitals.Validate(d.Extracted())
	if err != nil {
		g.logger.Warn("review.confirm.invalid", "draft_id", draftID, "err", err)
		return nil, err
	}

	reading := &entity.Reading{
		ProfileID:       profileID,
		MeasuredAt:      req.MeasuredAt,
		Measurements:    validated.Measurements(),
		MachineNotes:    validated.MachineNotes(),
		Notes:           trimNotes(req.Notes),
		ExtractionJobID: &d.JobID,
	}
	saved, err := g.readings.Create(ctx, reading, d.SourceImageIDs)
	if err != nil {
		g.logger.Error("review.confirm.failed", "draft_id", draftID, "err", err)
		return nil, fmt.Errorf("persist reading: %w", err)
	}

	// keep a tombstone so a retried confirm reports the draft as closed; if
	// that fails the draft must at least stop being confirmable
	d.ReadingID = &saved.ID
	d.m = vitals.Measurements{}
	if err := g.drafts.Save(ctx, d); err != nil {
		g.logger.Warn("review.confirm.tombstone_failed", "draft_id", draftID, "reading_id", saved.ID, "err", err)
		if err := g.drafts.Delete(ctx, draftID); err != nil {
			g.logger.Error("review.confirm.close_failed", "draft_id", draftID, "reading_id", saved.ID, "err", err)
		}
	}
	g.logger.Info("review.confirm.ok", "draft_id", draftID, "reading_id", saved.ID, "images", len(saved.SourceImages))
	return saved, nil
}

// Discard drops the draft. Its archived images stay stored, unreferenced.
func (g *Gate) Discard(ctx context.Context, profileID, draftID uuid.UUID) error {
	defer g.lock(draftID)()
	if _, err := g.load(ctx, profileID, draftID); err != nil {
		return err
	}
	if err := g.drafts.Delete(ctx, draftID); err != nil {
		g.logger.Error("review.discard.failed", "draft_id", draftID, "err", err)
		return err
	}
	g.logger.Info("review.discard", "draft_id", draftID)
	return nil
}

func trimNotes(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

package readings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
	"github.com/joseph-ayodele/vitals-tracker/internal/storage"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// MaxListLimit caps a single List call.
const MaxListLimit = 500

// Service handles reading business logic outside the extraction path.
type Service struct {
	readingRepo repository.ReadingRepository
	imageRepo   repository.SourceImageRepository
	store       storage.Store
	logger      *slog.Logger
}

// NewService creates a new reading service.
func NewService(readingRepo repository.ReadingRepository, imageRepo repository.SourceImageRepository, store storage.Store, logger *slog.Logger) *Service {
	return &Service{
		readingRepo: readingRepo,
		imageRepo:   imageRepo,
		store:       store,
		logger:      logger,
	}
}

// CreateRequest is a manually entered reading.
type CreateRequest struct {
	ProfileID  uuid.UUID
	MeasuredAt time.Time
	Values     vitals.Measurements
	Notes      *string
}

// Create stores a reading typed in without photos. Rounding, bmi derivation
// and range checks are the same as for extracted readings.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*entity.Reading, error) {
	v := common.NewValidator().
		Field("profile_id", req.ProfileID, common.Required).
		Field("measured_at", req.MeasuredAt, common.Required, common.NotAfter(time.Now().Add(5*time.Minute))).
		Field("notes", req.Notes, common.MaxLength(2000))
	if len(req.Values.Present()) == 0 {
		v.Field("values", nil, common.Required)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	validated, err := vitals.Validate(vitals.ExtractedReading{Measurements: req.Values})
	if err != nil {
		s.logger.Warn("readings.create.invalid", "profile_id", req.ProfileID, "err", err)
		return nil, err
	}

	reading, err := s.readingRepo.Create(ctx, &entity.Reading{
		ProfileID:    req.ProfileID,
		MeasuredAt:   req.MeasuredAt,
		Measurements: validated.Measurements(),
		MachineNotes: []string{},
		Notes:        trimmed(req.Notes),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create reading: %w", err)
	}
	s.logger.Info("readings.create.ok", "reading_id", reading.ID, "profile_id", reading.ProfileID, "bmi_derived", validated.BMIDerived())
	return reading, nil
}

// ListFilter bounds List by measurement time and, optionally, blood
// pressure class.
type ListFilter struct {
	Start      *time.Time
	End        *time.Time
	Limit      int
	BPCategory constants.BPCategory
}

// List returns readings newest first.
func (s *Service) List(ctx context.Context, profileID uuid.UUID, f ListFilter) ([]*entity.Reading, error) {
	if profileID == uuid.Nil {
		return nil, common.NewAppError("INVALID_ARGUMENT", "profile_id is required", common.ErrInvalidInput)
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return nil, common.NewAppError("INVALID_ARGUMENT", "end must not be before start", common.ErrInvalidInput)
	}
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}

	rf := repository.ReadingFilter{Start: f.Start, End: f.End, Limit: f.Limit}
	if f.BPCategory != "" {
		rf.Limit = 0
	}
	list, err := s.readingRepo.List(ctx, profileID, rf)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	if f.BPCategory != "" {
		kept := list[:0]
		for _, r := range list {
			if vitals.BPCategory(r.Systolic, r.Diastolic) == f.BPCategory && len(kept) < f.Limit {
				kept = append(kept, r)
			}
		}
		list = kept
	}
	s.logger.Info("readings listed successfully", "profile_id", profileID, "count", len(list))
	return list, nil
}

// Get returns one reading owned by profileID.
func (s *Service) Get(ctx context.Context, profileID, id uuid.UUID) (*entity.Reading, error) {
	return s.readingRepo.GetByID(ctx, profileID, id)
}

// Delete removes one reading owned by profileID. Archived photos are kept.
func (s *Service) Delete(ctx context.Context, profileID, id uuid.UUID) error {
	return s.readingRepo.Delete(ctx, profileID, id)
}

// SourceImage returns an archived photo and its bytes.
func (s *Service) SourceImage(ctx context.Context, profileID, imageID uuid.UUID) (*entity.SourceImage, []byte, error) {
	img, err := s.imageRepo.GetByID(ctx, profileID, imageID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.store.Get(ctx, img.StorageRef)
	if err != nil {
		s.logger.Error("readings.source_image.read_failed", "image_id", imageID, "ref", img.StorageRef, "err", err)
		return nil, nil, fmt.Errorf("read archived image: %w", err)
	}
	return img, data, nil
}

// Summary is the latest reading with changes since the one before it.
type Summary struct {
	Latest      *entity.Reading
	Previous    *entity.Reading
	Deltas      map[vitals.Field]*float64
	BMICategory constants.BMICategory
	BPCategory  constants.BPCategory
}

// Summary returns nil Latest when the profile has no readings.
func (s *Service) Summary(ctx context.Context, profileID uuid.UUID) (*Summary, error) {
	list, err := s.List(ctx, profileID, ListFilter{Limit: 2})
	if err != nil {
		return nil, err
	}
	out := &Summary{
		Deltas:      map[vitals.Field]*float64{},
		BMICategory: constants.BMIUnknown,
		BPCategory:  constants.BPUnknown,
	}
	if len(list) == 0 {
		return out, nil
	}
	out.Latest = list[0]
	out.BMICategory = vitals.BMICategory(out.Latest.BMI)
	out.BPCategory = vitals.BPCategory(out.Latest.Systolic, out.Latest.Diastolic)
	if len(list) > 1 {
		out.Previous = list[1]
		for _, f := range vitals.Fields {
			if d := vitals.Delta(out.Latest.Get(f), out.Previous.Get(f)); d != nil {
				out.Deltas[f] = d
			}
		}
	}
	return out, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

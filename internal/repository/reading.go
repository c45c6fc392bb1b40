package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

// ErrImagesUnavailable is returned when provenance images are missing, owned
// by another profile or already attached to a reading.
var ErrImagesUnavailable = errors.New("source images unavailable for linking")

// ReadingFilter narrows List. Zero values mean unbounded; Limit <= 0 means all.
type ReadingFilter struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

type ReadingRepository interface {
	Create(ctx context.Context, reading *entity.Reading, imageIDs []uuid.UUID) (*entity.Reading, error)
	GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.Reading, error)
	List(ctx context.Context, profileID uuid.UUID, filter ReadingFilter) ([]*entity.Reading, error)
	Delete(ctx context.Context, profileID, id uuid.UUID) error
}

type readingRepository struct {
	store
	logger *slog.Logger
}

func NewReadingRepository(drv *entsql.Driver, logger *slog.Logger) ReadingRepository {
	return &readingRepository{store: store{drv: drv}, logger: logger}
}

// measurementColumns follows vitals.Fields order.
var measurementColumns = map[vitals.Field]string{
	vitals.HeightCm:         "height_cm",
	vitals.WeightKg:         "weight_kg",
	vitals.BMI:              "bmi",
	vitals.StandardWeightKg: "standard_weight_kg",
	vitals.Systolic:         "systolic",
	vitals.Diastolic:        "diastolic",
	vitals.Pulse:            "pulse",
}

var readingColumns = func() []string {
	cols := []string{"id", "profile_id", "measured_at"}
	for _, f := range vitals.Fields {
		cols = append(cols, measurementColumns[f])
	}
	return append(cols, "machine_notes", "notes", "extraction_job_id", "created_at")
}()

// Create stores the reading and attaches imageIDs to it in one transaction.
// Every image must belong to the same profile and be unattached.
func (r *readingRepository) Create(ctx context.Context, reading *entity.Reading, imageIDs []uuid.UUID) (*entity.Reading, error) {
	if reading.ID == uuid.Nil {
		reading.ID = uuid.New()
	}
	reading.CreatedAt = time.Now().UTC()
	reading.MeasuredAt = reading.MeasuredAt.UTC()

	notes, err := encodeNotes(reading.MachineNotes)
	if err != nil {
		return nil, err
	}
	values := []any{reading.ID, reading.ProfileID, reading.MeasuredAt}
	for _, f := range vitals.Fields {
		values = append(values, nullFloat(reading.Get(f)))
	}
	values = append(values, notes, nullString(reading.Notes), nullUUID(reading.ExtractionJobID), reading.CreatedAt)

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		query, args := r.builder().Insert(ReadingsTable.Name).
			Columns(readingColumns...).
			Values(values...).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}
		if len(imageIDs) == 0 {
			return nil
		}

		ids := make([]any, len(imageIDs))
		for i, id := range imageIDs {
			ids[i] = id
		}
		query, args = r.builder().Update(SourceImagesTable.Name).
			Set("reading_id", reading.ID).
			Where(entsql.And(
				entsql.In("id", ids...),
				entsql.EQ("profile_id", reading.ProfileID),
				entsql.IsNull("reading_id"),
			)).
			Query()
		n, err := exec(ctx, tx, query, args)
		if err != nil {
			return fmt.Errorf("link source images: %w", err)
		}
		if n != int64(len(imageIDs)) {
			return fmt.Errorf("linked %d of %d images: %w", n, len(imageIDs), ErrImagesUnavailable)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to create reading", "profile_id", reading.ProfileID, "images", len(imageIDs), "error", err)
		return nil, err
	}

	r.logger.Info("reading created", "reading_id", reading.ID, "profile_id", reading.ProfileID, "images", len(imageIDs))
	return r.GetByID(ctx, reading.ProfileID, reading.ID)
}

func (r *readingRepository) GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.Reading, error) {
	query, args := r.builder().Select(readingColumns...).
		From(entsql.Table(ReadingsTable.Name)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("profile_id", profileID))).
		Query()
	reading, err := scanReading(r.db().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "reading "+id.String())
	}
	imgs, err := listSourceImages(ctx, r.db(), r.builder(), entsql.EQ("reading_id", id))
	if err != nil {
		r.logger.Error("failed to load source images", "reading_id", id, "error", err)
		return nil, err
	}
	reading.SourceImages = imgs
	return reading, nil
}

// List returns the profile's readings, most recent measurement first.
func (r *readingRepository) List(ctx context.Context, profileID uuid.UUID, filter ReadingFilter) ([]*entity.Reading, error) {
	preds := []*entsql.Predicate{entsql.EQ("profile_id", profileID)}
	if filter.Start != nil {
		preds = append(preds, entsql.GTE("measured_at", filter.Start.UTC()))
	}
	if filter.End != nil {
		preds = append(preds, entsql.LTE("measured_at", filter.End.UTC()))
	}
	sel := r.builder().Select(readingColumns...).
		From(entsql.Table(ReadingsTable.Name)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("measured_at"), entsql.Desc("created_at"))
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}
	query, args := sel.Query()

	readings, err := r.queryReadings(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to list readings", "profile_id", profileID, "error", err)
		return nil, err
	}
	if err := r.attachImages(ctx, readings); err != nil {
		r.logger.Error("failed to load source images", "profile_id", profileID, "error", err)
		return nil, err
	}
	return readings, nil
}

func (r *readingRepository) queryReadings(ctx context.Context, query string, args []any) ([]*entity.Reading, error) {
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*entity.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reading)
	}
	return out, rows.Err()
}

// attachImages loads provenance for all readings with a single query.
func (r *readingRepository) attachImages(ctx context.Context, readings []*entity.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	ids := make([]any, len(readings))
	byID := make(map[uuid.UUID]*entity.Reading, len(readings))
	for i, reading := range readings {
		ids[i] = reading.ID
		byID[reading.ID] = reading
		reading.SourceImages = []entity.SourceImage{}
	}
	imgs, err := listSourceImages(ctx, r.db(), r.builder(), entsql.In("reading_id", ids...))
	if err != nil {
		return err
	}
	for _, img := range imgs {
		if img.ReadingID == nil {
			continue
		}
		if reading, ok := byID[*img.ReadingID]; ok {
			reading.SourceImages = append(reading.SourceImages, img)
		}
	}
	return nil
}

// Delete removes the reading. Its archived images stay, detached.
func (r *readingRepository) Delete(ctx context.Context, profileID, id uuid.UUID) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		query, args := r.builder().Update(SourceImagesTable.Name).
			SetNull("reading_id").
			Where(entsql.And(entsql.EQ("reading_id", id), entsql.EQ("profile_id", profileID))).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("detach source images: %w", err)
		}

		query, args = r.builder().Delete(ReadingsTable.Name).
			Where(entsql.And(entsql.EQ("id", id), entsql.EQ("profile_id", profileID))).
			Query()
		n, err := exec(ctx, tx, query, args)
		if err != nil {
			return fmt.Errorf("delete reading: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("reading %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to delete reading", "reading_id", id, "profile_id", profileID, "error", err)
		}
		return err
	}
	r.logger.Info("reading deleted", "reading_id", id, "profile_id", profileID)
	return nil
}

func scanReading(row interface{ Scan(...any) error }) (*entity.Reading, error) {
	var (
		reading entity.Reading
		values  = make([]sql.NullFloat64, len(vitals.Fields))
		machine sql.NullString
		notes   sql.NullString
		jobID   uuid.NullUUID
	)
	dest := []any{&reading.ID, &reading.ProfileID, &reading.MeasuredAt}
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &machine, &notes, &jobID, &reading.CreatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, f := range vitals.Fields {
		reading.Set(f, floatPtr(values[i]))
	}
	reading.MachineNotes = decodeNotes(machine)
	reading.Notes = stringPtr(notes)
	reading.ExtractionJobID = uuidPtr(jobID)
	reading.MeasuredAt = reading.MeasuredAt.UTC()
	reading.CreatedAt = reading.CreatedAt.UTC()
	reading.SourceImages = []entity.SourceImage{}
	return &reading, nil
}

package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
)

type SourceImageRepository interface {
	Create(ctx context.Context, img *entity.SourceImage) error
	GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.SourceImage, error)
	ListByReading(ctx context.Context, readingID uuid.UUID) ([]entity.SourceImage, error)
	ListByJob(ctx context.Context, profileID, jobID uuid.UUID) ([]entity.SourceImage, error)
}

type sourceImageRepository struct {
	store
	logger *slog.Logger
}

func NewSourceImageRepository(drv *entsql.Driver, logger *slog.Logger) SourceImageRepository {
	return &sourceImageRepository{store: store{drv: drv}, logger: logger}
}

var sourceImageColumns = []string{
	"id", "profile_id", "reading_id", "job_id", "storage_ref", "original_name",
	"media_type", "size_bytes", "position", "content_hash", "created_at",
}

// Create inserts the row, assigning ID and CreatedAt when unset.
func (r *sourceImageRepository) Create(ctx context.Context, img *entity.SourceImage) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	var hash *string
	if img.ContentHash != "" {
		hash = &img.ContentHash
	}
	query, args := r.builder().Insert(SourceImagesTable.Name).
		Columns(sourceImageColumns...).
		Values(
			img.ID, img.ProfileID, nullUUID(img.ReadingID), nullUUID(img.JobID), img.StorageRef,
			img.OriginalName, img.MediaType, img.SizeBytes, img.Position, nullString(hash), img.CreatedAt,
		).
		Query()
	if _, err := r.db().ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create source image", "profile_id", img.ProfileID, "ref", img.StorageRef, "error", err)
		return err
	}
	return nil
}

func (r *sourceImageRepository) GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.SourceImage, error) {
	query, args := r.builder().Select(sourceImageColumns...).
		From(entsql.Table(SourceImagesTable.Name)).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("profile_id", profileID))).
		Query()
	img, err := scanSourceImage(r.db().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "source image "+id.String())
	}
	return img, nil
}

func (r *sourceImageRepository) ListByReading(ctx context.Context, readingID uuid.UUID) ([]entity.SourceImage, error) {
	return listSourceImages(ctx, r.db(), r.builder(), entsql.EQ("reading_id", readingID))
}

func (r *sourceImageRepository) ListByJob(ctx context.Context, profileID, jobID uuid.UUID) ([]entity.SourceImage, error) {
	return listSourceImages(ctx, r.db(), r.builder(), entsql.And(entsql.EQ("job_id", jobID), entsql.EQ("profile_id", profileID)))
}

func listSourceImages(ctx context.Context, q querier, b *entsql.DialectBuilder, pred *entsql.Predicate) ([]entity.SourceImage, error) {
	query, args := b.Select(sourceImageColumns...).
		From(entsql.Table(SourceImagesTable.Name)).
		Where(pred).
		OrderBy("position").
		Query()
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entity.SourceImage{}
	for rows.Next() {
		img, err := scanSourceImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *img)
	}
	return out, rows.Err()
}

func scanSourceImage(row interface{ Scan(...any) error }) (*entity.SourceImage, error) {
	var (
		img              entity.SourceImage
		readingID, jobID uuid.NullUUID
		hash             sql.NullString
	)
	err := row.Scan(
		&img.ID, &img.ProfileID, &readingID, &jobID, &img.StorageRef, &img.OriginalName,
		&img.MediaType, &img.SizeBytes, &img.Position, &hash, &img.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	img.ReadingID = uuidPtr(readingID)
	img.JobID = uuidPtr(jobID)
	img.ContentHash = hash.String
	img.CreatedAt = img.CreatedAt.UTC()
	return &img, nil
}

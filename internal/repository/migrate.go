package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// ProfilesColumns holds the columns for the "profiles" table.
	ProfilesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Unique: true, Size: 100},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// ProfilesTable holds the schema information for the "profiles" table.
	ProfilesTable = &schema.Table{
		Name:       "profiles",
		Columns:    ProfilesColumns,
		PrimaryKey: []*schema.Column{ProfilesColumns[0]},
	}

	// ExtractionJobsColumns holds the columns for the "extraction_jobs" table.
	ExtractionJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "profile_id", Type: field.TypeUUID},
		{Name: "status", Type: field.TypeString},
		{Name: "provider", Type: field.TypeString},
		{Name: "model_name", Type: field.TypeString, Nullable: true},
		{Name: "image_count", Type: field.TypeInt},
		{Name: "raw_response", Type: field.TypeString, Nullable: true, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "error_code", Type: field.TypeString, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: map[string]string{dialect.Postgres: "text"}},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
	}
	// ExtractionJobsTable holds the schema information for the "extraction_jobs" table.
	ExtractionJobsTable = &schema.Table{
		Name:       "extraction_jobs",
		Columns:    ExtractionJobsColumns,
		PrimaryKey: []*schema.Column{ExtractionJobsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "extraction_jobs_profiles_jobs",
				Columns:    []*schema.Column{ExtractionJobsColumns[1]},
				RefColumns: []*schema.Column{ProfilesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "extractionjob_profile_id_status_started_at",
				Unique:  false,
				Columns: []*schema.Column{ExtractionJobsColumns[1], ExtractionJobsColumns[2], ExtractionJobsColumns[9]},
			},
		},
	}

	// ReadingsColumns holds the columns for the "readings" table.
	ReadingsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "profile_id", Type: field.TypeUUID},
		{Name: "measured_at", Type: field.TypeTime},
		{Name: "height_cm", Type: field.TypeFloat64, Nullable: true},
		{Name: "weight_kg", Type: field.TypeFloat64, Nullable: true},
		{Name: "bmi", Type: field.TypeFloat64, Nullable: true},
		{Name: "standard_weight_kg", Type: field.TypeFloat64, Nullable: true},
		{Name: "systolic", Type: field.TypeFloat64, Nullable: true},
		{Name: "diastolic", Type: field.TypeFloat64, Nullable: true},
		{Name: "pulse", Type: field.TypeFloat64, Nullable: true},
		{Name: "machine_notes", Type: field.TypeJSON, Nullable: true},
		{Name: "notes", Type: field.TypeString, Nullable: true, Size: 2000},
		{Name: "extraction_job_id", Type: field.TypeUUID, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ReadingsTable holds the schema information for the "readings" table.
	ReadingsTable = &schema.Table{
		Name:       "readings",
		Columns:    ReadingsColumns,
		PrimaryKey: []*schema.Column{ReadingsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "readings_profiles_readings",
				Columns:    []*schema.Column{ReadingsColumns[1]},
				RefColumns: []*schema.Column{ProfilesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "readings_extraction_jobs_readings",
				Columns:    []*schema.Column{ReadingsColumns[12]},
				RefColumns: []*schema.Column{ExtractionJobsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "reading_profile_id_measured_at",
				Unique:  false,
				Columns: []*schema.Column{ReadingsColumns[1], ReadingsColumns[2]},
			},
		},
	}

	// SourceImagesColumns holds the columns for the "source_images" table.
	SourceImagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "profile_id", Type: field.TypeUUID},
		{Name: "reading_id", Type: field.TypeUUID, Nullable: true},
		{Name: "job_id", Type: field.TypeUUID, Nullable: true},
		{Name: "storage_ref", Type: field.TypeString, Unique: true},
		{Name: "original_name", Type: field.TypeString},
		{Name: "media_type", Type: field.TypeString},
		{Name: "size_bytes", Type: field.TypeInt64},
		{Name: "position", Type: field.TypeInt},
		{Name: "content_hash", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// SourceImagesTable holds the schema information for the "source_images" table.
	SourceImagesTable = &schema.Table{
		Name:       "source_images",
		Columns:    SourceImagesColumns,
		PrimaryKey: []*schema.Column{SourceImagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "source_images_profiles_images",
				Columns:    []*schema.Column{SourceImagesColumns[1]},
				RefColumns: []*schema.Column{ProfilesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "source_images_readings_images",
				Columns:    []*schema.Column{SourceImagesColumns[2]},
				RefColumns: []*schema.Column{ReadingsColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "source_images_extraction_jobs_images",
				Columns:    []*schema.Column{SourceImagesColumns[3]},
				RefColumns: []*schema.Column{ExtractionJobsColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "sourceimage_reading_id_position",
				Unique:  false,
				Columns: []*schema.Column{SourceImagesColumns[2], SourceImagesColumns[8]},
			},
			{
				Name:    "sourceimage_job_id",
				Unique:  false,
				Columns: []*schema.Column{SourceImagesColumns[3]},
			},
		},
	}

	// Tables holds all the tables in the schema, in dependency order.
	Tables = []*schema.Table{
		ProfilesTable,
		ExtractionJobsTable,
		ReadingsTable,
		SourceImagesTable,
	}
)

func init() {
	ExtractionJobsTable.ForeignKeys[0].RefTable = ProfilesTable
	ReadingsTable.ForeignKeys[0].RefTable = ProfilesTable
	ReadingsTable.ForeignKeys[1].RefTable = ExtractionJobsTable
	SourceImagesTable.ForeignKeys[0].RefTable = ProfilesTable
	SourceImagesTable.ForeignKeys[1].RefTable = ReadingsTable
	SourceImagesTable.ForeignKeys[2].RefTable = ExtractionJobsTable
}

// Migrate creates or updates every table.
func Migrate(ctx context.Context, drv *entsql.Driver, logger *slog.Logger) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema migration complete", "tables", len(Tables))
	return nil
}

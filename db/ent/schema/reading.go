package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/db/ent/schema/utils"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

type Reading struct{ ent.Schema }

func (Reading) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "readings"},
	}
}

func measurement(name string, f vitals.Field) ent.Field {
	r := vitals.Ranges[f]
	return field.Float(name).Optional().Nillable().Validate(utils.RangeValidator(r.Min, r.Max))
}

func (Reading) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("profile_id", uuid.UUID{}),
		field.Time("measured_at"),
		measurement("height_cm", vitals.HeightCm),
		measurement("weight_kg", vitals.WeightKg),
		measurement("bmi", vitals.BMI),
		measurement("standard_weight_kg", vitals.StandardWeightKg),
		measurement("systolic", vitals.Systolic),
		measurement("diastolic", vitals.Diastolic),
		measurement("pulse", vitals.Pulse),
		field.JSON("machine_notes", []string{}).Optional(),
		field.String("notes").Optional().Nillable().MaxLen(2000),
		field.UUID("extraction_job_id", uuid.UUID{}).Optional().Nillable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Reading) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", Profile.Type).
			Ref("readings").
			Field("profile_id").
			Unique().
			Required(),
		edge.From("job", ExtractionJob.Type).
			Ref("readings").
			Field("extraction_job_id").
			Unique(),
		edge.To("images", SourceImage.Type),
	}
}

func (Reading) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("profile_id", "measured_at"),
	}
}

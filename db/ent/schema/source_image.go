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
)

// SourceImage is an archived kiosk photo. Rows outlive discarded drafts and
// deleted readings; only the link is cleared.
type SourceImage struct{ ent.Schema }

func (SourceImage) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "source_images"},
	}
}

func (SourceImage) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("profile_id", uuid.UUID{}),
		field.UUID("reading_id", uuid.UUID{}).Optional().Nillable(),
		field.UUID("job_id", uuid.UUID{}).Optional().Nillable(),
		field.String("storage_ref").NotEmpty().Unique().Immutable(),
		field.String("original_name"),
		field.String("media_type").NotEmpty(),
		field.Int64("size_bytes").NonNegative(),
		field.Int("position").NonNegative(),
		field.String("content_hash").Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (SourceImage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", Profile.Type).
			Ref("images").
			Field("profile_id").
			Unique().
			Required(),
		edge.From("reading", Reading.Type).
			Ref("images").
			Field("reading_id").
			Unique(),
		edge.From("job", ExtractionJob.Type).
			Ref("images").
			Field("job_id").
			Unique(),
	}
}

func (SourceImage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("reading_id", "position"),
		index.Fields("job_id"),
	}
}

package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// UploadedScript holds the schema definition for the UploadedScript entity.
// This is the ingest record: one row per submitted scan, tracking the
// UPLOADED -> ... -> FLAGGED state machine through OCR and segmentation.
type UploadedScript struct {
	ent.Schema
}

// Fields of the UploadedScript.
func (UploadedScript) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("upload_id").
			Unique().
			Immutable(),
		field.String("exam_id").
			Immutable(),
		field.String("student_ref").
			Comment("Opaque student identifier supplied by the caller; not validated"),
		field.String("object_key").
			Comment("Location in the external object store of the raw scan"),
		field.Enum("status").
			Values("uploaded", "ocr_in_progress", "ocr_complete", "segmenting",
				"segmented", "evaluating", "evaluated", "flagged").
			Default("uploaded"),
		field.Int("page_count").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("last_interaction_at").
			Optional().
			Nillable().
			Comment("Updated by the owning worker's heartbeat; drives orphan detection"),
	}
}

// Edges of the UploadedScript.
func (UploadedScript) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("exam", Exam.Type).
			Ref("uploads").
			Unique().
			Required().
			Field("exam_id"),
		edge.To("pages", OCRPageResult.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("script", Script.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the UploadedScript.
func (UploadedScript) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("exam_id"),
		index.Fields("status", "last_interaction_at"),
	}
}

func (UploadedScript) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

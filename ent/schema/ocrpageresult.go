package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OCRPageResult holds the schema definition for the OCRPageResult entity.
// One row per rasterized page of an UploadedScript.
type OCRPageResult struct {
	ent.Schema
}

// Fields of the OCRPageResult.
func (OCRPageResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("ocr_page_id").
			Unique().
			Immutable(),
		field.String("upload_id").
			Immutable(),
		field.Int("page_number").
			Immutable(),
		field.Text("extracted_text").
			Optional(),
		field.Enum("quality_flag").
			Values("clean", "partial", "unreadable").
			Comment("Closed vocabulary produced by the OCR provider's vision-complete call"),
	}
}

// Edges of the OCRPageResult.
func (OCRPageResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("upload", UploadedScript.Type).
			Ref("pages").
			Unique().
			Required().
			Field("upload_id"),
	}
}

// Indexes of the OCRPageResult.
func (OCRPageResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("upload_id", "page_number").
			Unique(),
	}
}

func (OCRPageResult) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

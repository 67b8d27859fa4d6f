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

// Script holds the schema definition for the Script entity.
// A Script is the post-segmentation header of an UploadedScript: the
// ordered set of ScriptAnswer rows it owns is the Segmenter's output.
type Script struct {
	ent.Schema
}

// Fields of the Script.
func (Script) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("script_id").
			Unique().
			Immutable(),
		field.String("upload_id").
			Unique().
			Immutable(),
		field.Int("segmentation_attempts").
			Default(0).
			Comment("1 on first pass, 2 if the one-shot repair ran"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Script.
func (Script) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("upload", UploadedScript.Type).
			Ref("script").
			Unique().
			Required().
			Field("upload_id"),
		edge.To("answers", ScriptAnswer.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Script.
func (Script) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("upload_id"),
	}
}

func (Script) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ScriptAnswer holds the schema definition for the ScriptAnswer entity.
// One per question, produced by the Segmenter from the concatenated OCR text.
type ScriptAnswer struct {
	ent.Schema
}

// Fields of the ScriptAnswer.
func (ScriptAnswer) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("script_answer_id").
			Unique().
			Immutable(),
		field.String("script_id").
			Immutable(),
		field.String("question_id").
			Immutable(),
		field.Text("answer_text").
			Comment("Verbatim excerpt from OCR text; may be empty"),
	}
}

// Edges of the ScriptAnswer.
func (ScriptAnswer) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("script", Script.Type).
			Ref("answers").
			Unique().
			Required().
			Field("script_id"),
		edge.To("evaluation_results", EvaluationResult.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ScriptAnswer.
func (ScriptAnswer) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("script_id", "question_id").
			Unique(),
	}
}

func (ScriptAnswer) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

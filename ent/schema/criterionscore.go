package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CriterionScore holds the schema definition for the CriterionScore entity.
// One row per criterion, written by a single Scoring agent fan-out call.
type CriterionScore struct {
	ent.Schema
}

// Fields of the CriterionScore.
func (CriterionScore) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("criterion_score_id").
			Unique().
			Immutable(),
		field.String("evaluation_result_id").
			Immutable(),
		field.String("criterion_id").
			Immutable(),
		field.Float("marks_awarded"),
		field.Text("justification"),
		field.JSON("quotes", []string{}).
			Comment("Verbatim substrings of the answer text cited as evidence"),
	}
}

// Edges of the CriterionScore.
func (CriterionScore) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("evaluation_result", EvaluationResult.Type).
			Ref("criterion_scores").
			Unique().
			Required().
			Field("evaluation_result_id"),
	}
}

// Indexes of the CriterionScore.
func (CriterionScore) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("evaluation_result_id", "criterion_id").
			Unique(),
	}
}

func (CriterionScore) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

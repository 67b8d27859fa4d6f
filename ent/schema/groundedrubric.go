package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// GroundedRubric holds the schema definition for the GroundedRubric entity.
// Output of the RubricGrounding agent: the rubric text rewritten with
// quotes anchored to the actual answer text, consumed by the Scoring agents.
type GroundedRubric struct {
	ent.Schema
}

// Fields of the GroundedRubric.
func (GroundedRubric) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("grounded_rubric_id").
			Unique().
			Immutable(),
		field.String("evaluation_result_id").
			Immutable(),
		field.JSON("grounded_criteria", []GroundedCriterionDTO{}).
			Comment("Per-criterion grounding notes plus the verbatim quotes they cite"),
	}
}

// GroundedCriterionDTO is a single grounded-criterion entry stored as JSON.
type GroundedCriterionDTO struct {
	CriterionID string   `json:"criterion_id"`
	Notes       string   `json:"notes"`
	Quotes      []string `json:"quotes"`
}

// Edges of the GroundedRubric.
func (GroundedRubric) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("evaluation_result", EvaluationResult.Type).
			Ref("grounded_rubric").
			Unique().
			Required().
			Field("evaluation_result_id"),
	}
}

// Indexes of the GroundedRubric.
func (GroundedRubric) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("evaluation_result_id").
			Unique(),
	}
}

func (GroundedRubric) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

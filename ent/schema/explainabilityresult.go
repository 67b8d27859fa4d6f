package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ExplainabilityResult holds the schema definition for the ExplainabilityResult entity.
// Output of the Explainability agent: the decision-table verdict on whether
// a human reviewer should look at this evaluation before it is released.
type ExplainabilityResult struct {
	ent.Schema
}

// Fields of the ExplainabilityResult.
func (ExplainabilityResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("explainability_result_id").
			Unique().
			Immutable(),
		field.String("evaluation_result_id").
			Immutable(),
		field.Enum("review_recommendation").
			Values("auto_approved", "needs_review", "must_review"),
		field.JSON("triggered_rules", []string{}).
			Comment("Names of the decision-table rules that fired, for auditability"),
		field.Float("agent_agreement_score").
			Comment("1 minus mean absolute relative deviation between initial and audited scores, clamped to [0,1]"),
		field.JSON("uncertainty_areas", []string{}),
		field.Text("explanation"),
	}
}

// Edges of the ExplainabilityResult.
func (ExplainabilityResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("evaluation_result", EvaluationResult.Type).
			Ref("explainability_result").
			Unique().
			Required().
			Field("evaluation_result_id"),
	}
}

// Indexes of the ExplainabilityResult.
func (ExplainabilityResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("evaluation_result_id").
			Unique(),
		index.Fields("review_recommendation"),
	}
}

func (ExplainabilityResult) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

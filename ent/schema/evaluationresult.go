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

// EvaluationResult holds the schema definition for the EvaluationResult entity.
// One row per (script_answer, run_id); the parent of all five evaluation
// agents' sub-results. The (run_id, question_id) unique index is the
// idempotency key the orchestrator's evaluation task handlers key off of.
type EvaluationResult struct {
	ent.Schema
}

// Fields of the EvaluationResult.
func (EvaluationResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("evaluation_result_id").
			Unique().
			Immutable(),
		field.String("script_answer_id").
			Immutable(),
		field.String("question_id").
			Immutable(),
		field.String("run_id").
			Immutable().
			Comment("Identifies one evaluation attempt; re-evaluation mints a new run_id rather than mutating this row"),
		field.Enum("status").
			Values("pending", "in_progress", "complete", "failed", "overridden").
			Default("pending"),
		field.Float("total_score").
			Optional().
			Nillable(),
		field.Float("percentage").
			Optional().
			Nillable().
			Comment("round(100 * total_score / question.max_marks, 1); recomputed on override"),
		field.Float("prior_percentage").
			Optional().
			Nillable().
			Comment("Percentage as it stood immediately before a reviewer override"),
		field.Bool("reviewer_override").
			Default(false),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
	}
}

// Edges of the EvaluationResult.
func (EvaluationResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("script_answer", ScriptAnswer.Type).
			Ref("evaluation_results").
			Unique().
			Required().
			Field("script_answer_id"),
		edge.To("grounded_rubric", GroundedRubric.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("criterion_scores", CriterionScore.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("consistency_audit", ConsistencyAudit.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("student_feedback", StudentFeedback.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("explainability_result", ExplainabilityResult.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the EvaluationResult.
func (EvaluationResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("run_id", "question_id").
			Unique(),
		index.Fields("script_answer_id"),
		index.Fields("status"),
	}
}

func (EvaluationResult) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

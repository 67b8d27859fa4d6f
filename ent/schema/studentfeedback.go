package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// StudentFeedback holds the schema definition for the StudentFeedback entity.
// Output of the Feedback agent: student-facing prose, never consumed by scoring.
type StudentFeedback struct {
	ent.Schema
}

// Fields of the StudentFeedback.
func (StudentFeedback) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("student_feedback_id").
			Unique().
			Immutable(),
		field.String("evaluation_result_id").
			Immutable(),
		field.Text("summary"),
		field.JSON("strengths", []string{}),
		field.JSON("improvements", []string{}),
		field.String("tone_bucket").
			Comment("high, medium, or low, derived from the fraction of marks awarded"),
	}
}

// Edges of the StudentFeedback.
func (StudentFeedback) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("evaluation_result", EvaluationResult.Type).
			Ref("student_feedback").
			Unique().
			Required().
			Field("evaluation_result_id"),
	}
}

// Indexes of the StudentFeedback.
func (StudentFeedback) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("evaluation_result_id").
			Unique(),
	}
}

func (StudentFeedback) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

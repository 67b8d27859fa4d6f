package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Question holds the schema definition for the Question entity.
// Questions belong to an Exam and carry the rubric criteria they are scored against.
type Question struct {
	ent.Schema
}

// Fields of the Question.
func (Question) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("question_id").
			Unique().
			Immutable(),
		field.String("exam_id").
			Immutable(),
		field.Int("order_index").
			Comment("Position of the question on the paper, used to order script answers"),
		field.Text("prompt_text"),
		field.Float("max_marks").
			Comment("Upper bound every CriterionScore and the question total must respect"),
	}
}

// Edges of the Question.
func (Question) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("exam", Exam.Type).
			Ref("questions").
			Unique().
			Required().
			Field("exam_id"),
		edge.To("criteria", Criterion.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Question.
func (Question) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("exam_id", "order_index").
			Unique(),
	}
}

func (Question) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

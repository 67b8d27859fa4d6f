package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Criterion holds the schema definition for the Criterion entity.
// A Criterion is one rubric line item a Question is scored against; the
// Scoring agent runs one LLM call per criterion (spec'd fan-out unit).
type Criterion struct {
	ent.Schema
}

// Fields of the Criterion.
func (Criterion) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("criterion_id").
			Unique().
			Immutable(),
		field.String("question_id").
			Immutable(),
		field.Text("description"),
		field.Float("max_marks"),
		field.Int("order_index"),
	}
}

// Edges of the Criterion.
func (Criterion) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("question", Question.Type).
			Ref("criteria").
			Unique().
			Required().
			Field("question_id"),
	}
}

// Indexes of the Criterion.
func (Criterion) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("question_id", "order_index").
			Unique(),
	}
}

func (Criterion) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

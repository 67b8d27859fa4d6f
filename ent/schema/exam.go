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

// Exam holds the schema definition for the Exam entity.
type Exam struct {
	ent.Schema
}

// Fields of the Exam.
func (Exam) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("exam_id").
			Unique().
			Immutable(),
		field.String("title"),
		field.Float("max_total_score").
			Comment("Sum of every question's max_marks; recomputed whenever questions change"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Exam.
func (Exam) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("questions", Question.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("uploads", UploadedScript.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Exam.
func (Exam) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
	}
}

func (Exam) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConsistencyAudit holds the schema definition for the ConsistencyAudit entity.
// Output of the Consistency agent: an authoritative pass that may override
// individual criterion scores it finds internally contradictory.
type ConsistencyAudit struct {
	ent.Schema
}

// Fields of the ConsistencyAudit.
func (ConsistencyAudit) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("consistency_audit_id").
			Unique().
			Immutable(),
		field.String("evaluation_result_id").
			Immutable(),
		field.Bool("adjustments_made").
			Default(false),
		field.JSON("adjusted_scores", map[string]float64{}).
			Optional().
			Comment("criterion_id -> replacement marks_awarded, only present when adjustments_made"),
		field.Text("rationale").
			Optional(),
	}
}

// Edges of the ConsistencyAudit.
func (ConsistencyAudit) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("evaluation_result", EvaluationResult.Type).
			Ref("consistency_audit").
			Unique().
			Required().
			Field("evaluation_result_id"),
	}
}

// Indexes of the ConsistencyAudit.
func (ConsistencyAudit) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("evaluation_result_id").
			Unique(),
	}
}

func (ConsistencyAudit) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

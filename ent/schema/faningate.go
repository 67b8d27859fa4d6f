package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// FanInGate holds the schema definition for the FanInGate entity.
// A generic (expected, completed) counter: whichever caller's atomic
// increment observes completed == expected is responsible for enqueuing
// the continuation task exactly once.
type FanInGate struct {
	ent.Schema
}

// Fields of the FanInGate.
func (FanInGate) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("fan_in_gate_id").
			Unique().
			Immutable(),
		field.String("owner_type").
			Immutable().
			Comment("e.g. uploaded_script or script, to disambiguate the same owner_id across task kinds"),
		field.String("owner_id").
			Immutable(),
		field.String("task_name").
			Immutable().
			Comment("Name of the fan-out this gate closes, e.g. ocr_aggregate or evaluate_script"),
		field.Int("expected"),
		field.Int("completed").
			Default(0),
		field.Bool("continuation_enqueued").
			Default(false),
	}
}

// Indexes of the FanInGate.
func (FanInGate) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("owner_type", "owner_id", "task_name").
			Unique(),
	}
}

func (FanInGate) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

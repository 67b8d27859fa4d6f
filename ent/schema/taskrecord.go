package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TaskRecord holds the schema definition for the TaskRecord entity.
// The default, in-repo implementation of the queue broker: one row per
// unit of work on a named queue, claimed via SELECT ... FOR UPDATE SKIP
// LOCKED by pkg/queue workers.
type TaskRecord struct {
	ent.Schema
}

// Fields of the TaskRecord.
func (TaskRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("task_id").
			Unique().
			Immutable(),
		field.String("queue").
			Immutable().
			Comment("default, ocr, or evaluation"),
		field.String("task_name").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}),
		field.String("dedupe_key").
			Unique().
			Immutable().
			Comment("Composite idempotency key; a duplicate enqueue is a no-op insert conflict"),
		field.Enum("status").
			Values("pending", "claimed", "running", "completed", "failed").
			Default("pending"),
		field.Time("available_at").
			Default(time.Now).
			Comment("Task is not claimable before this time; used for retry backoff"),
		field.String("claimed_by").
			Optional().
			Nillable().
			Comment("Worker ID holding the claim"),
		field.Time("last_interaction_at").
			Optional().
			Nillable(),
		field.Int("attempts").
			Default(0),
		field.String("last_error").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the TaskRecord.
func (TaskRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("queue", "status", "available_at"),
		index.Fields("status", "last_interaction_at"),
	}
}

func (TaskRecord) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}

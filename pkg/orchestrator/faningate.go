package orchestrator

import (
	"context"
	"fmt"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/faningate"
)

// arriveAtGate atomically increments the named fan-in gate's completed
// counter (creating it with the given expected count if it does not yet
// exist) and reports whether THIS call observed completed reach expected —
// the signal that the caller, and only the caller, is responsible for
// enqueuing the continuation task. A conditional UPDATE ... WHERE keeps the
// increment race-free even under duplicated task deliveries (spec.md §8
// property 5, §4.6 "enqueues the continuation exactly once").
func arriveAtGate(ctx context.Context, client *ent.Client, ownerType, ownerID, taskName string, expected int) (bool, error) {
	gateID := fmt.Sprintf("%s:%s:%s", ownerType, ownerID, taskName)

	_, err := client.FanInGate.Create().
		SetID(gateID).
		SetOwnerType(ownerType).
		SetOwnerID(ownerID).
		SetTaskName(taskName).
		SetExpected(expected).
		Save(ctx)
	if err != nil && !ent.IsConstraintError(err) {
		return false, fmt.Errorf("create fan-in gate %s: %w", gateID, err)
	}

	for {
		gate, err := client.FanInGate.Get(ctx, gateID)
		if err != nil {
			return false, fmt.Errorf("load fan-in gate %s: %w", gateID, err)
		}
		if gate.ContinuationEnqueued {
			return false, nil
		}

		newCompleted := gate.Completed + 1
		n, err := client.FanInGate.Update().
			Where(faningate.ID(gateID), faningate.Completed(gate.Completed)).
			SetCompleted(newCompleted).
			Save(ctx)
		if err != nil {
			return false, fmt.Errorf("increment fan-in gate %s: %w", gateID, err)
		}
		if n == 0 {
			// lost the race to a concurrent sibling; retry against the fresh row
			continue
		}

		if newCompleted < gate.Expected {
			return false, nil
		}

		// We are the arrival that reached Expected. Claim the continuation
		// with a second conditional update so a duplicate delivery of THIS
		// same sibling task can't double-fire it either.
		n, err = client.FanInGate.Update().
			Where(faningate.ID(gateID), faningate.ContinuationEnqueuedEQ(false)).
			SetContinuationEnqueued(true).
			Save(ctx)
		if err != nil {
			return false, fmt.Errorf("claim fan-in gate continuation %s: %w", gateID, err)
		}
		return n == 1, nil
	}
}

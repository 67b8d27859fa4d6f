package llmgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetTracker enforces a per-run cumulative token budget across worker
// processes. A single evaluation run spans one evaluate_question task per
// question, and those tasks can be claimed by different pods, so the
// counter has to live somewhere
// shared — Redis INCRBY plays the same role here that a Postgres row lock
// plays for task claiming: one place every pod agrees on.
type BudgetTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBudgetTracker creates a tracker against the given Redis client. ttl
// bounds how long an abandoned run's counter lingers (a run that crashes
// mid-flight should not permanently reserve budget).
func NewBudgetTracker(rdb *redis.Client, ttl time.Duration) *BudgetTracker {
	return &BudgetTracker{rdb: rdb, ttl: ttl}
}

func budgetKey(runID string) string {
	return fmt.Sprintf("gradeflow:budget:%s", runID)
}

// Spend atomically adds tokens to the run's counter and returns the new
// total. The orchestrator ignores the total and instead calls Remaining
// before each agent stage, stopping the run once nothing is left.
func (b *BudgetTracker) Spend(ctx context.Context, runID string, tokens int) (int, error) {
	key := budgetKey(runID)
	total, err := b.rdb.IncrBy(ctx, key, int64(tokens)).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing token budget for run %s: %w", runID, err)
	}
	if total == int64(tokens) {
		// First write for this run: arm the expiry so an abandoned run's
		// counter does not live forever.
		b.rdb.Expire(ctx, key, b.ttl)
	}
	return int(total), nil
}

// Remaining reports how many tokens are left in the run's budget.
func (b *BudgetTracker) Remaining(ctx context.Context, runID string, limit int) (int, error) {
	spent, err := b.rdb.Get(ctx, budgetKey(runID)).Int()
	if err != nil {
		if err == redis.Nil {
			return limit, nil
		}
		return 0, fmt.Errorf("reading token budget for run %s: %w", runID, err)
	}
	remaining := limit - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears a run's counter, so the next Remaining call for that run
// reports the full limit. No pipeline code calls it; coreapi.ReEvaluate
// mints a fresh run_id, which starts with no counter.
func (b *BudgetTracker) Reset(ctx context.Context, runID string) error {
	return b.rdb.Del(ctx, budgetKey(runID)).Err()
}

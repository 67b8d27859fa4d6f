package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gradeflow/gradeflow/ent"
	"github.com/gradeflow/gradeflow/ent/taskrecord"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned tasks.
// All pods run this independently — operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "queue", p.queue, "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds running tasks with stale heartbeats on this
// queue and resets them to pending so another worker can reclaim them.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	orphans, err := p.client.TaskRecord.Query().
		Where(
			taskrecord.QueueEQ(p.queue),
			taskrecord.StatusEQ(taskrecord.StatusRunning),
			taskrecord.LastInteractionAtNotNil(),
			taskrecord.LastInteractionAtLT(threshold),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query orphaned tasks: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("Detected orphaned tasks", "queue", p.queue, "count", len(orphans))

	recovered := 0
	failed := 0
	for _, task := range orphans {
		if err := p.recoverOrphanedTask(ctx, task); err != nil {
			slog.Error("Failed to recover orphaned task", "task_id", task.ID, "error", err)
			failed++
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if failed > 0 {
		slog.Warn("Orphan recovery completed with failures", "queue", p.queue, "total_orphans", len(orphans), "recovered", recovered, "failed", failed)
	}

	return nil
}

// recoverOrphanedTask resets a single orphaned task to pending, or marks it
// permanently failed if it has exhausted its retry attempts. A claimed-by
// worker that never heartbeats again (pod crash, OOM-kill) must not hold the
// row forever.
func (p *WorkerPool) recoverOrphanedTask(ctx context.Context, task *ent.TaskRecord) error {
	log := slog.With("task_id", task.ID, "old_claimed_by", task.ClaimedBy)

	lastHeartbeat := "unknown"
	if task.LastInteractionAt != nil {
		lastHeartbeat = task.LastInteractionAt.Format(time.RFC3339)
	}

	const maxAttempts = 5
	if task.Attempts >= maxAttempts {
		errMsg := fmt.Sprintf("orphaned %d times, exceeding retry limit", task.Attempts)
		if err := task.Update().
			SetStatus(taskrecord.StatusFailed).
			SetLastError(errMsg).
			Save(ctx); err != nil {
			return err
		}
		log.Warn("Orphaned task exceeded retry limit, marked failed", "last_heartbeat", lastHeartbeat)
		return nil
	}

	if err := task.Update().
		SetStatus(taskrecord.StatusPending).
		ClearClaimedBy().
		SetAvailableAt(time.Now()).
		Save(ctx); err != nil {
		return fmt.Errorf("failed to requeue orphaned task: %w", err)
	}

	log.Warn("Orphaned task requeued", "last_heartbeat", lastHeartbeat)
	return nil
}

// CleanupStartupOrphans performs a one-time cleanup of tasks claimed by this
// pod that were running when the pod previously crashed, before its worker
// pools begin polling again.
func CleanupStartupOrphans(ctx context.Context, client *ent.Client, podID string) error {
	orphans, err := client.TaskRecord.Query().
		Where(
			taskrecord.StatusEQ(taskrecord.StatusRunning),
			taskrecord.ClaimedByEQ(podID),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query startup orphans: %w", err)
	}

	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("Found startup orphans from previous run", "pod_id", podID, "count", len(orphans))

	for _, task := range orphans {
		if err := task.Update().
			SetStatus(taskrecord.StatusPending).
			ClearClaimedBy().
			SetAvailableAt(time.Now()).
			Save(ctx); err != nil {
			slog.Error("Failed to requeue startup orphan", "task_id", task.ID, "error", err)
			continue
		}
		slog.Info("Startup orphan requeued", "task_id", task.ID)
	}

	return nil
}

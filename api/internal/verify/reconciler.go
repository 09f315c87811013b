package verify

import (
	"context"
	"log/slog"
	"time"

	"civicconnect-backend/shared/logx"
	"civicconnect-backend/shared/metricsx"
)

// QueueSnapshotKey is where the worker mirrors the transient queue for
// the dashboard endpoint served by the API process.
const QueueSnapshotKey = "ml:queue:snapshot"

const snapshotTTL = 2 * time.Minute

type Cache interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Reconciler is the periodic sweep. It rediscovers complaints that
// never got a verification status (crashed worker, restart, writes
// that bypassed the enqueuer) and routes them through the enqueuer.
// Complaints in a terminal state, including failed ones, are left
// alone; those need an explicit requeue.
type Reconciler struct {
	store    Store
	enqueuer *Enqueuer
	queue    *Queue
	cache    Cache
	logger   logx.Logger
	batch    int
}

func NewReconciler(store Store, enqueuer *Enqueuer, queue *Queue, cache Cache, logger logx.Logger, batch int) *Reconciler {
	if batch <= 0 {
		batch = 100
	}
	return &Reconciler{
		store:    store,
		enqueuer: enqueuer,
		queue:    queue,
		cache:    cache,
		logger:   logger,
		batch:    batch,
	}
}

// Reconcile runs one sweep and returns how many complaints were
// scheduled for verification.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	complaints, err := r.store.ListUnprocessed(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, c := range complaints {
		wasQueued, err := r.enqueuer.Enqueue(ctx, c)
		if err != nil {
			r.logger.Error(ctx, "sweep_enqueue_failed", "failed to route complaint",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("complaint_id", c.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if wasQueued {
			queued++
		}
	}

	r.publishSnapshot(ctx)

	if len(complaints) > 0 {
		r.logger.Info(ctx, "sweep_done", "reconcile sweep finished",
			slog.Int("scanned", len(complaints)),
			slog.Int("queued", queued),
			slog.Int("tracked", r.queue.Len()),
		)
	}
	return queued, nil
}

func (r *Reconciler) publishSnapshot(ctx context.Context) {
	metricsx.SetVerificationQueueDepth(r.queue.Len())
	if r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, QueueSnapshotKey, r.queue.Snapshot(), snapshotTTL); err != nil {
		r.logger.Warn(ctx, "snapshot_publish_failed", "failed to mirror queue snapshot",
			slog.String("error", err.Error()),
		)
	}
}

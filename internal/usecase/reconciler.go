package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	applogger "CryptoFactors/pkg/logger"
)

// ReconcileStats reports how a computed batch was merged into the store.
type ReconcileStats struct {
	Inserted int
	Updated  int
}

// Reconciler merges computed aggregate updates into the persistent store:
// insert a full row for keys that do not exist yet, field-group-scoped
// update for keys that do. Reconciling the same batch twice leaves the same
// stored state as reconciling it once.
type Reconciler struct {
	store   domrepo.AggregateStore
	metrics domrepo.Metrics
	log     *applogger.Logger
}

func NewReconciler(store domrepo.AggregateStore, metrics domrepo.Metrics, log *applogger.Logger) *Reconciler {
	return &Reconciler{store: store, metrics: metrics, log: log}
}

// Reconcile looks up the exact key set of the batch in one batched read and
// routes each update to an insert or a partial update. The caller is assumed
// to be the only processing pass in flight; readers may run concurrently.
func (r *Reconciler) Reconcile(ctx context.Context, updates []models.AggregateUpdate) (ReconcileStats, error) {
	var stats ReconcileStats
	if len(updates) == 0 {
		return stats, nil
	}
	start := time.Now()

	keys := make([]models.AggregateKey, 0, len(updates))
	for i := range updates {
		keys = append(keys, updates[i].Key)
	}
	existing, err := r.store.GetMany(ctx, keys)
	if err != nil {
		r.metrics.RecordError("reconcile_read")
		return stats, fmt.Errorf("reconcile: batched read: %w", err)
	}

	inserts := make([]*models.DailyAggregate, 0, len(updates))
	for i := range updates {
		upd := updates[i]
		if upd.IsEmpty() {
			continue
		}
		if _, ok := existing[upd.Key]; ok {
			if err := r.store.Update(ctx, upd); err != nil {
				r.metrics.RecordError("reconcile_update")
				return stats, fmt.Errorf("reconcile: update %s/%s: %w", upd.Key.Symbol, upd.Key.ReferenceDate, err)
			}
			stats.Updated++
			continue
		}
		inserts = append(inserts, upd.Row())
	}
	if len(inserts) > 0 {
		if err := r.store.Insert(ctx, inserts); err != nil {
			r.metrics.RecordError("reconcile_insert")
			return stats, fmt.Errorf("reconcile: insert batch: %w", err)
		}
		stats.Inserted = len(inserts)
	}

	r.metrics.RecordLatency("reconcile", time.Since(start).Seconds())
	r.log.Debug("reconcile done",
		applogger.Int("inserted", stats.Inserted),
		applogger.Int("updated", stats.Updated),
	)
	return stats, nil
}

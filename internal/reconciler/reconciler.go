// Package reconciler periodically recomputes each active lot's cached
// price and bid count from the bids table. The bid collection is the
// source of truth; the lot columns are a materialized cache that must
// never drift from it.
package reconciler

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

const interval = 30 * time.Second

// Run starts the periodic reconciliation loop in the background.
func Run(ctx context.Context, db *sql.DB) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				reconcileOnce(ctx, db)
			}
		}
	}()
}

func reconcileOnce(ctx context.Context, db *sql.DB) {
	// Bump the revision so in-flight admissions against the stale cache
	// fail their compare-and-swap and re-read.
	const fix = `
	  UPDATE lots l
	     SET current_bid = src.amount,
	         total_bids  = src.n,
	         revision    = l.revision + 1,
	         updated_at  = now()
	    FROM (
	         SELECT b.lot_id,
	                MAX(b.amount) FILTER (WHERE b.status = 'winning')                  AS amount,
	                COUNT(*)      FILTER (WHERE b.status NOT IN ('cancelled','invalid')) AS n
	           FROM bids b
	          GROUP BY b.lot_id
	         ) src
	   WHERE l.id = src.lot_id
	     AND l.status = 'active'
	     AND src.amount IS NOT NULL
	     AND (l.current_bid <> src.amount OR l.total_bids <> src.n)`

	res, err := db.ExecContext(ctx, fix)
	if err != nil {
		zap.L().Error("reconciler.update", zap.Error(err))
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		zap.L().Warn("reconciler.drift_corrected", zap.Int64("lots", n))
	}
}

package transfer

import (
	"context"
	"time"

	"github/backup/internal/domain"

	log "github.com/sirupsen/logrus"
)

// missingItemDetail marks ledger entries whose work item definition is
// no longer available; they are terminal and excluded from retries.
const missingItemDetail = "no work item definition for this id; cannot retry"

// WaveController re-drives the current ledger contents through the
// orchestrator, up to a wave limit. Waves run strictly one after the
// other; each wave takes a fresh snapshot of the ledger, so items
// recovered in an earlier wave are not attempted again.
type WaveController struct {
	orchestrator *Orchestrator
	maxWaves     int
	delay        time.Duration
}

func NewWaveController(orchestrator *Orchestrator, maxWaves int, delay time.Duration) *WaveController {
	return &WaveController{
		orchestrator: orchestrator,
		maxWaves:     maxWaves,
		delay:        delay,
	}
}

// Drive runs up to maxWaves passes over the failing items in ledger,
// resolving work items through lookup. Ids with no lookup entry stay in
// the ledger with a terminal detail. Residual failures are not an
// error; only fatal setup conditions and cancellation are.
func (w *WaveController) Drive(ctx context.Context, ledger *Ledger, lookup map[string]domain.WorkItem) error {
	for wave := 1; wave <= w.maxWaves; wave++ {
		if ledger.Len() == 0 {
			return nil
		}

		remaining := ledger.Snapshot()
		items := make([]domain.WorkItem, 0, len(remaining))
		for id := range remaining {
			item, ok := lookup[id]
			if !ok {
				log.Warnf("❌ No catalog data for %s, it cannot be retried", id)
				ledger.Put(id, missingItemDetail)
				continue
			}
			items = append(items, item)
		}

		if len(items) == 0 {
			return nil
		}

		log.Infof("🔄 Retry wave %d/%d over %d failed items", wave, w.maxWaves, len(items))

		if _, err := w.orchestrator.Run(ctx, items, ledger); err != nil {
			return err
		}

		if ledger.Len() == 0 {
			log.Infof("✅ All items recovered after retry wave %d", wave)
			return nil
		}

		if wave < w.maxWaves {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.delay):
			}
		}
	}

	if n := ledger.Len(); n > 0 {
		log.Warnf("⚠️ Still %d items failed after %d retry waves", n, w.maxWaves)
	}
	return nil
}

package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github/backup/internal/domain"
	"github/backup/internal/integrity"
	"github/backup/internal/progress"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher downloads one URL into a local file.
type Fetcher interface {
	Download(ctx context.Context, url, dest string) error
}

// sequentialThreshold is the batch size at or below which items are
// processed on a single path instead of the worker pool.
const sequentialThreshold = 5

type Orchestrator struct {
	fetcher  Fetcher
	observer progress.Observer
	workers  int
	validate func(path string) bool
}

func NewOrchestrator(fetcher Fetcher, observer progress.Observer, workers int) *Orchestrator {
	if observer == nil {
		observer = progress.NopObserver{}
	}
	if workers <= 0 {
		workers = max(1, runtime.NumCPU()-1)
	}

	return &Orchestrator{
		fetcher:  fetcher,
		observer: observer,
		workers:  workers,
		validate: integrity.ValidateArchive,
	}
}

// Run performs one full pass over items, writing failures into ledger
// and clearing entries for items that succeed. Every item resolves to
// exactly one outcome; a cancelled context resolves the remaining items
// with a cancellation detail instead of dropping them. Only a fatal
// setup condition (destination directory not creatable) returns an
// error.
func (o *Orchestrator) Run(ctx context.Context, items []domain.WorkItem, ledger *Ledger) (*domain.BatchResult, error) {
	state := &passState{
		total:    len(items),
		ledger:   ledger,
		observer: o.observer,
	}

	if len(items) == 0 {
		return state.result(), nil
	}

	if err := ensureDestinations(items); err != nil {
		return nil, err
	}

	if len(items) <= sequentialThreshold || o.workers <= 1 {
		o.runSequential(ctx, items, state)
	} else {
		log.Debugf("🚀 Dispatching %d items across %d workers", len(items), o.workers)
		o.runParallel(ctx, items, state)
	}

	return state.result(), nil
}

func (o *Orchestrator) runSequential(ctx context.Context, items []domain.WorkItem, state *passState) {
	for _, item := range items {
		state.resolve(o.transferOne(ctx, item))
	}
}

func (o *Orchestrator) runParallel(ctx context.Context, items []domain.WorkItem, state *passState) {
	g := new(errgroup.Group)
	g.SetLimit(o.workers)

	for _, item := range items {
		item := item
		g.Go(func() error {
			state.resolve(o.transferOne(ctx, item))
			return nil
		})
	}

	g.Wait()
}

// transferOne runs the per-item routine: primary URL first, then each
// fallback in order, validating every download and deleting anything
// that fails validation. The temp file is exclusively owned by this
// call; the destination only ever sees complete, validated archives.
func (o *Orchestrator) transferOne(ctx context.Context, item domain.WorkItem) domain.TransferOutcome {
	urls := make([]string, 0, 1+len(item.FallbackURLs))
	urls = append(urls, item.PrimaryURL)
	urls = append(urls, item.FallbackURLs...)

	var lastDetail string
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return domain.TransferOutcome{ID: item.ID, Detail: fmt.Sprintf("cancelled: %v", err)}
		}

		tmp := tempPath(item.DestinationPath)

		if err := o.fetcher.Download(ctx, url, tmp); err != nil {
			os.Remove(tmp)
			lastDetail = err.Error()
			continue
		}

		if !o.validate(tmp) {
			os.Remove(tmp)
			lastDetail = "downloaded archive failed integrity check"
			continue
		}

		if err := os.Rename(tmp, item.DestinationPath); err != nil {
			os.Remove(tmp)
			lastDetail = fmt.Sprintf("failed to move archive into place: %v", err)
			continue
		}

		return domain.TransferOutcome{ID: item.ID, Succeeded: true}
	}

	return domain.TransferOutcome{ID: item.ID, Detail: lastDetail}
}

// passState aggregates outcomes for one pass. All counters, the ledger
// and the observer are updated under one mutex, so progress events are
// emitted whole and in completion order.
type passState struct {
	mu        sync.Mutex
	total     int
	completed int
	succeeded int
	failed    int
	failedIDs []string
	ledger    *Ledger
	observer  progress.Observer
}

func (s *passState) resolve(outcome domain.TransferOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	if outcome.Succeeded {
		s.succeeded++
		s.ledger.Remove(outcome.ID)
	} else {
		s.failed++
		s.failedIDs = append(s.failedIDs, outcome.ID)
		s.ledger.Put(outcome.ID, outcome.Detail)
	}

	s.observer.OnProgress(s.completed, s.total, s.failed, outcome.ID)
}

func (s *passState) result() *domain.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	failedIDs := make([]string, len(s.failedIDs))
	copy(failedIDs, s.failedIDs)

	return &domain.BatchResult{
		Total:     s.total,
		Succeeded: s.succeeded,
		FailedIDs: failedIDs,
		Failures:  s.ledger.Snapshot(),
	}
}

func ensureDestinations(items []domain.WorkItem) error {
	dirs := make(map[string]struct{})
	for _, item := range items {
		dirs[filepath.Dir(item.DestinationPath)] = struct{}{}
	}

	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create destination directory %s: %w", dir, err)
		}
	}
	return nil
}

func tempPath(dest string) string {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".part")
}

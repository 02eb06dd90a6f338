// Package scheduler runs the periodic staleness sweep (spec §5): every
// scheduler.interval, it selects organizations whose last_extracted_at is
// older than scheduler.staleness_threshold and enqueues a curation run for
// each.
package scheduler

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"

	"github.com/mntogether/curator/internal/logging"
	"github.com/mntogether/curator/pkg/curator/orchestrator"
)

const defaultConcurrency = 5

// Store selects the organizations due for re-curation.
type Store interface {
	LoadStaleOrganizations(ctx context.Context, threshold time.Duration) ([]string, error)
}

// Curator is the subset of the orchestrator the scheduler drives.
type Curator interface {
	CurateOrg(ctx context.Context, organizationID, key string) (orchestrator.Result, error)
}

// Config tunes the sweep per spec §6.3's scheduler.* keys.
type Config struct {
	Interval           time.Duration
	StalenessThreshold time.Duration
	Concurrency        int
}

// Scheduler runs the staleness sweep on a ticker until its context is
// cancelled.
type Scheduler struct {
	store   Store
	curator Curator
	cfg     Config
	log     logr.Logger

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New builds a Scheduler.
func New(store Store, curator Curator, cfg Config, log logr.Logger) *Scheduler {
	return &Scheduler{store: store, curator: curator, cfg: cfg, log: log, now: time.Now}
}

func (s *Scheduler) concurrency() int {
	if s.cfg.Concurrency > 0 {
		return s.cfg.Concurrency
	}
	return defaultConcurrency
}

// Run blocks, sweeping every s.cfg.Interval until ctx is cancelled. It does
// not sweep immediately on entry; the first sweep happens after one
// interval, matching a cron-style scheduler rather than a run-at-startup
// one.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error(err, "staleness sweep failed")
			}
		}
	}
}

// Sweep runs one pass: load stale organizations and fan out bounded
// concurrent curation runs, one per organization. A single organization's
// failure is logged and does not stop the sweep (mirrors the per-item
// failure isolation policy used elsewhere in the pipeline, spec §7).
func (s *Scheduler) Sweep(ctx context.Context) error {
	orgIDs, err := s.store.LoadStaleOrganizations(ctx, s.cfg.StalenessThreshold)
	if err != nil {
		return err
	}
	if len(orgIDs) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(int64(s.concurrency()))
	runKey := s.now().Format(time.RFC3339)

	for _, orgID := range orgIDs {
		orgID := orgID
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			if _, err := s.curator.CurateOrg(ctx, orgID, orgID+"/"+runKey); err != nil {
				s.log.Error(err, "scheduled curation failed", logging.WorkflowFields("curate_org", orgID+"/"+runKey).KVs()...)
			}
		}()
	}

	// Drain: acquire the full weight once every goroutine has released it.
	if err := sem.Acquire(ctx, int64(s.concurrency())); err != nil {
		return err
	}
	return nil
}

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mntogether/curator/pkg/curator/orchestrator"
)

func TestScheduler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scheduler Suite")
}

type fakeStore struct {
	staleOrgs []string
}

func (f *fakeStore) LoadStaleOrganizations(ctx context.Context, threshold time.Duration) ([]string, error) {
	return f.staleOrgs, nil
}

type fakeCurator struct {
	mu      sync.Mutex
	curated []string
	failFor map[string]bool
}

func (f *fakeCurator) CurateOrg(ctx context.Context, organizationID, key string) (orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[organizationID] {
		return orchestrator.Result{}, errCuration
	}
	f.curated = append(f.curated, organizationID)
	return orchestrator.Result{Status: orchestrator.StatusSucceeded}, nil
}

var errCuration = &curationError{}

type curationError struct{}

func (e *curationError) Error() string { return "curation failed" }

var _ = Describe("Scheduler", func() {
	It("curates every stale organization found by the sweep", func() {
		store := &fakeStore{staleOrgs: []string{"org-1", "org-2", "org-3"}}
		curator := &fakeCurator{}
		s := New(store, curator, Config{Interval: time.Hour, StalenessThreshold: 24 * time.Hour}, logr.Discard())

		Expect(s.Sweep(context.Background())).To(Succeed())

		curator.mu.Lock()
		defer curator.mu.Unlock()
		Expect(curator.curated).To(ConsistOf("org-1", "org-2", "org-3"))
	})

	It("does nothing when no organization is stale", func() {
		store := &fakeStore{}
		curator := &fakeCurator{}
		s := New(store, curator, Config{Interval: time.Hour, StalenessThreshold: 24 * time.Hour}, logr.Discard())

		Expect(s.Sweep(context.Background())).To(Succeed())
		Expect(curator.curated).To(BeEmpty())
	})

	It("isolates a single organization's curation failure from the rest of the sweep", func() {
		store := &fakeStore{staleOrgs: []string{"org-1", "org-2"}}
		curator := &fakeCurator{failFor: map[string]bool{"org-1": true}}
		s := New(store, curator, Config{Interval: time.Hour, StalenessThreshold: 24 * time.Hour}, logr.Discard())

		Expect(s.Sweep(context.Background())).To(Succeed())

		curator.mu.Lock()
		defer curator.mu.Unlock()
		Expect(curator.curated).To(ConsistOf("org-2"))
	})
})

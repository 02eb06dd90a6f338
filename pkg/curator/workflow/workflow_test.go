package workflow

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestWorkflow(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Workflow Runtime Adapter Suite")
}

type noopInvoker struct{}

func (noopInvoker) Invoke(ctx context.Context, kind, key string, request any) (<-chan InvokeResult, error) {
	ch := make(chan InvokeResult, 1)
	ch <- InvokeResult{Output: request}
	close(ch)
	return ch, nil
}

var _ = Describe("Run", func() {
	var (
		ctx     context.Context
		journal *MemoryJournal
	)

	BeforeEach(func() {
		ctx = context.Background()
		journal = NewMemoryJournal()
	})

	It("rejects a second start for the same kind/key while one is live", func() {
		r, err := Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-1")
		Expect(err).NotTo(HaveOccurred())
		defer r.Finish(ctx, nil)

		_, err = Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-1")
		Expect(err).To(MatchError(ErrAlreadyRunning))
	})

	It("allows a new run once the prior one finishes", func() {
		r, err := Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-1")
		Expect(err).NotTo(HaveOccurred())
		r.Finish(ctx, nil)

		r2, err := Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-1")
		Expect(err).NotTo(HaveOccurred())
		r2.Finish(ctx, nil)
	})

	It("does not re-invoke a step once journaled", func() {
		r, err := Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-2")
		Expect(err).NotTo(HaveOccurred())
		defer r.Finish(ctx, nil)

		calls := 0
		step := func(ctx context.Context) (string, error) {
			calls++
			return "result", nil
		}

		v1, err := DurableStep(ctx, r, "load_sources", step)
		Expect(err).NotTo(HaveOccurred())
		Expect(v1).To(Equal("result"))

		v2, err := DurableStep(ctx, r, "load_sources", step)
		Expect(err).NotTo(HaveOccurred())
		Expect(v2).To(Equal("result"))
		Expect(calls).To(Equal(1))
	})

	It("propagates a step's error without journaling a result", func() {
		r, err := Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-3")
		Expect(err).NotTo(HaveOccurred())
		defer r.Finish(ctx, nil)

		_, err = DurableStep(ctx, r, "fetch_pages", func(ctx context.Context) (int, error) {
			return 0, errBoom
		})
		Expect(err).To(MatchError(errBoom))

		_, found, err := journal.GetStep(ctx, "curator", "org-3", "fetch_pages")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("records and reads back status without blocking execution", func() {
		r, err := Start(ctx, journal, noopInvoker{}, logr.Discard(), "curator", "org-4")
		Expect(err).NotTo(HaveOccurred())
		defer r.Finish(ctx, nil)

		Expect(r.SetStatus(ctx, "extracting_briefs", "")).To(Succeed())

		status, found, err := GetStatus(ctx, journal, "curator", "org-4")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(status.Phase).To(Equal("extracting_briefs"))
	})
})

type boomError struct{}

func (boomError) Error() string { return "boom" }

var errBoom = boomError{}

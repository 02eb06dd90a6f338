package writer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/curator/domain"
)

func TestWriter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Writer Suite")
}

type fakeClient struct {
	response json.RawMessage
	err      error
}

func (c *fakeClient) Complete(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

type boom struct{}

func (boom) Error() string { return "boom" }

var _ = Describe("Writer", func() {
	target := RewriteTarget{
		Action:          domain.Action{Kind: domain.ActionCreatePost},
		DraftTitle:      "Original title",
		DraftText:       "Original text",
		DocumentExcerpt: "excerpt",
		ExistingTitles:  []string{"Other post"},
	}

	It("uses the primary model's rewritten copy when it succeeds", func() {
		primary := &fakeClient{response: json.RawMessage(`{"title":"New title","summary":"s","text":"t"}`)}
		fallback := &fakeClient{}
		w := New(primary, fallback, DefaultConfig(), logr.Discard())

		out := w.RewriteAll(context.Background(), []RewriteTarget{target})
		Expect(out).To(HaveLen(1))
		Expect(out[0].Copy.Title).To(Equal("New title"))
	})

	It("falls back to the fallback model when the primary errors", func() {
		primary := &fakeClient{err: boom{}}
		fallback := &fakeClient{response: json.RawMessage(`{"title":"Fallback title","summary":"s","text":"t"}`)}
		w := New(primary, fallback, DefaultConfig(), logr.Discard())

		out := w.RewriteAll(context.Background(), []RewriteTarget{target})
		Expect(out[0].Copy.Title).To(Equal("Fallback title"))
	})

	It("keeps the original draft copy when both models fail", func() {
		primary := &fakeClient{err: boom{}}
		fallback := &fakeClient{err: boom{}}
		w := New(primary, fallback, DefaultConfig(), logr.Discard())

		out := w.RewriteAll(context.Background(), []RewriteTarget{target})
		Expect(out[0].Copy.Title).To(Equal("Original title"))
		Expect(out[0].Copy.Text).To(Equal("Original text"))
		Expect(out[0].Action.Kind).To(Equal(domain.ActionCreatePost))
	})

	It("rewrites every target under bounded concurrency", func() {
		primary := &fakeClient{response: json.RawMessage(`{"title":"New title","summary":"s","text":"t"}`)}
		fallback := &fakeClient{}
		cfg := DefaultConfig()
		cfg.Concurrency = 2
		w := New(primary, fallback, cfg, logr.Discard())

		targets := make([]RewriteTarget, 5)
		for i := range targets {
			targets[i] = target
		}
		out := w.RewriteAll(context.Background(), targets)
		Expect(out).To(HaveLen(5))
		for _, r := range out {
			Expect(r.Copy.Title).To(Equal("New title"))
		}
	})
})

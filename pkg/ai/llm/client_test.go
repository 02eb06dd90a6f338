package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LLM Client Suite")
}

type fakeProvider struct {
	name     string
	response json.RawMessage
	err      error
	calls    int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req Request) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

var _ = Describe("Client", func() {
	It("returns the primary provider's response when it succeeds", func() {
		primary := &fakeProvider{name: "primary", response: json.RawMessage(`{"text":"ok"}`)}
		fallback := &fakeProvider{name: "fallback"}
		c := New(primary, fallback)

		raw, err := c.Complete(context.Background(), Request{Model: "m1", System: "s", User: "u"})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"text":"ok"}`))
		Expect(fallback.calls).To(Equal(0))
	})

	It("falls back when the primary errors", func() {
		primary := &fakeProvider{name: "primary", err: fmt.Errorf("unavailable")}
		fallback := &fakeProvider{name: "fallback", response: json.RawMessage(`{"text":"from fallback"}`)}
		c := New(primary, fallback)

		raw, err := c.Complete(context.Background(), Request{Model: "m1", System: "s", User: "u"})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"text":"from fallback"}`))
	})

	It("propagates the fallback's error when both fail", func() {
		primary := &fakeProvider{name: "primary", err: fmt.Errorf("primary down")}
		fallback := &fakeProvider{name: "fallback", err: fmt.Errorf("fallback down")}
		c := New(primary, fallback)

		_, err := c.Complete(context.Background(), Request{Model: "m1", System: "s", User: "u"})
		Expect(err).To(MatchError(ContainSubstring("fallback down")))
	})

	It("rejects a response that fails schema validation", func() {
		schema := &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"summary"},
			Properties: openapi3.Schemas{
				"summary": openapi3.NewStringSchema().NewRef(),
			},
		}
		primary := &fakeProvider{name: "primary", response: json.RawMessage(`{"not_summary":"x"}`)}
		c := New(primary, nil)

		_, err := c.Complete(context.Background(), Request{Model: "m1", Schema: schema})
		Expect(err).To(HaveOccurred())
	})

	It("accepts a response that matches the schema", func() {
		schema := &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"summary"},
			Properties: openapi3.Schemas{
				"summary": openapi3.NewStringSchema().NewRef(),
			},
		}
		primary := &fakeProvider{name: "primary", response: json.RawMessage(`{"summary":"hello"}`)}
		c := New(primary, nil)

		raw, err := c.Complete(context.Background(), Request{Model: "m1", Schema: schema})
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"summary":"hello"}`))
	})
})

var _ = Describe("extractJSON", func() {
	It("extracts a bare JSON object", func() {
		raw, err := extractJSON(`{"a":1}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"a":1}`))
	})

	It("extracts JSON wrapped in a markdown code fence", func() {
		raw, err := extractJSON("```json\n{\"a\":1}\n```")
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"a":1}`))
	})

	It("errors when no JSON is present", func() {
		_, err := extractJSON("no json here")
		Expect(err).To(HaveOccurred())
	})
})

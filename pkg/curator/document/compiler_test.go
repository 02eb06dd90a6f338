package document

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mntogether/curator/pkg/curator/domain"
)

func TestDocument(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Document Compiler Suite")
}

var _ = Describe("Compile", func() {
	It("assembles sections in priority order", func() {
		in := Input{
			Organization: domain.Organization{Name: "Casa Solidaria", Description: "A community center."},
			WebsiteBriefs: []domain.PageBrief{
				{SourceURL: "https://casa.org/hours", Summary: "Open weekdays."},
			},
			ExistingPosts: []domain.Post{
				{ID: "abc-1", Title: "Food pantry", Description: "Weekly groceries."},
			},
			ActiveNotes: []domain.Note{
				{ID: "note-1", Content: "Contact number changed.", Severity: domain.NoteSeverityWarning},
			},
		}

		doc := Compile(DefaultConfig(), in)

		orgIdx := strings.Index(doc, "Casa Solidaria")
		briefIdx := strings.Index(doc, "https://casa.org/hours")
		postIdx := strings.Index(doc, "[POST-abc-1]")
		noteIdx := strings.Index(doc, "[NOTE-note-1]")

		Expect(orgIdx).To(BeNumerically(">=", 0))
		Expect(briefIdx).To(BeNumerically(">", orgIdx))
		Expect(postIdx).To(BeNumerically(">", briefIdx))
		Expect(noteIdx).To(BeNumerically(">", postIdx))
	})

	It("is a pure function of its inputs", func() {
		in := Input{Organization: domain.Organization{Name: "Org", Description: "Desc"}}
		Expect(Compile(DefaultConfig(), in)).To(Equal(Compile(DefaultConfig(), in)))
	})

	It("stops before a section that would exceed the budget, never truncating mid-section", func() {
		longSummary := strings.Repeat("a", 100)
		in := Input{
			Organization: domain.Organization{Name: "Org", Description: "Desc"},
			WebsiteBriefs: []domain.PageBrief{
				{SourceURL: "https://a.org/1", Summary: longSummary},
				{SourceURL: "https://a.org/2", Summary: longSummary},
			},
		}

		tiny := Config{BudgetChars: len(orgHeader(in.Organization)) + len(briefSection("Website", in.WebsiteBriefs[0])) + 5}
		doc := Compile(tiny, in)

		Expect(doc).To(ContainSubstring("https://a.org/1"))
		Expect(doc).NotTo(ContainSubstring("https://a.org/2"))
	})

	It("skips empty briefs", func() {
		in := Input{
			Organization:  domain.Organization{Name: "Org", Description: "Desc"},
			WebsiteBriefs: []domain.PageBrief{{SourceURL: "https://a.org/skip"}},
		}
		doc := Compile(DefaultConfig(), in)
		Expect(doc).NotTo(ContainSubstring("https://a.org/skip"))
	})
})

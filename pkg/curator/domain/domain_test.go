package domain

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDomain(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Domain Suite")
}

var _ = Describe("SyncProposal", func() {
	Describe("CanRevise", func() {
		It("allows revision below the cap", func() {
			p := &SyncProposal{RevisionCount: 2}
			Expect(p.CanRevise()).To(BeTrue())
		})

		It("blocks revision at the cap", func() {
			p := &SyncProposal{RevisionCount: 3}
			Expect(p.CanRevise()).To(BeFalse())
		})
	})
})

var _ = Describe("PageBrief", func() {
	It("is empty when nothing was extracted", func() {
		b := PageBrief{SourceURL: "https://example.org/hours"}
		Expect(b.IsEmpty()).To(BeTrue())
	})

	It("is not empty once any field is populated", func() {
		b := PageBrief{SourceURL: "https://example.org/hours", Summary: "Open weekdays 9-5."}
		Expect(b.IsEmpty()).To(BeFalse())
	})
})

var _ = Describe("Action", func() {
	Describe("EvidencedSourceURLs", func() {
		It("returns create_post's source urls", func() {
			a := Action{Kind: ActionCreatePost, CreatePost: &CreatePostAction{SourceURLs: []string{"https://a.org"}}}
			Expect(a.EvidencedSourceURLs()).To(Equal([]string{"https://a.org"}))
		})

		It("returns nil for merge_posts, which cites no direct evidence", func() {
			a := Action{Kind: ActionMergePosts, MergePosts: &MergePostsAction{TargetPostID: "p1"}}
			Expect(a.EvidencedSourceURLs()).To(BeNil())
		})
	})
})

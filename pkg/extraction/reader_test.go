package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestExtraction(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Page Source Reader Suite")
}

var _ = Describe("HTTPReader", func() {
	var (
		tokenServer *httptest.Server
		pagesServer *httptest.Server
	)

	BeforeEach(func() {
		tokenServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "test-token",
				"token_type":   "bearer",
				"expires_in":   3600,
			})
		}))
	})

	AfterEach(func() {
		tokenServer.Close()
		if pagesServer != nil {
			pagesServer.Close()
		}
	})

	It("returns the pages the reader serves", func() {
		pagesServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-token"))
			Expect(r.URL.Query().Get("site_url")).To(Equal("https://example.org"))
			json.NewEncoder(w).Encode([]CachedPage{
				{URL: "https://example.org/hours", Content: "Open 9-5"},
			})
		}))

		r := NewHTTPReader(context.Background(), Config{
			BaseURL: pagesServer.URL, TokenURL: tokenServer.URL,
			ClientID: "id", ClientSecret: "secret",
		})

		pages, err := r.GetPagesForSite(context.Background(), "https://example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(HaveLen(1))
		Expect(pages[0].URL).To(Equal("https://example.org/hours"))
	})

	It("returns an empty slice rather than an error when the site has no pages", func() {
		pagesServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]CachedPage{})
		}))

		r := NewHTTPReader(context.Background(), Config{
			BaseURL: pagesServer.URL, TokenURL: tokenServer.URL,
			ClientID: "id", ClientSecret: "secret",
		})

		pages, err := r.GetPagesForSite(context.Background(), "https://example.org")
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(BeEmpty())
	})

	It("propagates a non-200 status as an error", func() {
		pagesServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		r := NewHTTPReader(context.Background(), Config{
			BaseURL: pagesServer.URL, TokenURL: tokenServer.URL,
			ClientID: "id", ClientSecret: "secret",
		})

		_, err := r.GetPagesForSite(context.Background(), "https://example.org")
		Expect(err).To(HaveOccurred())
	})
})

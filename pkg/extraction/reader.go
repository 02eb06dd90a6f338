// Package extraction talks to the external page-source reader that owns
// crawling and caching of organization web pages (spec §6.1's
// get_pages_for_site interface). The curator never crawls directly.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// CachedPage is one page the reader has already crawled and cached.
type CachedPage struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Reader is the curator's client to the page-source reader service.
type Reader interface {
	// GetPagesForSite returns every cached page under siteURL. An empty
	// result is not an error (spec §6.1); network failure propagates so the
	// owning durable step fails.
	GetPagesForSite(ctx context.Context, siteURL string) ([]CachedPage, error)
}

// HTTPReader is the default Reader, authenticating via OAuth2 client
// credentials and calling a JSON HTTP endpoint.
type HTTPReader struct {
	baseURL string
	client  *http.Client
}

// Config configures an HTTPReader.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// NewHTTPReader builds a reader authenticated against cfg's OAuth2 token
// endpoint. The returned http.Client attaches a bearer token to every
// request and refreshes it transparently.
func NewHTTPReader(ctx context.Context, cfg Config) *HTTPReader {
	ccConfig := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	return &HTTPReader{
		baseURL: cfg.BaseURL,
		client:  ccConfig.Client(ctx),
	}
}

func (r *HTTPReader) GetPagesForSite(ctx context.Context, siteURL string) ([]CachedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/pages", nil)
	if err != nil {
		return nil, fmt.Errorf("extraction: build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("site_url", siteURL)
	req.URL.RawQuery = q.Encode()

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction: request pages for %q: %w", siteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction: reader returned status %d for %q", resp.StatusCode, siteURL)
	}

	var pages []CachedPage
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return nil, fmt.Errorf("extraction: decode pages for %q: %w", siteURL, err)
	}
	return pages, nil
}

// Package briefs implements phase 3, the Page Brief Extractor (spec §4.3):
// bounded concurrent LLM calls over crawled pages, content-addressed
// memoization, and per-page failure isolation.
package briefs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/extraction"
	"github.com/mntogether/curator/pkg/metrics"
)

const (
	defaultConcurrency  = 10
	defaultMaxContentBytes = 50_000
	defaultMinContentBytes = 100
)

// Config tunes the extractor per spec §6.3's brief.* keys.
type Config struct {
	Concurrency     int
	MaxContentBytes int
	MinContentBytes int
	CacheTTLDays    int
	Model           llm.ModelID
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     defaultConcurrency,
		MaxContentBytes: defaultMaxContentBytes,
		MinContentBytes: defaultMinContentBytes,
		CacheTTLDays:    30,
	}
}

var briefSchema = buildBriefSchema()

func buildBriefSchema() *openapi3.Schema {
	stringArray := openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	return openapi3.NewObjectSchema().
		WithProperty("source_url", openapi3.NewStringSchema()).
		WithProperty("summary", openapi3.NewStringSchema()).
		WithProperty("locations", stringArray).
		WithProperty("calls_to_action", stringArray).
		WithProperty("critical_info", openapi3.NewStringSchema().WithNullable()).
		WithProperty("services", stringArray).
		WithProperty("contacts", openapi3.NewArraySchema()).
		WithProperty("schedules", openapi3.NewArraySchema()).
		WithProperty("languages_mentioned", stringArray).
		WithProperty("populations_mentioned", stringArray).
		WithProperty("capacity_info", openapi3.NewStringSchema().WithNullable())
}

// Extractor is phase 3: it turns crawled pages into PageBriefs, using the
// cache to skip LLM calls for unchanged content.
type Extractor struct {
	client llm.Client
	cache  Cache
	cfg    Config
	log    logr.Logger
}

// New builds an Extractor.
func New(client llm.Client, cache Cache, cfg Config, log logr.Logger) *Extractor {
	return &Extractor{client: client, cache: cache, cfg: cfg, log: log}
}

// ExtractAll runs the bounded-fan-out extraction over every page, isolating
// per-page failures: a failed page is dropped and logged, other pages
// proceed (spec §4.3's failure policy).
func (e *Extractor) ExtractAll(ctx context.Context, pages []extraction.CachedPage) ([]domain.PageBrief, error) {
	sem := semaphore.NewWeighted(int64(e.concurrency()))
	results := make([]*domain.PageBrief, len(pages))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, page := range pages {
		i, page := i, page
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			brief, err := e.extractOne(groupCtx, page)
			if err != nil {
				// Per-page failure isolation: log and drop, never fail the phase.
				e.log.Error(err, "brief extraction failed for page", "url", page.URL)
				return nil
			}
			results[i] = &brief
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("briefs: extraction fan-out: %w", err)
	}

	out := make([]domain.PageBrief, 0, len(pages))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (e *Extractor) concurrency() int {
	if e.cfg.Concurrency > 0 {
		return e.cfg.Concurrency
	}
	return defaultConcurrency
}

func (e *Extractor) maxContentBytes() int {
	if e.cfg.MaxContentBytes > 0 {
		return e.cfg.MaxContentBytes
	}
	return defaultMaxContentBytes
}

func (e *Extractor) minContentBytes() int {
	if e.cfg.MinContentBytes > 0 {
		return e.cfg.MinContentBytes
	}
	return defaultMinContentBytes
}

func (e *Extractor) extractOne(ctx context.Context, page extraction.CachedPage) (domain.PageBrief, error) {
	if len(page.Content) < e.minContentBytes() {
		return domain.PageBrief{SourceURL: page.URL}, nil
	}

	content := page.Content
	if len(content) > e.maxContentBytes() {
		content = content[:e.maxContentBytes()]
	}

	key := MemoKey(llm.BriefExtractionSystemPrompt, string(e.cfg.Model), content)
	if cached, found, err := e.cache.Get(ctx, key); err == nil && found {
		var brief domain.PageBrief
		if err := json.Unmarshal(cached, &brief); err == nil {
			metrics.BriefCacheLookups.WithLabelValues("hit").Inc()
			brief.SourceURL = page.URL
			return brief, nil
		}
	}
	metrics.BriefCacheLookups.WithLabelValues("miss").Inc()

	prompt, err := llm.RenderBriefExtractionPrompt(page.URL, content)
	if err != nil {
		return domain.PageBrief{}, fmt.Errorf("briefs: render prompt: %w", err)
	}

	raw, err := e.client.Complete(ctx, llm.Request{
		Model:  e.cfg.Model,
		System: llm.BriefExtractionSystemPrompt,
		User:   prompt,
		Schema: briefSchema,
	})
	if err != nil {
		return domain.PageBrief{}, fmt.Errorf("briefs: complete for %q: %w", page.URL, err)
	}

	var brief domain.PageBrief
	if err := json.Unmarshal(raw, &brief); err != nil {
		return domain.PageBrief{}, fmt.Errorf("briefs: decode brief for %q: %w", page.URL, err)
	}
	brief.SourceURL = page.URL

	ttl := daysToDuration(e.cfg.CacheTTLDays)
	if cacheErr := e.cache.Put(ctx, key, raw, ttl); cacheErr != nil {
		e.log.Error(cacheErr, "failed to store brief in cache", "url", page.URL)
	}

	return brief, nil
}

// Package writer implements phase 5.5, the Writer (spec §4.6): a parallel,
// bounded-fan-out rewrite of each create_post/update_post action's copy,
// falling back to a smaller model on primary failure and keeping the
// reasoner's original draft text if both fail.
package writer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"

	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/curator/domain"
)

const (
	defaultConcurrency   = 10
	defaultExcerptBudget = 20_000
)

// Config tunes the writer.
type Config struct {
	Concurrency    int
	ExcerptBytes   int
	PrimaryModel   llm.ModelID
	FallbackModel  llm.ModelID
}

// DefaultConfig returns spec-documented defaults for everything but the
// models, which callers must set from pkg/curator's configuration.
func DefaultConfig() Config {
	return Config{Concurrency: defaultConcurrency, ExcerptBytes: defaultExcerptBudget}
}

var postCopySchema = openapi3.NewObjectSchema().
	WithProperty("title", openapi3.NewStringSchema()).
	WithProperty("summary", openapi3.NewStringSchema()).
	WithProperty("text", openapi3.NewStringSchema())

// Writer is phase 5.5.
type Writer struct {
	primary  llm.Client
	fallback llm.Client
	cfg      Config
	log      logr.Logger
}

// New builds a Writer. primary and fallback are both llm.Client values
// (each already wired to their own provider chain); fallback is used only
// when a call through primary returns an error.
func New(primary, fallback llm.Client, cfg Config, log logr.Logger) *Writer {
	return &Writer{primary: primary, fallback: fallback, cfg: cfg, log: log}
}

// RewriteTarget is one action whose copy the writer should rewrite.
type RewriteTarget struct {
	Action         domain.Action
	DraftTitle     string
	DraftText      string
	DocumentExcerpt string
	ExistingTitles []string
}

// Rewritten pairs an action with its (possibly unchanged) copy.
type Rewritten struct {
	Action domain.Action
	Copy   domain.PostCopy
}

func (w *Writer) concurrency() int {
	if w.cfg.Concurrency > 0 {
		return w.cfg.Concurrency
	}
	return defaultConcurrency
}

// RewriteAll dispatches one rewrite call per target with bounded fan-out.
// A target whose rewrite fails on both primary and fallback keeps its
// original draft copy — the action itself is never dropped (spec §4.6).
func (w *Writer) RewriteAll(ctx context.Context, targets []RewriteTarget) []Rewritten {
	sem := semaphore.NewWeighted(int64(w.concurrency()))
	out := make([]Rewritten, len(targets))

	done := make(chan struct{}, len(targets))
	for i, t := range targets {
		i, t := i, t
		go func() {
			defer func() { done <- struct{}{} }()
			if err := sem.Acquire(ctx, 1); err != nil {
				out[i] = Rewritten{Action: t.Action, Copy: originalCopy(t)}
				return
			}
			defer sem.Release(1)
			out[i] = w.rewriteOne(ctx, t)
		}()
	}
	for range targets {
		<-done
	}
	return out
}

func (w *Writer) rewriteOne(ctx context.Context, t RewriteTarget) Rewritten {
	prompt, err := llm.RenderWriterPrompt(t.DraftText, t.DocumentExcerpt, strings.Join(t.ExistingTitles, "; "))
	if err != nil {
		w.log.Error(err, "failed to render writer prompt, keeping original draft")
		return Rewritten{Action: t.Action, Copy: originalCopy(t)}
	}

	raw, err := w.primary.Complete(ctx, llm.Request{
		Model: w.cfg.PrimaryModel, System: llm.WriterSystemPrompt, User: prompt, Schema: postCopySchema,
	})
	if err != nil {
		raw, err = w.fallback.Complete(ctx, llm.Request{
			Model: w.cfg.FallbackModel, System: llm.WriterSystemPrompt, User: prompt, Schema: postCopySchema,
		})
	}
	if err != nil {
		w.log.Error(err, "writer rewrite failed on both models, keeping original draft")
		return Rewritten{Action: t.Action, Copy: originalCopy(t)}
	}

	var postCopy domain.PostCopy
	if err := json.Unmarshal(raw, &postCopy); err != nil {
		w.log.Error(err, "writer response undecodable, keeping original draft")
		return Rewritten{Action: t.Action, Copy: originalCopy(t)}
	}
	return Rewritten{Action: t.Action, Copy: postCopy}
}

func originalCopy(t RewriteTarget) domain.PostCopy {
	return domain.PostCopy{Title: t.DraftTitle, Text: t.DraftText}
}

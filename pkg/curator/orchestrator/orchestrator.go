// Package orchestrator implements the Curator Workflow (spec §4.2): the
// durable, nine-phase pipeline that turns an organization's crawled pages
// into a batch of sync proposals awaiting human review.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/mntogether/curator/internal/logging"
	"github.com/mntogether/curator/pkg/curator/briefs"
	"github.com/mntogether/curator/pkg/curator/document"
	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/curator/reasoner"
	"github.com/mntogether/curator/pkg/curator/safety"
	"github.com/mntogether/curator/pkg/curator/stager"
	"github.com/mntogether/curator/pkg/curator/workflow"
	"github.com/mntogether/curator/pkg/curator/writer"
	"github.com/mntogether/curator/pkg/extraction"
	"github.com/mntogether/curator/pkg/metrics"
)

// WorkflowKind identifies this workflow to the adapter's (kind, key) slots.
const WorkflowKind = "curator"

// Status is the terminal disposition of one curator run (spec §4.2's output).
type Status string

const (
	StatusSucceeded    Status = "succeeded"
	StatusNoSources    Status = "no_sources"
	StatusNoPages      Status = "no_pages"
	StatusFailedSafety Status = "failed_safety"
	StatusFailed       Status = "failed"
)

// Store is the database surface the orchestrator reads from and timestamps;
// it does not write draft entities or proposals — that is stager.Repository.
type Store interface {
	LoadOrganization(ctx context.Context, organizationID string) (domain.Organization, error)
	LoadSources(ctx context.Context, organizationID string) ([]domain.Source, error)
	LoadExistingPosts(ctx context.Context, organizationID string) ([]domain.Post, error)
	LoadActiveNotes(ctx context.Context, organizationID string) ([]domain.Note, error)
	TouchLastExtracted(ctx context.Context, organizationID string) error
}

// Config tunes the parts of orchestration that don't belong to any one
// sub-package.
type Config struct {
	DocumentBudget document.Config
	ExcerptBytes   int
}

const defaultExcerptBytes = 20_000

func (c Config) excerptBytes() int {
	if c.ExcerptBytes > 0 {
		return c.ExcerptBytes
	}
	return defaultExcerptBytes
}

// Orchestrator wires every curator sub-package into the nine durable phases.
type Orchestrator struct {
	journal workflow.Journal
	invoker workflow.Invoker

	reader    extraction.Reader
	extractor *briefs.Extractor
	reasoner  *reasoner.Reasoner
	writer    *writer.Writer
	safety    *safety.Reviewer
	stager    *stager.Stager
	store     Store

	cfg Config
	log logr.Logger
}

// New builds an Orchestrator from its fully-constructed collaborators.
func New(
	journal workflow.Journal,
	invoker workflow.Invoker,
	reader extraction.Reader,
	extractor *briefs.Extractor,
	reasonerSvc *reasoner.Reasoner,
	writerSvc *writer.Writer,
	safetySvc *safety.Reviewer,
	stagerSvc *stager.Stager,
	store Store,
	cfg Config,
	log logr.Logger,
) *Orchestrator {
	return &Orchestrator{
		journal: journal, invoker: invoker, reader: reader, extractor: extractor,
		reasoner: reasonerSvc, writer: writerSvc, safety: safetySvc, stager: stagerSvc,
		store: store, cfg: cfg, log: log,
	}
}

// Result is curate_org's return value (spec §6.2).
type Result struct {
	Status         Status
	ActionsCount   int
	ProposalsCount int
	BatchID        string
}

// sourcedPage tags a crawled page with the kind of source it came from, so
// phase 3 can extract website and social-media briefs separately.
type sourcedPage struct {
	extraction.CachedPage
	Kind string
}

// orgAndSources is phase 1's journaled output.
type orgAndSources struct {
	Organization domain.Organization
	Sources      []domain.Source
}

// extractedBriefs is phase 3's journaled output.
type extractedBriefs struct {
	Website []domain.PageBrief
	Social  []domain.PageBrief
}

// CurateOrg runs the full nine-phase pipeline for one organization. key lets
// callers force a fresh run (e.g. a time-suffixed manual re-curation
// trigger); most callers pass organizationID itself.
func (o *Orchestrator) CurateOrg(ctx context.Context, organizationID, key string) (Result, error) {
	run, err := workflow.Start(ctx, o.journal, o.invoker, o.log, WorkflowKind, key)
	if err != nil {
		return Result{}, err
	}

	result, err := o.run(ctx, run, organizationID)
	run.Finish(ctx, err)
	if err != nil {
		metrics.WorkflowOutcomes.WithLabelValues(string(StatusFailed)).Inc()
		return Result{Status: StatusFailed}, err
	}
	return result, nil
}

// withTiming records PhaseDuration around fn, which is expected to wrap a
// durable step call.
func withTiming[T any](phase string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	return result, err
}

func withTimingVoid(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) run(ctx context.Context, run *workflow.Run, organizationID string) (Result, error) {
	// Phase 1: load org + sources.
	_ = run.SetStatus(ctx, "loading organization and sources", "")
	orgSources, err := withTiming("load_org_and_sources", func() (orgAndSources, error) {
		return workflow.DurableStep(ctx, run, "load_org_and_sources", func(ctx context.Context) (orgAndSources, error) {
			org, err := o.store.LoadOrganization(ctx, organizationID)
			if err != nil {
				return orgAndSources{}, fmt.Errorf("load organization: %w", err)
			}
			sources, err := o.store.LoadSources(ctx, organizationID)
			if err != nil {
				return orgAndSources{}, fmt.Errorf("load sources: %w", err)
			}
			return orgAndSources{Organization: org, Sources: sources}, nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	if len(orgSources.Sources) == 0 {
		_ = run.SetStatus(ctx, string(StatusNoSources), "")
		metrics.WorkflowOutcomes.WithLabelValues(string(StatusNoSources)).Inc()
		o.log.Info("curator run ended with no sources", logging.CuratorFields("load_org_and_sources", organizationID).KVs()...)
		return Result{Status: StatusNoSources}, nil
	}

	// Phase 2: fetch pages.
	_ = run.SetStatus(ctx, "fetching crawled pages", "")
	pages, err := withTiming("fetch_pages", func() ([]sourcedPage, error) {
		return workflow.DurableStep(ctx, run, "fetch_pages", func(ctx context.Context) ([]sourcedPage, error) {
			var out []sourcedPage
			for _, src := range orgSources.Sources {
				got, err := o.reader.GetPagesForSite(ctx, src.URL)
				if err != nil {
					return nil, fmt.Errorf("fetch pages for %q: %w", src.URL, err)
				}
				for _, p := range got {
					out = append(out, sourcedPage{CachedPage: p, Kind: src.Kind})
				}
			}
			return out, nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	if len(pages) == 0 {
		_ = run.SetStatus(ctx, string(StatusNoPages), "")
		metrics.WorkflowOutcomes.WithLabelValues(string(StatusNoPages)).Inc()
		o.log.Info("curator run ended with no pages", logging.CuratorFields("fetch_pages", organizationID).KVs()...)
		return Result{Status: StatusNoPages}, nil
	}

	// Phase 3: extract briefs.
	_ = run.SetStatus(ctx, "extracting page briefs", "")
	extracted, err := withTiming("extract_briefs", func() (extractedBriefs, error) {
		return workflow.DurableStep(ctx, run, "extract_briefs", func(ctx context.Context) (extractedBriefs, error) {
			var website, social []extraction.CachedPage
			for _, p := range pages {
				if p.Kind == "social" {
					social = append(social, p.CachedPage)
				} else {
					website = append(website, p.CachedPage)
				}
			}
			websiteBriefs, err := o.extractor.ExtractAll(ctx, website)
			if err != nil {
				return extractedBriefs{}, fmt.Errorf("extract website briefs: %w", err)
			}
			socialBriefs, err := o.extractor.ExtractAll(ctx, social)
			if err != nil {
				return extractedBriefs{}, fmt.Errorf("extract social briefs: %w", err)
			}
			return extractedBriefs{Website: websiteBriefs, Social: socialBriefs}, nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	allBriefs := append(append([]domain.PageBrief{}, extracted.Website...), extracted.Social...)

	existingPosts, err := o.store.LoadExistingPosts(ctx, organizationID)
	if err != nil {
		return Result{}, fmt.Errorf("load existing posts: %w", err)
	}
	activeNotes, err := o.store.LoadActiveNotes(ctx, organizationID)
	if err != nil {
		return Result{}, fmt.Errorf("load active notes: %w", err)
	}

	// Phase 4: compile document.
	_ = run.SetStatus(ctx, "compiling document", "")
	doc, err := withTiming("compile_document", func() (string, error) {
		return workflow.DurableStep(ctx, run, "compile_document", func(ctx context.Context) (string, error) {
			return document.Compile(o.cfg.DocumentBudget, document.Input{
				Organization:  orgSources.Organization,
				WebsiteBriefs: extracted.Website,
				SocialBriefs:  extracted.Social,
				ExistingPosts: existingPosts,
				ActiveNotes:   activeNotes,
			}), nil
		})
	})
	if err != nil {
		return Result{}, err
	}

	// Phase 5: curate.
	_ = run.SetStatus(ctx, "reasoning over document", "")
	briefSourceURLs := make(map[string]bool, len(allBriefs))
	for _, b := range allBriefs {
		if b.SourceURL != "" {
			briefSourceURLs[b.SourceURL] = true
		}
	}
	actions, err := withTiming("reason", func() ([]domain.Action, error) {
		return workflow.DurableStep(ctx, run, "reason", func(ctx context.Context) ([]domain.Action, error) {
			return o.reasoner.Reason(ctx, doc, briefSourceURLs)
		})
	})
	if err != nil {
		return Result{}, err
	}

	rewritable, others := splitRewritable(actions)

	// Phase 6: rewrite copy.
	_ = run.SetStatus(ctx, "rewriting post copy", "")
	rewritten, err := withTiming("rewrite", func() ([]writer.Rewritten, error) {
		return workflow.DurableStep(ctx, run, "rewrite", func(ctx context.Context) ([]writer.Rewritten, error) {
			targets := buildRewriteTargets(rewritable, allBriefs, existingPosts, doc, o.cfg.excerptBytes())
			return o.writer.RewriteAll(ctx, targets), nil
		})
	})
	if err != nil {
		return Result{}, err
	}
	rewrittenActions := applyRewrites(rewritten)

	// Phase 7: safety review.
	_ = run.SetStatus(ctx, "safety review", "")
	outcomes, err := withTiming("safety_review", func() ([]safety.Outcome, error) {
		return workflow.DurableStep(ctx, run, "safety_review", func(ctx context.Context) ([]safety.Outcome, error) {
			reviewables := buildReviewables(rewrittenActions, allBriefs, o.cfg.excerptBytes())
			return o.safety.Review(ctx, reviewables)
		})
	})
	if err != nil {
		return Result{}, err
	}

	var finalActions []domain.Action
	for _, outcome := range outcomes {
		if outcome.Verdict == domain.SafetyVerdictBlocked {
			continue
		}
		action := outcome.Action
		if outcome.PatchedDescription != nil {
			action = applyPatchedDescription(action, *outcome.PatchedDescription)
		}
		finalActions = append(finalActions, action)
	}
	finalActions = append(finalActions, others...)

	if len(finalActions) == 0 {
		_ = run.SetStatus(ctx, string(StatusFailedSafety), "")
		metrics.WorkflowOutcomes.WithLabelValues(string(StatusFailedSafety)).Inc()
		o.log.Info("curator run ended with every action blocked by safety review",
			logging.CuratorFields("safety_review", organizationID).Count(len(actions)).KVs()...)
		return Result{Status: StatusFailedSafety, ActionsCount: len(actions)}, nil
	}

	// Phase 8: stage.
	_ = run.SetStatus(ctx, "staging proposals", "")
	summary := fmt.Sprintf("Curator run for %s: %d actions", orgSources.Organization.Name, len(finalActions))
	stageResult, err := withTiming("stage", func() (stager.Result, error) {
		return workflow.DurableStep(ctx, run, "stage", func(ctx context.Context) (stager.Result, error) {
			return o.stager.Stage(ctx, organizationID, summary, finalActions)
		})
	})
	if err != nil {
		return Result{}, err
	}

	// Phase 9: timestamp.
	_ = run.SetStatus(ctx, "timestamping organization", "")
	if err := withTimingVoid("timestamp", func() error {
		return workflow.DurableStepVoid(ctx, run, "timestamp", func(ctx context.Context) error {
			return o.store.TouchLastExtracted(ctx, organizationID)
		})
	}); err != nil {
		return Result{}, err
	}

	_ = run.SetStatus(ctx, string(StatusSucceeded), "")
	metrics.WorkflowOutcomes.WithLabelValues(string(StatusSucceeded)).Inc()
	o.log.Info("curator run succeeded",
		logging.CuratorFields("stage", organizationID).Count(stageResult.ProposalsCount).KVs()...)
	return Result{
		Status:         StatusSucceeded,
		ActionsCount:   len(actions),
		ProposalsCount: stageResult.ProposalsCount,
		BatchID:        stageResult.BatchID,
	}, nil
}

func splitRewritable(actions []domain.Action) (rewritable, others []domain.Action) {
	for _, a := range actions {
		if a.Kind == domain.ActionCreatePost || a.Kind == domain.ActionUpdatePost {
			rewritable = append(rewritable, a)
		} else {
			others = append(others, a)
		}
	}
	return rewritable, others
}

func buildRewriteTargets(actions []domain.Action, allBriefs []domain.PageBrief, existingPosts []domain.Post, doc string, excerptBytes int) []writer.RewriteTarget {
	existingTitles := make([]string, len(existingPosts))
	for i, p := range existingPosts {
		existingTitles[i] = p.Title
	}

	targets := make([]writer.RewriteTarget, len(actions))
	for i, a := range actions {
		var title, text string
		var sourceURLs []string
		switch a.Kind {
		case domain.ActionCreatePost:
			title, text, sourceURLs = a.CreatePost.Title, a.CreatePost.Description, a.CreatePost.SourceURLs
		case domain.ActionUpdatePost:
			if a.UpdatePost.Title != nil {
				title = *a.UpdatePost.Title
			}
			if a.UpdatePost.Description != nil {
				text = *a.UpdatePost.Description
			}
			sourceURLs = a.UpdatePost.SourceURLs
		}
		targets[i] = writer.RewriteTarget{
			Action: a, DraftTitle: title, DraftText: text,
			DocumentExcerpt: excerptFor(allBriefs, sourceURLs, doc, excerptBytes),
			ExistingTitles:  existingTitles,
		}
	}
	return targets
}

// excerptFor biases toward the brief sections that supplied sourceURLs,
// falling back to a leading slice of the full document when nothing
// matches (spec §4.6: "biased toward briefs that supplied this post's
// source_urls").
func excerptFor(allBriefs []domain.PageBrief, sourceURLs []string, doc string, budget int) string {
	wanted := make(map[string]bool, len(sourceURLs))
	for _, u := range sourceURLs {
		wanted[u] = true
	}

	var sb strings.Builder
	for _, b := range allBriefs {
		if !wanted[b.SourceURL] || b.IsEmpty() {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", b.SourceURL, b.Summary)
		if sb.Len() >= budget {
			break
		}
	}
	if sb.Len() > 0 {
		excerpt := sb.String()
		if len(excerpt) > budget {
			excerpt = excerpt[:budget]
		}
		return excerpt
	}

	if len(doc) > budget {
		return doc[:budget]
	}
	return doc
}

func applyRewrites(rewritten []writer.Rewritten) []domain.Action {
	out := make([]domain.Action, len(rewritten))
	for i, r := range rewritten {
		out[i] = applyCopy(r.Action, r.Copy)
	}
	return out
}

func applyCopy(a domain.Action, copy domain.PostCopy) domain.Action {
	switch a.Kind {
	case domain.ActionCreatePost:
		cp := *a.CreatePost
		if copy.Title != "" {
			cp.Title = copy.Title
		}
		if copy.Text != "" {
			cp.Description = copy.Text
		}
		a.CreatePost = &cp
	case domain.ActionUpdatePost:
		up := *a.UpdatePost
		if copy.Title != "" {
			up.Title = &copy.Title
		}
		if copy.Text != "" {
			up.Description = &copy.Text
		}
		a.UpdatePost = &up
	}
	return a
}

func applyPatchedDescription(a domain.Action, patched string) domain.Action {
	switch a.Kind {
	case domain.ActionCreatePost:
		cp := *a.CreatePost
		cp.Description = patched
		a.CreatePost = &cp
	case domain.ActionUpdatePost:
		up := *a.UpdatePost
		up.Description = &patched
		a.UpdatePost = &up
	}
	return a
}

func buildReviewables(actions []domain.Action, allBriefs []domain.PageBrief, excerptBytes int) []safety.Reviewable {
	reviewables := make([]safety.Reviewable, len(actions))
	for i, a := range actions {
		reviewables[i] = safety.Reviewable{
			Action:         a,
			MatchingBriefs: excerptFor(allBriefs, a.EvidencedSourceURLs(), "", excerptBytes),
		}
	}
	return reviewables
}

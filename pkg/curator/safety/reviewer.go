// Package safety implements phase 5.7, the Safety Reviewer (spec §4.7): an
// iterative review loop over every create_post/update_post action, capped
// at 3 iterations, that either clears an action, patches it, or blocks it.
package safety

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"

	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/metrics"
)

const defaultMaxIterations = 3

// Config tunes the reviewer per spec §6.3's safety.max_iterations.
type Config struct {
	MaxIterations int
	Model         llm.ModelID
}

// DefaultConfig returns the spec's documented default iteration cap.
func DefaultConfig() Config {
	return Config{MaxIterations: defaultMaxIterations}
}

var verdictSchema = openapi3.NewObjectSchema().
	WithProperty("kind", openapi3.NewStringSchema().WithEnum("safe", "fix", "blocked")).
	WithProperty("issues", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
	WithProperty("patched_description", openapi3.NewStringSchema().WithNullable())

type wireVerdict struct {
	Kind               string   `json:"kind"`
	Issues             []string `json:"issues,omitempty"`
	PatchedDescription *string  `json:"patched_description,omitempty"`
}

// Reviewable is one action plus the evidence the reviewer checks it
// against; only create_post and update_post actions are reviewed (spec
// §4.7's responsibility statement).
type Reviewable struct {
	Action         domain.Action
	MatchingBriefs string
}

// Outcome is one action's final disposition after the loop converges or
// exhausts its iteration budget.
type Outcome struct {
	Action  domain.Action
	Verdict domain.SafetyVerdictKind
	// PatchedDescription is set when a fix verdict was applied before the
	// action reached safe.
	PatchedDescription *string
}

// Reviewer runs phase 5.7.
type Reviewer struct {
	client llm.Client
	cfg    Config
	log    logr.Logger
}

// New builds a Reviewer.
func New(client llm.Client, cfg Config, log logr.Logger) *Reviewer {
	return &Reviewer{client: client, cfg: cfg, log: log}
}

func (r *Reviewer) maxIterations() int {
	if r.cfg.MaxIterations > 0 {
		return r.cfg.MaxIterations
	}
	return defaultMaxIterations
}

// Review runs the loop to convergence or exhaustion. Only actions reaching
// verdict safe or fixed (a fix that was subsequently judged safe) proceed;
// blocked actions are returned with Verdict == blocked so the caller can
// drop them per the safety-pass invariant (spec §3.4.6).
func (r *Reviewer) Review(ctx context.Context, reviewables []Reviewable) ([]Outcome, error) {
	type pending struct {
		item        Reviewable
		issues      []string
		fixAttempts int
		patched     *string
	}

	unreviewed := make([]pending, len(reviewables))
	for i, item := range reviewables {
		unreviewed[i] = pending{item: item}
	}

	var finalized []Outcome

	for attempt := 0; attempt < r.maxIterations() && len(unreviewed) > 0; attempt++ {
		var next []pending
		anyFix := false

		for _, p := range unreviewed {
			verdict, err := r.callOne(ctx, p.item, p.issues)
			if err != nil {
				r.log.Error(err, "safety review call failed, blocking action")
				finalized = append(finalized, Outcome{Action: p.item.Action, Verdict: domain.SafetyVerdictBlocked})
				continue
			}
			metrics.SafetyVerdicts.WithLabelValues(verdict.Kind).Inc()

			switch verdict.Kind {
			case string(domain.SafetyVerdictSafe):
				finalized = append(finalized, Outcome{Action: p.item.Action, Verdict: domain.SafetyVerdictSafe, PatchedDescription: p.patched})

			case string(domain.SafetyVerdictFix):
				anyFix = true
				p.fixAttempts++
				p.issues = verdict.Issues
				if verdict.PatchedDescription != nil {
					p.patched = verdict.PatchedDescription
				}
				if p.fixAttempts >= r.maxIterations() {
					r.log.Info("action blocked after repeated fix verdicts without convergence")
					finalized = append(finalized, Outcome{Action: p.item.Action, Verdict: domain.SafetyVerdictBlocked})
					continue
				}
				next = append(next, p)

			default: // blocked
				finalized = append(finalized, Outcome{Action: p.item.Action, Verdict: domain.SafetyVerdictBlocked})
			}
		}

		unreviewed = next
		if !anyFix {
			break
		}
	}

	// Anything still unreviewed after the loop exits (iteration cap hit
	// with fix verdicts still pending) is blocked rather than silently
	// staged unreviewed.
	for _, p := range unreviewed {
		finalized = append(finalized, Outcome{Action: p.item.Action, Verdict: domain.SafetyVerdictBlocked})
	}

	return finalized, nil
}

func (r *Reviewer) callOne(ctx context.Context, item Reviewable, priorIssues []string) (wireVerdict, error) {
	priorText := ""
	if len(priorIssues) > 0 {
		raw, _ := json.Marshal(priorIssues)
		priorText = string(raw)
	}

	actionJSON, err := json.Marshal(item.Action)
	if err != nil {
		return wireVerdict{}, fmt.Errorf("encode action: %w", err)
	}

	prompt, err := llm.RenderSafetyReviewPrompt(string(actionJSON)+"\n\nMatching briefs:\n"+item.MatchingBriefs, priorText)
	if err != nil {
		return wireVerdict{}, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := r.client.Complete(ctx, llm.Request{
		Model: r.cfg.Model, System: llm.SafetyReviewSystemPrompt, User: prompt, Schema: verdictSchema,
	})
	if err != nil {
		return wireVerdict{}, err
	}

	var v wireVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return wireVerdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	return v, nil
}

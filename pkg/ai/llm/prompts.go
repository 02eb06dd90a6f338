package llm

import "github.com/tmc/langchaingo/prompts"

// Prompt templates for the curator's five LLM interaction styles. Each is a
// langchaingo PromptTemplate so the call sites in pkg/curator/* stay
// declarative about what varies per call (the page content, the compiled
// document, the draft payload) versus what is fixed prose.

// BriefExtractionSystemPrompt instructs the model to separate eligibility
// restrictions by audience and activity (spec §4.3's prompt contract) — a
// lumped restriction is a correctness bug the safety reviewer catches later,
// so the extraction prompt is the cheapest place to prevent it.
const BriefExtractionSystemPrompt = `You are extracting a structured brief from a single crawled web page belonging ` +
	`to a community organization. Separate eligibility restrictions by audience and by activity: never merge ` +
	`"volunteers must be 18+" with "clients must show proof of residency" into one restriction. Extract only what ` +
	`the page states; do not infer services the organization doesn't mention.`

var briefExtractionTemplate = prompts.NewPromptTemplate(
	"Page URL: {{.source_url}}\n\nPage content:\n{{.content}}\n\n"+
		"Produce a PageBrief as JSON matching the provided schema.",
	[]string{"source_url", "content"},
)

// RenderBriefExtractionPrompt fills the map-extraction template for one page.
func RenderBriefExtractionPrompt(sourceURL, content string) (string, error) {
	return briefExtractionTemplate.Format(map[string]any{
		"source_url": sourceURL,
		"content":    content,
	})
}

// ReasonerSystemPrompt encodes the curator's reduce-step reasoning rules
// (spec §4.5): evidence precedence, one-post-per-audience, update-over-create
// preference, and archive-on-paused.
const ReasonerSystemPrompt = `You curate a civic resource directory. Given a compiled organization document with ` +
	`annotated existing posts ([POST-{uuid}]) and notes ([NOTE-{uuid}]), propose the minimal set of actions that ` +
	`bring the directory in line with the evidence.

Rules:
- Social-media evidence overrides website evidence when they disagree on current status.
- One post equals one action for one audience; a volunteer invitation and a client intake are separate posts.
- Before create_post, check for an existing post with the same intent; prefer update_post.
- Never create_post for a paused or closed service; propose archive_post on the existing post instead.
- Distinguish by giving direction: an offer and a request in the same category are different posts.

Every action except merge_posts must cite at least one source_url present in the input briefs. Reference ` +
	`only [POST-{uuid}] handles that appear in the document.`

var reasonerTemplate = prompts.NewPromptTemplate(
	"{{.document}}\n\nEmit a JSON action list matching the provided schema.",
	[]string{"document"},
)

// RenderReasonerPrompt fills the reduce-step template with the compiled document.
func RenderReasonerPrompt(document string) (string, error) {
	return reasonerTemplate.Format(map[string]any{"document": document})
}

// WriterSystemPrompt instructs the parallel rewrite step to sound natural
// and avoid duplicating angles already live in the feed (spec §4.6).
const WriterSystemPrompt = `Rewrite the given post draft into natural, human-sounding copy. Avoid sounding like a ` +
	`press release. Do not duplicate the angle of any title listed as already present in the feed. Output must match ` +
	`the PostCopy schema exactly: a 5-10 word title, a summary of at most 250 characters, and 150-300 words of ` +
	`markdown body text.`

var writerTemplate = prompts.NewPromptTemplate(
	"Draft:\n{{.draft}}\n\nRelevant excerpt of the organization document:\n{{.excerpt}}\n\n"+
		"Titles already live in the feed (avoid duplicating their angle):\n{{.existing_titles}}\n\n"+
		"Produce PostCopy as JSON.",
	[]string{"draft", "excerpt", "existing_titles"},
)

// RenderWriterPrompt fills the parallel-rewrite template for one action.
func RenderWriterPrompt(draft, excerpt, existingTitles string) (string, error) {
	return writerTemplate.Format(map[string]any{
		"draft":           draft,
		"excerpt":         excerpt,
		"existing_titles": existingTitles,
	})
}

// SafetyReviewSystemPrompt drives the iterative review loop (spec §4.7):
// each call either clears the action, asks for a specific fix, or blocks it.
const SafetyReviewSystemPrompt = `Review a proposed directory action for factual safety: no fabricated contact ` +
	`details, no medical or legal advice stated as fact, no eligibility claims unsupported by the source evidence, ` +
	`no contradiction with the organization's other active posts. Respond with verdict "safe" if it passes ` +
	`unchanged, "fix" with the specific issues to address if a revision would pass, or "blocked" if no revision ` +
	`would make it safe to publish.`

var safetyReviewTemplate = prompts.NewPromptTemplate(
	"Action under review:\n{{.action}}\n\nPrior iteration issues (empty on first pass):\n{{.prior_issues}}\n\n"+
		"Produce a SafetyVerdict as JSON.",
	[]string{"action", "prior_issues"},
)

// RenderSafetyReviewPrompt fills the iterative-review template for one
// iteration over one action.
func RenderSafetyReviewPrompt(action, priorIssues string) (string, error) {
	return safetyReviewTemplate.Format(map[string]any{
		"action":       action,
		"prior_issues": priorIssues,
	})
}

// RefinementSystemPrompt drives the single-shot refinement of a staged
// proposal in response to an admin comment (spec §4.9).
const RefinementSystemPrompt = `An administrator has commented on a pending directory proposal. Revise the draft ` +
	`to address the comment while preserving every claim still supported by the original source evidence. Do not ` +
	`introduce claims the comment and evidence do not support.`

var refinementTemplate = prompts.NewPromptTemplate(
	"Current draft:\n{{.draft}}\n\nAdmin comment:\n{{.comment}}\n\nProduce the revised draft as JSON.",
	[]string{"draft", "comment"},
)

// RenderRefinementPrompt fills the single-shot refinement template.
func RenderRefinementPrompt(draft, comment string) (string, error) {
	return refinementTemplate.Format(map[string]any{
		"draft":   draft,
		"comment": comment,
	})
}

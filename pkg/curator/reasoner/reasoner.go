// Package reasoner implements phase 5, the Curator Reasoner (spec §4.5): a
// single LLM call over the compiled document producing a structurally
// validated list of actions.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-logr/logr"

	"github.com/mntogether/curator/pkg/ai/llm"
	"github.com/mntogether/curator/pkg/curator/domain"
)

var postHandlePattern = regexp.MustCompile(`\[POST-([a-zA-Z0-9-]+)\]`)

// wireAction is the shape the model is asked to emit; every field needed by
// any of the six action kinds is present and optional, then routed into the
// typed domain.Action by kind.
type wireAction struct {
	Kind             string               `json:"kind"`
	TargetPostID     string               `json:"target_post_id,omitempty"`
	DuplicatePostIDs []string             `json:"duplicate_post_ids,omitempty"`
	Title            string               `json:"title,omitempty"`
	Description      string               `json:"description,omitempty"`
	Type             string               `json:"type,omitempty"`
	Category         string               `json:"category,omitempty"`
	Urgency          string               `json:"urgency,omitempty"`
	Content          string               `json:"content,omitempty"`
	Severity         string               `json:"severity,omitempty"`
	Contacts         []domain.Contact     `json:"contacts,omitempty"`
	Schedules        []domain.ScheduleEntry `json:"schedules,omitempty"`
	Tags             []domain.Tag         `json:"tags,omitempty"`
	Locations        []domain.Location    `json:"locations,omitempty"`
	SourceURLs       []string             `json:"source_urls,omitempty"`
	ConflictingSourceURLs []string        `json:"conflicting_source_urls,omitempty"`
	Rationale        string               `json:"rationale,omitempty"`
}

var wireActionListSchema = buildSchema()

func buildSchema() *openapi3.Schema {
	action := openapi3.NewObjectSchema().
		WithProperty("kind", openapi3.NewStringSchema().WithEnum(
			string(domain.ActionCreatePost), string(domain.ActionUpdatePost), string(domain.ActionAddNote),
			string(domain.ActionMergePosts), string(domain.ActionArchivePost), string(domain.ActionFlagContradiction),
		))
	return openapi3.NewObjectSchema().
		WithProperty("actions", openapi3.NewArraySchema().WithItems(action))
}

type wireResponse struct {
	Actions []wireAction `json:"actions"`
}

// Reasoner runs phase 5.
type Reasoner struct {
	client llm.Client
	model  llm.ModelID
	log    logr.Logger
}

// New builds a Reasoner that calls model for every Reason invocation.
func New(client llm.Client, model llm.ModelID, log logr.Logger) *Reasoner {
	return &Reasoner{client: client, model: model, log: log}
}

// Reason sends the compiled document to the model and returns the
// structurally validated action list. document and briefSourceURLs are the
// phase-4 outputs; briefSourceURLs is the set a non-merge action's
// source_url evidence must intersect.
//
// On an unparseable response, Reason retries once with a stricter
// instruction appended to the system prompt; a second failure is returned
// to the caller, which per spec §4.5 must fail the workflow.
func (r *Reasoner) Reason(ctx context.Context, document string, briefSourceURLs map[string]bool) ([]domain.Action, error) {
	prompt, err := llm.RenderReasonerPrompt(document)
	if err != nil {
		return nil, fmt.Errorf("reasoner: render prompt: %w", err)
	}

	resp, err := r.call(ctx, prompt, llm.ReasonerSystemPrompt)
	if err != nil {
		resp, err = r.call(ctx, prompt, llm.ReasonerSystemPrompt+"\n\nYour previous response could not be parsed. Respond with ONLY a JSON object of the form {\"actions\": [...]}.")
		if err != nil {
			return nil, fmt.Errorf("reasoner: unparseable output after retry: %w", err)
		}
	}

	knownPostIDs := extractPostHandles(document)
	return validateActions(resp.Actions, knownPostIDs, briefSourceURLs, r.log), nil
}

func (r *Reasoner) call(ctx context.Context, user, system string) (wireResponse, error) {
	raw, err := r.client.Complete(ctx, llm.Request{
		Model:  r.model,
		System: system,
		User:   user,
		Schema: wireActionListSchema,
	})
	if err != nil {
		return wireResponse{}, err
	}
	var resp wireResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return wireResponse{}, fmt.Errorf("decode action list: %w", err)
	}
	return resp, nil
}

func extractPostHandles(document string) map[string]bool {
	ids := map[string]bool{}
	for _, match := range postHandlePattern.FindAllStringSubmatch(document, -1) {
		ids[match[1]] = true
	}
	return ids
}

func validateActions(wireActions []wireAction, knownPostIDs map[string]bool, briefSourceURLs map[string]bool, log logr.Logger) []domain.Action {
	var out []domain.Action
	for _, wa := range wireActions {
		action, ok := toDomainAction(wa, knownPostIDs, log)
		if !ok {
			continue
		}
		if !hasRequiredEvidence(action, briefSourceURLs) {
			log.Info("dropping action with no evidenced source_url", "kind", action.Kind)
			continue
		}
		out = append(out, action)
	}
	return out
}

func hasRequiredEvidence(action domain.Action, briefSourceURLs map[string]bool) bool {
	if action.Kind == domain.ActionMergePosts {
		return true
	}
	urls := action.EvidencedSourceURLs()
	if len(urls) == 0 {
		return false
	}
	for _, u := range urls {
		if briefSourceURLs[u] {
			return true
		}
	}
	return false
}

func toDomainAction(wa wireAction, knownPostIDs map[string]bool, log logr.Logger) (domain.Action, bool) {
	switch domain.ActionKind(wa.Kind) {
	case domain.ActionCreatePost:
		return domain.Action{
			Kind: domain.ActionCreatePost,
			CreatePost: &domain.CreatePostAction{
				Title: wa.Title, Description: wa.Description, Type: wa.Type, Category: wa.Category,
				Urgency: wa.Urgency, Contacts: wa.Contacts, Schedules: wa.Schedules, Tags: wa.Tags,
				Locations: wa.Locations, SourceURLs: wa.SourceURLs, Rationale: wa.Rationale,
			},
		}, true

	case domain.ActionUpdatePost:
		if !knownPostIDs[wa.TargetPostID] {
			log.Info("dropping update_post referencing unknown POST handle", "target_post_id", wa.TargetPostID)
			return domain.Action{}, false
		}
		title, desc := wa.Title, wa.Description
		return domain.Action{
			Kind: domain.ActionUpdatePost,
			UpdatePost: &domain.UpdatePostAction{
				TargetPostID: wa.TargetPostID, Title: optionalString(title), Description: optionalString(desc),
				Contacts: wa.Contacts, Schedules: wa.Schedules, Tags: wa.Tags, Locations: wa.Locations,
				SourceURLs: wa.SourceURLs, Rationale: wa.Rationale,
			},
		}, true

	case domain.ActionAddNote:
		var target *string
		if wa.TargetPostID != "" {
			if !knownPostIDs[wa.TargetPostID] {
				log.Info("dropping add_note referencing unknown POST handle", "target_post_id", wa.TargetPostID)
				return domain.Action{}, false
			}
			target = &wa.TargetPostID
		}
		return domain.Action{
			Kind: domain.ActionAddNote,
			AddNote: &domain.AddNoteAction{
				TargetPostID: target, Content: wa.Content, Severity: domain.NoteSeverity(wa.Severity),
				SourceURLs: wa.SourceURLs,
			},
		}, true

	case domain.ActionMergePosts:
		if !knownPostIDs[wa.TargetPostID] {
			log.Info("dropping merge_posts referencing unknown POST handle", "target_post_id", wa.TargetPostID)
			return domain.Action{}, false
		}
		var duplicates []string
		for _, id := range wa.DuplicatePostIDs {
			if knownPostIDs[id] {
				duplicates = append(duplicates, id)
			} else {
				log.Info("dropping unknown duplicate POST handle from merge_posts", "duplicate_post_id", id)
			}
		}
		if len(duplicates) == 0 {
			return domain.Action{}, false
		}
		return domain.Action{
			Kind: domain.ActionMergePosts,
			MergePosts: &domain.MergePostsAction{
				TargetPostID: wa.TargetPostID, DuplicatePostIDs: duplicates, Rationale: wa.Rationale,
			},
		}, true

	case domain.ActionArchivePost:
		if !knownPostIDs[wa.TargetPostID] {
			log.Info("dropping archive_post referencing unknown POST handle", "target_post_id", wa.TargetPostID)
			return domain.Action{}, false
		}
		return domain.Action{
			Kind: domain.ActionArchivePost,
			ArchivePost: &domain.ArchivePostAction{
				TargetPostID: wa.TargetPostID, Rationale: wa.Rationale, SourceURLs: wa.SourceURLs,
			},
		}, true

	case domain.ActionFlagContradiction:
		var target *string
		if wa.TargetPostID != "" {
			if !knownPostIDs[wa.TargetPostID] {
				log.Info("dropping flag_contradiction referencing unknown POST handle", "target_post_id", wa.TargetPostID)
				return domain.Action{}, false
			}
			target = &wa.TargetPostID
		}
		return domain.Action{
			Kind: domain.ActionFlagContradiction,
			FlagContradiction: &domain.FlagContradictionAction{
				TargetPostID: target, Content: wa.Content, ConflictingSourceURLs: wa.ConflictingSourceURLs,
			},
		}, true

	default:
		log.Info("dropping action with unknown variant tag", "kind", wa.Kind)
		return domain.Action{}, false
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package refinement implements the Refinement Workflow (spec §4.9): an
// independent workflow triggered by an admin comment on a pending proposal,
// revising its draft entity in place.
package refinement

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

var revisionSchema = openapi3.NewObjectSchema().
	WithProperty("title", openapi3.NewStringSchema()).
	WithProperty("summary", openapi3.NewStringSchema()).
	WithProperty("text", openapi3.NewStringSchema()).
	WithProperty("content", openapi3.NewStringSchema()).
	WithProperty("contradiction_note", openapi3.NewStringSchema())

// Comment is one entry in a proposal's review thread.
type Comment struct {
	ID        string
	ProposalID string
	Author    string // admin display name, or "curator" for system-authored replies
	Body      string
}

// DraftEntity is the minimal view of a draft post or note the refiner
// revises; exactly one of PostTitle/PostSummary/PostText or NoteContent is
// populated, matching the proposal's target type.
type DraftEntity struct {
	TargetType  domain.ProposalTargetType
	PostTitle   string
	PostSummary string
	PostText    string
	NoteContent string
}

// Store is the persistence surface the refiner needs; cmd/curator-service
// supplies the repository-backed implementation (repository.RefinementStore)
// behind pkg/httpapi's refine_proposal handler.
type Store interface {
	LoadProposal(ctx context.Context, proposalID string) (domain.SyncProposal, error)
	LoadCommentHistory(ctx context.Context, proposalID string) ([]Comment, error)
	LoadDraftEntity(ctx context.Context, proposal domain.SyncProposal) (DraftEntity, error)
	UpdateDraftEntity(ctx context.Context, proposal domain.SyncProposal, revised DraftEntity) error
	IncrementRevisionCount(ctx context.Context, proposalID string) error
	AppendComment(ctx context.Context, comment Comment) error
}

type wireRevision struct {
	Title       string `json:"title,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Text        string `json:"text,omitempty"`
	Content     string `json:"content,omitempty"`
	Contradiction string `json:"contradiction_note,omitempty"`
}

// Refiner runs the refinement workflow.
type Refiner struct {
	store  Store
	client llm.Client
	model  llm.ModelID
	log    logr.Logger
}

// New builds a Refiner.
func New(store Store, client llm.Client, model llm.ModelID, log logr.Logger) *Refiner {
	return &Refiner{store: store, client: client, model: model, log: log}
}

// Result reports what the refine_proposal call produced (spec §6.2).
type Result struct {
	RevisionCount int
	DraftUpdated  bool
}

// Refine runs the algorithm in spec §4.9: past the revision cap, the
// comment is recorded but no LLM work occurs; within the cap, a single
// call revises the draft, the revision count increments, and a
// system-authored reply comment is appended.
func (r *Refiner) Refine(ctx context.Context, proposalID, commentID string) (Result, error) {
	proposal, err := r.store.LoadProposal(ctx, proposalID)
	if err != nil {
		return Result{}, fmt.Errorf("refinement: load proposal: %w", err)
	}

	if !proposal.CanRevise() {
		r.log.Info("revision cap reached, recording comment without LLM work", "proposal_id", proposalID, "revision_count", proposal.RevisionCount)
		metrics.RefinementRevisions.WithLabelValues("false").Inc()
		return Result{RevisionCount: proposal.RevisionCount, DraftUpdated: false}, nil
	}

	history, err := r.store.LoadCommentHistory(ctx, proposalID)
	if err != nil {
		return Result{}, fmt.Errorf("refinement: load comment history: %w", err)
	}
	latest := findComment(history, commentID)
	if latest == nil {
		return Result{}, fmt.Errorf("refinement: comment %q not found in history", commentID)
	}

	draft, err := r.store.LoadDraftEntity(ctx, proposal)
	if err != nil {
		return Result{}, fmt.Errorf("refinement: load draft entity: %w", err)
	}

	revised, replyBody, err := r.reviseDraft(ctx, draft, latest.Body)
	if err != nil {
		return Result{}, fmt.Errorf("refinement: revise draft: %w", err)
	}

	if err := r.store.UpdateDraftEntity(ctx, proposal, revised); err != nil {
		return Result{}, fmt.Errorf("refinement: update draft entity: %w", err)
	}
	if err := r.store.IncrementRevisionCount(ctx, proposalID); err != nil {
		return Result{}, fmt.Errorf("refinement: increment revision count: %w", err)
	}
	if err := r.store.AppendComment(ctx, Comment{ProposalID: proposalID, Author: "curator", Body: replyBody}); err != nil {
		return Result{}, fmt.Errorf("refinement: append system reply: %w", err)
	}

	metrics.RefinementRevisions.WithLabelValues("true").Inc()
	return Result{RevisionCount: proposal.RevisionCount + 1, DraftUpdated: true}, nil
}

func findComment(history []Comment, commentID string) *Comment {
	for i := range history {
		if history[i].ID == commentID {
			return &history[i]
		}
	}
	return nil
}

func (r *Refiner) reviseDraft(ctx context.Context, draft DraftEntity, comment string) (DraftEntity, string, error) {
	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return DraftEntity{}, "", fmt.Errorf("encode draft: %w", err)
	}

	prompt, err := llm.RenderRefinementPrompt(string(draftJSON), comment)
	if err != nil {
		return DraftEntity{}, "", fmt.Errorf("render prompt: %w", err)
	}

	raw, err := r.client.Complete(ctx, llm.Request{Model: r.model, System: llm.RefinementSystemPrompt, User: prompt, Schema: revisionSchema})
	if err != nil {
		return DraftEntity{}, "", err
	}

	var rev wireRevision
	if err := json.Unmarshal(raw, &rev); err != nil {
		return DraftEntity{}, "", fmt.Errorf("decode revision: %w", err)
	}

	revised := draft
	switch draft.TargetType {
	case domain.TargetPost:
		if rev.Title != "" {
			revised.PostTitle = rev.Title
		}
		if rev.Summary != "" {
			revised.PostSummary = rev.Summary
		}
		if rev.Text != "" {
			revised.PostText = rev.Text
		}
	case domain.TargetNote:
		if rev.Content != "" {
			revised.NoteContent = rev.Content
		}
	}

	reply := "Applied the requested revision."
	if rev.Contradiction != "" {
		reply = fmt.Sprintf("Applied the requested revision. Note: %s", rev.Contradiction)
	}
	return revised, reply, nil
}

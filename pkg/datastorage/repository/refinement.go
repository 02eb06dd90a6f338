package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/curator/refinement"
)

// RefinementStore adapts Repository to refinement.Store, reading and
// writing draft posts/notes and their comment threads.
type RefinementStore struct {
	db *Repository
}

// NewRefinementStore builds a RefinementStore.
func NewRefinementStore(repo *Repository) *RefinementStore {
	return &RefinementStore{db: repo}
}

func (s *RefinementStore) LoadProposal(ctx context.Context, proposalID string) (domain.SyncProposal, error) {
	var row struct {
		ID               string         `db:"id"`
		BatchID          string         `db:"batch_id"`
		ResourceType     string         `db:"resource_type"`
		Operation        string         `db:"operation"`
		TargetType       string         `db:"target_type"`
		DraftEntityID    string         `db:"draft_entity_id"`
		OriginalEntityID sql.NullString `db:"original_entity_id"`
		Summary          string         `db:"summary"`
		RevisionCount    int            `db:"revision_count"`
		Status           string         `db:"status"`
	}
	err := s.db.db.GetContext(ctx, &row, `
		SELECT id, batch_id, resource_type, operation, target_type, draft_entity_id,
		       original_entity_id, summary, revision_count, status
		FROM sync_proposals WHERE id = $1
	`, proposalID)
	if err != nil {
		return domain.SyncProposal{}, fmt.Errorf("repository: load proposal %q: %w", proposalID, err)
	}

	proposal := domain.SyncProposal{
		ID: row.ID, BatchID: row.BatchID, ResourceType: row.ResourceType,
		Operation: domain.ProposalOperation(row.Operation), TargetType: domain.ProposalTargetType(row.TargetType),
		DraftEntityID: row.DraftEntityID, Summary: row.Summary,
		RevisionCount: row.RevisionCount, Status: domain.ProposalStatus(row.Status),
	}
	if row.OriginalEntityID.Valid {
		proposal.OriginalEntityID = &row.OriginalEntityID.String
	}
	return proposal, nil
}

func (s *RefinementStore) LoadCommentHistory(ctx context.Context, proposalID string) ([]refinement.Comment, error) {
	var rows []struct {
		ID         string `db:"id"`
		ProposalID string `db:"proposal_id"`
		Author     string `db:"author"`
		Body       string `db:"body"`
	}
	if err := s.db.db.SelectContext(ctx, &rows, `
		SELECT id, proposal_id, author, body FROM proposal_comments
		WHERE proposal_id = $1 ORDER BY created_at ASC
	`, proposalID); err != nil {
		return nil, fmt.Errorf("repository: load comment history for %q: %w", proposalID, err)
	}
	out := make([]refinement.Comment, len(rows))
	for i, row := range rows {
		out[i] = refinement.Comment{ID: row.ID, ProposalID: row.ProposalID, Author: row.Author, Body: row.Body}
	}
	return out, nil
}

func (s *RefinementStore) LoadDraftEntity(ctx context.Context, proposal domain.SyncProposal) (refinement.DraftEntity, error) {
	switch proposal.TargetType {
	case domain.TargetPost:
		var row struct {
			Title       string `db:"title"`
			Description string `db:"description"`
		}
		if err := s.db.db.GetContext(ctx, &row, `SELECT title, description FROM posts WHERE id = $1`, proposal.DraftEntityID); err != nil {
			return refinement.DraftEntity{}, fmt.Errorf("repository: load draft post %q: %w", proposal.DraftEntityID, err)
		}
		return refinement.DraftEntity{TargetType: domain.TargetPost, PostTitle: row.Title, PostText: row.Description}, nil

	case domain.TargetNote:
		var content string
		if err := s.db.db.GetContext(ctx, &content, `SELECT content FROM notes WHERE id = $1`, proposal.DraftEntityID); err != nil {
			return refinement.DraftEntity{}, fmt.Errorf("repository: load draft note %q: %w", proposal.DraftEntityID, err)
		}
		return refinement.DraftEntity{TargetType: domain.TargetNote, NoteContent: content}, nil

	default:
		return refinement.DraftEntity{}, fmt.Errorf("repository: unknown proposal target type %q", proposal.TargetType)
	}
}

func (s *RefinementStore) UpdateDraftEntity(ctx context.Context, proposal domain.SyncProposal, revised refinement.DraftEntity) error {
	switch proposal.TargetType {
	case domain.TargetPost:
		_, err := s.db.db.ExecContext(ctx, `
			UPDATE posts SET title = $1, description = $2 WHERE id = $3
		`, revised.PostTitle, revised.PostText, proposal.DraftEntityID)
		if err != nil {
			return fmt.Errorf("repository: update draft post %q: %w", proposal.DraftEntityID, err)
		}
		return nil

	case domain.TargetNote:
		_, err := s.db.db.ExecContext(ctx, `UPDATE notes SET content = $1 WHERE id = $2`, revised.NoteContent, proposal.DraftEntityID)
		if err != nil {
			return fmt.Errorf("repository: update draft note %q: %w", proposal.DraftEntityID, err)
		}
		return nil

	default:
		return fmt.Errorf("repository: unknown proposal target type %q", proposal.TargetType)
	}
}

func (s *RefinementStore) IncrementRevisionCount(ctx context.Context, proposalID string) error {
	_, err := s.db.db.ExecContext(ctx, `
		UPDATE sync_proposals SET revision_count = revision_count + 1 WHERE id = $1
	`, proposalID)
	if err != nil {
		return fmt.Errorf("repository: increment revision count for %q: %w", proposalID, err)
	}
	return nil
}

func (s *RefinementStore) AppendComment(ctx context.Context, comment refinement.Comment) error {
	id := comment.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO proposal_comments (id, proposal_id, author, body, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, id, comment.ProposalID, comment.Author, comment.Body)
	if err != nil {
		return fmt.Errorf("repository: append comment to %q: %w", comment.ProposalID, err)
	}
	return nil
}

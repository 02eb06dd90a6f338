// Package stager implements phase 8, the Action Stager (spec §4.8):
// converts the final action list into draft entities and sync proposals
// inside one transaction, after expiring any existing pending batch.
package stager

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/mntogether/curator/internal/validation"
	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/metrics"
)

// Tx is the subset of a database transaction the stager needs; callers
// inject a *sqlx.Tx wrapper (see pkg/datastorage/repository) so this
// package stays testable without a live Postgres instance.
type Tx interface {
	InsertDraftPost(ctx context.Context, post domain.DraftPost) error
	InsertPostSource(ctx context.Context, postID, sourceURL string) error
	InsertContact(ctx context.Context, postID string, contact domain.Contact) error
	InsertSchedule(ctx context.Context, postID string, schedule domain.ScheduleEntry) error
	InsertTag(ctx context.Context, postID string, tag domain.Tag) error
	InsertLocation(ctx context.Context, postID string, location domain.Location) error
	InsertDraftNote(ctx context.Context, note domain.DraftNote) error

	InsertBatch(ctx context.Context, batch domain.SyncBatch) error
	InsertProposal(ctx context.Context, proposal domain.SyncProposal) error
	InsertMergeSourceLink(ctx context.Context, link domain.MergeSourceLink) error

	// ExpirePendingBatch marks an organization's pending batch (if any)
	// expired and deletes its draft entities, per the pre-staging cleanup
	// rule. Returns the expired batch id, or "" if none existed.
	ExpirePendingBatch(ctx context.Context, organizationID string) (expiredBatchID string, err error)
}

// Repository begins the single transaction every staging run executes in.
// A failure anywhere inside fn must roll the transaction back entirely
// (spec §4.8's atomicity guarantee).
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Stager is phase 8.
type Stager struct {
	repo Repository
	log  logr.Logger
}

// New builds a Stager.
func New(repo Repository, log logr.Logger) *Stager {
	return &Stager{repo: repo, log: log}
}

// Result is phase 8's output: the batch id and how many proposals it holds.
type Result struct {
	BatchID        string
	ProposalsCount int
}

// Stage writes actions as one batch for organizationID, inside a single
// transaction. Invalid schedule rows on a create_post action are dropped;
// the owning post is staged regardless (spec §4.8).
func (s *Stager) Stage(ctx context.Context, organizationID, summary string, actions []domain.Action) (Result, error) {
	var result Result

	err := s.repo.WithTx(ctx, func(tx Tx) error {
		if expired, err := tx.ExpirePendingBatch(ctx, organizationID); err != nil {
			return fmt.Errorf("stager: expire pending batch: %w", err)
		} else if expired != "" {
			s.log.Info("expired prior pending batch before staging", "batch_id", expired, "organization_id", organizationID)
		}

		batchID := uuid.NewString()
		if err := tx.InsertBatch(ctx, domain.SyncBatch{ID: batchID, OrganizationID: organizationID, Summary: summary}); err != nil {
			return fmt.Errorf("stager: insert batch: %w", err)
		}

		count := 0
		for _, action := range actions {
			if err := stageOne(ctx, tx, batchID, action); err != nil {
				return err
			}
			metrics.ProposalsStaged.WithLabelValues(string(operationFor(action.Kind))).Inc()
			count++
		}

		result = Result{BatchID: batchID, ProposalsCount: count}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func operationFor(kind domain.ActionKind) domain.ProposalOperation {
	switch kind {
	case domain.ActionUpdatePost:
		return domain.OperationUpdate
	case domain.ActionMergePosts:
		return domain.OperationMerge
	case domain.ActionArchivePost:
		return domain.OperationDelete
	default:
		return domain.OperationInsert
	}
}

func stageOne(ctx context.Context, tx Tx, batchID string, action domain.Action) error {
	switch action.Kind {
	case domain.ActionCreatePost:
		return stageCreatePost(ctx, tx, batchID, action.CreatePost)
	case domain.ActionUpdatePost:
		return stageUpdatePost(ctx, tx, batchID, action.UpdatePost)
	case domain.ActionAddNote:
		return stageAddNote(ctx, tx, batchID, action.AddNote, domain.NoteSeverityInfo)
	case domain.ActionMergePosts:
		return stageMergePosts(ctx, tx, batchID, action.MergePosts)
	case domain.ActionArchivePost:
		return stageArchivePost(ctx, tx, batchID, action.ArchivePost)
	case domain.ActionFlagContradiction:
		return stageFlagContradiction(ctx, tx, batchID, action.FlagContradiction)
	default:
		return fmt.Errorf("stager: unknown action kind %q", action.Kind)
	}
}

func stageCreatePost(ctx context.Context, tx Tx, batchID string, a *domain.CreatePostAction) error {
	postID := uuid.NewString()
	draft := domain.DraftPost{
		ID: postID, Title: a.Title, Description: a.Description, Type: a.Type,
		Category: a.Category, Urgency: a.Urgency, Contacts: a.Contacts,
		Tags: a.Tags, Locations: a.Locations, SourceURLs: a.SourceURLs,
	}
	draft.Schedules = filterValidSchedules(a.Schedules)

	if err := tx.InsertDraftPost(ctx, draft); err != nil {
		return fmt.Errorf("stager: insert draft post: %w", err)
	}
	for _, url := range a.SourceURLs {
		if err := tx.InsertPostSource(ctx, postID, url); err != nil {
			return fmt.Errorf("stager: insert post source: %w", err)
		}
	}
	for _, c := range a.Contacts {
		if err := tx.InsertContact(ctx, postID, c); err != nil {
			return fmt.Errorf("stager: insert contact: %w", err)
		}
	}
	for _, sched := range draft.Schedules {
		if err := tx.InsertSchedule(ctx, postID, sched); err != nil {
			return fmt.Errorf("stager: insert schedule: %w", err)
		}
	}
	for _, t := range a.Tags {
		if err := tx.InsertTag(ctx, postID, t); err != nil {
			return fmt.Errorf("stager: insert tag: %w", err)
		}
	}
	for _, l := range a.Locations {
		if err := tx.InsertLocation(ctx, postID, l); err != nil {
			return fmt.Errorf("stager: insert location: %w", err)
		}
	}

	proposal := domain.SyncProposal{
		ID: uuid.NewString(), BatchID: batchID, ResourceType: "curator",
		Operation: domain.OperationInsert, TargetType: domain.TargetPost,
		DraftEntityID: postID, Summary: a.Rationale, Status: domain.ProposalPending,
	}
	return tx.InsertProposal(ctx, proposal)
}

func stageUpdatePost(ctx context.Context, tx Tx, batchID string, a *domain.UpdatePostAction) error {
	postID := uuid.NewString()
	draft := domain.DraftPost{ID: postID, RevisionOfPostID: &a.TargetPostID, Contacts: a.Contacts, Tags: a.Tags, Locations: a.Locations, SourceURLs: a.SourceURLs}
	if a.Title != nil {
		draft.Title = *a.Title
	}
	if a.Description != nil {
		draft.Description = *a.Description
	}
	draft.Schedules = filterValidSchedules(a.Schedules)

	if err := tx.InsertDraftPost(ctx, draft); err != nil {
		return fmt.Errorf("stager: insert revision post: %w", err)
	}
	for _, url := range a.SourceURLs {
		if err := tx.InsertPostSource(ctx, postID, url); err != nil {
			return fmt.Errorf("stager: insert post source: %w", err)
		}
	}

	original := a.TargetPostID
	proposal := domain.SyncProposal{
		ID: uuid.NewString(), BatchID: batchID, ResourceType: "curator",
		Operation: domain.OperationUpdate, TargetType: domain.TargetPost,
		DraftEntityID: postID, OriginalEntityID: &original, Summary: a.Rationale, Status: domain.ProposalPending,
	}
	return tx.InsertProposal(ctx, proposal)
}

func stageAddNote(ctx context.Context, tx Tx, batchID string, a *domain.AddNoteAction, fallbackSeverity domain.NoteSeverity) error {
	noteID := uuid.NewString()
	severity := a.Severity
	if severity == "" {
		severity = fallbackSeverity
	}
	draft := domain.DraftNote{ID: noteID, TargetPostID: a.TargetPostID, Content: a.Content, Severity: severity}
	if err := tx.InsertDraftNote(ctx, draft); err != nil {
		return fmt.Errorf("stager: insert draft note: %w", err)
	}

	proposal := domain.SyncProposal{
		ID: uuid.NewString(), BatchID: batchID, ResourceType: "curator",
		Operation: domain.OperationInsert, TargetType: domain.TargetNote,
		DraftEntityID: noteID, Status: domain.ProposalPending,
	}
	return tx.InsertProposal(ctx, proposal)
}

func stageMergePosts(ctx context.Context, tx Tx, batchID string, a *domain.MergePostsAction) error {
	proposal := domain.SyncProposal{
		ID: uuid.NewString(), BatchID: batchID, ResourceType: "curator",
		Operation: domain.OperationMerge, TargetType: domain.TargetPost,
		DraftEntityID: a.TargetPostID, Summary: a.Rationale, Status: domain.ProposalPending,
	}
	if err := tx.InsertProposal(ctx, proposal); err != nil {
		return fmt.Errorf("stager: insert merge proposal: %w", err)
	}
	for _, dup := range a.DuplicatePostIDs {
		if err := tx.InsertMergeSourceLink(ctx, domain.MergeSourceLink{ProposalID: proposal.ID, DuplicatePostID: dup}); err != nil {
			return fmt.Errorf("stager: insert merge source link: %w", err)
		}
	}
	return nil
}

func stageArchivePost(ctx context.Context, tx Tx, batchID string, a *domain.ArchivePostAction) error {
	original := a.TargetPostID
	proposal := domain.SyncProposal{
		ID: uuid.NewString(), BatchID: batchID, ResourceType: "curator",
		Operation: domain.OperationDelete, TargetType: domain.TargetPost,
		OriginalEntityID: &original, Summary: a.Rationale, Status: domain.ProposalPending,
	}
	return tx.InsertProposal(ctx, proposal)
}

func stageFlagContradiction(ctx context.Context, tx Tx, batchID string, a *domain.FlagContradictionAction) error {
	addNote := &domain.AddNoteAction{TargetPostID: a.TargetPostID, Content: a.Content, Severity: domain.NoteSeverityUrgent}
	return stageAddNote(ctx, tx, batchID, addNote, domain.NoteSeverityUrgent)
}

// filterValidSchedules drops schedule rows that fail validation, logging
// nothing itself — callers own logging since they know the owning post.
func filterValidSchedules(schedules []domain.ScheduleEntry) []domain.ScheduleEntry {
	var out []domain.ScheduleEntry
	for _, s := range schedules {
		if validation.ValidateSchedule(toValidationSchedule(s)) == nil {
			out = append(out, s)
		}
	}
	return out
}

func toValidationSchedule(s domain.ScheduleEntry) validation.Schedule {
	kind := validation.ScheduleOneOff
	switch {
	case s.DayOfWeek != nil && s.Frequency == nil && s.RRule == nil:
		kind = validation.ScheduleOperatingHours
	case s.Frequency != nil || s.RRule != nil:
		kind = validation.ScheduleRecurring
	}
	return validation.Schedule{
		Kind: kind, DayOfWeek: s.DayOfWeek, OpensAt: s.OpensAt, ClosesAt: s.ClosesAt,
		Frequency: s.Frequency, RRule: s.RRule, Date: s.Date, StartTime: s.StartTime,
		EndTime: s.EndTime, IsAllDay: s.IsAllDay,
	}
}

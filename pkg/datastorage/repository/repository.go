// Package repository implements the curator pipeline's Postgres-backed
// persistence surface: loading organizations, sources, existing posts, and
// active notes for the orchestrator; and the transactional staging writes
// for phase 8 (spec §3, §4.8, §6.1).
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mntogether/curator/pkg/curator/domain"
	"github.com/mntogether/curator/pkg/curator/stager"
)

// Repository is the curator's full Postgres-backed store, satisfying
// orchestrator.Store, scheduler.Store, and stager.Repository against one
// connection pool.
type Repository struct {
	db *sqlx.DB
}

// New wraps db as a Repository.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type organizationRow struct {
	ID              string     `db:"id"`
	Name            string     `db:"name"`
	Description     string     `db:"description"`
	Approved        bool       `db:"approved"`
	LastExtractedAt *time.Time `db:"last_extracted_at"`
}

// LoadOrganization reads one organization by id.
func (r *Repository) LoadOrganization(ctx context.Context, organizationID string) (domain.Organization, error) {
	var row organizationRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, description, approved, last_extracted_at
		FROM organizations WHERE id = $1
	`, organizationID)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("repository: load organization %q: %w", organizationID, err)
	}
	return domain.Organization{
		ID: row.ID, Name: row.Name, Description: row.Description,
		Approved: row.Approved, LastExtractedAt: row.LastExtractedAt,
	}, nil
}

type sourceRow struct {
	ID             string `db:"id"`
	OrganizationID string `db:"organization_id"`
	URL            string `db:"url"`
	Kind           string `db:"kind"`
}

// LoadSources reads every source belonging to an organization.
func (r *Repository) LoadSources(ctx context.Context, organizationID string) ([]domain.Source, error) {
	var rows []sourceRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, organization_id, url, kind FROM sources WHERE organization_id = $1
	`, organizationID); err != nil {
		return nil, fmt.Errorf("repository: load sources for %q: %w", organizationID, err)
	}
	out := make([]domain.Source, len(rows))
	for i, row := range rows {
		out[i] = domain.Source{ID: row.ID, OrganizationID: row.OrganizationID, URL: row.URL, Kind: row.Kind}
	}
	return out, nil
}

type postRow struct {
	ID               string         `db:"id"`
	OrganizationID   string         `db:"organization_id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Type             string         `db:"type"`
	Category         string         `db:"category"`
	Urgency          string         `db:"urgency"`
	SubmissionType   string         `db:"submission_type"`
	Status           string         `db:"status"`
	RevisionOfPostID sql.NullString `db:"revision_of_post_id"`
	CreatedAt        time.Time      `db:"created_at"`
}

// LoadExistingPosts reads every live post for an organization, along with
// its source URLs (spec §6.1's read list). Contacts, schedules, tags, and
// locations are loaded separately to keep each query a flat SELECT.
func (r *Repository) LoadExistingPosts(ctx context.Context, organizationID string) ([]domain.Post, error) {
	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, organization_id, title, description, type, category, urgency,
		       submission_type, status, revision_of_post_id, created_at
		FROM posts WHERE organization_id = $1 AND status = 'live'
	`, organizationID); err != nil {
		return nil, fmt.Errorf("repository: load existing posts for %q: %w", organizationID, err)
	}

	out := make([]domain.Post, len(rows))
	for i, row := range rows {
		post := domain.Post{
			ID: row.ID, OrganizationID: row.OrganizationID, Title: row.Title,
			Description: row.Description, Type: row.Type, Category: row.Category,
			Urgency: row.Urgency, SubmissionType: domain.SubmissionType(row.SubmissionType),
			Status: domain.PostStatus(row.Status), CreatedAt: row.CreatedAt,
		}
		if row.RevisionOfPostID.Valid {
			post.RevisionOfPostID = &row.RevisionOfPostID.String
		}

		sourceURLs, err := r.loadPostSourceURLs(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		post.SourceURLs = sourceURLs

		contacts, err := r.loadContacts(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		post.Contacts = contacts

		tags, err := r.loadTags(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		post.Tags = tags

		out[i] = post
	}
	return out, nil
}

func (r *Repository) loadPostSourceURLs(ctx context.Context, postID string) ([]string, error) {
	var urls []string
	if err := r.db.SelectContext(ctx, &urls, `SELECT source_url FROM post_sources WHERE post_id = $1`, postID); err != nil {
		return nil, fmt.Errorf("repository: load post sources for %q: %w", postID, err)
	}
	return urls, nil
}

type contactRow struct {
	Kind  string `db:"kind"`
	Value string `db:"value"`
}

func (r *Repository) loadContacts(ctx context.Context, postID string) ([]domain.Contact, error) {
	var rows []contactRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT kind, value FROM contacts WHERE post_id = $1`, postID); err != nil {
		return nil, fmt.Errorf("repository: load contacts for %q: %w", postID, err)
	}
	out := make([]domain.Contact, len(rows))
	for i, row := range rows {
		out[i] = domain.Contact{Kind: domain.ContactKind(row.Kind), Value: row.Value}
	}
	return out, nil
}

type tagRow struct {
	Kind  string `db:"kind"`
	Value string `db:"value"`
}

func (r *Repository) loadTags(ctx context.Context, postID string) ([]domain.Tag, error) {
	var rows []tagRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT t.kind, t.value FROM tags t
		JOIN taggables tg ON tg.tag_id = t.id
		WHERE tg.post_id = $1
	`, postID); err != nil {
		return nil, fmt.Errorf("repository: load tags for %q: %w", postID, err)
	}
	out := make([]domain.Tag, len(rows))
	for i, row := range rows {
		out[i] = domain.Tag{Kind: row.Kind, Value: row.Value}
	}
	return out, nil
}

type noteRow struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	TargetPostID   sql.NullString `db:"target_post_id"`
	Content        string         `db:"content"`
	Severity       string         `db:"severity"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
}

// LoadActiveNotes reads every non-resolved note for an organization.
func (r *Repository) LoadActiveNotes(ctx context.Context, organizationID string) ([]domain.Note, error) {
	var rows []noteRow
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, organization_id, target_post_id, content, severity, status, created_at
		FROM notes WHERE organization_id = $1 AND status != 'resolved'
	`, organizationID); err != nil {
		return nil, fmt.Errorf("repository: load active notes for %q: %w", organizationID, err)
	}
	out := make([]domain.Note, len(rows))
	for i, row := range rows {
		note := domain.Note{
			ID: row.ID, OrganizationID: row.OrganizationID, Content: row.Content,
			Severity: domain.NoteSeverity(row.Severity), Status: domain.PostStatus(row.Status), CreatedAt: row.CreatedAt,
		}
		if row.TargetPostID.Valid {
			note.TargetPostID = &row.TargetPostID.String
		}
		out[i] = note
	}
	return out, nil
}

// TouchLastExtracted updates an organization's last_extracted_at timestamp
// (phase 9, spec §4.2).
func (r *Repository) TouchLastExtracted(ctx context.Context, organizationID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE organizations SET last_extracted_at = $1 WHERE id = $2
	`, time.Now().UTC(), organizationID)
	if err != nil {
		return fmt.Errorf("repository: touch last_extracted_at for %q: %w", organizationID, err)
	}
	return nil
}

// LoadStaleOrganizations selects approved organizations whose
// last_extracted_at is older than threshold, or that have never been
// extracted (scheduler.Store, spec §5).
func (r *Repository) LoadStaleOrganizations(ctx context.Context, threshold time.Duration) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM organizations
		WHERE approved = true AND (last_extracted_at IS NULL OR last_extracted_at < $1)
	`, time.Now().UTC().Add(-threshold)); err != nil {
		return nil, fmt.Errorf("repository: load stale organizations: %w", err)
	}
	return ids, nil
}

// WithTx opens a transaction, runs fn against a tx-scoped Tx, and commits on
// success or rolls back on any error fn returns (stager.Repository, spec
// §4.8's atomicity guarantee).
func (r *Repository) WithTx(ctx context.Context, fn func(tx stager.Tx) error) error {
	sqlTx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin transaction: %w", err)
	}

	if err := fn(&txWrapper{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("repository: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("repository: commit transaction: %w", err)
	}
	return nil
}

// txWrapper adapts a *sqlx.Tx to stager.Tx.
type txWrapper struct {
	tx *sqlx.Tx
}

func (t *txWrapper) InsertDraftPost(ctx context.Context, post domain.DraftPost) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO posts (id, organization_id, title, description, type, category, urgency,
		                    submission_type, status, revision_of_post_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'agent', 'draft', $8, $9)
	`, post.ID, post.OrganizationID, post.Title, post.Description, post.Type, post.Category,
		post.Urgency, post.RevisionOfPostID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: insert draft post %q: %w", post.ID, err)
	}
	return nil
}

func (t *txWrapper) InsertPostSource(ctx context.Context, postID, sourceURL string) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO post_sources (post_id, source_url) VALUES ($1, $2)`, postID, sourceURL)
	if err != nil {
		return fmt.Errorf("repository: insert post source for %q: %w", postID, err)
	}
	return nil
}

func (t *txWrapper) InsertContact(ctx context.Context, postID string, contact domain.Contact) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO contacts (post_id, kind, value) VALUES ($1, $2, $3)
	`, postID, contact.Kind, contact.Value)
	if err != nil {
		return fmt.Errorf("repository: insert contact for %q: %w", postID, err)
	}
	return nil
}

func (t *txWrapper) InsertSchedule(ctx context.Context, postID string, schedule domain.ScheduleEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO schedules (post_id, day_of_week, opens_at, closes_at, frequency, rrule, date, start_time, end_time, is_all_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, postID, schedule.DayOfWeek, schedule.OpensAt, schedule.ClosesAt, schedule.Frequency,
		schedule.RRule, schedule.Date, schedule.StartTime, schedule.EndTime, schedule.IsAllDay)
	if err != nil {
		return fmt.Errorf("repository: insert schedule for %q: %w", postID, err)
	}
	return nil
}

func (t *txWrapper) InsertTag(ctx context.Context, postID string, tag domain.Tag) error {
	var tagID string
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO tags (kind, value) VALUES ($1, $2)
		ON CONFLICT (kind, value) DO UPDATE SET value = tags.value
		RETURNING id
	`, tag.Kind, tag.Value).Scan(&tagID)
	if err != nil {
		return fmt.Errorf("repository: upsert tag %q/%q: %w", tag.Kind, tag.Value, err)
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO taggables (tag_id, post_id) VALUES ($1, $2)`, tagID, postID); err != nil {
		return fmt.Errorf("repository: link tag to post %q: %w", postID, err)
	}
	return nil
}

func (t *txWrapper) InsertLocation(ctx context.Context, postID string, location domain.Location) error {
	var locationID string
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO locations (address) VALUES ($1) RETURNING id
	`, location.Address).Scan(&locationID)
	if err != nil {
		return fmt.Errorf("repository: insert location for %q: %w", postID, err)
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO locationables (location_id, post_id) VALUES ($1, $2)`, locationID, postID); err != nil {
		return fmt.Errorf("repository: link location to post %q: %w", postID, err)
	}
	return nil
}

func (t *txWrapper) InsertDraftNote(ctx context.Context, note domain.DraftNote) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO notes (id, organization_id, target_post_id, content, severity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'draft', $6)
	`, note.ID, note.OrganizationID, note.TargetPostID, note.Content, note.Severity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: insert draft note %q: %w", note.ID, err)
	}
	return nil
}

func (t *txWrapper) InsertBatch(ctx context.Context, batch domain.SyncBatch) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sync_batches (id, organization_id, summary, created_at) VALUES ($1, $2, $3, $4)
	`, batch.ID, batch.OrganizationID, batch.Summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: insert sync batch %q: %w", batch.ID, err)
	}
	return nil
}

func (t *txWrapper) InsertProposal(ctx context.Context, proposal domain.SyncProposal) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sync_proposals (id, batch_id, resource_type, operation, target_type,
		                             draft_entity_id, original_entity_id, summary, revision_count, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
	`, proposal.ID, proposal.BatchID, proposal.ResourceType, proposal.Operation, proposal.TargetType,
		proposal.DraftEntityID, proposal.OriginalEntityID, proposal.Summary, proposal.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: insert sync proposal %q: %w", proposal.ID, err)
	}
	return nil
}

func (t *txWrapper) InsertMergeSourceLink(ctx context.Context, link domain.MergeSourceLink) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sync_proposal_merge_sources (proposal_id, duplicate_post_id) VALUES ($1, $2)
	`, link.ProposalID, link.DuplicatePostID)
	if err != nil {
		return fmt.Errorf("repository: insert merge source link for %q: %w", link.ProposalID, err)
	}
	return nil
}

// ExpirePendingBatch marks an organization's pending batch expired and
// deletes its draft posts/notes, the pre-staging cleanup step (spec §4.8).
func (t *txWrapper) ExpirePendingBatch(ctx context.Context, organizationID string) (string, error) {
	var batchID string
	err := t.tx.QueryRowContext(ctx, `
		SELECT b.id FROM sync_batches b
		JOIN sync_proposals p ON p.batch_id = b.id
		WHERE b.organization_id = $1 AND p.status = 'pending'
		LIMIT 1
	`, organizationID).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("repository: find pending batch for %q: %w", organizationID, err)
	}

	if _, err := t.tx.ExecContext(ctx, `
		DELETE FROM posts WHERE status = 'draft' AND id IN (
			SELECT draft_entity_id FROM sync_proposals WHERE batch_id = $1 AND target_type = 'post'
		)
	`, batchID); err != nil {
		return "", fmt.Errorf("repository: delete expired draft posts for batch %q: %w", batchID, err)
	}
	if _, err := t.tx.ExecContext(ctx, `
		DELETE FROM notes WHERE status = 'draft' AND id IN (
			SELECT draft_entity_id FROM sync_proposals WHERE batch_id = $1 AND target_type = 'note'
		)
	`, batchID); err != nil {
		return "", fmt.Errorf("repository: delete expired draft notes for batch %q: %w", batchID, err)
	}
	if _, err := t.tx.ExecContext(ctx, `
		UPDATE sync_proposals SET status = 'expired' WHERE batch_id = $1 AND status = 'pending'
	`, batchID); err != nil {
		return "", fmt.Errorf("repository: expire proposals for batch %q: %w", batchID, err)
	}

	return batchID, nil
}

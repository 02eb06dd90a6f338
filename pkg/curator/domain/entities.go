// Package domain holds the entities the curator pipeline reads and writes
// (spec §3) — organizations, sources, page snapshots, posts, notes, tags,
// drafts, and the sync batch/proposal rows that gate every write behind
// human review.
package domain

import "time"

// Organization is the curation subject (spec §3.1).
type Organization struct {
	ID              string
	Name            string
	Description     string
	Approved        bool
	LastExtractedAt *time.Time
}

// Source is a website or social handle belonging to an organization.
type Source struct {
	ID             string
	OrganizationID string
	URL            string
	Kind           string // "website" | "social"
}

// PageSnapshot is immutable crawled content keyed by (URL, ContentHash).
type PageSnapshot struct {
	URL         string
	ContentHash string
	Content     string
	CrawledAt   time.Time
}

// ContactKind enumerates the kinds of contact a brief or post can carry.
type ContactKind string

const (
	ContactPhone      ContactKind = "phone"
	ContactEmail      ContactKind = "email"
	ContactWebsite    ContactKind = "website"
	ContactBookingURL ContactKind = "booking_url"
)

// Contact is one reachable channel attached to a post or brief.
type Contact struct {
	Kind  ContactKind
	Value string
}

// ScheduleEntry is a stored, validated schedule row (see internal/validation
// for the three accepted shapes).
type ScheduleEntry struct {
	DayOfWeek *int
	OpensAt   *string
	ClosesAt  *string
	Frequency *string
	RRule     *string
	Date      *time.Time
	StartTime *string
	EndTime   *string
	IsAllDay  bool
}

// Tag is a globally unique (kind, value) categorical label.
type Tag struct {
	Kind  string
	Value string
}

// Location is a physical address associated with a post.
type Location struct {
	Address string
}

// PostStatus is the lifecycle state of a post row.
type PostStatus string

const (
	PostStatusLive  PostStatus = "live"
	PostStatusDraft PostStatus = "draft"
)

// SubmissionType distinguishes human- from agent-authored posts.
type SubmissionType string

const (
	SubmissionHuman SubmissionType = "human"
	SubmissionAgent SubmissionType = "agent"
)

// Post is the existing (live) or proposed (draft) published entity.
type Post struct {
	ID              string
	OrganizationID  string
	Title           string
	Description     string
	Type            string
	Category        string
	Urgency         string
	SubmissionType  SubmissionType
	Status          PostStatus
	RevisionOfPostID *string
	Embedding       []float32
	Contacts        []Contact
	Schedules       []ScheduleEntry
	Tags            []Tag
	Locations       []Location
	SourceURLs      []string
	CreatedAt       time.Time
}

// NoteSeverity ranks how urgently a note should be surfaced.
type NoteSeverity string

const (
	NoteSeverityInfo    NoteSeverity = "info"
	NoteSeverityWarning NoteSeverity = "warning"
	NoteSeverityUrgent  NoteSeverity = "urgent"
)

// Note is a free-form editorial annotation on a post or organization.
type Note struct {
	ID             string
	OrganizationID string
	TargetPostID   *string
	Content        string
	Severity       NoteSeverity
	Status         PostStatus
	CreatedAt      time.Time
}

// ProposalOperation is the kind of database mutation a proposal represents.
type ProposalOperation string

const (
	OperationInsert ProposalOperation = "insert"
	OperationUpdate ProposalOperation = "update"
	OperationMerge  ProposalOperation = "merge"
	OperationDelete ProposalOperation = "delete"
)

// ProposalTargetType is the kind of entity a proposal's draft refers to.
type ProposalTargetType string

const (
	TargetPost ProposalTargetType = "post"
	TargetNote ProposalTargetType = "note"
)

// ProposalStatus is a sync proposal's review lifecycle state (spec §3.5).
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExpired  ProposalStatus = "expired"
)

const maxRevisionCount = 3

// SyncProposal is one unit of human review (spec §3.2).
type SyncProposal struct {
	ID               string
	BatchID          string
	ResourceType     string // always "curator"
	Operation        ProposalOperation
	TargetType       ProposalTargetType
	DraftEntityID    string
	OriginalEntityID *string
	Summary          string
	RevisionCount    int
	Status           ProposalStatus
	CreatedAt        time.Time
}

// CanRevise reports whether this proposal may still undergo an LLM-driven
// revision (spec §4.9 step 1).
func (p *SyncProposal) CanRevise() bool {
	return p.RevisionCount < maxRevisionCount
}

// SyncBatch groups the proposals produced by one curator run.
type SyncBatch struct {
	ID             string
	OrganizationID string
	Summary        string
	CreatedAt      time.Time
}

// MergeSourceLink records one post being merged into a target, attached to a
// merge proposal.
type MergeSourceLink struct {
	ProposalID    string
	DuplicatePostID string
}

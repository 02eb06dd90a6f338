package domain

// ActionKind is the tag of the reasoner's action sum type (spec §4.6). The
// reasoner emits exactly one of these per proposed change to the directory.
type ActionKind string

const (
	ActionCreatePost        ActionKind = "create_post"
	ActionUpdatePost        ActionKind = "update_post"
	ActionAddNote           ActionKind = "add_note"
	ActionMergePosts        ActionKind = "merge_posts"
	ActionArchivePost       ActionKind = "archive_post"
	ActionFlagContradiction ActionKind = "flag_contradiction"
)

// CreatePostAction proposes a brand-new post, evidenced by the source URLs
// the brief(s) it was extracted from came from.
type CreatePostAction struct {
	Title       string
	Description string
	Type        string
	Category    string
	Urgency     string
	Contacts    []Contact
	Schedules   []ScheduleEntry
	Tags        []Tag
	Locations   []Location
	SourceURLs  []string
	Rationale   string
}

// UpdatePostAction proposes a revision to an existing live post, referenced
// by its POST-{uuid} handle.
type UpdatePostAction struct {
	TargetPostID string
	Title        *string
	Description  *string
	Contacts     []Contact
	Schedules    []ScheduleEntry
	Tags         []Tag
	Locations    []Location
	SourceURLs   []string
	Rationale    string
}

// AddNoteAction attaches an editorial annotation to an organization or post.
type AddNoteAction struct {
	TargetPostID *string
	Content      string
	Severity     NoteSeverity
	SourceURLs   []string
}

// MergePostsAction proposes collapsing duplicate posts into one target.
type MergePostsAction struct {
	TargetPostID     string
	DuplicatePostIDs []string
	Rationale        string
}

// ArchivePostAction proposes retiring a post that no longer reflects any
// source evidence.
type ArchivePostAction struct {
	TargetPostID string
	Rationale    string
	SourceURLs   []string
}

// FlagContradictionAction surfaces conflicting evidence across sources
// without proposing a resolution; it always stages as a note.
type FlagContradictionAction struct {
	TargetPostID        *string
	Content             string
	ConflictingSourceURLs []string
}

// Action is the tagged union the reasoner emits and the stager dispatches
// on. Exactly one of the typed fields is populated, matching Kind.
type Action struct {
	Kind              ActionKind
	CreatePost        *CreatePostAction
	UpdatePost        *UpdatePostAction
	AddNote           *AddNoteAction
	MergePosts        *MergePostsAction
	ArchivePost       *ArchivePostAction
	FlagContradiction *FlagContradictionAction
}

// EvidencedSourceURLs returns the source URLs an action cites as evidence.
// merge_posts carries no direct evidence set and is exempt from the
// source_url requirement (spec §4.5).
func (a Action) EvidencedSourceURLs() []string {
	switch a.Kind {
	case ActionCreatePost:
		return a.CreatePost.SourceURLs
	case ActionUpdatePost:
		return a.UpdatePost.SourceURLs
	case ActionAddNote:
		return a.AddNote.SourceURLs
	case ActionArchivePost:
		return a.ArchivePost.SourceURLs
	case ActionFlagContradiction:
		return a.FlagContradiction.ConflictingSourceURLs
	default:
		return nil
	}
}

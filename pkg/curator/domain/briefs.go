package domain

// BriefContact is the contact shape the extraction prompt is asked to
// produce (spec §4.3); it mirrors Contact but stays decoupled from the
// persisted shape so schema changes on one side don't leak into the other.
type BriefContact struct {
	Kind  ContactKind `json:"kind"`
	Value string      `json:"value"`
}

// BriefSchedule is the schedule shape the extraction prompt produces, prior
// to internal/validation.ValidateSchedule classifying and checking it.
type BriefSchedule struct {
	Kind      string  `json:"kind"`
	DayOfWeek *int    `json:"day_of_week,omitempty"`
	OpensAt   *string `json:"opens_at,omitempty"`
	ClosesAt  *string `json:"closes_at,omitempty"`
	Frequency *string `json:"frequency,omitempty"`
	RRule     *string `json:"rrule,omitempty"`
	Date      *string `json:"date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	IsAllDay  bool    `json:"is_all_day,omitempty"`
}

// CapacityInfo is a free-form or enumerated capacity signal (spec §4.3).
type CapacityInfo string

const (
	CapacityAccepting CapacityInfo = "accepting"
	CapacityWaitlist  CapacityInfo = "waitlist"
	CapacityAtCapacity CapacityInfo = "at_capacity"
)

// PageBrief is the structured extraction output for one crawled page
// (spec §4.3). An empty brief (SourceURL set, everything else zero) means
// the page was below the minimum content length and was skipped without an
// LLM call.
type PageBrief struct {
	SourceURL             string          `json:"source_url"`
	Summary               string          `json:"summary"`
	Locations             []string        `json:"locations"`
	CallsToAction         []string        `json:"calls_to_action"`
	CriticalInfo          *string         `json:"critical_info,omitempty"`
	Services              []string        `json:"services"`
	Contacts              []BriefContact  `json:"contacts"`
	Schedules             []BriefSchedule `json:"schedules"`
	LanguagesMentioned    []string        `json:"languages_mentioned"`
	PopulationsMentioned  []string        `json:"populations_mentioned"`
	CapacityInfo          *string         `json:"capacity_info,omitempty"`
}

// IsEmpty reports whether this brief carries no extracted content, i.e. its
// page was skipped under the minimum-content-length policy.
func (b PageBrief) IsEmpty() bool {
	return b.Summary == "" && len(b.Locations) == 0 && len(b.Services) == 0 &&
		len(b.Contacts) == 0 && len(b.Schedules) == 0
}

// PostCopy is the writer's rewritten post copy (spec §4.6).
type PostCopy struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Text    string `json:"text"`
}

// SafetyVerdictKind enumerates the categories the iterative safety review
// can return (spec §4.7).
type SafetyVerdictKind string

const (
	SafetyVerdictSafe    SafetyVerdictKind = "safe"
	SafetyVerdictFix     SafetyVerdictKind = "fix"
	SafetyVerdictBlocked SafetyVerdictKind = "blocked"
)

// SafetyVerdict is one iteration's outcome from the safety reviewer.
type SafetyVerdict struct {
	Kind   SafetyVerdictKind `json:"kind"`
	Issues []string          `json:"issues,omitempty"`
}

// DraftPost is a draft entity awaiting human review, staged alongside a
// SyncProposal in the same transaction (the draft invariant, spec §4.1).
type DraftPost struct {
	ID               string
	OrganizationID   string
	Title            string
	Description      string
	Type             string
	Category         string
	Urgency          string
	RevisionOfPostID *string
	Contacts         []Contact
	Schedules        []ScheduleEntry
	Tags             []Tag
	Locations        []Location
	SourceURLs       []string
}

// DraftNote is a draft note awaiting human review.
type DraftNote struct {
	ID             string
	OrganizationID string
	TargetPostID   *string
	Content        string
	Severity       NoteSeverity
}

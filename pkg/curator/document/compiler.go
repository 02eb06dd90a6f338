// Package document implements phase 4, the Document Compiler (spec §4.4): a
// pure, deterministic assembly of the curator's input document from briefs,
// existing posts, and active notes, under a hard character budget.
package document

import (
	"fmt"
	"strings"

	"github.com/mntogether/curator/pkg/curator/domain"
)

const defaultBudgetChars = 200_000

// Config tunes the compiler per spec §6.3's document.budget_chars.
type Config struct {
	BudgetChars int
}

// DefaultConfig returns the spec's documented default budget.
func DefaultConfig() Config {
	return Config{BudgetChars: defaultBudgetChars}
}

// Input bundles everything the compiler assembles, in priority order.
type Input struct {
	Organization  domain.Organization
	WebsiteBriefs []domain.PageBrief
	SocialBriefs  []domain.PageBrief
	ExistingPosts []domain.Post
	ActiveNotes   []domain.Note
}

func (c Config) budget() int {
	if c.BudgetChars > 0 {
		return c.BudgetChars
	}
	return defaultBudgetChars
}

// Compile assembles Input into the document text, in priority order. No
// section is ever truncated mid-way: a section that would overflow the
// budget is skipped whole along with the rest of its tier, and compilation
// continues to the next priority tier rather than stopping (spec §4.4).
func Compile(cfg Config, in Input) string {
	budget := cfg.budget()
	var sb strings.Builder

	for _, tier := range buildSections(in) {
		for _, section := range tier {
			if sb.Len()+len(section) > budget {
				break
			}
			sb.WriteString(section)
		}
	}
	return sb.String()
}

// buildSections returns the document's sections grouped into priority tiers.
func buildSections(in Input) [][]string {
	var website, social, posts, notes []string

	for _, b := range in.WebsiteBriefs {
		website = append(website, briefSection("Website", b))
	}
	for _, b := range in.SocialBriefs {
		social = append(social, briefSection("Social media", b))
	}
	for _, p := range in.ExistingPosts {
		posts = append(posts, postSection(p))
	}
	for _, n := range in.ActiveNotes {
		notes = append(notes, noteSection(n))
	}

	return [][]string{{orgHeader(in.Organization)}, website, social, posts, notes}
}

func orgHeader(org domain.Organization) string {
	return fmt.Sprintf("# Organization: %s\n\n%s\n\n", org.Name, org.Description)
}

func briefSection(kind string, b domain.PageBrief) string {
	if b.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s brief: %s\n\n%s\n\n", kind, b.SourceURL, b.Summary)
	if len(b.Services) > 0 {
		fmt.Fprintf(&sb, "Services: %s\n", strings.Join(b.Services, ", "))
	}
	if len(b.Locations) > 0 {
		fmt.Fprintf(&sb, "Locations: %s\n", strings.Join(b.Locations, "; "))
	}
	if len(b.CallsToAction) > 0 {
		fmt.Fprintf(&sb, "Calls to action: %s\n", strings.Join(b.CallsToAction, "; "))
	}
	if b.CriticalInfo != nil {
		fmt.Fprintf(&sb, "Critical info: %s\n", *b.CriticalInfo)
	}
	if b.CapacityInfo != nil {
		fmt.Fprintf(&sb, "Capacity: %s\n", *b.CapacityInfo)
	}
	for _, contact := range b.Contacts {
		fmt.Fprintf(&sb, "Contact (%s): %s\n", contact.Kind, contact.Value)
	}
	sb.WriteString("\n")
	return sb.String()
}

func postSection(p domain.Post) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## [POST-%s] %s\n\n%s\n\n", p.ID, p.Title, p.Description)
	for _, contact := range p.Contacts {
		fmt.Fprintf(&sb, "Contact (%s): %s\n", contact.Kind, contact.Value)
	}
	for _, loc := range p.Locations {
		fmt.Fprintf(&sb, "Location: %s\n", loc.Address)
	}
	if len(p.Tags) > 0 {
		tags := make([]string, len(p.Tags))
		for i, t := range p.Tags {
			tags[i] = fmt.Sprintf("%s:%s", t.Kind, t.Value)
		}
		fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(tags, ", "))
	}
	for _, s := range p.Schedules {
		fmt.Fprintf(&sb, "Schedule: %s\n", formatSchedule(s))
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatSchedule(s domain.ScheduleEntry) string {
	switch {
	case s.OpensAt != nil && s.ClosesAt != nil && s.DayOfWeek != nil:
		return fmt.Sprintf("day %d, %s-%s", *s.DayOfWeek, *s.OpensAt, *s.ClosesAt)
	case s.Date != nil && s.IsAllDay:
		return fmt.Sprintf("%s (all day)", s.Date.Format("2006-01-02"))
	case s.Date != nil:
		return s.Date.Format("2006-01-02")
	default:
		return "unspecified"
	}
}

func noteSection(n domain.Note) string {
	return fmt.Sprintf("## [NOTE-%s] (%s)\n\n%s\n\n", n.ID, n.Severity, n.Content)
}

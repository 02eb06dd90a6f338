// Package validation implements the structural checks the curator applies to
// LLM-produced and admin-produced data before it is allowed onto disk —
// chiefly the three accepted schedule shapes from spec §4.8.
package validation

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var v = validator.New()

// ScheduleKind identifies which of the three accepted shapes a schedule row
// claims to be.
type ScheduleKind string

const (
	ScheduleOperatingHours ScheduleKind = "operating_hours"
	ScheduleRecurring      ScheduleKind = "recurring_event"
	ScheduleOneOff         ScheduleKind = "one_off"
)

// Schedule is the union of all fields the three schedule shapes can carry.
// Exactly one ScheduleKind's required fields must be populated.
type Schedule struct {
	Kind        ScheduleKind
	DayOfWeek   *int // 0=Sunday..6=Saturday
	OpensAt     *string
	ClosesAt    *string
	Frequency   *string
	RRule       *string
	Date        *time.Time
	StartTime   *string
	EndTime     *string
	IsAllDay    bool
}

// ValidateSchedule checks s against the shape implied by s.Kind, per spec
// §4.8. An invalid schedule row is dropped by the caller; it never blocks
// staging the owning post.
func ValidateSchedule(s Schedule) error {
	switch s.Kind {
	case ScheduleOperatingHours:
		return validateOperatingHours(s)
	case ScheduleRecurring:
		return validateRecurring(s)
	case ScheduleOneOff:
		return validateOneOff(s)
	default:
		return fmt.Errorf("unknown schedule kind: %q", s.Kind)
	}
}

func validateOperatingHours(s Schedule) error {
	if s.DayOfWeek == nil {
		return fmt.Errorf("operating hours require day_of_week")
	}
	if s.OpensAt == nil {
		return fmt.Errorf("operating hours require opens_at")
	}
	if s.ClosesAt == nil {
		// opens_at without closes_at is generic org-hours leakage, per spec §4.8.
		return fmt.Errorf("operating hours with opens_at but no closes_at are rejected")
	}
	return nil
}

func validateRecurring(s Schedule) error {
	if s.Frequency == nil && s.RRule == nil {
		return fmt.Errorf("recurring event requires frequency or rrule")
	}
	if s.DayOfWeek == nil {
		return fmt.Errorf("recurring event requires day_of_week")
	}
	if s.OpensAt == nil || s.ClosesAt == nil {
		return fmt.Errorf("recurring event requires opens_at and closes_at")
	}
	return nil
}

func validateOneOff(s Schedule) error {
	if s.Date == nil {
		return fmt.Errorf("one-off event requires a date")
	}
	if s.IsAllDay {
		return nil
	}
	if s.StartTime == nil || s.EndTime == nil {
		return fmt.Errorf("one-off event requires start_time and end_time unless is_all_day")
	}
	return nil
}

// Struct validates an arbitrary struct's `validate` tags (config, HTTP
// request bodies) using the shared go-playground validator instance.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

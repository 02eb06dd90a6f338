package validation

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestValidation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Schedule Validation Suite")
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

var _ = Describe("ValidateSchedule", func() {
	Describe("operating hours", func() {
		It("accepts a complete day/opens/closes triple", func() {
			s := Schedule{Kind: ScheduleOperatingHours, DayOfWeek: intp(2), OpensAt: strp("09:00"), ClosesAt: strp("17:00")}
			Expect(ValidateSchedule(s)).To(Succeed())
		})

		It("rejects opens_at without closes_at (generic org hours leaking in)", func() {
			s := Schedule{Kind: ScheduleOperatingHours, DayOfWeek: intp(2), OpensAt: strp("09:00")}
			err := ValidateSchedule(s)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("opens_at but no closes_at"))
		})

		It("rejects a missing day_of_week", func() {
			s := Schedule{Kind: ScheduleOperatingHours, OpensAt: strp("09:00"), ClosesAt: strp("17:00")}
			Expect(ValidateSchedule(s)).To(MatchError(ContainSubstring("day_of_week")))
		})
	})

	Describe("recurring events", func() {
		It("accepts a frequency-based recurrence", func() {
			s := Schedule{Kind: ScheduleRecurring, Frequency: strp("weekly"), DayOfWeek: intp(1), OpensAt: strp("12:00"), ClosesAt: strp("13:00")}
			Expect(ValidateSchedule(s)).To(Succeed())
		})

		It("accepts an rrule-based recurrence", func() {
			s := Schedule{Kind: ScheduleRecurring, RRule: strp("FREQ=WEEKLY"), DayOfWeek: intp(1), OpensAt: strp("12:00"), ClosesAt: strp("13:00")}
			Expect(ValidateSchedule(s)).To(Succeed())
		})

		It("rejects a recurrence with neither frequency nor rrule", func() {
			s := Schedule{Kind: ScheduleRecurring, DayOfWeek: intp(1), OpensAt: strp("12:00"), ClosesAt: strp("13:00")}
			Expect(ValidateSchedule(s)).To(HaveOccurred())
		})
	})

	Describe("one-off events", func() {
		now := time.Now()

		It("accepts a timed one-off event", func() {
			s := Schedule{Kind: ScheduleOneOff, Date: &now, StartTime: strp("10:00"), EndTime: strp("11:00")}
			Expect(ValidateSchedule(s)).To(Succeed())
		})

		It("accepts an all-day one-off event without times", func() {
			s := Schedule{Kind: ScheduleOneOff, Date: &now, IsAllDay: true}
			Expect(ValidateSchedule(s)).To(Succeed())
		})

		It("rejects a non-all-day event missing start_time", func() {
			s := Schedule{Kind: ScheduleOneOff, Date: &now, EndTime: strp("11:00")}
			Expect(ValidateSchedule(s)).To(HaveOccurred())
		})

		It("rejects an event with no date", func() {
			s := Schedule{Kind: ScheduleOneOff, IsAllDay: true}
			Expect(ValidateSchedule(s)).To(HaveOccurred())
		})
	})

	It("rejects an unknown schedule kind", func() {
		Expect(ValidateSchedule(Schedule{Kind: "bogus"})).To(HaveOccurred())
	})
})

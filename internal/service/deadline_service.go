package service

import (
	"time"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

// DeadlinePolicy carries the working-day lead times and the fixed policy
// cutover date used by deadline computation.
type DeadlinePolicy struct {
	PlanCreationDays int
	ReviewDays       int
	CutoverDate      time.Time
}

// DeadlineCalculator computes concrete deadline dates from a baseline date
// against the working-day calendar. Read-only and safe for concurrent use.
type DeadlineCalculator struct {
	calendar *WorkingDayCalendar
	policy   DeadlinePolicy
}

// NewDeadlineCalculator builds a calculator over the calendar and policy.
func NewDeadlineCalculator(calendar *WorkingDayCalendar, policy DeadlinePolicy) *DeadlineCalculator {
	return &DeadlineCalculator{calendar: calendar, policy: policy}
}

// Deadline returns addWorkingDays(max(baseline, cutover), daysFor(kind)).
// The organisation guarantees the full lead time from whichever is later,
// the triggering event or the policy go-live, so nobody gets an impossibly
// short deadline during rollout. The result is always on or after both
// inputs.
func (d *DeadlineCalculator) Deadline(baseline time.Time, kind models.ScheduleKind) time.Time {
	start := baseline
	if d.policy.CutoverDate.After(start) {
		start = d.policy.CutoverDate
	}

	return d.calendar.AddWorkingDays(start, d.daysFor(kind))
}

func (d *DeadlineCalculator) daysFor(kind models.ScheduleKind) int {
	if kind == models.ReviewSchedule {
		return d.policy.ReviewDays
	}
	return d.policy.PlanCreationDays
}

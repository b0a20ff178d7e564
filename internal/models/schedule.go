package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleKind discriminates the two deadline schedules tracked per person.
type ScheduleKind string

const (
	PlanCreationSchedule ScheduleKind = "PLAN_CREATION_SCHEDULE"
	ReviewSchedule       ScheduleKind = "REVIEW_SCHEDULE"
)

// Valid reports whether the kind is one of the two known schedule kinds.
func (k ScheduleKind) Valid() bool {
	return k == PlanCreationSchedule || k == ReviewSchedule
}

// ScheduleStatus enumerates the shared status set of both schedule kinds.
type ScheduleStatus string

const (
	StatusScheduled            ScheduleStatus = "SCHEDULED"
	StatusExemptSystemIssue    ScheduleStatus = "EXEMPT_SYSTEM_TECHNICAL_ISSUE"
	StatusExemptTransfer       ScheduleStatus = "EXEMPT_PRISONER_TRANSFER"
	StatusExemptRelease        ScheduleStatus = "EXEMPT_PRISONER_RELEASE"
	StatusExemptDeath          ScheduleStatus = "EXEMPT_PRISONER_DEATH"
	StatusExemptMerge          ScheduleStatus = "EXEMPT_PRISONER_MERGE"
	StatusExemptNotComply      ScheduleStatus = "EXEMPT_PRISONER_NOT_COMPLY"
	StatusExemptNotInEducation ScheduleStatus = "EXEMPT_NOT_IN_EDUCATION"
	StatusExemptUnknown        ScheduleStatus = "EXEMPT_UNKNOWN"
	StatusCompleted            ScheduleStatus = "COMPLETED"
)

// ActiveReview reports whether a schedule in this status still counts as
// actively tracked. It is derived from status and never stored.
func (s ScheduleStatus) ActiveReview() bool {
	return s == StatusScheduled || s == StatusExemptSystemIssue
}

// IsExemption reports whether the status is one of the EXEMPT_* variants.
func (s ScheduleStatus) IsExemption() bool {
	switch s {
	case StatusExemptSystemIssue, StatusExemptTransfer, StatusExemptRelease,
		StatusExemptDeath, StatusExemptMerge, StatusExemptNotComply,
		StatusExemptNotInEducation, StatusExemptUnknown:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is legal from this status.
func (s ScheduleStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// FarFutureDate is the sentinel standing in for "no concrete deadline yet".
// Consumers must treat it as absent, never compare or display it as a real date.
var FarFutureDate = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// IsFarFuture reports whether the date is the sentinel deadline.
func IsFarFuture(d time.Time) bool {
	return !d.Before(FarFutureDate)
}

// Schedule is the current schedule row for one (person, kind) pair. At most
// one row exists per pair; transitions mutate it in place and the full
// snapshot of every revision lives in ScheduleHistory.
type Schedule struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Reference       uuid.UUID      `gorm:"type:uuid;not null" json:"reference"`
	PrisonNumber    string         `gorm:"size:10;not null;uniqueIndex:idx_schedule_person_kind" json:"prison_number"`
	Kind            ScheduleKind   `gorm:"size:32;not null;uniqueIndex:idx_schedule_person_kind" json:"kind"`
	Status          ScheduleStatus `gorm:"size:40;not null" json:"status"`
	DeadlineDate    *time.Time     `gorm:"type:date" json:"deadline_date,omitempty"`
	ExemptionReason *string        `gorm:"size:200" json:"exemption_reason,omitempty"`
	ExemptionDetail *string        `gorm:"type:text" json:"exemption_detail,omitempty"`
	CreatedAtPrison string         `gorm:"size:3;not null" json:"created_at_prison"`
	UpdatedAtPrison string         `gorm:"size:3;not null" json:"updated_at_prison"`
	CreatedBy       string         `gorm:"size:100;not null" json:"created_by"`
	UpdatedBy       string         `gorm:"size:100;not null" json:"updated_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ScheduleHistory is an immutable full-field snapshot appended on every
// schedule transition. Version is assigned transactionally and increases
// strictly within one (prison number, kind) timeline; rows are never updated
// or deleted.
type ScheduleHistory struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Reference       uuid.UUID      `gorm:"type:uuid;not null;index" json:"reference"`
	PrisonNumber    string         `gorm:"size:10;not null;uniqueIndex:idx_history_person_kind_version" json:"prison_number"`
	Kind            ScheduleKind   `gorm:"size:32;not null;uniqueIndex:idx_history_person_kind_version" json:"kind"`
	Version         int            `gorm:"not null;uniqueIndex:idx_history_person_kind_version" json:"version"`
	RevisionNumber  int            `gorm:"not null" json:"revision_number"`
	Status          ScheduleStatus `gorm:"size:40;not null" json:"status"`
	DeadlineDate    *time.Time     `gorm:"type:date" json:"deadline_date,omitempty"`
	ExemptionReason *string        `gorm:"size:200" json:"exemption_reason,omitempty"`
	ExemptionDetail *string        `gorm:"type:text" json:"exemption_detail,omitempty"`
	CreatedAtPrison string         `gorm:"size:3;not null" json:"created_at_prison"`
	UpdatedAtPrison string         `gorm:"size:3;not null" json:"updated_at_prison"`
	UpdatedBy       string         `gorm:"size:100;not null" json:"updated_by"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Snapshot copies the schedule's current fields into a history row; the
// caller assigns Version inside the same transaction as the state write.
func (s Schedule) Snapshot(revision int) ScheduleHistory {
	return ScheduleHistory{
		Reference:       s.Reference,
		PrisonNumber:    s.PrisonNumber,
		Kind:            s.Kind,
		RevisionNumber:  revision,
		Status:          s.Status,
		DeadlineDate:    s.DeadlineDate,
		ExemptionReason: s.ExemptionReason,
		ExemptionDetail: s.ExemptionDetail,
		CreatedAtPrison: s.CreatedAtPrison,
		UpdatedAtPrison: s.UpdatedAtPrison,
		UpdatedBy:       s.UpdatedBy,
	}
}

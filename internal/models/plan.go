package models

import "time"

// SupportPlan marks that a support plan exists for a person, or that the
// person declined one. The plan content itself lives in another service;
// this row only feeds status derivation and review scheduling.
type SupportPlan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	PrisonNumber    string    `gorm:"size:10;not null;uniqueIndex" json:"prison_number"`
	Declined        bool      `gorm:"not null;default:false" json:"declined"`
	CreatedAtPrison string    `gorm:"size:3;not null" json:"created_at_prison"`
	CreatedBy       string    `gorm:"size:100;not null" json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PersonOverview is the denormalized snapshot plan-status derivation reads.
// It is assembled from the plan, schedule, need and education tables at read
// time and never persisted.
type PersonOverview struct {
	PrisonNumber             string
	InEducation              bool
	HasNeed                  bool
	HasPlan                  bool
	PlanDeclined             bool
	PlanCreationDeadlineDate *time.Time
	ReviewDeadlineDate       *time.Time
	// DeadlineDate is whichever of the two deadlines is current: the review
	// deadline once a plan exists, otherwise the plan-creation deadline.
	DeadlineDate *time.Time
}

// PlanStatus is the human-facing classification derived from an overview.
type PlanStatus string

const (
	PlanStatusNoPlan        PlanStatus = "NO_PLAN"
	PlanStatusNeedsPlan     PlanStatus = "NEEDS_PLAN"
	PlanStatusPlanDue       PlanStatus = "PLAN_DUE"
	PlanStatusPlanOverdue   PlanStatus = "PLAN_OVERDUE"
	PlanStatusReviewDue     PlanStatus = "REVIEW_DUE"
	PlanStatusReviewOverdue PlanStatus = "REVIEW_OVERDUE"
	PlanStatusActivePlan    PlanStatus = "ACTIVE_PLAN"
	PlanStatusInactivePlan  PlanStatus = "INACTIVE_PLAN"
	PlanStatusPlanDeclined  PlanStatus = "PLAN_DECLINED"
)

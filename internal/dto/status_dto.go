package dto

import "github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"

// PlanStatusResponse reports the derived display status for one person.
type PlanStatusResponse struct {
	PrisonNumber             string  `json:"prison_number"`
	Status                   string  `json:"status"`
	InEducation              bool    `json:"in_education"`
	HasNeed                  bool    `json:"has_need"`
	HasPlan                  bool    `json:"has_plan"`
	PlanDeclined             bool    `json:"plan_declined"`
	PlanCreationDeadlineDate *string `json:"plan_creation_deadline_date,omitempty"`
	ReviewDeadlineDate       *string `json:"review_deadline_date,omitempty"`
	DeadlineDate             *string `json:"deadline_date,omitempty"`
}

// NewPlanStatusResponse combines the overview snapshot and derived status.
// A nil overview (person unknown) renders an empty snapshot with NO_PLAN.
func NewPlanStatusResponse(prisonNumber string, overview *models.PersonOverview, status models.PlanStatus) PlanStatusResponse {
	response := PlanStatusResponse{
		PrisonNumber: prisonNumber,
		Status:       string(status),
	}

	if overview != nil {
		response.InEducation = overview.InEducation
		response.HasNeed = overview.HasNeed
		response.HasPlan = overview.HasPlan
		response.PlanDeclined = overview.PlanDeclined
		response.PlanCreationDeadlineDate = formatDate(overview.PlanCreationDeadlineDate)
		response.ReviewDeadlineDate = formatDate(overview.ReviewDeadlineDate)
		response.DeadlineDate = formatDate(overview.DeadlineDate)
	}

	return response
}

// NeedSourcesResponse lists which evidence sources contribute to need.
type NeedSourcesResponse struct {
	PrisonNumber string   `json:"prison_number"`
	HasNeed      bool     `json:"has_need"`
	Sources      []string `json:"sources"`
}

// NewNeedSourcesResponse maps the resolver output for a person.
func NewNeedSourcesResponse(prisonNumber string, sources []models.NeedSource) NeedSourcesResponse {
	tags := make([]string, 0, len(sources))
	for _, source := range sources {
		tags = append(tags, string(source))
	}

	return NeedSourcesResponse{
		PrisonNumber: prisonNumber,
		HasNeed:      len(sources) > 0,
		Sources:      tags,
	}
}

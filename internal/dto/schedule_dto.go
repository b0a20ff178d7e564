package dto

import (
	"time"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

const dateLayout = "2006-01-02"

// CreateScheduleRequest starts a plan-creation schedule for a person.
type CreateScheduleRequest struct {
	PrisonID string `json:"prison_id" validate:"required,len=3"`
}

// ExemptScheduleRequest pauses a schedule with a reason code and optional detail.
type ExemptScheduleRequest struct {
	PrisonID string  `json:"prison_id" validate:"required,len=3"`
	Reason   string  `json:"reason" validate:"required"`
	Detail   *string `json:"detail,omitempty" validate:"omitempty,max=4000"`
}

// CompleteScheduleRequest closes the current schedule instance.
type CompleteScheduleRequest struct {
	PrisonID string `json:"prison_id" validate:"required,len=3"`
}

// ScheduleResponse is the API shape of a current schedule.
type ScheduleResponse struct {
	Reference       string  `json:"reference"`
	PrisonNumber    string  `json:"prison_number"`
	Kind            string  `json:"kind"`
	Status          string  `json:"status"`
	ActiveReview    bool    `json:"active_review"`
	DeadlineDate    *string `json:"deadline_date,omitempty"`
	ExemptionReason *string `json:"exemption_reason,omitempty"`
	ExemptionDetail *string `json:"exemption_detail,omitempty"`
	CreatedAtPrison string  `json:"created_at_prison"`
	UpdatedAtPrison string  `json:"updated_at_prison"`
	CreatedBy       string  `json:"created_by"`
	UpdatedBy       string  `json:"updated_by"`
	UpdatedAt       string  `json:"updated_at"`
}

// ScheduleHistoryResponse is one immutable revision of a schedule timeline.
type ScheduleHistoryResponse struct {
	Reference       string  `json:"reference"`
	Version         int     `json:"version"`
	RevisionNumber  int     `json:"revision_number"`
	Status          string  `json:"status"`
	DeadlineDate    *string `json:"deadline_date,omitempty"`
	ExemptionReason *string `json:"exemption_reason,omitempty"`
	ExemptionDetail *string `json:"exemption_detail,omitempty"`
	UpdatedAtPrison string  `json:"updated_at_prison"`
	UpdatedBy       string  `json:"updated_by"`
	CreatedAt       string  `json:"created_at"`
}

// NewScheduleResponse maps a schedule model to its API shape. The far-future
// sentinel deadline is rendered as absent.
func NewScheduleResponse(schedule models.Schedule) ScheduleResponse {
	return ScheduleResponse{
		Reference:       schedule.Reference.String(),
		PrisonNumber:    schedule.PrisonNumber,
		Kind:            string(schedule.Kind),
		Status:          string(schedule.Status),
		ActiveReview:    schedule.Status.ActiveReview(),
		DeadlineDate:    formatDate(schedule.DeadlineDate),
		ExemptionReason: schedule.ExemptionReason,
		ExemptionDetail: schedule.ExemptionDetail,
		CreatedAtPrison: schedule.CreatedAtPrison,
		UpdatedAtPrison: schedule.UpdatedAtPrison,
		CreatedBy:       schedule.CreatedBy,
		UpdatedBy:       schedule.UpdatedBy,
		UpdatedAt:       schedule.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewScheduleHistoryResponseSlice maps a schedule's audit trail.
func NewScheduleHistoryResponseSlice(history []models.ScheduleHistory) []ScheduleHistoryResponse {
	responses := make([]ScheduleHistoryResponse, 0, len(history))
	for _, row := range history {
		responses = append(responses, ScheduleHistoryResponse{
			Reference:       row.Reference.String(),
			Version:         row.Version,
			RevisionNumber:  row.RevisionNumber,
			Status:          string(row.Status),
			DeadlineDate:    formatDate(row.DeadlineDate),
			ExemptionReason: row.ExemptionReason,
			ExemptionDetail: row.ExemptionDetail,
			UpdatedAtPrison: row.UpdatedAtPrison,
			UpdatedBy:       row.UpdatedBy,
			CreatedAt:       row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return responses
}

func formatDate(d *time.Time) *string {
	if d == nil || models.IsFarFuture(*d) {
		return nil
	}

	formatted := d.Format(dateLayout)
	return &formatted
}

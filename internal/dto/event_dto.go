package dto

import (
	"encoding/json"
	"fmt"
	"time"
)

// Lifecycle event types consumed from the offender-events topic. The set is
// closed; unknown types are logged and dropped so schema additions upstream
// never block the stream.
const (
	EventPrisonerAdmitted       = "prisoner.admitted"
	EventPrisonerReleased       = "prisoner.released"
	EventPrisonerMerged         = "prisoner.merged"
	EventEducationStatusChanged = "education.status-changed"
	EventAlnAssessmentUpdated   = "assessment.aln-updated"
)

// Admission reason codes.
const (
	AdmissionNewAdmission    = "NEW_ADMISSION"
	AdmissionTransfer        = "TRANSFERRED"
	AdmissionCourtReturn     = "RETURN_FROM_COURT"
	AdmissionTemporaryReturn = "TEMPORARY_ABSENCE_RETURN"
)

// MovementReasonDeceased is the NOMIS movement reason carried on a release
// event when the person has died.
const MovementReasonDeceased = "DEC"

// Education status values.
const (
	EducationStarted = "EDUCATION_STARTED"
	EducationEnded   = "EDUCATION_ENDED"
)

// EventEnvelope is the outer shape of every lifecycle message. The payload is
// a tagged union: AdditionalInformation decodes to the variant named by
// EventType.
type EventEnvelope struct {
	MessageID             string          `json:"message_id" validate:"required"`
	EventType             string          `json:"event_type" validate:"required"`
	PrisonNumber          string          `json:"prison_number" validate:"required"`
	OccurredAt            time.Time       `json:"occurred_at"`
	AdditionalInformation json.RawMessage `json:"additional_information"`
}

// PrisonerAdmitted carries the admission sub-reason and receiving prison.
type PrisonerAdmitted struct {
	Reason   string `json:"reason" validate:"required"`
	PrisonID string `json:"prison_id" validate:"required,len=3"`
}

// PrisonerReleased carries the release reason and NOMIS movement code; a
// "DEC" movement code marks a death rather than a normal release.
type PrisonerReleased struct {
	Reason                  string `json:"reason"`
	NomisMovementReasonCode string `json:"nomis_movement_reason_code"`
	PrisonID                string `json:"prison_id" validate:"required,len=3"`
}

// PrisonerMerged names the removed record folded into the surviving one. The
// envelope's prison number is the surviving identity.
type PrisonerMerged struct {
	RemovedPrisonNumber string `json:"removed_prison_number" validate:"required"`
	PrisonID            string `json:"prison_id" validate:"required,len=3"`
}

// EducationStatusChanged reports an education spell starting or ending.
type EducationStatusChanged struct {
	Status        string  `json:"status" validate:"required,oneof=EDUCATION_STARTED EDUCATION_ENDED"`
	Establishment string  `json:"establishment" validate:"required,len=3"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       *string `json:"end_date,omitempty"`
}

// AlnAssessmentUpdated reports a fresh ALN screener result.
type AlnAssessmentUpdated struct {
	AssessmentDate string `json:"assessment_date" validate:"required"`
	HasNeed        bool   `json:"has_need"`
	PrisonID       string `json:"prison_id" validate:"required,len=3"`
}

// ParseEventDate parses the date-only fields carried on event payloads.
func ParseEventDate(value string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event date %q: %w", value, err)
	}

	return parsed, nil
}

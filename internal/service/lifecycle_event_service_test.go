package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/dto"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

type reactorHarness struct {
	ledger    *fakeInboundEventRepo
	education *fakeEducationRepo
	plans     *fakePlanRepo
	needRepo  *fakeNeedRepo
	schedules *fakeScheduleRepo
	svc       LifecycleEventService
}

func newReactorHarness(t *testing.T, now time.Time) *reactorHarness {
	t.Helper()

	h := &reactorHarness{
		ledger:    newFakeInboundEventRepo(),
		education: newFakeEducationRepo(),
		plans:     newFakePlanRepo(),
		needRepo:  newFakeNeedRepo(),
		schedules: newFakeScheduleRepo(),
	}

	needs := NewNeedResolver(h.needRepo, zerolog.Nop())
	scheduleSvc := newTestScheduleService(h.schedules, now)

	svc := NewLifecycleEventService(
		h.ledger, h.education, h.plans, h.needRepo, needs, scheduleSvc,
		testDeadlineCalculator(), nil, "", "", validator.New(), zerolog.Nop(),
	).(*lifecycleEventService)
	svc.now = func() time.Time { return now }
	h.svc = svc

	return h
}

// enrolAndFlagNeed makes the person eligible for a plan-creation schedule.
func (h *reactorHarness) enrolAndFlagNeed(t *testing.T, prisonNumber string) {
	t.Helper()
	require.NoError(t, h.education.Create(context.Background(), &models.EducationEnrolment{
		PrisonNumber:  prisonNumber,
		Establishment: "MDI",
		StartDate:     date(2025, time.June, 2),
	}))
	h.needRepo.conditions[prisonNumber] = true
}

func (h *reactorHarness) currentSchedule(t *testing.T, prisonNumber string, kind models.ScheduleKind) models.Schedule {
	t.Helper()
	schedule, err := h.schedules.GetCurrent(context.Background(), prisonNumber, kind)
	require.NoError(t, err)
	return schedule
}

func eventMessage(t *testing.T, messageID, eventType, prisonNumber string, info any) []byte {
	t.Helper()

	payload, err := json.Marshal(info)
	require.NoError(t, err)

	envelope := map[string]any{
		"message_id":             messageID,
		"event_type":             eventType,
		"prison_number":          prisonNumber,
		"occurred_at":            time.Now().UTC(),
		"additional_information": json.RawMessage(payload),
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return data
}

func TestNewAdmissionCreatesPlanCreationSchedule(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	h.enrolAndFlagNeed(t, "A1234BC")

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventPrisonerAdmitted, "A1234BC",
		dto.PrisonerAdmitted{Reason: dto.AdmissionNewAdmission, PrisonID: "MDI"}))

	schedule := h.currentSchedule(t, "A1234BC", models.PlanCreationSchedule)
	require.Equal(t, models.StatusScheduled, schedule.Status)
	require.Equal(t, date(2025, time.November, 10), *schedule.DeadlineDate)
	require.Equal(t, "SYSTEM", schedule.CreatedBy)
	require.Equal(t, "MDI", schedule.CreatedAtPrison)

	require.Equal(t, models.EventOutcomeProcessed, h.ledger.events["msg-1"].Outcome)
}

func TestTransferAdmissionChangesNothing(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	h.enrolAndFlagNeed(t, "A1234BC")

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventPrisonerAdmitted, "A1234BC",
		dto.PrisonerAdmitted{Reason: dto.AdmissionTransfer, PrisonID: "LEI"}))

	_, err := h.schedules.GetCurrent(context.Background(), "A1234BC", models.PlanCreationSchedule)
	require.Error(t, err)
	require.Equal(t, models.EventOutcomeIgnored, h.ledger.events["msg-1"].Outcome)
}

func TestAdmissionWithoutEducationIsIgnored(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	h.needRepo.conditions["A1234BC"] = true // need but no enrolment

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventPrisonerAdmitted, "A1234BC",
		dto.PrisonerAdmitted{Reason: dto.AdmissionNewAdmission, PrisonID: "MDI"}))

	_, err := h.schedules.GetCurrent(context.Background(), "A1234BC", models.PlanCreationSchedule)
	require.Error(t, err)
	require.Equal(t, models.EventOutcomeIgnored, h.ledger.events["msg-1"].Outcome)
}

func TestRedeliveredMessageIsIdempotent(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	h.enrolAndFlagNeed(t, "A1234BC")

	message := eventMessage(t, "msg-1", dto.EventPrisonerAdmitted, "A1234BC",
		dto.PrisonerAdmitted{Reason: dto.AdmissionNewAdmission, PrisonID: "MDI"})
	h.svc.Handle(context.Background(), message)
	h.svc.Handle(context.Background(), message)

	history, err := h.schedules.History(context.Background(), "A1234BC", models.PlanCreationSchedule)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestDuplicateAdmissionEventsDoNotStackSchedules(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	h.enrolAndFlagNeed(t, "A1234BC")

	// Distinct message ids carrying the same fact; the second create is a
	// conflict and the reactor treats it as a no-op.
	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventPrisonerAdmitted, "A1234BC",
		dto.PrisonerAdmitted{Reason: dto.AdmissionNewAdmission, PrisonID: "MDI"}))
	h.svc.Handle(context.Background(), eventMessage(t, "msg-2", dto.EventPrisonerAdmitted, "A1234BC",
		dto.PrisonerAdmitted{Reason: dto.AdmissionNewAdmission, PrisonID: "MDI"}))

	history, err := h.schedules.History(context.Background(), "A1234BC", models.PlanCreationSchedule)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.EventOutcomeIgnored, h.ledger.events["msg-2"].Outcome)
}

func TestReleaseExemptsBothSchedules(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	deadline := date(2025, time.November, 10)
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1234BC", Kind: models.PlanCreationSchedule,
		Status: models.StatusScheduled, DeadlineDate: &deadline,
	}))
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1234BC", Kind: models.ReviewSchedule,
		Status: models.StatusScheduled, DeadlineDate: &deadline,
	}))

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventPrisonerReleased, "A1234BC",
		dto.PrisonerReleased{Reason: "RELEASED", NomisMovementReasonCode: "CR", PrisonID: "MDI"}))

	for _, kind := range []models.ScheduleKind{models.PlanCreationSchedule, models.ReviewSchedule} {
		schedule := h.currentSchedule(t, "A1234BC", kind)
		require.Equal(t, models.StatusExemptRelease, schedule.Status)
		require.Nil(t, schedule.DeadlineDate)
	}
}

func TestReleaseWithDeceasedCodeExemptsAsDeath(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	deadline := date(2025, time.November, 10)
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1234BC", Kind: models.PlanCreationSchedule,
		Status: models.StatusScheduled, DeadlineDate: &deadline,
	}))
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1234BC", Kind: models.ReviewSchedule,
		Status: models.StatusScheduled, DeadlineDate: &deadline,
	}))

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventPrisonerReleased, "A1234BC",
		dto.PrisonerReleased{Reason: "RELEASED", NomisMovementReasonCode: dto.MovementReasonDeceased, PrisonID: "MDI"}))

	for _, kind := range []models.ScheduleKind{models.PlanCreationSchedule, models.ReviewSchedule} {
		require.Equal(t, models.StatusExemptDeath, h.currentSchedule(t, "A1234BC", kind).Status)
	}
}

func TestReleaseWithoutSchedulesIsIgnored(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventPrisonerReleased, "A1234BC",
		dto.PrisonerReleased{Reason: "RELEASED", PrisonID: "MDI"}))

	require.Equal(t, models.EventOutcomeIgnored, h.ledger.events["msg-1"].Outcome)
}

func TestMergeExemptsRemovedAndSchedulesSurvivor(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	// A1111AA is folded into B2222BB. The removed record has a live plan
	// schedule; the survivor is in education with need.
	deadline := date(2025, time.November, 10)
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1111AA", Kind: models.PlanCreationSchedule,
		Status: models.StatusScheduled, DeadlineDate: &deadline,
	}))
	h.enrolAndFlagNeed(t, "B2222BB")

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventPrisonerMerged, "B2222BB",
		dto.PrisonerMerged{RemovedPrisonNumber: "A1111AA", PrisonID: "MDI"}))

	removed := h.currentSchedule(t, "A1111AA", models.PlanCreationSchedule)
	require.Equal(t, models.StatusExemptMerge, removed.Status)

	surviving := h.currentSchedule(t, "B2222BB", models.PlanCreationSchedule)
	require.Equal(t, models.StatusScheduled, surviving.Status)
	require.Equal(t, date(2025, time.November, 10), *surviving.DeadlineDate)
}

func TestEducationStartedCreatesScheduleForPersonWithNeed(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	h.needRepo.challenges["A1234BC"] = true

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventEducationStatusChanged, "A1234BC",
		dto.EducationStatusChanged{
			Status:        dto.EducationStarted,
			Establishment: "MDI",
			StartDate:     "2025-11-05",
		}))

	enrolment, err := h.education.OpenEnrolment(context.Background(), "A1234BC")
	require.NoError(t, err)
	require.Equal(t, date(2025, time.November, 5), enrolment.StartDate)

	schedule := h.currentSchedule(t, "A1234BC", models.PlanCreationSchedule)
	require.Equal(t, models.StatusScheduled, schedule.Status)
	// Five working days from the Wednesday start date.
	require.Equal(t, date(2025, time.November, 12), *schedule.DeadlineDate)
}

func TestEducationStartedWithoutNeedOnlyRecordsEnrolment(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", dto.EventEducationStatusChanged, "A1234BC",
		dto.EducationStatusChanged{
			Status:        dto.EducationStarted,
			Establishment: "MDI",
			StartDate:     "2025-11-05",
		}))

	_, err := h.education.OpenEnrolment(context.Background(), "A1234BC")
	require.NoError(t, err)

	_, err = h.schedules.GetCurrent(context.Background(), "A1234BC", models.PlanCreationSchedule)
	require.Error(t, err)
}

func TestEducationStartedReactivatesExemptSchedule(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()
	h.needRepo.challenges["A1234BC"] = true

	reason := string(models.StatusExemptNotInEducation)
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber:    "A1234BC",
		Kind:            models.PlanCreationSchedule,
		Status:          models.StatusExemptNotInEducation,
		ExemptionReason: &reason,
	}))

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventEducationStatusChanged, "A1234BC",
		dto.EducationStatusChanged{
			Status:        dto.EducationStarted,
			Establishment: "MDI",
			StartDate:     "2025-11-05",
		}))

	schedule := h.currentSchedule(t, "A1234BC", models.PlanCreationSchedule)
	require.Equal(t, models.StatusScheduled, schedule.Status)
	require.Equal(t, date(2025, time.November, 12), *schedule.DeadlineDate)
	require.Nil(t, schedule.ExemptionReason)
}

func TestEducationEndedClosesEnrolmentAndExempts(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()
	h.enrolAndFlagNeed(t, "A1234BC")

	deadline := date(2025, time.November, 10)
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1234BC", Kind: models.PlanCreationSchedule,
		Status: models.StatusScheduled, DeadlineDate: &deadline,
	}))

	endDate := "2025-11-01"
	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventEducationStatusChanged, "A1234BC",
		dto.EducationStatusChanged{
			Status:        dto.EducationEnded,
			Establishment: "MDI",
			StartDate:     "2025-06-02",
			EndDate:       &endDate,
		}))

	_, err := h.education.OpenEnrolment(ctx, "A1234BC")
	require.Error(t, err)

	schedule := h.currentSchedule(t, "A1234BC", models.PlanCreationSchedule)
	require.Equal(t, models.StatusExemptNotInEducation, schedule.Status)
	require.Nil(t, schedule.DeadlineDate)
}

func TestAlnAssessmentCreatesPlanCreationSchedule(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	require.NoError(t, h.education.Create(ctx, &models.EducationEnrolment{
		PrisonNumber:  "A1234BC",
		Establishment: "MDI",
		StartDate:     date(2025, time.June, 2),
	}))

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventAlnAssessmentUpdated, "A1234BC",
		dto.AlnAssessmentUpdated{AssessmentDate: "2025-11-03", HasNeed: true, PrisonID: "MDI"}))

	saved, err := h.needRepo.LatestAssessment(ctx, "A1234BC", models.ScreenerALN)
	require.NoError(t, err)
	require.True(t, saved.HasNeed)

	schedule := h.currentSchedule(t, "A1234BC", models.PlanCreationSchedule)
	require.Equal(t, models.StatusScheduled, schedule.Status)
	require.Equal(t, date(2025, time.November, 10), *schedule.DeadlineDate)
}

func TestAlnAssessmentTargetsReviewScheduleWhenPlanExists(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	require.NoError(t, h.plans.Create(ctx, &models.SupportPlan{PrisonNumber: "A1234BC"}))

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventAlnAssessmentUpdated, "A1234BC",
		dto.AlnAssessmentUpdated{AssessmentDate: "2025-11-03", HasNeed: true, PrisonID: "MDI"}))

	schedule := h.currentSchedule(t, "A1234BC", models.ReviewSchedule)
	require.Equal(t, models.StatusScheduled, schedule.Status)
	// Ten working days for reviews.
	require.Equal(t, date(2025, time.November, 17), *schedule.DeadlineDate)

	_, err := h.schedules.GetCurrent(ctx, "A1234BC", models.PlanCreationSchedule)
	require.Error(t, err)
}

func TestAlnAssessmentWithoutNeedOnlyPersists(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventAlnAssessmentUpdated, "A1234BC",
		dto.AlnAssessmentUpdated{AssessmentDate: "2025-11-03", HasNeed: false, PrisonID: "MDI"}))

	saved, err := h.needRepo.LatestAssessment(ctx, "A1234BC", models.ScreenerALN)
	require.NoError(t, err)
	require.False(t, saved.HasNeed)

	_, err = h.schedules.GetCurrent(ctx, "A1234BC", models.PlanCreationSchedule)
	require.Error(t, err)
}

func TestAlnAssessmentRetargetsExistingDeadline(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))
	ctx := context.Background()

	oldDeadline := date(2025, time.October, 10)
	require.NoError(t, h.schedules.CreateWithHistory(ctx, &models.Schedule{
		PrisonNumber: "A1234BC", Kind: models.PlanCreationSchedule,
		Status: models.StatusScheduled, DeadlineDate: &oldDeadline,
	}))

	h.svc.Handle(ctx, eventMessage(t, "msg-1", dto.EventAlnAssessmentUpdated, "A1234BC",
		dto.AlnAssessmentUpdated{AssessmentDate: "2025-11-03", HasNeed: true, PrisonID: "MDI"}))

	schedule := h.currentSchedule(t, "A1234BC", models.PlanCreationSchedule)
	require.Equal(t, date(2025, time.November, 10), *schedule.DeadlineDate)
}

func TestUnknownEventTypeIsRecordedAsIgnored(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))

	h.svc.Handle(context.Background(), eventMessage(t, "msg-1", "prisoner.cell-moved", "A1234BC",
		map[string]string{"cell": "B-1-007"}))

	require.Equal(t, models.EventOutcomeIgnored, h.ledger.events["msg-1"].Outcome)
}

func TestUndecodableMessageIsDroppedWithoutLedgerEntry(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))

	h.svc.Handle(context.Background(), []byte("{not json"))

	require.Empty(t, h.ledger.events)
}

func TestEnvelopeMissingRequiredFieldsIsDropped(t *testing.T) {
	h := newReactorHarness(t, date(2025, time.November, 3))

	h.svc.Handle(context.Background(), []byte(`{"event_type":"prisoner.admitted"}`))

	require.Empty(t, h.ledger.events)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/dto"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/observability"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
)

// systemActor stamps audit fields on transitions applied by the reactor
// rather than a named user.
const systemActor = "SYSTEM"

// LifecycleEventService reacts to external lifecycle events and keeps both
// schedules current. Every handler recomputes state from persisted facts and
// applies idempotent upserts, so redelivery and out-of-order arrival are
// safe. Individual message failures are logged and isolated; nothing here
// raises into the transport.
type LifecycleEventService interface {
	Start(ctx context.Context)
	Handle(ctx context.Context, payload []byte)
}

type lifecycleEventService struct {
	ledger    repository.InboundEventRepository
	education repository.EducationRepository
	plans     repository.PlanRepository
	needsRepo repository.NeedRepository
	needs     NeedResolver
	schedules ScheduleService
	deadlines *DeadlineCalculator
	nats      *nats.Conn
	subject   string
	queue     string
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewLifecycleEventService builds the event reactor.
func NewLifecycleEventService(
	ledger repository.InboundEventRepository,
	education repository.EducationRepository,
	plans repository.PlanRepository,
	needsRepo repository.NeedRepository,
	needs NeedResolver,
	schedules ScheduleService,
	deadlines *DeadlineCalculator,
	natsConn *nats.Conn,
	subject, queue string,
	validate *validator.Validate,
	logger zerolog.Logger,
) LifecycleEventService {
	return &lifecycleEventService{
		ledger:    ledger,
		education: education,
		plans:     plans,
		needsRepo: needsRepo,
		needs:     needs,
		schedules: schedules,
		deadlines: deadlines,
		nats:      natsConn,
		subject:   subject,
		queue:     queue,
		validator: validate,
		logger:    logger.With().Str("component", "lifecycle_event_service").Logger(),
		tracer:    otel.Tracer("github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/service/lifecycle"),
		now:       time.Now,
	}
}

// Start subscribes to the event subject in a queue group and drains the
// subscription on context cancellation.
func (s *lifecycleEventService) Start(ctx context.Context) {
	if s.nats == nil || s.subject == "" {
		return
	}

	sub, err := s.nats.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		s.Handle(ctx, msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("subject", s.subject).Msg("failed to subscribe to lifecycle events")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain lifecycle event subscription")
		}
	}()
}

// Handle processes one delivered message end to end: decode, dedupe against
// the ledger, dispatch, record the outcome. Failed messages are not recorded
// so the transport's redelivery retries them.
func (s *lifecycleEventService) Handle(ctx context.Context, payload []byte) {
	var envelope dto.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("undecodable lifecycle event dropped")
		observability.EventsConsumed().WithLabelValues("unknown", models.EventOutcomeIgnored).Inc()
		return
	}

	logger := s.logger.With().
		Str("message_id", envelope.MessageID).
		Str("event_type", envelope.EventType).
		Str("prison_number", envelope.PrisonNumber).
		Logger()

	if err := s.validator.Struct(envelope); err != nil {
		logger.Warn().Err(err).Msg("invalid lifecycle event envelope dropped")
		observability.EventsConsumed().WithLabelValues(envelope.EventType, models.EventOutcomeIgnored).Inc()
		return
	}

	seen, err := s.ledger.Seen(ctx, envelope.MessageID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to check event ledger")
		return
	}
	if seen {
		logger.Info().Msg("duplicate lifecycle event skipped")
		observability.EventsConsumed().WithLabelValues(envelope.EventType, models.EventOutcomeDuplicate).Inc()
		return
	}

	spanCtx, span := s.tracer.Start(ctx, "lifecycle.handle", trace.WithAttributes(
		attribute.String("event.type", envelope.EventType),
		attribute.String("event.prison_number", envelope.PrisonNumber),
	))
	defer span.End()

	outcome, err := s.dispatch(spanCtx, envelope)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("lifecycle event handler failed")
		observability.EventsConsumed().WithLabelValues(envelope.EventType, models.EventOutcomeFailed).Inc()
		return
	}

	record := models.InboundEvent{
		MessageID:    envelope.MessageID,
		EventType:    envelope.EventType,
		PrisonNumber: envelope.PrisonNumber,
		Payload:      payload,
		Outcome:      outcome,
	}
	if err := s.ledger.Record(spanCtx, &record); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		logger.Error().Err(err).Msg("failed to record lifecycle event")
	}

	observability.EventsConsumed().WithLabelValues(envelope.EventType, outcome).Inc()
	logger.Info().Str("outcome", outcome).Msg("lifecycle event processed")
}

// dispatch routes the envelope to its typed handler. The variant set is
// closed; unrecognised types are ignored, never fatal, so upstream schema
// additions don't block the stream.
func (s *lifecycleEventService) dispatch(ctx context.Context, envelope dto.EventEnvelope) (string, error) {
	switch envelope.EventType {
	case dto.EventPrisonerAdmitted:
		var payload dto.PrisonerAdmitted
		if err := s.decode(envelope, &payload); err != nil {
			return models.EventOutcomeIgnored, nil
		}
		return s.handleAdmission(ctx, envelope.PrisonNumber, payload)

	case dto.EventPrisonerReleased:
		var payload dto.PrisonerReleased
		if err := s.decode(envelope, &payload); err != nil {
			return models.EventOutcomeIgnored, nil
		}
		return s.handleRelease(ctx, envelope.PrisonNumber, payload)

	case dto.EventPrisonerMerged:
		var payload dto.PrisonerMerged
		if err := s.decode(envelope, &payload); err != nil {
			return models.EventOutcomeIgnored, nil
		}
		return s.handleMerge(ctx, envelope.PrisonNumber, payload)

	case dto.EventEducationStatusChanged:
		var payload dto.EducationStatusChanged
		if err := s.decode(envelope, &payload); err != nil {
			return models.EventOutcomeIgnored, nil
		}
		return s.handleEducationStatus(ctx, envelope.PrisonNumber, payload)

	case dto.EventAlnAssessmentUpdated:
		var payload dto.AlnAssessmentUpdated
		if err := s.decode(envelope, &payload); err != nil {
			return models.EventOutcomeIgnored, nil
		}
		return s.handleAlnAssessment(ctx, envelope.PrisonNumber, payload)

	default:
		s.logger.Warn().Str("event_type", envelope.EventType).Msg("unsupported lifecycle event type dropped")
		return models.EventOutcomeIgnored, nil
	}
}

func (s *lifecycleEventService) decode(envelope dto.EventEnvelope, target any) error {
	if err := json.Unmarshal(envelope.AdditionalInformation, target); err != nil {
		s.logger.Warn().Err(err).Str("event_type", envelope.EventType).Msg("malformed event payload dropped")
		return err
	}
	if err := s.validator.Struct(target); err != nil {
		s.logger.Warn().Err(err).Str("event_type", envelope.EventType).Msg("invalid event payload dropped")
		return err
	}
	return nil
}

// handleAdmission creates a plan-creation schedule for a genuinely new
// admission when the person is in education and has need. Transfer and
// return sub-reasons change nothing; a separate education-status event
// follows them.
func (s *lifecycleEventService) handleAdmission(ctx context.Context, prisonNumber string, payload dto.PrisonerAdmitted) (string, error) {
	if payload.Reason != dto.AdmissionNewAdmission {
		s.logger.Info().
			Str("prison_number", prisonNumber).
			Str("reason", payload.Reason).
			Msg("admission sub-reason requires no schedule change")
		return models.EventOutcomeIgnored, nil
	}

	eligible, err := s.eligible(ctx, prisonNumber)
	if err != nil {
		return "", err
	}
	if !eligible {
		return models.EventOutcomeIgnored, nil
	}

	deadline := s.deadlines.Deadline(s.today(), models.PlanCreationSchedule)
	actor := ScheduleActor{Username: systemActor, PrisonID: payload.PrisonID}

	_, err = s.schedules.AttemptCreate(ctx, prisonNumber, models.PlanCreationSchedule, deadline, actor)
	if err != nil {
		if errors.Is(err, ErrScheduleAlreadyExists) {
			return models.EventOutcomeIgnored, nil
		}
		return "", err
	}

	return models.EventOutcomeProcessed, nil
}

// handleRelease exempts both current schedules; a DEC movement code means
// death, not a normal release.
func (s *lifecycleEventService) handleRelease(ctx context.Context, prisonNumber string, payload dto.PrisonerReleased) (string, error) {
	reason := models.StatusExemptRelease
	if payload.NomisMovementReasonCode == dto.MovementReasonDeceased {
		reason = models.StatusExemptDeath
	}

	actor := ScheduleActor{Username: systemActor, PrisonID: payload.PrisonID}
	return s.exemptBoth(ctx, prisonNumber, reason, actor)
}

// handleMerge exempts the removed record's schedules, then treats the
// surviving prison number exactly as a new admission.
func (s *lifecycleEventService) handleMerge(ctx context.Context, survivingPrisonNumber string, payload dto.PrisonerMerged) (string, error) {
	actor := ScheduleActor{Username: systemActor, PrisonID: payload.PrisonID}

	if _, err := s.exemptBoth(ctx, payload.RemovedPrisonNumber, models.StatusExemptMerge, actor); err != nil {
		return "", err
	}

	return s.handleAdmission(ctx, survivingPrisonNumber, dto.PrisonerAdmitted{
		Reason:   dto.AdmissionNewAdmission,
		PrisonID: payload.PrisonID,
	})
}

func (s *lifecycleEventService) handleEducationStatus(ctx context.Context, prisonNumber string, payload dto.EducationStatusChanged) (string, error) {
	if payload.Status == dto.EducationEnded {
		return s.handleEducationEnded(ctx, prisonNumber, payload)
	}
	return s.handleEducationStarted(ctx, prisonNumber, payload)
}

// handleEducationStarted records the enrolment and, when the person has
// need, creates or reactivates the plan-creation schedule.
func (s *lifecycleEventService) handleEducationStarted(ctx context.Context, prisonNumber string, payload dto.EducationStatusChanged) (string, error) {
	startDate, err := dto.ParseEventDate(payload.StartDate)
	if err != nil {
		s.logger.Warn().Err(err).Str("prison_number", prisonNumber).Msg("education start event dropped")
		return models.EventOutcomeIgnored, nil
	}

	if _, err := s.education.OpenEnrolment(ctx, prisonNumber); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		enrolment := models.EducationEnrolment{
			PrisonNumber:  prisonNumber,
			Establishment: payload.Establishment,
			StartDate:     startDate,
		}
		if err := s.education.Create(ctx, &enrolment); err != nil {
			return "", err
		}
	}

	hasNeed, err := s.needs.HasNeed(ctx, prisonNumber)
	if err != nil {
		return "", err
	}
	if !hasNeed {
		return models.EventOutcomeProcessed, nil
	}

	deadline := s.deadlines.Deadline(startDate, models.PlanCreationSchedule)
	actor := ScheduleActor{Username: systemActor, PrisonID: payload.Establishment}

	if err := s.createOrReactivate(ctx, prisonNumber, models.PlanCreationSchedule, deadline, actor); err != nil {
		return "", err
	}

	return models.EventOutcomeProcessed, nil
}

// handleEducationEnded closes the open enrolment and exempts both schedules
// as not-in-education.
func (s *lifecycleEventService) handleEducationEnded(ctx context.Context, prisonNumber string, payload dto.EducationStatusChanged) (string, error) {
	endDate := s.today()
	if payload.EndDate != nil {
		if parsed, err := dto.ParseEventDate(*payload.EndDate); err == nil {
			endDate = parsed
		}
	}

	if err := s.education.CloseOpen(ctx, prisonNumber, endDate); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		s.logger.Warn().Str("prison_number", prisonNumber).Msg("education ended with no open enrolment")
	}

	actor := ScheduleActor{Username: systemActor, PrisonID: payload.Establishment}
	return s.exemptBoth(ctx, prisonNumber, models.StatusExemptNotInEducation, actor)
}

// handleAlnAssessment persists the assessment and retargets whichever
// schedule is live for the person: the review schedule once a plan exists,
// the plan-creation schedule otherwise. Need sources are additive; a
// screener flipping to false never exempts a schedule on its own.
func (s *lifecycleEventService) handleAlnAssessment(ctx context.Context, prisonNumber string, payload dto.AlnAssessmentUpdated) (string, error) {
	assessmentDate, err := dto.ParseEventDate(payload.AssessmentDate)
	if err != nil {
		s.logger.Warn().Err(err).Str("prison_number", prisonNumber).Msg("aln assessment event dropped")
		return models.EventOutcomeIgnored, nil
	}

	assessment := models.ScreenerAssessment{
		PrisonNumber:   prisonNumber,
		ScreenerType:   models.ScreenerALN,
		HasNeed:        payload.HasNeed,
		AssessmentDate: assessmentDate,
	}
	if err := s.needsRepo.SaveAssessment(ctx, &assessment); err != nil {
		return "", err
	}

	hasNeed, err := s.needs.HasNeed(ctx, prisonNumber)
	if err != nil {
		return "", err
	}
	if !hasNeed {
		return models.EventOutcomeProcessed, nil
	}

	baseline := assessmentDate
	if enrolment, err := s.education.OpenEnrolment(ctx, prisonNumber); err == nil {
		if enrolment.StartDate.After(baseline) {
			baseline = enrolment.StartDate
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	kind := models.PlanCreationSchedule
	if _, err := s.plans.Get(ctx, prisonNumber); err == nil {
		kind = models.ReviewSchedule
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	deadline := s.deadlines.Deadline(baseline, kind)
	actor := ScheduleActor{Username: systemActor, PrisonID: payload.PrisonID}

	if err := s.upsertDeadline(ctx, prisonNumber, kind, deadline, actor); err != nil {
		return "", err
	}

	return models.EventOutcomeProcessed, nil
}

// eligible reports whether the person is in education and has need.
func (s *lifecycleEventService) eligible(ctx context.Context, prisonNumber string) (bool, error) {
	if _, err := s.education.OpenEnrolment(ctx, prisonNumber); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return s.needs.HasNeed(ctx, prisonNumber)
}

// exemptBoth exempts whichever of the two schedules currently exist. A
// missing schedule is a data gap to log, not a failure.
func (s *lifecycleEventService) exemptBoth(ctx context.Context, prisonNumber string, reason models.ScheduleStatus, actor ScheduleActor) (string, error) {
	touched := false
	for _, kind := range []models.ScheduleKind{models.PlanCreationSchedule, models.ReviewSchedule} {
		_, err := s.schedules.Exempt(ctx, prisonNumber, kind, reason, nil, actor)
		if err != nil {
			if errors.Is(err, ErrScheduleNotFound) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return "", err
		}
		touched = true
	}

	if !touched {
		return models.EventOutcomeIgnored, nil
	}
	return models.EventOutcomeProcessed, nil
}

// createOrReactivate is the upsert used by education-start: absent creates,
// exempt reactivates, already SCHEDULED refreshes nothing.
func (s *lifecycleEventService) createOrReactivate(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) error {
	_, err := s.schedules.AttemptCreate(ctx, prisonNumber, kind, deadline, actor)
	if err == nil || !errors.Is(err, ErrScheduleAlreadyExists) {
		return err
	}

	_, err = s.schedules.Reactivate(ctx, prisonNumber, kind, deadline, actor)
	if err != nil && (errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrScheduleNotFound)) {
		// Already SCHEDULED or completed; nothing to restore.
		return nil
	}

	return err
}

// upsertDeadline is the upsert used by assessment updates: absent creates,
// SCHEDULED retargets the deadline, exempt reactivates.
func (s *lifecycleEventService) upsertDeadline(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) error {
	_, err := s.schedules.AttemptCreate(ctx, prisonNumber, kind, deadline, actor)
	if err == nil || !errors.Is(err, ErrScheduleAlreadyExists) {
		return err
	}

	_, err = s.schedules.UpdateDeadline(ctx, prisonNumber, kind, deadline, actor)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrInvalidTransition) {
		return err
	}

	_, err = s.schedules.Reactivate(ctx, prisonNumber, kind, deadline, actor)
	if err != nil && (errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrScheduleNotFound)) {
		return nil
	}

	return err
}

func (s *lifecycleEventService) today() time.Time {
	return truncateToDay(s.now())
}

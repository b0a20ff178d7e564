package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/observability"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
)

// ErrScheduleNotFound indicates no current schedule exists for the person and kind.
var ErrScheduleNotFound = errors.New("schedule not found")

// ErrScheduleAlreadyExists indicates a current schedule already exists; creation is a no-op.
var ErrScheduleAlreadyExists = errors.New("schedule already exists")

// ErrInvalidTransition indicates the requested transition is not legal from the current status.
var ErrInvalidTransition = errors.New("invalid schedule transition")

// ErrInvalidExemptionReason indicates the supplied reason is not an exemption status.
var ErrInvalidExemptionReason = errors.New("invalid exemption reason")

// ScheduleActor carries the audit identity and prison applying a transition.
type ScheduleActor struct {
	Username string
	PrisonID string
}

// ScheduleService is the state machine shared by both schedule kinds. Every
// transition mutates the current row and appends a history snapshot in one
// transaction; completing a review chains straight into the next instance.
type ScheduleService interface {
	AttemptCreate(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) (models.Schedule, error)
	UpdateDeadline(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) (models.Schedule, error)
	Exempt(ctx context.Context, prisonNumber string, kind models.ScheduleKind, reason models.ScheduleStatus, detail *string, actor ScheduleActor) (models.Schedule, error)
	Reactivate(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) (models.Schedule, error)
	Complete(ctx context.Context, prisonNumber string, kind models.ScheduleKind, actor ScheduleActor) (models.Schedule, error)
	History(ctx context.Context, prisonNumber string, kind models.ScheduleKind) ([]models.ScheduleHistory, error)
}

type scheduleService struct {
	repo      repository.ScheduleRepository
	deadlines *DeadlineCalculator
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewScheduleService builds the schedule state machine.
func NewScheduleService(repo repository.ScheduleRepository, deadlines *DeadlineCalculator, logger zerolog.Logger) ScheduleService {
	return &scheduleService{
		repo:      repo,
		deadlines: deadlines,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "schedule_service").Logger(),
		tracer:    otel.Tracer("github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/service/schedule"),
		now:       time.Now,
	}
}

func (s *scheduleService) AttemptCreate(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) (models.Schedule, error) {
	spanCtx, span := s.startSpan(ctx, "schedule.create", prisonNumber, kind)
	defer span.End()

	schedule := models.Schedule{
		Reference:       uuid.New(),
		PrisonNumber:    prisonNumber,
		Kind:            kind,
		Status:          models.StatusScheduled,
		DeadlineDate:    &deadline,
		CreatedAtPrison: actor.PrisonID,
		UpdatedAtPrison: actor.PrisonID,
		CreatedBy:       actor.Username,
		UpdatedBy:       actor.Username,
	}

	if err := s.repo.CreateWithHistory(spanCtx, &schedule); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Schedule{}, ErrScheduleAlreadyExists
		}
		span.RecordError(err)
		return models.Schedule{}, err
	}

	s.recordTransition(kind, models.StatusScheduled)
	s.logger.Info().
		Str("prison_number", prisonNumber).
		Str("kind", string(kind)).
		Time("deadline", deadline).
		Msg("schedule created")

	return schedule, nil
}

func (s *scheduleService) UpdateDeadline(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) (models.Schedule, error) {
	spanCtx, span := s.startSpan(ctx, "schedule.update_deadline", prisonNumber, kind)
	defer span.End()

	schedule, err := s.getCurrent(spanCtx, prisonNumber, kind)
	if err != nil {
		return models.Schedule{}, err
	}

	if schedule.Status != models.StatusScheduled {
		return models.Schedule{}, ErrInvalidTransition
	}

	schedule.DeadlineDate = &deadline
	s.stamp(&schedule, actor)

	if err := s.repo.UpdateWithHistory(spanCtx, &schedule); err != nil {
		span.RecordError(err)
		return models.Schedule{}, err
	}

	s.logger.Info().
		Str("prison_number", prisonNumber).
		Str("kind", string(kind)).
		Time("deadline", deadline).
		Msg("schedule deadline updated")

	return schedule, nil
}

// Exempt moves any non-terminal schedule to the exemption variant. The
// deadline is cleared: a deadline is meaningless once exempt.
func (s *scheduleService) Exempt(ctx context.Context, prisonNumber string, kind models.ScheduleKind, reason models.ScheduleStatus, detail *string, actor ScheduleActor) (models.Schedule, error) {
	if !reason.IsExemption() {
		return models.Schedule{}, ErrInvalidExemptionReason
	}

	spanCtx, span := s.startSpan(ctx, "schedule.exempt", prisonNumber, kind)
	defer span.End()

	schedule, err := s.getCurrent(spanCtx, prisonNumber, kind)
	if err != nil {
		return models.Schedule{}, err
	}

	if schedule.Status.IsTerminal() {
		return models.Schedule{}, ErrInvalidTransition
	}

	reasonText := string(reason)
	schedule.Status = reason
	schedule.DeadlineDate = nil
	schedule.ExemptionReason = &reasonText
	schedule.ExemptionDetail = s.sanitizeDetail(detail)
	s.stamp(&schedule, actor)

	if err := s.repo.UpdateWithHistory(spanCtx, &schedule); err != nil {
		span.RecordError(err)
		return models.Schedule{}, err
	}

	s.recordTransition(kind, reason)
	s.logger.Info().
		Str("prison_number", prisonNumber).
		Str("kind", string(kind)).
		Str("reason", reasonText).
		Msg("schedule exempted")

	return schedule, nil
}

// Reactivate restores an exempted schedule to SCHEDULED with a fresh deadline.
func (s *scheduleService) Reactivate(ctx context.Context, prisonNumber string, kind models.ScheduleKind, deadline time.Time, actor ScheduleActor) (models.Schedule, error) {
	spanCtx, span := s.startSpan(ctx, "schedule.reactivate", prisonNumber, kind)
	defer span.End()

	schedule, err := s.getCurrent(spanCtx, prisonNumber, kind)
	if err != nil {
		return models.Schedule{}, err
	}

	if !schedule.Status.IsExemption() {
		return models.Schedule{}, ErrInvalidTransition
	}

	schedule.Status = models.StatusScheduled
	schedule.DeadlineDate = &deadline
	schedule.ExemptionReason = nil
	schedule.ExemptionDetail = nil
	s.stamp(&schedule, actor)

	if err := s.repo.UpdateWithHistory(spanCtx, &schedule); err != nil {
		span.RecordError(err)
		return models.Schedule{}, err
	}

	s.recordTransition(kind, models.StatusScheduled)
	s.logger.Info().
		Str("prison_number", prisonNumber).
		Str("kind", string(kind)).
		Time("deadline", deadline).
		Msg("schedule reactivated")

	return schedule, nil
}

// Complete closes the current schedule instance. Completing a review chains
// into the next instance: the COMPLETED snapshot and the reset to a fresh
// reference with a newly computed deadline commit in one transaction, so a
// failed completion leaves the schedule still completable rather than
// stranded at COMPLETED with no successor. Plan-creation schedules are
// one-shot and stay COMPLETED.
func (s *scheduleService) Complete(ctx context.Context, prisonNumber string, kind models.ScheduleKind, actor ScheduleActor) (models.Schedule, error) {
	spanCtx, span := s.startSpan(ctx, "schedule.complete", prisonNumber, kind)
	defer span.End()

	schedule, err := s.getCurrent(spanCtx, prisonNumber, kind)
	if err != nil {
		return models.Schedule{}, err
	}

	if !schedule.Status.ActiveReview() {
		return models.Schedule{}, ErrInvalidTransition
	}

	schedule.Status = models.StatusCompleted
	schedule.DeadlineDate = nil
	schedule.ExemptionReason = nil
	schedule.ExemptionDetail = nil
	s.stamp(&schedule, actor)

	if kind != models.ReviewSchedule {
		if err := s.repo.UpdateWithHistory(spanCtx, &schedule); err != nil {
			span.RecordError(err)
			return models.Schedule{}, err
		}

		s.recordTransition(kind, models.StatusCompleted)
		s.logger.Info().
			Str("prison_number", prisonNumber).
			Str("kind", string(kind)).
			Msg("schedule completed")

		return schedule, nil
	}

	nextDeadline := s.deadlines.Deadline(truncateToDay(s.now()), kind)
	next := schedule
	next.Reference = uuid.New()
	next.Status = models.StatusScheduled
	next.DeadlineDate = &nextDeadline

	if err := s.repo.ChainWithHistory(spanCtx, &schedule, &next); err != nil {
		span.RecordError(err)
		return models.Schedule{}, err
	}

	s.recordTransition(kind, models.StatusCompleted)
	s.recordTransition(kind, models.StatusScheduled)
	s.logger.Info().
		Str("prison_number", prisonNumber).
		Str("kind", string(kind)).
		Time("deadline", nextDeadline).
		Msg("review completed and next schedule created")

	return next, nil
}

func (s *scheduleService) History(ctx context.Context, prisonNumber string, kind models.ScheduleKind) ([]models.ScheduleHistory, error) {
	history, err := s.repo.History(ctx, prisonNumber, kind)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrScheduleNotFound
	}

	return history, nil
}

func (s *scheduleService) getCurrent(ctx context.Context, prisonNumber string, kind models.ScheduleKind) (models.Schedule, error) {
	schedule, err := s.repo.GetCurrent(ctx, prisonNumber, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Schedule{}, ErrScheduleNotFound
		}
		return models.Schedule{}, err
	}

	return schedule, nil
}

func (s *scheduleService) stamp(schedule *models.Schedule, actor ScheduleActor) {
	if actor.Username != "" {
		schedule.UpdatedBy = actor.Username
	}
	if actor.PrisonID != "" {
		schedule.UpdatedAtPrison = actor.PrisonID
	}
}

func (s *scheduleService) sanitizeDetail(detail *string) *string {
	if detail == nil {
		return nil
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(*detail))
	if clean == "" {
		return nil
	}

	return &clean
}

func (s *scheduleService) startSpan(ctx context.Context, name, prisonNumber string, kind models.ScheduleKind) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("schedule.prison_number", prisonNumber),
		attribute.String("schedule.kind", string(kind)),
	))
}

func (s *scheduleService) recordTransition(kind models.ScheduleKind, status models.ScheduleStatus) {
	observability.ScheduleTransitions().WithLabelValues(string(kind), string(status)).Inc()
}

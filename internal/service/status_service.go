package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
)

// StatusService assembles the person overview snapshot and derives the
// display plan status from it.
type StatusService interface {
	Overview(ctx context.Context, prisonNumber string) (*models.PersonOverview, error)
	Derive(overview *models.PersonOverview, today time.Time) models.PlanStatus
	GetCurrentStatus(ctx context.Context, prisonNumber string, today time.Time) (models.PlanStatus, error)
}

type statusService struct {
	plans     repository.PlanRepository
	schedules repository.ScheduleRepository
	education repository.EducationRepository
	needs     NeedResolver
	calendar  *WorkingDayCalendar
	window    int
	logger    zerolog.Logger
}

// NewStatusService builds the status service.
func NewStatusService(plans repository.PlanRepository, schedules repository.ScheduleRepository, education repository.EducationRepository, needs NeedResolver, calendar *WorkingDayCalendar, dueWindowDays int, logger zerolog.Logger) StatusService {
	return &statusService{
		plans:     plans,
		schedules: schedules,
		education: education,
		needs:     needs,
		calendar:  calendar,
		window:    dueWindowDays,
		logger:    logger.With().Str("component", "status_service").Logger(),
	}
}

// Overview denormalizes the person's plan, schedule, need and education state
// into the snapshot consumed by status derivation. Returns nil when the
// person has no records at all.
func (s *statusService) Overview(ctx context.Context, prisonNumber string) (*models.PersonOverview, error) {
	overview := models.PersonOverview{PrisonNumber: prisonNumber}
	found := false

	plan, err := s.plans.Get(ctx, prisonNumber)
	if err == nil {
		found = true
		overview.HasPlan = true
		overview.PlanDeclined = plan.Declined
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if _, err := s.education.OpenEnrolment(ctx, prisonNumber); err == nil {
		found = true
		overview.InEducation = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hasNeed, err := s.needs.HasNeed(ctx, prisonNumber)
	if err != nil {
		return nil, err
	}
	overview.HasNeed = hasNeed
	if hasNeed {
		found = true
	}

	schedules, err := s.schedules.ListCurrent(ctx, prisonNumber)
	if err != nil {
		return nil, err
	}
	for _, schedule := range schedules {
		found = true
		deadline := deadlineOrNil(schedule.DeadlineDate)
		switch schedule.Kind {
		case models.PlanCreationSchedule:
			overview.PlanCreationDeadlineDate = deadline
		case models.ReviewSchedule:
			overview.ReviewDeadlineDate = deadline
		}
	}

	// The review deadline owns the "current" slot once it exists; until then
	// the plan-creation deadline is the one being tracked.
	if overview.ReviewDeadlineDate != nil {
		overview.DeadlineDate = overview.ReviewDeadlineDate
	} else {
		overview.DeadlineDate = overview.PlanCreationDeadlineDate
	}

	if !found {
		return nil, nil
	}

	return &overview, nil
}

// Derive applies the classification rules against the service's calendar and
// due window.
func (s *statusService) Derive(overview *models.PersonOverview, today time.Time) models.PlanStatus {
	return DeterminePlanStatus(overview, today, s.calendar, s.window)
}

func (s *statusService) GetCurrentStatus(ctx context.Context, prisonNumber string, today time.Time) (models.PlanStatus, error) {
	overview, err := s.Overview(ctx, prisonNumber)
	if err != nil {
		return "", err
	}

	return s.Derive(overview, today), nil
}

// DeterminePlanStatus classifies the overview into one of the nine display
// statuses. The rules run in order and the first match wins: overdue checks
// precede due-soon checks, and inactive precedes active so a stale plan is
// never reported as active.
func DeterminePlanStatus(overview *models.PersonOverview, today time.Time, calendar *WorkingDayCalendar, dueWindowDays int) models.PlanStatus {
	if overview == nil {
		return models.PlanStatusNoPlan
	}

	if !overview.InEducation && !overview.HasNeed && !overview.HasPlan {
		return models.PlanStatusNoPlan
	}

	if overview.PlanDeclined {
		return models.PlanStatusPlanDeclined
	}

	today = truncateToDay(today)
	current := deadlineOrNil(overview.DeadlineDate)
	review := deadlineOrNil(overview.ReviewDeadlineDate)
	planCreation := deadlineOrNil(overview.PlanCreationDeadlineDate)

	if current != nil && sameDate(review, current) && current.Before(today) {
		return models.PlanStatusReviewOverdue
	}

	if current != nil && sameDate(planCreation, current) && current.Before(today) {
		return models.PlanStatusPlanOverdue
	}

	if !overview.HasPlan && current == nil && overview.HasNeed && overview.InEducation {
		return models.PlanStatusNeedsPlan
	}

	horizon := calendar.AddWorkingDays(today, dueWindowDays)

	if current != nil && sameDate(review, current) && withinWindow(*current, today, horizon) {
		return models.PlanStatusReviewDue
	}

	if current != nil && sameDate(planCreation, current) && !overview.HasPlan && withinWindow(*current, today, horizon) {
		return models.PlanStatusPlanDue
	}

	if overview.HasPlan && (!overview.InEducation || !overview.HasNeed) {
		return models.PlanStatusInactivePlan
	}

	if overview.HasPlan {
		return models.PlanStatusActivePlan
	}

	return models.PlanStatusNoPlan
}

// deadlineOrNil maps the far-future sentinel to absent so it never leaks
// into comparisons or display.
func deadlineOrNil(d *time.Time) *time.Time {
	if d == nil || models.IsFarFuture(*d) {
		return nil
	}

	truncated := truncateToDay(*d)
	return &truncated
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}

func withinWindow(d, from, to time.Time) bool {
	return !d.Before(from) && !d.After(to)
}

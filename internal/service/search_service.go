package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/dto"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
)

// SearchFilter describes prison-level listing options.
type SearchFilter struct {
	Status   models.PlanStatus
	Page     int
	PageSize int
}

// SearchService lists the people tracked at a prison with their derived plan
// status.
type SearchService interface {
	SearchPeople(ctx context.Context, prisonID string, filter SearchFilter, today time.Time) (dto.SearchResponse, error)
}

type searchService struct {
	schedules repository.ScheduleRepository
	status    StatusService
	logger    zerolog.Logger
}

// NewSearchService builds the search service.
func NewSearchService(schedules repository.ScheduleRepository, status StatusService, logger zerolog.Logger) SearchService {
	return &searchService{
		schedules: schedules,
		status:    status,
		logger:    logger.With().Str("component", "search_service").Logger(),
	}
}

func (s *searchService) SearchPeople(ctx context.Context, prisonID string, filter SearchFilter, today time.Time) (dto.SearchResponse, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	// Status filtering happens after derivation, so pagination runs over the
	// full prison population and the filter trims each page.
	repoFilter := repository.ScheduleFilter{Page: page, PageSize: pageSize}
	schedules, total, err := s.schedules.ListByPrison(ctx, prisonID, repoFilter)
	if err != nil {
		return dto.SearchResponse{}, err
	}

	results := make([]dto.PersonSearchResult, 0, len(schedules))
	seen := make(map[string]struct{}, len(schedules))

	for _, schedule := range schedules {
		if _, dup := seen[schedule.PrisonNumber]; dup {
			continue
		}
		seen[schedule.PrisonNumber] = struct{}{}

		overview, err := s.status.Overview(ctx, schedule.PrisonNumber)
		if err != nil {
			return dto.SearchResponse{}, err
		}

		status := s.status.Derive(overview, today)

		if filter.Status != "" && status != filter.Status {
			continue
		}

		result := dto.PersonSearchResult{
			PrisonNumber: schedule.PrisonNumber,
			Status:       string(status),
		}
		if overview != nil {
			result.HasNeed = overview.HasNeed
			result.InEducation = overview.InEducation
			if overview.DeadlineDate != nil {
				formatted := overview.DeadlineDate.Format("2006-01-02")
				result.DeadlineDate = &formatted
			}
		}
		results = append(results, result)
	}

	return dto.SearchResponse{
		Results:  results,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ParsePlanStatus maps a query-string value to a PlanStatus filter; empty
// input means no filter and unknown values are rejected by returning false.
func ParsePlanStatus(value string) (models.PlanStatus, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return "", true
	}

	switch status := models.PlanStatus(trimmed); status {
	case models.PlanStatusNoPlan, models.PlanStatusNeedsPlan, models.PlanStatusPlanDue,
		models.PlanStatusPlanOverdue, models.PlanStatusReviewDue, models.PlanStatusReviewOverdue,
		models.PlanStatusActivePlan, models.PlanStatusInactivePlan, models.PlanStatusPlanDeclined:
		return status, true
	}

	return "", false
}

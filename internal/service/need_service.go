package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
)

// NeedResolver aggregates the four independent need-evidence signals into a
// single boolean plus the list of contributing sources. Pure reads, no side
// effects.
type NeedResolver interface {
	HasLocalNeed(ctx context.Context, prisonNumber string) (bool, error)
	HasAlnNeed(ctx context.Context, prisonNumber string) (*bool, error)
	HasLddNeed(ctx context.Context, prisonNumber string) (*bool, error)
	HasNeed(ctx context.Context, prisonNumber string) (bool, error)
	NeedSources(ctx context.Context, prisonNumber string) ([]models.NeedSource, error)
}

type needResolver struct {
	repo   repository.NeedRepository
	logger zerolog.Logger
}

// NewNeedResolver builds a need resolver over the evidence repository.
func NewNeedResolver(repo repository.NeedRepository, logger zerolog.Logger) NeedResolver {
	return &needResolver{
		repo:   repo,
		logger: logger.With().Str("component", "need_resolver").Logger(),
	}
}

func (s *needResolver) HasLocalNeed(ctx context.Context, prisonNumber string) (bool, error) {
	condition, err := s.repo.HasActiveCondition(ctx, prisonNumber)
	if err != nil {
		return false, err
	}
	if condition {
		return true, nil
	}

	return s.repo.HasActiveChallenge(ctx, prisonNumber)
}

func (s *needResolver) HasAlnNeed(ctx context.Context, prisonNumber string) (*bool, error) {
	return s.screenerNeed(ctx, prisonNumber, models.ScreenerALN)
}

func (s *needResolver) HasLddNeed(ctx context.Context, prisonNumber string) (*bool, error) {
	return s.screenerNeed(ctx, prisonNumber, models.ScreenerLDD)
}

// screenerNeed returns the hasNeed flag of the latest assessment, or nil when
// the person has never been screened by that type.
func (s *needResolver) screenerNeed(ctx context.Context, prisonNumber string, screener models.ScreenerType) (*bool, error) {
	assessment, err := s.repo.LatestAssessment(ctx, prisonNumber, screener)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &assessment.HasNeed, nil
}

// HasNeed is local OR (ALN == true) OR (LDD == true); an unscreened person
// contributes false to the aggregate.
func (s *needResolver) HasNeed(ctx context.Context, prisonNumber string) (bool, error) {
	local, err := s.HasLocalNeed(ctx, prisonNumber)
	if err != nil {
		return false, err
	}
	if local {
		return true, nil
	}

	aln, err := s.HasAlnNeed(ctx, prisonNumber)
	if err != nil {
		return false, err
	}
	if aln != nil && *aln {
		return true, nil
	}

	ldd, err := s.HasLddNeed(ctx, prisonNumber)
	if err != nil {
		return false, err
	}

	return ldd != nil && *ldd, nil
}

// NeedSources enumerates contributing sources in a stable order:
// local condition, local challenge, ALN, LDD.
func (s *needResolver) NeedSources(ctx context.Context, prisonNumber string) ([]models.NeedSource, error) {
	sources := make([]models.NeedSource, 0, 4)

	condition, err := s.repo.HasActiveCondition(ctx, prisonNumber)
	if err != nil {
		return nil, err
	}
	if condition {
		sources = append(sources, models.NeedSourceCondition)
	}

	challenge, err := s.repo.HasActiveChallenge(ctx, prisonNumber)
	if err != nil {
		return nil, err
	}
	if challenge {
		sources = append(sources, models.NeedSourceChallenge)
	}

	aln, err := s.HasAlnNeed(ctx, prisonNumber)
	if err != nil {
		return nil, err
	}
	if aln != nil && *aln {
		sources = append(sources, models.NeedSourceALN)
	}

	ldd, err := s.HasLddNeed(ctx, prisonNumber)
	if err != nil {
		return nil, err
	}
	if ldd != nil && *ldd {
		sources = append(sources, models.NeedSourceLDD)
	}

	return sources, nil
}

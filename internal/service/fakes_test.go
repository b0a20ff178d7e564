package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/repository"
)

// In-memory repository fakes shared by the service tests. They mirror the
// GORM repositories' error contracts: gorm.ErrRecordNotFound for misses and
// gorm.ErrDuplicatedKey for conflicting creates.

func scheduleKey(prisonNumber string, kind models.ScheduleKind) string {
	return prisonNumber + "|" + string(kind)
}

type fakeScheduleRepo struct {
	schedules map[string]models.Schedule
	history   map[string][]models.ScheduleHistory
	nextID    uint
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		schedules: map[string]models.Schedule{},
		history:   map[string][]models.ScheduleHistory{},
	}
}

func (f *fakeScheduleRepo) GetCurrent(_ context.Context, prisonNumber string, kind models.ScheduleKind) (models.Schedule, error) {
	schedule, ok := f.schedules[scheduleKey(prisonNumber, kind)]
	if !ok {
		return models.Schedule{}, gorm.ErrRecordNotFound
	}
	return schedule, nil
}

func (f *fakeScheduleRepo) ListCurrent(_ context.Context, prisonNumber string) ([]models.Schedule, error) {
	var schedules []models.Schedule
	for _, schedule := range f.schedules {
		if schedule.PrisonNumber == prisonNumber {
			schedules = append(schedules, schedule)
		}
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].Kind < schedules[j].Kind })
	return schedules, nil
}

func (f *fakeScheduleRepo) ListByPrison(_ context.Context, prisonID string, filter repository.ScheduleFilter) ([]models.Schedule, int64, error) {
	prisonID = strings.ToUpper(strings.TrimSpace(prisonID))

	var schedules []models.Schedule
	for _, schedule := range f.schedules {
		if schedule.UpdatedAtPrison != prisonID {
			continue
		}
		if filter.Kind != "" && schedule.Kind != filter.Kind {
			continue
		}
		schedules = append(schedules, schedule)
	}
	sort.Slice(schedules, func(i, j int) bool {
		if schedules[i].PrisonNumber != schedules[j].PrisonNumber {
			return schedules[i].PrisonNumber < schedules[j].PrisonNumber
		}
		return schedules[i].Kind < schedules[j].Kind
	})

	total := int64(len(schedules))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start > len(schedules) {
			start = len(schedules)
		}
		end := start + filter.PageSize
		if end > len(schedules) {
			end = len(schedules)
		}
		schedules = schedules[start:end]
	}

	return schedules, total, nil
}

func (f *fakeScheduleRepo) CreateWithHistory(_ context.Context, schedule *models.Schedule) error {
	key := scheduleKey(schedule.PrisonNumber, schedule.Kind)
	if _, exists := f.schedules[key]; exists {
		return gorm.ErrDuplicatedKey
	}

	f.nextID++
	schedule.ID = f.nextID
	f.schedules[key] = *schedule
	f.appendHistory(*schedule)
	return nil
}

func (f *fakeScheduleRepo) UpdateWithHistory(_ context.Context, schedule *models.Schedule) error {
	key := scheduleKey(schedule.PrisonNumber, schedule.Kind)
	if _, exists := f.schedules[key]; !exists {
		return gorm.ErrRecordNotFound
	}

	f.schedules[key] = *schedule
	f.appendHistory(*schedule)
	return nil
}

func (f *fakeScheduleRepo) ChainWithHistory(_ context.Context, completed, next *models.Schedule) error {
	key := scheduleKey(completed.PrisonNumber, completed.Kind)
	if _, exists := f.schedules[key]; !exists {
		return gorm.ErrRecordNotFound
	}

	f.appendHistory(*completed)
	f.schedules[key] = *next
	f.appendHistory(*next)
	return nil
}

func (f *fakeScheduleRepo) History(_ context.Context, prisonNumber string, kind models.ScheduleKind) ([]models.ScheduleHistory, error) {
	return f.history[scheduleKey(prisonNumber, kind)], nil
}

func (f *fakeScheduleRepo) appendHistory(schedule models.Schedule) {
	key := scheduleKey(schedule.PrisonNumber, schedule.Kind)
	rows := f.history[key]

	revision := 0
	if len(rows) > 0 && rows[len(rows)-1].Reference == schedule.Reference {
		revision = rows[len(rows)-1].RevisionNumber + 1
	}

	row := schedule.Snapshot(revision)
	row.Version = len(rows) + 1
	f.history[key] = append(f.history[key], row)
}

type fakeNeedRepo struct {
	challenges  map[string]bool
	conditions  map[string]bool
	assessments map[string][]models.ScreenerAssessment
}

func newFakeNeedRepo() *fakeNeedRepo {
	return &fakeNeedRepo{
		challenges:  map[string]bool{},
		conditions:  map[string]bool{},
		assessments: map[string][]models.ScreenerAssessment{},
	}
}

func (f *fakeNeedRepo) HasActiveChallenge(_ context.Context, prisonNumber string) (bool, error) {
	return f.challenges[prisonNumber], nil
}

func (f *fakeNeedRepo) HasActiveCondition(_ context.Context, prisonNumber string) (bool, error) {
	return f.conditions[prisonNumber], nil
}

func (f *fakeNeedRepo) LatestAssessment(_ context.Context, prisonNumber string, screener models.ScreenerType) (models.ScreenerAssessment, error) {
	rows := f.assessments[prisonNumber+"|"+string(screener)]
	if len(rows) == 0 {
		return models.ScreenerAssessment{}, gorm.ErrRecordNotFound
	}
	return rows[len(rows)-1], nil
}

func (f *fakeNeedRepo) SaveAssessment(_ context.Context, assessment *models.ScreenerAssessment) error {
	key := assessment.PrisonNumber + "|" + string(assessment.ScreenerType)
	f.assessments[key] = append(f.assessments[key], *assessment)
	return nil
}

type fakeEducationRepo struct {
	open   map[string]models.EducationEnrolment
	nextID uint
}

func newFakeEducationRepo() *fakeEducationRepo {
	return &fakeEducationRepo{open: map[string]models.EducationEnrolment{}}
}

func (f *fakeEducationRepo) OpenEnrolment(_ context.Context, prisonNumber string) (models.EducationEnrolment, error) {
	enrolment, ok := f.open[prisonNumber]
	if !ok {
		return models.EducationEnrolment{}, gorm.ErrRecordNotFound
	}
	return enrolment, nil
}

func (f *fakeEducationRepo) Create(_ context.Context, enrolment *models.EducationEnrolment) error {
	f.nextID++
	enrolment.ID = f.nextID
	if enrolment.Open() {
		f.open[enrolment.PrisonNumber] = *enrolment
	}
	return nil
}

func (f *fakeEducationRepo) CloseOpen(_ context.Context, prisonNumber string, _ time.Time) error {
	if _, ok := f.open[prisonNumber]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.open, prisonNumber)
	return nil
}

type fakePlanRepo struct {
	plans map[string]models.SupportPlan
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: map[string]models.SupportPlan{}}
}

func (f *fakePlanRepo) Get(_ context.Context, prisonNumber string) (models.SupportPlan, error) {
	plan, ok := f.plans[prisonNumber]
	if !ok {
		return models.SupportPlan{}, gorm.ErrRecordNotFound
	}
	return plan, nil
}

func (f *fakePlanRepo) Create(_ context.Context, plan *models.SupportPlan) error {
	if _, exists := f.plans[plan.PrisonNumber]; exists {
		return gorm.ErrDuplicatedKey
	}
	f.plans[plan.PrisonNumber] = *plan
	return nil
}

func (f *fakePlanRepo) SetDeclined(_ context.Context, prisonNumber string, declined bool) error {
	plan, ok := f.plans[prisonNumber]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	plan.Declined = declined
	f.plans[prisonNumber] = plan
	return nil
}

type fakeInboundEventRepo struct {
	events map[string]models.InboundEvent
}

func newFakeInboundEventRepo() *fakeInboundEventRepo {
	return &fakeInboundEventRepo{events: map[string]models.InboundEvent{}}
}

func (f *fakeInboundEventRepo) Seen(_ context.Context, messageID string) (bool, error) {
	_, ok := f.events[messageID]
	return ok, nil
}

func (f *fakeInboundEventRepo) Record(_ context.Context, event *models.InboundEvent) error {
	if _, exists := f.events[event.MessageID]; exists {
		return gorm.ErrDuplicatedKey
	}
	f.events[event.MessageID] = *event
	return nil
}

package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/dto"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/service"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/utils"
)

// ScheduleHandler wires the schedule endpoints.
type ScheduleHandler struct {
	schedules service.ScheduleService
	deadlines *service.DeadlineCalculator
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedules service.ScheduleService, deadlines *service.DeadlineCalculator, validate *validator.Validate, logger zerolog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		deadlines: deadlines,
		validator: validate,
		logger:    logger.With().Str("component", "schedule_handler").Logger(),
		now:       time.Now,
	}
}

// Register attaches schedule endpoints to the router group.
func (h *ScheduleHandler) Register(router fiber.Router) {
	router.Post("/:prisonNumber/plan-creation-schedule", h.createPlanSchedule)
	router.Patch("/:prisonNumber/plan-creation-schedule", h.updatePlanSchedule)
	router.Put("/:prisonNumber/schedules/:kind/exempt", h.exempt)
	router.Put("/:prisonNumber/schedules/:kind/complete", h.complete)
	router.Get("/:prisonNumber/schedules/:kind/history", h.history)
}

func (h *ScheduleHandler) createPlanSchedule(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CreateScheduleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	deadline := h.deadlines.Deadline(h.now(), models.PlanCreationSchedule)
	actor := service.ScheduleActor{Username: usernameFromContext(c), PrisonID: payload.PrisonID}

	schedule, err := h.schedules.AttemptCreate(c.Context(), prisonNumber, models.PlanCreationSchedule, deadline, actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "plan creation schedule created", dto.NewScheduleResponse(schedule))
}

func (h *ScheduleHandler) updatePlanSchedule(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CreateScheduleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	deadline := h.deadlines.Deadline(h.now(), models.PlanCreationSchedule)
	actor := service.ScheduleActor{Username: usernameFromContext(c), PrisonID: payload.PrisonID}

	schedule, err := h.schedules.UpdateDeadline(c.Context(), prisonNumber, models.PlanCreationSchedule, deadline, actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "plan creation schedule updated", dto.NewScheduleResponse(schedule))
}

func (h *ScheduleHandler) exempt(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	kind, err := scheduleKindParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExemptScheduleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := service.ScheduleActor{Username: usernameFromContext(c), PrisonID: payload.PrisonID}

	schedule, err := h.schedules.Exempt(c.Context(), prisonNumber, kind, models.ScheduleStatus(payload.Reason), payload.Detail, actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "schedule exempted", dto.NewScheduleResponse(schedule))
}

func (h *ScheduleHandler) complete(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	kind, err := scheduleKindParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CompleteScheduleRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := service.ScheduleActor{Username: usernameFromContext(c), PrisonID: payload.PrisonID}

	schedule, err := h.schedules.Complete(c.Context(), prisonNumber, kind, actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "schedule completed", dto.NewScheduleResponse(schedule))
}

func (h *ScheduleHandler) history(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	kind, err := scheduleKindParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	history, err := h.schedules.History(c.Context(), prisonNumber, kind)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "schedule history retrieved", dto.NewScheduleHistoryResponseSlice(history))
}

// handleError maps the state-machine error taxonomy onto HTTP statuses for
// direct API callers: not-found is 404, conflicts 409, bad transitions 400.
func (h *ScheduleHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "schedule not found")
	case errors.Is(err, service.ErrScheduleAlreadyExists):
		return utils.SendError(c, fiber.StatusConflict, "schedule already exists")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, "transition not allowed from current status")
	case errors.Is(err, service.ErrInvalidExemptionReason):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exemption reason")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("schedule request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

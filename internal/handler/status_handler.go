package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/dto"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/service"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/utils"
)

// StatusHandler serves the derived plan status and need sources for a person.
type StatusHandler struct {
	status service.StatusService
	needs  service.NeedResolver
	logger zerolog.Logger
	now    func() time.Time
}

// NewStatusHandler constructs the handler.
func NewStatusHandler(status service.StatusService, needs service.NeedResolver, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		status: status,
		needs:  needs,
		logger: logger.With().Str("component", "status_handler").Logger(),
		now:    time.Now,
	}
}

// Register attaches status endpoints to the router group.
func (h *StatusHandler) Register(router fiber.Router) {
	router.Get("/:prisonNumber/status", h.getStatus)
	router.Get("/:prisonNumber/need-sources", h.getNeedSources)
}

func (h *StatusHandler) getStatus(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	overview, err := h.status.Overview(c.Context(), prisonNumber)
	if err != nil {
		return h.internalError(c, err)
	}

	status := h.status.Derive(overview, h.now())

	return utils.SendSuccess(c, "plan status retrieved", dto.NewPlanStatusResponse(prisonNumber, overview, status))
}

func (h *StatusHandler) getNeedSources(c *fiber.Ctx) error {
	prisonNumber, err := prisonNumberParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	sources, err := h.needs.NeedSources(c.Context(), prisonNumber)
	if err != nil {
		return h.internalError(c, err)
	}

	return utils.SendSuccess(c, "need sources retrieved", dto.NewNeedSourcesResponse(prisonNumber, sources))
}

func (h *StatusHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("status request failed")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

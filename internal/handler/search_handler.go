package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/service"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/utils"
)

// SearchHandler serves prison-level listings with derived plan statuses.
type SearchHandler struct {
	search service.SearchService
	logger zerolog.Logger
	now    func() time.Time
}

// NewSearchHandler constructs the handler.
func NewSearchHandler(search service.SearchService, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		search: search,
		logger: logger.With().Str("component", "search_handler").Logger(),
		now:    time.Now,
	}
}

// Register attaches search endpoints to the router group.
func (h *SearchHandler) Register(router fiber.Router) {
	router.Get("/prisons/:prisonId/people", h.searchPeople)
}

func (h *SearchHandler) searchPeople(c *fiber.Ctx) error {
	prisonID := strings.ToUpper(strings.TrimSpace(c.Params("prisonId")))
	if prisonID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "prison id is required")
	}

	status, ok := service.ParsePlanStatus(c.Query("status"))
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "unknown status filter")
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}

	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	filter := service.SearchFilter{Status: status, Page: page, PageSize: pageSize}

	response, err := h.search.SearchPeople(c.Context(), prisonID, filter, h.now())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("search request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "people retrieved", response)
}

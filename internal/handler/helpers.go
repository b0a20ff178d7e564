package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/middleware"
	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// prisonNumberParam extracts and normalizes the :prisonNumber route segment.
func prisonNumberParam(c *fiber.Ctx) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(c.Params("prisonNumber")))
	if value == "" {
		return "", errors.New("prison number is required")
	}
	return value, nil
}

// scheduleKindParam maps the :kind route segment onto a schedule kind.
func scheduleKindParam(c *fiber.Ctx) (models.ScheduleKind, error) {
	switch strings.ToLower(strings.TrimSpace(c.Params("kind"))) {
	case "plan-creation":
		return models.PlanCreationSchedule, nil
	case "review":
		return models.ReviewSchedule, nil
	default:
		return "", errors.New("schedule kind must be plan-creation or review")
	}
}

// usernameFromContext resolves the audit actor established by the JWT middleware.
func usernameFromContext(c *fiber.Ctx) string {
	if v := c.Locals("username"); v != nil {
		if username, ok := v.(string); ok {
			return username
		}
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

package handlers

import (
	"salespilot/internal/models"
	"salespilot/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SettingsHandler handles autopilot settings endpoints
type SettingsHandler struct {
	settings  *services.SettingsStore
	scheduler *services.DetectionScheduler
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *services.SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// SetScheduler sets the detection scheduler so cron changes take effect
// without a restart
func (h *SettingsHandler) SetScheduler(scheduler *services.DetectionScheduler) {
	h.scheduler = scheduler
}

// GetSettings returns the owner's autopilot settings
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	settings, err := h.settings.GetSettings(c.Context(), owner)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(settings)
}

// UpdateSettings applies a partial settings update
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	var req models.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.DetectionCron != nil && *req.DetectionCron != "" {
		if err := services.ValidateCron(*req.DetectionCron); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	settings, err := h.settings.Update(c.Context(), owner, &req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if h.scheduler != nil {
		if err := h.scheduler.Reschedule(settings); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	return c.JSON(settings)
}

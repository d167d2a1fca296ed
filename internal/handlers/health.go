package handlers

import (
	"time"

	"salespilot/internal/database"
	"salespilot/internal/services"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	mongo *database.MongoDB
	redis *services.RedisService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(mongo *database.MongoDB, redis *services.RedisService) *HealthHandler {
	return &HealthHandler{mongo: mongo, redis: redis}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"

	mongoOK := h.mongo != nil && h.mongo.Ping(c.Context()) == nil
	if !mongoOK {
		status = "degraded"
	}

	redisOK := true
	if h.redis != nil {
		redisOK = h.redis.Ping(c.Context()) == nil
		if !redisOK {
			status = "degraded"
		}
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"mongo":     mongoOK,
		"redis":     redisOK,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

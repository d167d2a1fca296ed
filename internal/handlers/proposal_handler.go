package handlers

import (
	"errors"
	"strconv"
	"time"

	"salespilot/internal/autopilot"
	"salespilot/internal/models"
	"salespilot/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProposalHandler handles proposal lifecycle endpoints
type ProposalHandler struct {
	controller *autopilot.Controller
	engine     *autopilot.Engine
	store      autopilot.ProposalStore
	runLimiter *services.RunLimiter
}

// NewProposalHandler creates a new proposal handler
func NewProposalHandler(controller *autopilot.Controller, engine *autopilot.Engine, store autopilot.ProposalStore, runLimiter *services.RunLimiter) *ProposalHandler {
	return &ProposalHandler{
		controller: controller,
		engine:     engine,
		store:      store,
		runLimiter: runLimiter,
	}
}

// ownerFromCtx resolves the acting owner set by the owner middleware.
func ownerFromCtx(c *fiber.Ctx) models.Owner {
	userID, _ := c.Locals("user_id").(string)
	orgID, _ := c.Locals("organization_id").(string)
	return models.Owner{UserID: userID, OrganizationID: orgID}
}

// proposalIDFromCtx parses the :id path parameter.
func proposalIDFromCtx(c *fiber.Ctx) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(c.Params("id"))
}

// lifecycleError maps controller errors to HTTP statuses. A failed status
// guard is a conflict, not a server fault.
func lifecycleError(c *fiber.Ctx, err error) error {
	if errors.Is(err, autopilot.ErrNotFoundOrProcessed) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "proposal not found or already processed",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// ListProposals returns the owner's active proposals, reconciled and sorted
// by priority
func (h *ProposalHandler) ListProposals(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	limit := int64(50)
	if l, err := strconv.ParseInt(c.Query("limit", "50"), 10, 64); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	if status := c.Query("status"); status != "" && status != string(models.ProposalStatusProposed) {
		proposals, err := h.store.ListByStatus(c.Context(), owner, models.ProposalStatus(status), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		if proposals == nil {
			proposals = []models.Proposal{}
		}
		return c.JSON(fiber.Map{"proposals": proposals})
	}

	proposals, err := h.controller.SurfaceActive(c.Context(), owner, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

// GetProposal returns a single proposal
func (h *ProposalHandler) GetProposal(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	proposal, err := h.store.GetByID(c.Context(), owner, id)
	if err != nil {
		if errors.Is(err, autopilot.ErrNotFoundOrProcessed) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "proposal not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(proposal)
}

// AcceptProposal accepts a proposed proposal and dispatches execution
func (h *ProposalHandler) AcceptProposal(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)

	proposal, err := h.controller.Accept(c.Context(), owner, id, req.Reason)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(proposal)
}

// DeclineProposal declines a proposed proposal
func (h *ProposalHandler) DeclineProposal(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.BodyParser(&req)

	proposal, err := h.controller.Decline(c.Context(), owner, id, req.Reason)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(proposal)
}

// SnoozeProposal snoozes a proposed proposal until the given time
func (h *ProposalHandler) SnoozeProposal(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	var req struct {
		Until  time.Time `json:"until"`
		Reason string    `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil || req.Until.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "until (RFC3339 timestamp) is required",
		})
	}

	proposal, err := h.controller.Snooze(c.Context(), owner, id, req.Until, req.Reason)
	if err != nil {
		if errors.Is(err, autopilot.ErrNotFoundOrProcessed) {
			return lifecycleError(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(proposal)
}

// RetryProposal retries a failed proposal
func (h *ProposalHandler) RetryProposal(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	proposal, err := h.controller.Retry(c.Context(), owner, id)
	if err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(proposal)
}

// CompleteProposal marks a proposal done without dispatching — the user did
// the action through another surface
func (h *ProposalHandler) CompleteProposal(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	if err := h.controller.CompleteInline(c.Context(), owner, id); err != nil {
		return lifecycleError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Proposal completed"})
}

// UpdateExecutionStatus is the callback endpoint for the execution pipeline
func (h *ProposalHandler) UpdateExecutionStatus(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	id, err := proposalIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid proposal ID"})
	}

	var req struct {
		Status    models.ProposalStatus     `json:"status"`
		Artifacts []models.ProposalArtifact `json:"artifacts,omitempty"`
		Error     string                    `json:"error,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status is required",
		})
	}

	if err := h.controller.UpdateExecutionStatus(c.Context(), owner, id, req.Status, req.Artifacts, req.Error); err != nil {
		if errors.Is(err, autopilot.ErrNotFoundOrProcessed) {
			return lifecycleError(c, err)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Execution status updated"})
}

// TriggerRun runs detection for the owner immediately
func (h *ProposalHandler) TriggerRun(c *fiber.Ctx) error {
	owner := ownerFromCtx(c)

	if h.runLimiter != nil && !h.runLimiter.Allow(owner.UserID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many detection runs. Please wait before triggering again.",
		})
	}

	report, err := h.engine.Run(c.Context(), owner)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

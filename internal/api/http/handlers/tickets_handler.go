package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-desk/internal/api/dto"
	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/service"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// TicketsHandler manages staff ticket endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
	lifecycle  *service.LifecycleService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignment *service.AssignmentService, lifecycle *service.LifecycleService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignment: assignment, lifecycle: lifecycle}
}

// GetTicket GET /api/v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ticket, tech, err := h.tickets.GetTicket(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.tickets.ListHistory(ctx, ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket:  dto.NewTicketResponse(ticket, tech),
		History: dto.NewHistoryResponse(history),
	}})
}

// AssignTicket POST /api/v1/tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID == "" {
		return apperrors.NewValidationError("technician_id required", nil)
	}
	res, err := h.assignment.Assign(c.UserContext(), c.Params("id"), req.TechnicianID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AssignResponse{
		Ticket:     dto.NewTicketResponse(res.Ticket, res.Technician),
		Technician: dto.NewTechnicianResponse(res.Technician),
		Degraded:   res.Degraded,
	}})
}

// UpdateStatus POST /api/v1/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	res, err := h.lifecycle.Transition(c.UserContext(), c.Params("id"), req.Status, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionResponse{
		Ticket:    dto.NewTicketResponse(res.Ticket, nil),
		OldStatus: res.OldStatus,
		Mode:      res.Mode.String(),
		Degraded:  res.Degraded,
	}})
}

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/repairdesk/repair-desk/internal/api/dto"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/service"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// TechniciansHandler lists technicians and their ratings.
type TechniciansHandler struct {
	tickets *service.TicketService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(tickets *service.TicketService) *TechniciansHandler {
	return &TechniciansHandler{tickets: tickets}
}

// List GET /api/v1/technicians.
func (h *TechniciansHandler) List(c *fiber.Ctx) error {
	filter := service.TechnicianListFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.TechnicianStatus(strings.ToUpper(raw))
		if status != domain.TechnicianStatusActive && status != domain.TechnicianStatusInactive {
			return apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		filter.Status = &status
	}
	list, err := h.tickets.ListTechnicians(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewTechnicianResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

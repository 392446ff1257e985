package dto

import (
	"time"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	TechnicianID string `json:"technician_id"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// CourierResponse describes a courier pickup.
type CourierResponse struct {
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	Date    string  `json:"date"`
	Notes   *string `json:"notes,omitempty"`
}

// WalkInResponse describes an in-person customer.
type WalkInResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID          string               `json:"id"`
	ExternalKey string               `json:"external_key"`
	Channel     domain.IntakeChannel `json:"channel"`
	Courier     *CourierResponse     `json:"courier,omitempty"`
	WalkIn      *WalkInResponse      `json:"walk_in,omitempty"`
	Branch      string               `json:"branch"`
	Category    string               `json:"category"`
	Subcategory string               `json:"subcategory"`
	Brand       string               `json:"brand"`
	Problem     string               `json:"problem"`
	Urgency     domain.Urgency       `json:"urgency"`
	Photos      []string             `json:"photos"`
	Status      domain.TicketStatus  `json:"status"`
	CustomerID  *string              `json:"customer_id"`
	Technician  *TechnicianResponse  `json:"technician,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	CompletedAt *time.Time           `json:"completed_at"`
	RatedAt     *time.Time           `json:"rated_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TicketDetailResponse bundles a ticket and its history.
type TicketDetailResponse struct {
	Ticket  TicketResponse          `json:"ticket"`
	History []TicketHistoryResponse `json:"history"`
}

// TransitionResponse is returned by status changes.
type TransitionResponse struct {
	Ticket    TicketResponse      `json:"ticket"`
	OldStatus domain.TicketStatus `json:"old_status"`
	Mode      string              `json:"mode"`
	Degraded  bool                `json:"degraded"`
}

// AssignResponse is returned by assignments.
type AssignResponse struct {
	Ticket     TicketResponse     `json:"ticket"`
	Technician TechnicianResponse `json:"technician"`
	Degraded   bool               `json:"degraded"`
}

// TechnicianResponse exposes a technician and their aggregates.
type TechnicianResponse struct {
	ID              string                  `json:"id"`
	ExternalID      string                  `json:"external_id,omitempty"`
	Name            string                  `json:"name"`
	Specialization  string                  `json:"specialization"`
	Rating          float64                 `json:"rating"`
	RatingCount     int                     `json:"rating_count"`
	ActiveOrders    int                     `json:"active_orders"`
	CompletedOrders int                     `json:"completed_orders"`
	Status          domain.TechnicianStatus `json:"status"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket, tech *domain.Technician) TicketResponse {
	resp := TicketResponse{
		ID:          t.ID,
		ExternalKey: t.ExternalKey,
		Channel:     t.Channel,
		Branch:      t.Branch,
		Category:    t.Category,
		Subcategory: t.Subcategory,
		Brand:       t.Brand,
		Problem:     t.Problem,
		Urgency:     t.Urgency,
		Photos:      t.Photos,
		Status:      t.Status,
		CustomerID:  t.CustomerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
		RatedAt:     t.RatedAt,
	}
	if resp.Photos == nil {
		resp.Photos = []string{}
	}
	if c := t.Courier; c != nil {
		resp.Courier = &CourierResponse{Address: c.Address, Phone: c.Phone, Date: c.Date, Notes: c.Notes}
	}
	if w := t.WalkIn; w != nil {
		resp.WalkIn = &WalkInResponse{Name: w.Name, Phone: w.Phone}
	}
	if tech != nil {
		tr := NewTechnicianResponse(tech)
		resp.Technician = &tr
	}
	return resp
}

// NewTechnicianResponse maps a domain technician.
func NewTechnicianResponse(t *domain.Technician) TechnicianResponse {
	return TechnicianResponse{
		ID:              t.ID,
		ExternalID:      t.ExternalID,
		Name:            t.Name,
		Specialization:  t.Specialization,
		Rating:          t.Rating,
		RatingCount:     t.RatingCount,
		ActiveOrders:    t.ActiveOrders,
		CompletedOrders: t.CompletedOrders,
		Status:          t.Status,
	}
}

// NewHistoryResponse maps audit entries.
func NewHistoryResponse(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:          e.ID,
			ChangeType:  e.ChangeType,
			ChangedByID: e.ChangedByID,
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

package events

import (
	"time"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ActorFrom copies the identity fields of a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{ExternalID: a.ExternalID, Name: a.Name}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string               `json:"external_key"`
	Channel     domain.IntakeChannel `json:"channel"`
	Branch      string               `json:"branch"`
	Urgency     domain.Urgency       `json:"urgency"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus   `json:"old_status"`
	NewStatus domain.TicketStatus   `json:"new_status"`
	Mode      domain.TransitionMode `json:"mode"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID   string              `json:"technician_id"`
	TechnicianName string              `json:"technician_name"`
	OldStatus      domain.TicketStatus `json:"old_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
}


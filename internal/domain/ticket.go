package domain

import (
	"errors"
	"time"
)

// TicketStatus enumerates lifecycle states for repair tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusDiagnosing TicketStatus = "DIAGNOSING"
	TicketStatusRepairing  TicketStatus = "REPAIRING"
	TicketStatusDone       TicketStatus = "DONE"
)

// IntakeChannel describes how the device reaches the service center.
type IntakeChannel string

const (
	ChannelSelfDropOff     IntakeChannel = "SELF_DROP_OFF"
	ChannelCourierDelivery IntakeChannel = "COURIER_DELIVERY"
	ChannelWalkIn          IntakeChannel = "WALK_IN"
)

// Urgency enumerates how fast the customer wants the repair.
type Urgency string

const (
	UrgencyNormal Urgency = "NORMAL"
	UrgencyUrgent Urgency = "URGENT"
)

// MaxTicketPhotos caps the number of photo references per ticket.
const MaxTicketPhotos = 3

// CourierDetails holds pickup data for courier-delivery tickets.
type CourierDetails struct {
	Address string
	Phone   string
	Date    string
	Notes   *string
}

// WalkInDetails identifies a customer who came to a branch without the bot.
type WalkInDetails struct {
	Name  string
	Phone string
}

// Ticket is the aggregate for repair requests.
type Ticket struct {
	ID           string
	ExternalKey  string
	Channel      IntakeChannel
	Courier      *CourierDetails
	WalkIn       *WalkInDetails
	Branch       string
	Category     string
	Subcategory  string
	Brand        string
	Problem      string
	Urgency      Urgency
	Photos       []string
	Status       TicketStatus
	CustomerID   *string
	TechnicianID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
	RatedAt      *time.Time
}

var (
	ErrUnknownChannel       = errors.New("unknown intake channel")
	ErrChannelFieldMismatch = errors.New("ticket fields do not match intake channel")
	ErrTooManyPhotos        = errors.New("too many photos")
)

// Validate checks that exactly the channel-appropriate fields are populated.
func (t *Ticket) Validate() error {
	switch t.Channel {
	case ChannelSelfDropOff:
		if t.Courier != nil || t.WalkIn != nil || t.CustomerID == nil {
			return ErrChannelFieldMismatch
		}
	case ChannelCourierDelivery:
		if t.Courier == nil || t.WalkIn != nil || t.CustomerID == nil {
			return ErrChannelFieldMismatch
		}
	case ChannelWalkIn:
		if t.WalkIn == nil || t.Courier != nil || t.CustomerID != nil {
			return ErrChannelFieldMismatch
		}
	default:
		return ErrUnknownChannel
	}
	if len(t.Photos) > MaxTicketPhotos {
		return ErrTooManyPhotos
	}
	return nil
}

// HasTechnician reports whether a technician is bound to the ticket.
func (t *Ticket) HasTechnician() bool {
	return t.TechnicianID != nil && *t.TechnicianID != ""
}

// RatingEligible reports whether the customer may be asked to rate the work.
func (t *Ticket) RatingEligible() bool {
	return t.Status == TicketStatusDone && t.HasTechnician()
}

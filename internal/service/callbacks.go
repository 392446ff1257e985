package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// CallbackAction identifies what an inline button does.
type CallbackAction string

const (
	CallbackTake   CallbackAction = "take"
	CallbackStatus CallbackAction = "status"
	CallbackRate   CallbackAction = "rate"
)

var statusCodes = map[string]domain.TicketStatus{
	"diag":   domain.TicketStatusDiagnosing,
	"repair": domain.TicketStatusRepairing,
	"done":   domain.TicketStatusDone,
}

// Callback is decoded inline button data.
type Callback struct {
	Action       CallbackAction
	TicketID     string
	TechnicianID string
	Status       domain.TicketStatus
	Score        int
}

// TakeCallback encodes a technician selection button.
func TakeCallback(ticketID, technicianExternalID string) string {
	return fmt.Sprintf("%s:%s:%s", CallbackTake, ticketID, technicianExternalID)
}

// StatusCallback encodes a status button.
func StatusCallback(status domain.TicketStatus, ticketID string) string {
	for code, s := range statusCodes {
		if s == status {
			return fmt.Sprintf("%s:%s:%s", CallbackStatus, code, ticketID)
		}
	}
	return ""
}

// RateCallback encodes a rating button.
func RateCallback(ticketID string, score int) string {
	return fmt.Sprintf("%s:%s:%d", CallbackRate, ticketID, score)
}

// ParseCallback decodes inline button data.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Callback{}, fmt.Errorf("malformed callback %q", data)
	}
	switch CallbackAction(parts[0]) {
	case CallbackTake:
		return Callback{Action: CallbackTake, TicketID: parts[1], TechnicianID: parts[2]}, nil
	case CallbackStatus:
		status, ok := statusCodes[parts[1]]
		if !ok {
			return Callback{}, fmt.Errorf("unknown status code %q", parts[1])
		}
		return Callback{Action: CallbackStatus, Status: status, TicketID: parts[2]}, nil
	case CallbackRate:
		score, err := strconv.Atoi(parts[2])
		if err != nil {
			return Callback{}, fmt.Errorf("bad score %q", parts[2])
		}
		return Callback{Action: CallbackRate, TicketID: parts[1], Score: score}, nil
	}
	return Callback{}, fmt.Errorf("unknown callback action %q", parts[0])
}

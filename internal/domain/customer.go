package domain

import "time"

// Customer is a chat user who has submitted at least one ticket.
type Customer struct {
	ID         string
	ExternalID string
	Username   string
	Name       string
	Phone      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

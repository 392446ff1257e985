package session

import (
	"context"
	"errors"

	"github.com/repairdesk/repair-desk/internal/intake"
)

// ErrNotFound is returned when the user has no active intake session.
var ErrNotFound = errors.New("intake session not found")

// Store persists intake sessions keyed by user identity.
type Store interface {
	Get(ctx context.Context, userID string) (*intake.Session, error)
	Save(ctx context.Context, s intake.Session) error
	Delete(ctx context.Context, userID string) error
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/repairdesk/repair-desk/internal/events"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "RPR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// notFoundOr maps a missing row to NotFound and anything else to a persistence failure.
func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.NewPersistenceError(err)
}

// checkTicketID rejects identifiers that cannot name a stored ticket before they reach the
// database, where a malformed UUID is a query error rather than a miss.
func checkTicketID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return nil
}

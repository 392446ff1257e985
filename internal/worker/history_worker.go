package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/repository"
)

// StartHistoryWorker subscribes the ticket audit trail to creation, assignment and status events.
// Ratings are aggregated only and never recorded per ticket.
func StartHistoryWorker(dispatcher events.Dispatcher, history repository.TicketHistoryRepository, logger *zap.Logger) {
	if dispatcher == nil || history == nil {
		return
	}
	w := &historyWorker{history: history, logger: logger.Named("history_worker")}
	dispatcher.Subscribe(events.EventTicketCreated, w.handle)
	dispatcher.Subscribe(events.EventTicketAssigned, w.handle)
	dispatcher.Subscribe(events.EventTicketStatusChanged, w.handle)
}

type historyWorker struct {
	history repository.TicketHistoryRepository
	logger  *zap.Logger
}

func (w *historyWorker) handle(ctx context.Context, event events.Event) error {
	entry, err := historyEntry(event)
	if err != nil {
		return err
	}
	if err := w.history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record ticket history: %w", err)
	}
	w.logger.Debug("ticket history recorded",
		zap.String("ticket_id", event.TicketID),
		zap.String("change_type", string(entry.ChangeType)))
	return nil
}

func historyEntry(event events.Event) (*domain.TicketHistory, error) {
	entry := &domain.TicketHistory{TicketID: event.TicketID}
	if event.Actor.ExternalID != "" {
		actor := event.Actor.ExternalID
		entry.ChangedByID = &actor
	}
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		entry.ChangeType = domain.ChangeTypeCreated
		entry.NewValue = map[string]any{
			"external_key": payload.ExternalKey,
			"channel":      payload.Channel,
			"branch":       payload.Branch,
			"urgency":      payload.Urgency,
		}
	case events.TicketAssignedPayload:
		entry.ChangeType = domain.ChangeTypeTechnician
		entry.OldValue = map[string]any{"status": payload.OldStatus}
		entry.NewValue = map[string]any{
			"technician_id":   payload.TechnicianID,
			"technician_name": payload.TechnicianName,
			"status":          payload.NewStatus,
		}
	case events.TicketStatusChangedPayload:
		entry.ChangeType = domain.ChangeTypeStatus
		entry.OldValue = map[string]any{"status": payload.OldStatus}
		entry.NewValue = map[string]any{"status": payload.NewStatus, "mode": payload.Mode.String()}
	default:
		return nil, fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	return entry, nil
}

package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/repository"
)

func TestHistoryWorkerRecordsTicketEvents(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	StartHistoryWorker(dispatcher, store.History(), zap.NewNop())

	actor := events.Actor{ExternalID: "100"}
	publish := func(typ events.EventType, payload any) {
		require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: typ, TicketID: "t1", Actor: actor, Payload: payload}))
	}
	publish(events.EventTicketCreated, events.TicketCreatedPayload{ExternalKey: "RPR-1", Channel: domain.ChannelWalkIn})
	publish(events.EventTicketAssigned, events.TicketAssignedPayload{
		TechnicianID: "tech", OldStatus: domain.TicketStatusNew, NewStatus: domain.TicketStatusDiagnosing,
	})
	publish(events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusDiagnosing, NewStatus: domain.TicketStatusDone,
	})

	entries, err := store.History().ListByTicket(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ChangeTypeCreated, entries[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeTechnician, entries[1].ChangeType)
	assert.Equal(t, domain.ChangeTypeStatus, entries[2].ChangeType)
	assert.Equal(t, domain.TicketStatusDone, entries[2].NewValue["status"])
	require.NotNil(t, entries[0].ChangedByID)
	assert.Equal(t, "100", *entries[0].ChangedByID)
}

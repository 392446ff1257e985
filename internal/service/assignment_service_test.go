package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/repository"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

func TestAssignMovesNewTicketToDiagnosing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.seedTicket(t)

	res, err := f.assignment.Assign(ctx, ticket.ID, "501", staff())
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, domain.TicketStatusDiagnosing, res.Ticket.Status)
	assert.Equal(t, "Farrukh", res.Technician.Name)
	assert.Equal(t, 1, res.Technician.ActiveOrders)

	techMsgs := f.transport.to("501")
	require.Len(t, techMsgs, 1)
	require.NotEmpty(t, techMsgs[0].Inline)
	assert.Equal(t, StatusCallback(domain.TicketStatusRepairing, ticket.ID), techMsgs[0].Inline[0][0].Data)
	require.Len(t, f.transport.to(customerID), 1)

	history, err := f.store.History().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ChangeTypeTechnician, history[0].ChangeType)
}

func TestConcurrentAssignHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ticket := f.seedTicket(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*AssignResult
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.assignment.Assign(context.Background(), ticket.ID, testRoster[i%2].ExternalID, staff())
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			winners = append(winners, res)
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, errs, callers-1)
	for _, err := range errs {
		de := apperrors.ToDomainError(err)
		require.Equal(t, apperrors.CodeAlreadyAssigned, de.Code)
		assert.Equal(t, winners[0].Technician.Name, de.Details["technician"])
	}

	techs, err := f.store.Technicians().List(context.Background(), repository.TechnicianFilter{})
	require.NoError(t, err)
	active := 0
	for _, tech := range techs {
		active += tech.ActiveOrders
	}
	assert.Equal(t, 1, active)
}

func TestAssignRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.seedTicket(t)

	_, err := f.assignment.Assign(ctx, ticket.ID, "501", customer())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.assignment.Assign(ctx, "missing", "501", staff())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.assignment.Assign(ctx, ticket.ID, "999", staff())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusDone, admin())
	require.NoError(t, err)
	_, err = f.assignment.Assign(ctx, ticket.ID, "501", staff())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestAssignNotificationFailureIsDegraded(t *testing.T) {
	f := newFixture(t)
	f.transport.failFor("502")
	ticket := f.seedTicket(t)

	res, err := f.assignment.Assign(context.Background(), ticket.ID, "502", staff())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, domain.TicketStatusDiagnosing, res.Ticket.Status)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionStandardTable(t *testing.T) {
	cases := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketStatusNew, TicketStatusDiagnosing, true},
		{TicketStatusNew, TicketStatusRepairing, true},
		{TicketStatusNew, TicketStatusDone, false},
		{TicketStatusDiagnosing, TicketStatusRepairing, true},
		{TicketStatusDiagnosing, TicketStatusDone, true},
		{TicketStatusDiagnosing, TicketStatusNew, false},
		{TicketStatusRepairing, TicketStatusDone, true},
		{TicketStatusRepairing, TicketStatusDiagnosing, false},
		{TicketStatusDone, TicketStatusNew, false},
		{TicketStatusDone, TicketStatusDone, false},
		{TicketStatusNew, TicketStatus("LOST"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to, StandardTransition), "%s -> %s", tc.from, tc.to)
	}
}

func TestAdministrativeOverrideIsForwardOnly(t *testing.T) {
	assert.True(t, CanTransition(TicketStatusNew, TicketStatusDone, AdministrativeOverride))
	assert.True(t, CanTransition(TicketStatusNew, TicketStatusRepairing, AdministrativeOverride))
	assert.False(t, CanTransition(TicketStatusRepairing, TicketStatusNew, AdministrativeOverride))
	assert.False(t, CanTransition(TicketStatusRepairing, TicketStatusRepairing, AdministrativeOverride))

	for status := range statusRank {
		assert.False(t, CanTransition(TicketStatusDone, status, AdministrativeOverride), "done must stay absorbing (-> %s)", status)
	}
}

func TestAllowedNextReturnsCopy(t *testing.T) {
	next := TicketStatusNew.AllowedNext()
	next[0] = TicketStatusDone
	assert.Equal(t, TicketStatusDiagnosing, TicketStatusNew.AllowedNext()[0])
	assert.Empty(t, TicketStatusDone.AllowedNext())
	assert.True(t, TicketStatusDone.IsTerminal())
}

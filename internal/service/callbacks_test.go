package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repair-desk/internal/domain"
)

func TestCallbackEncoding(t *testing.T) {
	const ticketID = "7f1c2a44-9b0e-4c55-8d1e-3b7a2f9c0d11"

	cb, err := ParseCallback(TakeCallback(ticketID, "8198019891"))
	require.NoError(t, err)
	assert.Equal(t, Callback{Action: CallbackTake, TicketID: ticketID, TechnicianID: "8198019891"}, cb)

	cb, err = ParseCallback(StatusCallback(domain.TicketStatusRepairing, ticketID))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusRepairing, cb.Status)
	assert.Equal(t, ticketID, cb.TicketID)

	cb, err = ParseCallback(RateCallback(ticketID, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, cb.Score)

	assert.LessOrEqual(t, len(TakeCallback(ticketID, "8198019891")), 64)
	assert.Empty(t, StatusCallback(domain.TicketStatusNew, ticketID))

	for _, bad := range []string{"", "take", "take::1", "status:lost:x", "rate:x:five", "drop:x:y"} {
		_, err := ParseCallback(bad)
		assert.Errorf(t, err, "data %q", bad)
	}
}

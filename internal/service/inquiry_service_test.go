package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repair-desk/internal/domain"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

func (f *fixture) inquiry() *InquiryService {
	return NewInquiryService(InquiryDependencies{
		TicketRepo:     f.store.Tickets(),
		TechnicianRepo: f.store.Technicians(),
		CustomerRepo:   f.store.Customers(),
	})
}

func TestInquiryIgnoresOtherText(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"", CommandNew, MenuNewRequest, "Samsung"} {
		reply, ok, err := f.inquiry().Answer(context.Background(), customer(), text)
		assert.False(t, ok, text)
		assert.NoError(t, err)
		assert.Nil(t, reply)
	}
}

func TestInquiryCustomerWithoutTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, ok, err := f.inquiry().Answer(ctx, customer(), MenuMyRequests)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, reply.Text, "no requests yet")
	assert.Equal(t, MainMenu().Options, reply.Options)

	reply, _, err = f.inquiry().Answer(ctx, customer(), MenuRepairStatus)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "No requests in progress")
}

func TestInquiryCustomerTicketsAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	waiting := f.seedTicket(t)
	working := f.assigned(t)
	finished := f.done(t)

	reply, err := f.inquiry().CustomerTickets(ctx, customer())
	require.NoError(t, err)
	for _, ticket := range []*domain.Ticket{waiting, working, finished} {
		assert.Contains(t, reply.Text, ticket.ExternalKey)
	}
	assert.Less(t, strings.Index(reply.Text, finished.ExternalKey), strings.Index(reply.Text, waiting.ExternalKey))

	reply, err = f.inquiry().RepairStatus(ctx, customer())
	require.NoError(t, err)
	assert.Contains(t, reply.Text, waiting.ExternalKey)
	assert.Contains(t, reply.Text, "Waiting for a technician")
	assert.Contains(t, reply.Text, working.ExternalKey)
	assert.Contains(t, reply.Text, "Technician: Farrukh")
	assert.NotContains(t, reply.Text, finished.ExternalKey)

	other, err := f.inquiry().CustomerTickets(ctx, domain.Actor{ExternalID: "77"})
	require.NoError(t, err)
	assert.NotContains(t, other.Text, waiting.ExternalKey)
}

func TestInquiryTechnicianViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.assigned(t)
	finished := f.done(t)
	_, err := f.rating.Rate(ctx, finished.ID, 4, customer())
	require.NoError(t, err)

	tech := domain.Actor{ExternalID: testRoster[0].ExternalID}
	reply, ok, err := f.inquiry().Answer(ctx, tech, CommandMyTickets)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, reply.Text, "Your requests (2)")
	assert.Contains(t, reply.Text, open.ExternalKey)
	assert.Contains(t, reply.Text, finished.ExternalKey)

	reply, _, err = f.inquiry().Answer(ctx, tech, CommandMyRating)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "4.00")
	assert.Contains(t, reply.Text, "Ratings: 1")
	assert.Contains(t, reply.Text, "Completed: 1")
	assert.Contains(t, reply.Text, "In progress: 1")

	_, _, err = f.inquiry().Answer(ctx, customer(), CommandMyTickets)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestInquiryTechnicianRatings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tickets.SyncRoster(ctx, testRoster))
	finished := f.done(t)
	_, err := f.rating.Rate(ctx, finished.ID, 5, customer())
	require.NoError(t, err)

	reply, ok, err := f.inquiry().Answer(ctx, customer(), MenuRatings)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, reply.Text, "1. Farrukh (Laptops): 5.00 from 1 ratings")
	assert.Contains(t, reply.Text, "2. Dilshod (Appliances): no ratings yet")
}

func TestPreviewTruncatesByRune(t *testing.T) {
	long := strings.Repeat("ж", problemPreviewRunes+5)
	assert.Equal(t, strings.Repeat("ж", problemPreviewRunes)+"…", preview(long))
	assert.Equal(t, "short", preview("short"))
}

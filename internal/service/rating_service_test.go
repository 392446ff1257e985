package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repairdesk/repair-desk/internal/domain"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

func (f *fixture) done(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := f.assigned(t)
	res, err := f.lifecycle.Transition(context.Background(), ticket.ID, domain.TicketStatusDone, staff())
	require.NoError(t, err)
	return res.Ticket
}

func TestRateUpdatesTechnicianMean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.done(t)
	second := f.done(t)

	res, err := f.rating.Rate(ctx, first.ID, 4, customer())
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Change.NewRating)
	assert.Equal(t, 1, res.Change.NewCount)
	assert.NotNil(t, res.Ticket.RatedAt)

	res, err = f.rating.Rate(ctx, second.ID, 5, customer())
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Change.OldRating)
	assert.InDelta(t, 4.5, res.Change.NewRating, 1e-9)
	assert.Equal(t, 2, res.Change.NewCount)

	tech, err := f.store.Technicians().GetByID(ctx, *first.TechnicianID)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, tech.Rating, 1e-9)
	assert.Equal(t, 2, tech.RatingCount)

	assert.Len(t, f.transport.to(adminID), 2)
	techMessages := f.transport.to("501")
	require.NotEmpty(t, techMessages)
	last := techMessages[len(techMessages)-1].Text
	assert.Contains(t, last, "rated 5/5")
	assert.Contains(t, last, "Before: 4.00 (1)")
	assert.Contains(t, last, "After: 4.50 (2)")
	adminMessages := f.transport.to(adminID)
	assert.Equal(t, last, adminMessages[len(adminMessages)-1].Text)
}

func TestWalkInRatingRequestGoesToStaffChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		Channel:     domain.ChannelWalkIn,
		WalkIn:      &domain.WalkInDetails{Name: "Rustam", Phone: "901234567"},
		Branch:      "🏢 Dushanbe",
		Category:    "💻 Laptops and PCs",
		Subcategory: "💻 Laptops",
		Brand:       "Lenovo",
		Problem:     "Keyboard does not respond",
		Urgency:     domain.UrgencyNormal,
		Status:      domain.TicketStatusNew,
	}
	require.NoError(t, f.store.Tickets().Create(ctx, ticket))
	_, err := f.assignment.Assign(ctx, ticket.ID, testRoster[1].ExternalID, staff())
	require.NoError(t, err)
	_, err = f.lifecycle.Transition(ctx, ticket.ID, domain.TicketStatusDone, staff())
	require.NoError(t, err)

	broadcast := f.transport.to(staffChatID)
	require.NotEmpty(t, broadcast)
	request := broadcast[len(broadcast)-1]
	assert.Contains(t, request.Text, ticket.ExternalKey)
	require.Len(t, request.Inline, domain.MaxRatingScore)

	cb, err := ParseCallback(request.Inline[2][0].Data)
	require.NoError(t, err)
	assert.Equal(t, CallbackRate, cb.Action)
	assert.Equal(t, ticket.ID, cb.TicketID)

	_, err = f.rating.Rate(ctx, cb.TicketID, cb.Score, customer())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	res, err := f.rating.Rate(ctx, cb.TicketID, cb.Score, staff())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Change.Score)
	assert.Equal(t, 1, res.Technician.RatingCount)
}

func TestRateOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.done(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.rating.Rate(ctx, ticket.ID, 5, customer())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if apperrors.HasCode(err, apperrors.CodeAlreadyRated) {
				rejected++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
	assert.Equal(t, 4, rejected)

	tech, err := f.store.Technicians().GetByID(ctx, *ticket.TechnicianID)
	require.NoError(t, err)
	assert.Equal(t, 1, tech.RatingCount)
}

func TestRateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.assigned(t)
	finished := f.done(t)

	_, err := f.rating.Rate(ctx, finished.ID, 6, customer())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = f.rating.Rate(ctx, finished.ID, 5, staff())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.rating.Rate(ctx, open.ID, 5, customer())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	_, err = f.rating.Rate(ctx, "missing", 5, customer())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

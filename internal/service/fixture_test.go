package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/intake"
	"github.com/repairdesk/repair-desk/internal/notify"
	"github.com/repairdesk/repair-desk/internal/observability"
	"github.com/repairdesk/repair-desk/internal/repository"
	"github.com/repairdesk/repair-desk/internal/session"
	"github.com/repairdesk/repair-desk/internal/worker"
)

const (
	adminID     = "100"
	staffID     = "200"
	customerID  = "42"
	staffChatID = "-900"
)

var testRoster = []domain.TechnicianProfile{
	{ExternalID: "501", Name: "Farrukh", Specialization: "Laptops"},
	{ExternalID: "502", Name: "Dilshod", Specialization: "Appliances"},
}

type sentMessage struct {
	ChatID  string
	Message notify.Message
}

type recordingTransport struct {
	mu        sync.Mutex
	sent      []sentMessage
	failChats map[string]bool
}

func (r *recordingTransport) Send(_ context.Context, chatID string, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failChats[chatID] {
		return errors.New("chat unreachable")
	}
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Message: msg})
	return nil
}

func (r *recordingTransport) to(chatID string) []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Message
	for _, m := range r.sent {
		if m.ChatID == chatID {
			out = append(out, m.Message)
		}
	}
	return out
}

func (r *recordingTransport) failFor(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failChats == nil {
		r.failChats = map[string]bool{}
	}
	r.failChats[chatID] = true
}

type fixture struct {
	store         *repository.MemoryStore
	sessions      *session.MemoryStore
	transport     *recordingTransport
	metrics       *observability.Metrics
	notifications *NotificationService
	intake        *IntakeService
	lifecycle     *LifecycleService
	assignment    *AssignmentService
	rating        *RatingService
	tickets       *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	sessions := session.NewMemoryStore(0)
	transport := &recordingTransport{}
	metrics := observability.NewMetrics()
	authz := auth.NewAuthorizer([]string{adminID}, []string{staffID})
	bus := events.NewInMemoryDispatcher(logger)
	worker.StartHistoryWorker(bus, store.History(), logger)

	notifications := NewNotificationService(NotificationDependencies{
		Dispatcher:  notify.NewDispatcher(transport, logger, metrics, 0),
		Customers:   store.Customers(),
		Authorizer:  authz,
		Roster:      testRoster,
		StaffChatID: staffChatID,
		Logger:      logger,
	})
	return &fixture{
		store:         store,
		sessions:      sessions,
		transport:     transport,
		metrics:       metrics,
		notifications: notifications,
		intake: NewIntakeService(IntakeDependencies{
			Flow:          intake.NewFlow(intake.DefaultCatalog()),
			Sessions:      sessions,
			TicketRepo:    store.Tickets(),
			CustomerRepo:  store.Customers(),
			Notifications: notifications,
			Dispatcher:    bus,
			Authorizer:    authz,
			Metrics:       metrics,
			Logger:        logger,
		}),
		lifecycle: NewLifecycleService(LifecycleDependencies{
			TicketRepo:     store.Tickets(),
			TechnicianRepo: store.Technicians(),
			Notifications:  notifications,
			Dispatcher:     bus,
			Authorizer:     authz,
			Logger:         logger,
		}),
		assignment: NewAssignmentService(AssignmentDependencies{
			TicketRepo:     store.Tickets(),
			TechnicianRepo: store.Technicians(),
			Notifications:  notifications,
			Dispatcher:     bus,
			Authorizer:     authz,
			Logger:         logger,
		}),
		rating: NewRatingService(RatingDependencies{
			TicketRepo:     store.Tickets(),
			TechnicianRepo: store.Technicians(),
			CustomerRepo:   store.Customers(),
			Notifications:  notifications,
			Authorizer:     authz,
			Logger:         logger,
		}),
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:     store.Tickets(),
			TechnicianRepo: store.Technicians(),
			HistoryRepo:    store.History(),
			Logger:         logger,
		}),
	}
}

// seedTicket stores a NEW self drop-off ticket owned by the test customer.
func (f *fixture) seedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	customer := &domain.Customer{ExternalID: customerID, Name: "Aziz"}
	require.NoError(t, f.store.Customers().Resolve(ctx, customer))
	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		Channel:     domain.ChannelSelfDropOff,
		Branch:      "🏢 Dushanbe",
		Category:    "💻 Laptops and PCs",
		Subcategory: "💻 Laptops",
		Brand:       "Apple",
		Problem:     "Screen flickers constantly",
		Urgency:     domain.UrgencyNormal,
		Status:      domain.TicketStatusNew,
		CustomerID:  &customer.ID,
	}
	require.NoError(t, f.store.Tickets().Create(ctx, ticket))
	return ticket
}

// assigned seeds a ticket bound to the first roster technician.
func (f *fixture) assigned(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket := f.seedTicket(t)
	res, err := f.assignment.Assign(context.Background(), ticket.ID, testRoster[0].ExternalID, domain.Actor{ExternalID: staffID})
	require.NoError(t, err)
	return res.Ticket
}

func staff() domain.Actor    { return domain.Actor{ExternalID: staffID, Name: "Desk"} }
func admin() domain.Actor    { return domain.Actor{ExternalID: adminID, Name: "Boss"} }
func customer() domain.Actor { return domain.Actor{ExternalID: customerID, Name: "Aziz", Username: "aziz"} }

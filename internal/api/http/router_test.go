package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/api/http/handlers"
	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/intake"
	"github.com/repairdesk/repair-desk/internal/notify"
	"github.com/repairdesk/repair-desk/internal/observability"
	"github.com/repairdesk/repair-desk/internal/persistence"
	"github.com/repairdesk/repair-desk/internal/repository"
	"github.com/repairdesk/repair-desk/internal/service"
	"github.com/repairdesk/repair-desk/internal/session"
	"github.com/repairdesk/repair-desk/internal/worker"
)

const (
	webhookSecret = "s3cret"
	staffChat     = "-900"
)

type captureTransport struct {
	mu   sync.Mutex
	sent map[string][]notify.Message
}

func (c *captureTransport) Send(_ context.Context, chatID string, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent == nil {
		c.sent = map[string][]notify.Message{}
	}
	c.sent[chatID] = append(c.sent[chatID], msg)
	return nil
}

func (c *captureTransport) last(chatID string) notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.sent[chatID]
	if len(msgs) == 0 {
		return notify.Message{}
	}
	return msgs[len(msgs)-1]
}

type testServer struct {
	app       *fiber.App
	store     *repository.MemoryStore
	transport *captureTransport
	tokens    *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	transport := &captureTransport{}
	metrics := observability.NewMetrics()
	authz := auth.NewAuthorizer([]string{"100"}, []string{"200"})
	tokens := auth.NewTokenManager("test-secret", 5)
	bus := events.NewInMemoryDispatcher(logger)
	worker.StartHistoryWorker(bus, store.History(), logger)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:  notify.NewDispatcher(transport, logger, metrics, 0),
		Customers:   store.Customers(),
		Authorizer:  authz,
		Roster:      []domain.TechnicianProfile{{ExternalID: "501", Name: "Farrukh"}, {ExternalID: "502", Name: "Dilshod"}},
		StaffChatID: staffChat,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     store.Tickets(),
		TechnicianRepo: store.Technicians(),
		HistoryRepo:    store.History(),
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     store.Tickets(),
		TechnicianRepo: store.Technicians(),
		Notifications:  notifications,
		Dispatcher:     bus,
		Authorizer:     authz,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:     store.Tickets(),
		TechnicianRepo: store.Technicians(),
		Notifications:  notifications,
		Dispatcher:     bus,
		Authorizer:     authz,
	})
	rating := service.NewRatingService(service.RatingDependencies{
		TicketRepo:     store.Tickets(),
		TechnicianRepo: store.Technicians(),
		CustomerRepo:   store.Customers(),
		Notifications:  notifications,
		Authorizer:     authz,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		Flow:          intake.NewFlow(intake.DefaultCatalog()),
		Sessions:      session.NewMemoryStore(0),
		TicketRepo:    store.Tickets(),
		CustomerRepo:  store.Customers(),
		Notifications: notifications,
		Dispatcher:    bus,
		Authorizer:    authz,
		Metrics:       metrics,
	})

	inquiry := service.NewInquiryService(service.InquiryDependencies{
		TicketRepo:     store.Tickets(),
		TechnicianRepo: store.Technicians(),
		CustomerRepo:   store.Customers(),
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("repair-desk", "test", &persistence.Postgres{}, nil),
		Chat: handlers.NewChatHandler(handlers.ChatHandlerDependencies{
			Intake:        intakeService,
			Inquiry:       inquiry,
			Assignment:    assignment,
			Lifecycle:     lifecycle,
			Rating:        rating,
			Notifications: notifications,
			WebhookSecret: webhookSecret,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignment, lifecycle),
		Technicians:    handlers.NewTechniciansHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Authorizer:     authz,
	})
	return &testServer{app: app, store: store, transport: transport, tokens: tokens}
}

func (s *testServer) seedTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	customer := &domain.Customer{ExternalID: "42", Name: "Aziz"}
	require.NoError(t, s.store.Customers().Resolve(ctx, customer))
	ticket := &domain.Ticket{
		ExternalKey: "RPR-0000TEST",
		Channel:     domain.ChannelSelfDropOff,
		Branch:      "🏢 Dushanbe",
		Category:    "💻 Laptops and PCs",
		Subcategory: "💻 Laptops",
		Brand:       "Apple",
		Problem:     "Does not charge at all",
		Urgency:     domain.UrgencyNormal,
		Status:      domain.TicketStatusNew,
		CustomerID:  &customer.ID,
	}
	require.NoError(t, s.store.Tickets().Create(ctx, ticket))
	return ticket
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func (s *testServer) token(t *testing.T, externalID string) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(externalID, "")
	require.NoError(t, err)
	return token
}

func errorCode(payload map[string]any) string {
	e, _ := payload["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestWebhookRequiresSecret(t *testing.T) {
	s := newTestServer(t)
	update := map[string]any{"update_id": 1, "message": map[string]any{
		"message_id": 1, "from": map[string]any{"id": 42}, "chat": map[string]any{"id": 42}, "text": "/new",
	}}

	resp, payload := s.do(t, http.MethodPost, "/chat/webhook", "", update)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))

	resp, _ = s.do(t, http.MethodPost, "/chat/webhook", "", update, handlers.SecretHeader, webhookSecret)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	prompt := s.transport.last("42")
	assert.Contains(t, prompt.Reply, intake.OptionCourier)
}

func TestWebhookTakeButtonAssignsOnce(t *testing.T) {
	s := newTestServer(t)
	ticket := s.seedTicket(t)

	press := func(from int64, data string) {
		update := map[string]any{"update_id": 2, "callback_query": map[string]any{
			"id":      "cb",
			"from":    map[string]any{"id": from},
			"message": map[string]any{"message_id": 9, "chat": map[string]any{"id": -900}},
			"data":    data,
		}}
		resp, _ := s.do(t, http.MethodPost, "/chat/webhook", "", update, handlers.SecretHeader, webhookSecret)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	press(200, service.TakeCallback(ticket.ID, "501"))
	assert.Contains(t, s.transport.last(staffChat).Text, "Farrukh")

	press(200, service.TakeCallback(ticket.ID, "502"))
	assert.Contains(t, s.transport.last(staffChat).Text, "already assigned to Farrukh")

	stored, err := s.store.Tickets().GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusDiagnosing, stored.Status)
}

func TestWebhookReadOnlyRequests(t *testing.T) {
	s := newTestServer(t)
	ticket := s.seedTicket(t)

	send := func(from int64, text string) {
		update := map[string]any{"update_id": 3, "message": map[string]any{
			"message_id": 5, "from": map[string]any{"id": from}, "chat": map[string]any{"id": from}, "text": text,
		}}
		resp, _ := s.do(t, http.MethodPost, "/chat/webhook", "", update, handlers.SecretHeader, webhookSecret)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	send(42, service.MenuMyRequests)
	assert.Contains(t, s.transport.last("42").Text, ticket.ExternalKey)
	assert.Contains(t, s.transport.last("42").Reply, service.MenuNewRequest)

	send(501, service.CommandMyRating)
	assert.Contains(t, s.transport.last("501").Text, "not registered as a technician")

	update := map[string]any{"update_id": 4, "callback_query": map[string]any{
		"id": "cb", "from": map[string]any{"id": 200},
		"message": map[string]any{"message_id": 9, "chat": map[string]any{"id": -900}},
		"data":    service.TakeCallback(ticket.ID, "501"),
	}}
	resp, _ := s.do(t, http.MethodPost, "/chat/webhook", "", update, handlers.SecretHeader, webhookSecret)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	send(42, service.MenuRepairStatus)
	status := s.transport.last("42").Text
	assert.Contains(t, status, ticket.ExternalKey)
	assert.Contains(t, status, "Farrukh")

	send(501, service.CommandMyTickets)
	assert.Contains(t, s.transport.last("501").Text, ticket.ExternalKey)

	send(501, service.CommandMyRating)
	assert.Contains(t, s.transport.last("501").Text, "In progress: 1")

	send(42, service.MenuRatings)
	assert.Contains(t, s.transport.last("42").Text, "Farrukh")
}

func TestStaffAPI(t *testing.T) {
	s := newTestServer(t)
	ticket := s.seedTicket(t)
	staff := s.token(t, "200")

	resp, _ := s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, payload := s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, s.token(t, "42"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(payload))

	resp, payload = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/assign", staff, map[string]string{"technician_id": "501"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "DIAGNOSING", data["ticket"].(map[string]any)["status"])

	resp, payload = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/assign", staff, map[string]string{"technician_id": "502"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_ASSIGNED", errorCode(payload))

	resp, payload = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/status", s.token(t, "501"), map[string]string{"status": "NEW"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(payload))

	resp, payload = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/status", s.token(t, "501"), map[string]string{"status": "REPAIRING"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "standard", payload["data"].(map[string]any)["mode"])

	resp, payload = s.do(t, http.MethodGet, "/api/v1/tickets/"+ticket.ID, staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := payload["data"].(map[string]any)
	assert.Len(t, detail["history"], 2)
	assert.Equal(t, "Farrukh", detail["ticket"].(map[string]any)["technician"].(map[string]any)["name"])

	resp, _ = s.do(t, http.MethodGet, "/api/v1/tickets/missing", staff, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, payload = s.do(t, http.MethodGet, "/api/v1/technicians", staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, payload["data"], 1)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/technicians?status=retired", staff, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthReadyInMemoryMode(t *testing.T) {
	s := newTestServer(t)
	resp, payload := s.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deps := payload["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.True(t, strings.EqualFold("disabled", deps["redis"].(string)))
}

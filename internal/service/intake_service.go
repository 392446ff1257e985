package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/intake"
	"github.com/repairdesk/repair-desk/internal/notify"
	"github.com/repairdesk/repair-desk/internal/observability"
	"github.com/repairdesk/repair-desk/internal/repository"
	"github.com/repairdesk/repair-desk/internal/session"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// Chat commands that open a wizard.
const (
	MenuNewRequest = "📥 New request"
	CommandNew     = "/new"
	CommandStart   = "/start"
	CommandWalkIn  = "/walkin"
)

// Reply is what the bot answers to one chat input.
type Reply struct {
	Text           string
	Options        []string
	RemoveKeyboard bool
	// Ticket is set when the input completed an intake.
	Ticket   *domain.Ticket
	Degraded bool
}

// Message renders the reply for the chat transport.
func (r Reply) Message() notify.Message {
	return notify.Message{Text: r.Text, Reply: r.Options, RemoveKeyboard: r.RemoveKeyboard}
}

// IntakeService drives the intake wizard for chat users.
type IntakeService struct {
	flow          *intake.Flow
	sessions      session.Store
	tickets       repository.TicketRepository
	customers     repository.CustomerRepository
	notifications *NotificationService
	dispatcher    events.Dispatcher
	authz         *auth.Authorizer
	metrics       *observability.Metrics
	logger        *zap.Logger
	locks         *keyedMutex
	now           func() time.Time
}

// IntakeDependencies wires the intake service.
type IntakeDependencies struct {
	Flow          *intake.Flow
	Sessions      session.Store
	TicketRepo    repository.TicketRepository
	CustomerRepo  repository.CustomerRepository
	Notifications *NotificationService
	Dispatcher    events.Dispatcher
	Authorizer    *auth.Authorizer
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	flow := deps.Flow
	if flow == nil {
		flow = intake.NewFlow(intake.DefaultCatalog())
	}
	return &IntakeService{
		flow:          flow,
		sessions:      deps.Sessions,
		tickets:       deps.TicketRepo,
		customers:     deps.CustomerRepo,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		authz:         deps.Authorizer,
		metrics:       deps.Metrics,
		logger:        logger.Named("intake_service"),
		locks:         newKeyedMutex(),
		now:           time.Now,
	}
}

// MainMenu is shown to users without an active wizard.
func MainMenu() Reply {
	return Reply{
		Text:    "👋 Welcome to the service center! Choose an action:",
		Options: []string{MenuNewRequest, MenuMyRequests, MenuRepairStatus, MenuRatings},
	}
}

// HandleInput processes one message from a chat user. Inputs of the same user are handled one
// at a time.
func (s *IntakeService) HandleInput(ctx context.Context, actor domain.Actor, in intake.Input) (*Reply, error) {
	if actor.ExternalID == "" {
		return nil, apperrors.NewValidationError("sender is required", nil)
	}
	unlock := s.locks.Lock(actor.ExternalID)
	defer unlock()

	if in.Kind == intake.InputText {
		switch strings.TrimSpace(in.Text) {
		case CommandNew, MenuNewRequest:
			sess, prompt := s.flow.Start(actor.ExternalID, actor.ReplyChat(), s.now())
			return s.begin(ctx, sess, prompt)
		case CommandWalkIn:
			if !s.authz.IsStaff(actor) {
				return nil, apperrors.NewForbidden("only staff can register walk-in requests")
			}
			sess, prompt := s.flow.StartWalkIn(actor.ExternalID, actor.ReplyChat(), s.now())
			return s.begin(ctx, sess, prompt)
		case CommandStart:
			if err := s.sessions.Delete(ctx, actor.ExternalID); err != nil {
				s.logger.Warn("session delete failed", zap.String("user_id", actor.ExternalID), zap.Error(err))
			}
			reply := MainMenu()
			return &reply, nil
		}
	}

	sess, err := s.sessions.Get(ctx, actor.ExternalID)
	if errors.Is(err, session.ErrNotFound) {
		reply := MainMenu()
		return &reply, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if !s.flow.Valid(sess.Step) {
		s.logger.Warn("discarding session at unknown step",
			zap.String("user_id", actor.ExternalID),
			zap.String("step", string(sess.Step)))
		_ = s.sessions.Delete(ctx, actor.ExternalID)
		reply := MainMenu()
		return &reply, nil
	}

	res := s.flow.Advance(*sess, in)
	switch res.Outcome {
	case intake.OutcomeValidation:
		s.metrics.RecordIntake(string(res.Outcome))
		return &Reply{Text: res.Validation.Message + "\n\n" + res.Prompt.Text, Options: res.Prompt.Options}, nil
	case intake.OutcomeCancelled:
		s.metrics.RecordIntake(string(res.Outcome))
		if err := s.sessions.Delete(ctx, actor.ExternalID); err != nil {
			return nil, apperrors.NewPersistenceError(err)
		}
		reply := MainMenu()
		reply.Text = "❌ Request cancelled.\n\n" + reply.Text
		return &reply, nil
	case intake.OutcomeSubmitted:
		return s.submit(ctx, actor, *res.Draft)
	}

	next := res.Session
	next.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, next); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return &Reply{Text: res.Prompt.Text, Options: res.Prompt.Options}, nil
}

func (s *IntakeService) begin(ctx context.Context, sess intake.Session, prompt intake.Prompt) (*Reply, error) {
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	s.metrics.RecordIntake("started")
	s.logger.Debug("intake started", zap.String("user_id", sess.UserID), zap.String("step", string(sess.Step)))
	return &Reply{Text: prompt.Text, Options: prompt.Options}, nil
}

// submit persists the finished draft. The stored session is left untouched until the ticket
// exists so a failed write can be retried from the urgency step. The customer upsert is keyed by
// chat identity and may outlive a failed ticket write; the retry resolves the same record and
// no ticket state is committed.
func (s *IntakeService) submit(ctx context.Context, actor domain.Actor, draft intake.Draft) (*Reply, error) {
	ticket := draft.Ticket()
	ticket.ExternalKey = generateTicketKey()

	var customer *domain.Customer
	if ticket.Channel != domain.ChannelWalkIn {
		customer = &domain.Customer{
			ExternalID: actor.ExternalID,
			Username:   actor.Username,
			Name:       actor.Name,
		}
		if ticket.Courier != nil {
			customer.Phone = ticket.Courier.Phone
		}
		if err := s.customers.Resolve(ctx, customer); err != nil {
			return nil, s.submitFailed(actor, err)
		}
		ticket.CustomerID = &customer.ID
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, s.submitFailed(actor, err)
	}
	s.metrics.RecordIntake(string(intake.OutcomeSubmitted))

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Channel:     ticket.Channel,
			Branch:      ticket.Branch,
			Urgency:     ticket.Urgency,
		},
	})
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("external_key", ticket.ExternalKey),
		zap.String("channel", string(ticket.Channel)))

	report := s.notifications.TicketCreated(ctx, ticket, customer)
	if err := s.sessions.Delete(ctx, actor.ExternalID); err != nil {
		s.logger.Warn("session delete after submit failed", zap.String("user_id", actor.ExternalID), zap.Error(err))
	}

	text := fmt.Sprintf("✅ Request %s has been created! We will contact you shortly.", ticket.ExternalKey)
	if ticket.Channel == domain.ChannelWalkIn {
		text = fmt.Sprintf("✅ Walk-in request %s registered.", ticket.ExternalKey)
	}
	return &Reply{
		Text:     text,
		Options:  MainMenu().Options,
		Ticket:   ticket,
		Degraded: report.Degraded(),
	}, nil
}

func (s *IntakeService) submitFailed(actor domain.Actor, err error) error {
	s.metrics.RecordIntake("failed")
	s.logger.Error("ticket submission failed", zap.String("user_id", actor.ExternalID), zap.Error(err))
	return apperrors.NewPersistenceError(err)
}

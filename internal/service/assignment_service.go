package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/repository"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// AssignmentService binds technicians to tickets.
type AssignmentService struct {
	tickets       repository.TicketRepository
	technicians   repository.TechnicianRepository
	notifications *NotificationService
	dispatcher    events.Dispatcher
	authz         *auth.Authorizer
	logger        *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	Notifications  *NotificationService
	Dispatcher     events.Dispatcher
	Authorizer     *auth.Authorizer
	Logger         *zap.Logger
}

// AssignResult is the outcome of a successful assignment.
type AssignResult struct {
	Ticket     *domain.Ticket
	Technician *domain.Technician
	Degraded   bool
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:       deps.TicketRepo,
		technicians:   deps.TechnicianRepo,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		authz:         deps.Authorizer,
		logger:        logger.Named("assignment_service"),
	}
}

// Assign binds the technician identified by technicianExternalID to the ticket. Exactly one of
// any number of concurrent calls succeeds; the rest get AlreadyAssigned naming the winner.
// A NEW ticket moves to DIAGNOSING in the same write.
func (s *AssignmentService) Assign(ctx context.Context, ticketID, technicianExternalID string, actor domain.Actor) (*AssignResult, error) {
	if !s.authz.IsStaff(actor) {
		return nil, apperrors.NewForbidden("only staff can assign technicians")
	}
	if err := checkTicketID(ticketID); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID}))
	}
	if ticket.HasTechnician() {
		return nil, s.alreadyAssigned(ctx, ticketID, *ticket.TechnicianID)
	}
	if ticket.Status.IsTerminal() {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusDiagnosing))
	}

	profile, ok := s.notifications.Profile(technicianExternalID)
	if !ok {
		return nil, apperrors.NewNotFound("technician", map[string]any{"external_id": technicianExternalID})
	}
	tech, err := s.technicians.Resolve(ctx, profile)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}

	updated, err := s.tickets.AssignTechnician(ctx, ticketID, tech.ID)
	if err != nil {
		var conflict *repository.AssignmentConflict
		switch {
		case errors.As(err, &conflict):
			return nil, s.alreadyAssigned(ctx, ticketID, conflict.TechnicianID)
		case errors.Is(err, repository.ErrTicketClosed):
			return nil, apperrors.NewInvalidTransition(string(domain.TicketStatusDone), string(domain.TicketStatusDiagnosing))
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	if fresh, err := s.technicians.GetByID(ctx, tech.ID); err == nil {
		tech = fresh
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: updated.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketAssignedPayload{
			TechnicianID:   tech.ID,
			TechnicianName: tech.Name,
			OldStatus:      ticket.Status,
			NewStatus:      updated.Status,
		},
	})

	report := s.notifications.TicketAssigned(ctx, updated, tech)
	return &AssignResult{Ticket: updated, Technician: tech, Degraded: report.Degraded()}, nil
}

func (s *AssignmentService) alreadyAssigned(ctx context.Context, ticketID, technicianID string) error {
	name := technicianID
	if tech, err := s.technicians.GetByID(ctx, technicianID); err == nil {
		name = tech.Name
	} else {
		s.logger.Warn("winning technician lookup failed", zap.String("technician_id", technicianID), zap.Error(err))
	}
	return apperrors.NewAlreadyAssigned(ticketID, name)
}

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/repository"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// maxStatusAttempts bounds retries when another writer moves the ticket between read and write.
const maxStatusAttempts = 3

// LifecycleService moves tickets through their statuses.
type LifecycleService struct {
	tickets       repository.TicketRepository
	technicians   repository.TechnicianRepository
	notifications *NotificationService
	dispatcher    events.Dispatcher
	authz         *auth.Authorizer
	logger        *zap.Logger
	now           func() time.Time
}

// LifecycleDependencies wires the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	Notifications  *NotificationService
	Dispatcher     events.Dispatcher
	Authorizer     *auth.Authorizer
	Logger         *zap.Logger
}

// TransitionResult is the outcome of a committed status change.
type TransitionResult struct {
	Ticket    *domain.Ticket
	OldStatus domain.TicketStatus
	Mode      domain.TransitionMode
	// Degraded is set when at least one notification could not be delivered.
	Degraded bool
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		tickets:       deps.TicketRepo,
		technicians:   deps.TechnicianRepo,
		notifications: deps.Notifications,
		dispatcher:    deps.Dispatcher,
		authz:         deps.Authorizer,
		logger:        logger.Named("lifecycle_service"),
		now:           time.Now,
	}
}

// Transition moves a ticket to the requested status. Administrators may jump forward past
// intermediate statuses; everyone else follows the standard table, and only staff or the
// bound technician may act at all.
func (s *LifecycleService) Transition(ctx context.Context, ticketID string, requested domain.TicketStatus, actor domain.Actor) (*TransitionResult, error) {
	if !requested.IsValid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": requested})
	}
	if err := checkTicketID(ticketID); err != nil {
		return nil, err
	}

	mode := domain.StandardTransition
	if s.authz.IsAdmin(actor) {
		mode = domain.AdministrativeOverride
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, apperrors.MapError(notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID}))
		}
		if mode == domain.StandardTransition {
			allowed, err := s.mayOperate(ctx, ticket, actor)
			if err != nil {
				return nil, apperrors.MapError(err)
			}
			if !allowed {
				return nil, apperrors.NewForbidden("only staff or the assigned technician can change the status")
			}
		}
		if !domain.CanTransition(ticket.Status, requested, mode) {
			return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(requested))
		}

		updated, err := s.tickets.UpdateStatus(ctx, ticketID, ticket.Status, requested, s.now())
		if errors.Is(err, repository.ErrStatusConflict) {
			s.logger.Debug("status changed concurrently, retrying",
				zap.String("ticket_id", ticketID),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, apperrors.MapError(notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID}))
		}

		publishEvent(ctx, s.dispatcher, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			Actor:    events.ActorFrom(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: ticket.Status,
				NewStatus: updated.Status,
				Mode:      mode,
			},
		})
		s.logger.Info("ticket status changed",
			zap.String("ticket_id", updated.ID),
			zap.String("from", string(ticket.Status)),
			zap.String("to", string(updated.Status)),
			zap.Stringer("mode", mode))

		report := s.notifications.StatusChanged(ctx, updated)
		return &TransitionResult{
			Ticket:    updated,
			OldStatus: ticket.Status,
			Mode:      mode,
			Degraded:  report.Degraded(),
		}, nil
	}
	return nil, apperrors.NewInvalidState("ticket is being changed concurrently, retry", map[string]any{"ticket_id": ticketID})
}

func (s *LifecycleService) mayOperate(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) (bool, error) {
	if s.authz.IsStaff(actor) {
		return true, nil
	}
	if !ticket.HasTechnician() {
		return false, nil
	}
	tech, err := s.technicians.GetByID(ctx, *ticket.TechnicianID)
	if err != nil {
		return false, err
	}
	return tech.ExternalID != "" && tech.ExternalID == actor.ExternalID, nil
}

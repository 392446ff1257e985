package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/repository"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// RatingService folds customer scores into technician ratings.
type RatingService struct {
	tickets       repository.TicketRepository
	technicians   repository.TechnicianRepository
	customers     repository.CustomerRepository
	notifications *NotificationService
	authz         *auth.Authorizer
	logger        *zap.Logger
	now           func() time.Time
}

// RatingDependencies wires the rating service.
type RatingDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	CustomerRepo   repository.CustomerRepository
	Notifications  *NotificationService
	Authorizer     *auth.Authorizer
	Logger         *zap.Logger
}

// RatingResult is the outcome of an applied rating.
type RatingResult struct {
	Ticket     *domain.Ticket
	Technician *domain.Technician
	Change     domain.RatingChange
	Degraded   bool
}

// NewRatingService constructs the service.
func NewRatingService(deps RatingDependencies) *RatingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatingService{
		tickets:       deps.TicketRepo,
		technicians:   deps.TechnicianRepo,
		customers:     deps.CustomerRepo,
		notifications: deps.Notifications,
		authz:         deps.Authorizer,
		logger:        logger.Named("rating_service"),
		now:           time.Now,
	}
}

// Rate applies a 1..5 score to a finished ticket. A ticket accepts one rating; later attempts
// get AlreadyRated and leave the aggregate untouched.
func (s *RatingService) Rate(ctx context.Context, ticketID string, score int, actor domain.Actor) (*RatingResult, error) {
	if !domain.ValidScore(score) {
		return nil, apperrors.NewValidationError("score must be between 1 and 5", map[string]any{"score": score})
	}
	if err := checkTicketID(ticketID); err != nil {
		return nil, err
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID}))
	}
	if err := s.authorize(ctx, ticket, actor); err != nil {
		return nil, err
	}
	if ticket.RatedAt != nil {
		return nil, apperrors.NewAlreadyRated(ticketID)
	}
	if !ticket.RatingEligible() {
		return nil, apperrors.NewInvalidState("ticket cannot be rated yet", map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}

	at := s.now()
	change, err := s.tickets.RecordRating(ctx, ticketID, score, at)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyRated):
			return nil, apperrors.NewAlreadyRated(ticketID)
		case errors.Is(err, repository.ErrNotRatable):
			return nil, apperrors.NewInvalidState("ticket cannot be rated yet", map[string]any{"ticket_id": ticketID})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewPersistenceError(err)
	}
	ticket.RatedAt = &at

	tech, err := s.technicians.GetByID(ctx, change.TechnicianID)
	if err != nil {
		s.logger.Warn("rated technician lookup failed", zap.String("technician_id", change.TechnicianID), zap.Error(err))
		tech = &domain.Technician{ID: change.TechnicianID, Rating: change.NewRating, RatingCount: change.NewCount}
	}

	s.logger.Info("ticket rated",
		zap.String("ticket_id", ticketID),
		zap.String("technician_id", change.TechnicianID),
		zap.Int("score", score),
		zap.Float64("rating", change.NewRating))

	report := s.notifications.RatingApplied(ctx, ticket, tech, change)
	return &RatingResult{Ticket: ticket, Technician: tech, Change: *change, Degraded: report.Degraded()}, nil
}

// authorize lets the ticket's own customer rate it; walk-in tickets are rated by staff.
func (s *RatingService) authorize(ctx context.Context, ticket *domain.Ticket, actor domain.Actor) error {
	if ticket.CustomerID == nil {
		if s.authz.IsStaff(actor) {
			return nil
		}
		return apperrors.NewForbidden("only staff can rate walk-in requests")
	}
	customer, err := s.customers.GetByID(ctx, *ticket.CustomerID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if customer.ExternalID != actor.ExternalID {
		return apperrors.NewForbidden("only the customer can rate this request")
	}
	return nil
}

package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/repository"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// TicketService serves read access to tickets, their audit trail and the technician roster.
type TicketService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	history     repository.TicketHistoryRepository
	logger      *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	HistoryRepo    repository.TicketHistoryRepository
	Logger         *zap.Logger
}

// TechnicianListFilter narrows technician listings.
type TechnicianListFilter struct {
	Status *domain.TechnicianStatus
	Limit  int
	Offset int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		history:     deps.HistoryRepo,
		logger:      logger.Named("ticket_service"),
	}
}

// GetTicket returns one ticket with its technician, if any.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, *domain.Technician, error) {
	if err := checkTicketID(ticketID); err != nil {
		return nil, nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, apperrors.MapError(notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID}))
	}
	if !ticket.HasTechnician() {
		return ticket, nil, nil
	}
	tech, err := s.technicians.GetByID(ctx, *ticket.TechnicianID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, tech, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if err := checkTicketID(ticketID); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID}))
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListTechnicians returns technicians with their rating aggregates.
func (s *TicketService) ListTechnicians(ctx context.Context, filter TechnicianListFilter) ([]domain.Technician, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	list, err := s.technicians.List(ctx, repository.TechnicianFilter{Status: filter.Status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// SyncRoster makes sure every configured technician has a stored record.
func (s *TicketService) SyncRoster(ctx context.Context, roster []domain.TechnicianProfile) error {
	for _, profile := range roster {
		tech, err := s.technicians.Resolve(ctx, profile)
		if err != nil {
			return apperrors.NewPersistenceError(err)
		}
		s.logger.Debug("technician resolved",
			zap.String("external_id", profile.ExternalID),
			zap.String("technician_id", tech.ID))
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/repository"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// Chat menu entries and commands answered from stored data.
const (
	MenuMyRequests   = "📋 My requests"
	MenuRepairStatus = "⏳ Repair status"
	MenuRatings      = "⭐ Technician ratings"
	CommandMyTickets = "/mytickets"
	CommandMyRating  = "/myrating"
)

const (
	customerTicketLimit   = 10
	technicianTicketLimit = 20
	problemPreviewRunes   = 50
)

// InquiryService answers read-only chat requests about tickets and ratings.
type InquiryService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	customers   repository.CustomerRepository
	logger      *zap.Logger
}

// InquiryDependencies wires the inquiry service.
type InquiryDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	CustomerRepo   repository.CustomerRepository
	Logger         *zap.Logger
}

// NewInquiryService constructs the service.
func NewInquiryService(deps InquiryDependencies) *InquiryService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InquiryService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		customers:   deps.CustomerRepo,
		logger:      logger.Named("inquiry_service"),
	}
}

// Answer handles text that names a read-only request. ok is false for any other text, which
// then belongs to the intake wizard.
func (s *InquiryService) Answer(ctx context.Context, actor domain.Actor, text string) (reply *Reply, ok bool, err error) {
	switch strings.TrimSpace(text) {
	case MenuMyRequests:
		reply, err = s.CustomerTickets(ctx, actor)
	case MenuRepairStatus:
		reply, err = s.RepairStatus(ctx, actor)
	case MenuRatings:
		reply, err = s.TechnicianRatings(ctx)
	case CommandMyTickets:
		reply, err = s.TechnicianTickets(ctx, actor)
	case CommandMyRating:
		reply, err = s.TechnicianRating(ctx, actor)
	default:
		return nil, false, nil
	}
	return reply, true, err
}

// CustomerTickets lists the customer's latest requests.
func (s *InquiryService) CustomerTickets(ctx context.Context, actor domain.Actor) (*Reply, error) {
	tickets, err := s.customerTickets(ctx, actor, false)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return menuReply(fmt.Sprintf("📭 You have no requests yet.\n\nTap \"%s\" to create one.", MenuNewRequest)), nil
	}

	var b strings.Builder
	b.WriteString("📋 Your requests:\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "\n🧾 %s  %s\n   %s / %s\n   📅 %s\n",
			t.ExternalKey, StatusLabel(t.Status), t.Subcategory, t.Brand, t.CreatedAt.Format("02.01.2006 15:04"))
	}
	return menuReply(strings.TrimRight(b.String(), "\n")), nil
}

// RepairStatus reports the customer's unfinished requests with their technicians.
func (s *InquiryService) RepairStatus(ctx context.Context, actor domain.Actor) (*Reply, error) {
	tickets, err := s.customerTickets(ctx, actor, true)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return menuReply(fmt.Sprintf("✅ No requests in progress.\n\nTap \"%s\" to see finished ones.", MenuMyRequests)), nil
	}

	names := map[string]string{}
	var b strings.Builder
	b.WriteString("⏳ Requests in progress:\n")
	for _, t := range tickets {
		fmt.Fprintf(&b, "\n🧾 %s\n📱 %s\n📊 %s\n", t.ExternalKey, t.Brand, StatusLabel(t.Status))
		if !t.HasTechnician() {
			b.WriteString("👨‍🔧 Waiting for a technician\n")
			continue
		}
		name, seen := names[*t.TechnicianID]
		if !seen {
			tech, err := s.technicians.GetByID(ctx, *t.TechnicianID)
			if err != nil {
				s.logger.Warn("technician lookup failed", zap.String("ticket_id", t.ID), zap.Error(err))
			} else {
				name = tech.Name
			}
			names[*t.TechnicianID] = name
		}
		if name != "" {
			fmt.Fprintf(&b, "👨‍🔧 Technician: %s\n", name)
		}
	}
	return menuReply(strings.TrimRight(b.String(), "\n")), nil
}

// TechnicianRatings lists active technicians, best rated first.
func (s *InquiryService) TechnicianRatings(ctx context.Context) (*Reply, error) {
	active := domain.TechnicianStatusActive
	techs, err := s.technicians.List(ctx, repository.TechnicianFilter{Status: &active})
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if len(techs) == 0 {
		return menuReply("No technicians yet."), nil
	}

	var b strings.Builder
	b.WriteString("⭐ Technician ratings\n")
	for i, tech := range techs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, tech.Name)
		if tech.Specialization != "" {
			fmt.Fprintf(&b, " (%s)", tech.Specialization)
		}
		if tech.RatingCount == 0 {
			b.WriteString(": no ratings yet")
			continue
		}
		fmt.Fprintf(&b, ": %.2f from %d ratings", tech.Rating, tech.RatingCount)
	}
	return menuReply(b.String()), nil
}

// TechnicianTickets lists the requests bound to the calling technician.
func (s *InquiryService) TechnicianTickets(ctx context.Context, actor domain.Actor) (*Reply, error) {
	tech, err := s.technician(ctx, actor)
	if err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{TechnicianID: &tech.ID, Limit: technicianTicketLimit})
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if len(tickets) == 0 {
		return &Reply{Text: "📭 You have no assigned requests."}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Your requests (%d):\n", len(tickets))
	for i, t := range tickets {
		fmt.Fprintf(&b, "\n%d. %s %s\n   📱 %s\n   🔧 %s\n   📅 %s\n",
			i+1, t.ExternalKey, StatusLabel(t.Status), t.Brand, preview(t.Problem), t.CreatedAt.Format("02.01.2006 15:04"))
	}
	return &Reply{Text: strings.TrimRight(b.String(), "\n")}, nil
}

// TechnicianRating shows the calling technician's aggregate.
func (s *InquiryService) TechnicianRating(ctx context.Context, actor domain.Actor) (*Reply, error) {
	tech, err := s.technician(ctx, actor)
	if err != nil {
		return nil, err
	}
	rating := "no ratings yet"
	if tech.RatingCount > 0 {
		rating = fmt.Sprintf("%.2f %s", tech.Rating, strings.Repeat("⭐", int(tech.Rating)))
	}
	specialization := tech.Specialization
	if specialization == "" {
		specialization = "not set"
	}
	text := fmt.Sprintf("📊 Your rating\n\n👤 %s\n🏷 %s\n⭐ %s\n📊 Ratings: %d\n✅ Completed: %d\n🔧 In progress: %d",
		tech.Name, specialization, rating, tech.RatingCount, tech.CompletedOrders, tech.ActiveOrders)
	return &Reply{Text: text}, nil
}

func (s *InquiryService) customerTickets(ctx context.Context, actor domain.Actor, openOnly bool) ([]domain.Ticket, error) {
	customer, err := s.customers.GetByExternalID(ctx, actor.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		CustomerID: &customer.ID,
		OpenOnly:   openOnly,
		Limit:      customerTicketLimit,
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return tickets, nil
}

func (s *InquiryService) technician(ctx context.Context, actor domain.Actor) (*domain.Technician, error) {
	tech, err := s.technicians.GetByExternalID(ctx, actor.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewForbidden("you are not registered as a technician")
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	return tech, nil
}

func menuReply(text string) *Reply {
	reply := MainMenu()
	reply.Text = text
	return &reply
}

func preview(problem string) string {
	runes := []rune(problem)
	if len(runes) <= problemPreviewRunes {
		return problem
	}
	return string(runes[:problemPreviewRunes]) + "…"
}

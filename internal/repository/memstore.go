package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// MemoryStore keeps tickets, technicians, customers and history in process memory. It backs
// development runs without POSTGRES_DSN and service tests. Every method holds one lock so the
// conditional writes behave like their SQL counterparts.
type MemoryStore struct {
	mu          sync.Mutex
	now         func() time.Time
	tickets     map[string]*domain.Ticket
	ticketOrder []string
	technicians map[string]*domain.Technician
	customers   map[string]*domain.Customer
	history     []domain.TicketHistory
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		tickets:     map[string]*domain.Ticket{},
		technicians: map[string]*domain.Technician{},
		customers:   map[string]*domain.Customer{},
	}
}

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memTickets{s} }

// Technicians exposes the store as a TechnicianRepository.
func (s *MemoryStore) Technicians() TechnicianRepository { return memTechnicians{s} }

// Customers exposes the store as a CustomerRepository.
func (s *MemoryStore) Customers() CustomerRepository { return memCustomers{s} }

// History exposes the store as a TicketHistoryRepository.
func (s *MemoryStore) History() TicketHistoryRepository { return memHistory{s} }

type memTickets struct{ s *MemoryStore }

func (m memTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return err
	}
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	s.tickets[ticket.ID] = cloneTicket(ticket)
	s.ticketOrder = append(s.ticketOrder, ticket.ID)
	return nil
}

func (m memTickets) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (m memTickets) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var result []domain.Ticket
	for i := len(s.ticketOrder) - 1; i >= 0 && len(result) < limit; i-- {
		ticket := s.tickets[s.ticketOrder[i]]
		if filter.CustomerID != nil && (ticket.CustomerID == nil || *ticket.CustomerID != *filter.CustomerID) {
			continue
		}
		if filter.TechnicianID != nil && (ticket.TechnicianID == nil || *ticket.TechnicianID != *filter.TechnicianID) {
			continue
		}
		if filter.OpenOnly && ticket.Status == domain.TicketStatusDone {
			continue
		}
		result = append(result, *cloneTicket(ticket))
	}
	return result, nil
}

func (m memTickets) AssignTechnician(ctx context.Context, ticketID, technicianID string) (*domain.Ticket, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if ticket.HasTechnician() {
		return nil, &AssignmentConflict{TechnicianID: *ticket.TechnicianID}
	}
	if ticket.Status == domain.TicketStatusDone {
		return nil, ErrTicketClosed
	}
	tech, ok := s.technicians[technicianID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	id := technicianID
	ticket.TechnicianID = &id
	if ticket.Status == domain.TicketStatusNew {
		ticket.Status = domain.TicketStatusDiagnosing
	}
	ticket.UpdatedAt = s.now()
	tech.ActiveOrders++
	tech.UpdatedAt = ticket.UpdatedAt
	return cloneTicket(ticket), nil
}

func (m memTickets) UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if ticket.Status != from {
		return nil, ErrStatusConflict
	}
	ticket.Status = to
	ticket.UpdatedAt = s.now()
	if to == domain.TicketStatusDone {
		completed := at
		ticket.CompletedAt = &completed
		if ticket.HasTechnician() {
			if tech, ok := s.technicians[*ticket.TechnicianID]; ok {
				if tech.ActiveOrders > 0 {
					tech.ActiveOrders--
				}
				tech.CompletedOrders++
			}
		}
	}
	return cloneTicket(ticket), nil
}

func (m memTickets) RecordRating(ctx context.Context, ticketID string, score int, at time.Time) (*domain.RatingChange, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if ticket.RatedAt != nil {
		return nil, ErrAlreadyRated
	}
	if !ticket.RatingEligible() {
		return nil, ErrNotRatable
	}
	tech, ok := s.technicians[*ticket.TechnicianID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	change := tech.WithScore(score)
	tech.Rating, tech.RatingCount = change.NewRating, change.NewCount
	rated := at
	ticket.RatedAt = &rated
	return &change, nil
}

type memTechnicians struct{ s *MemoryStore }

func (m memTechnicians) Resolve(ctx context.Context, profile domain.TechnicianProfile) (*domain.Technician, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var adoptable *domain.Technician
	for _, tech := range s.technicians {
		if tech.ExternalID == profile.ExternalID {
			copied := *tech
			return &copied, nil
		}
		if tech.ExternalID == "" && tech.Name == profile.Name && adoptable == nil {
			adoptable = tech
		}
	}
	now := s.now()
	if adoptable != nil {
		adoptable.ExternalID = profile.ExternalID
		adoptable.UpdatedAt = now
		copied := *adoptable
		return &copied, nil
	}
	name := profile.Name
	if name == "" {
		name = profile.ExternalID
	}
	tech := &domain.Technician{
		ID:             uuid.NewString(),
		ExternalID:     profile.ExternalID,
		Name:           name,
		Specialization: profile.Specialization,
		Status:         domain.TechnicianStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.technicians[tech.ID] = tech
	copied := *tech
	return &copied, nil
}

func (m memTechnicians) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	tech, ok := s.technicians[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *tech
	return &copied, nil
}

func (m memTechnicians) GetByExternalID(ctx context.Context, externalID string) (*domain.Technician, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tech := range s.technicians {
		if tech.ExternalID == externalID {
			copied := *tech
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m memTechnicians) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Technician
	for _, tech := range s.technicians {
		if filter.Status != nil && tech.Status != *filter.Status {
			continue
		}
		result = append(result, *tech)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Rating != result[j].Rating {
			return result[i].Rating > result[j].Rating
		}
		return result[i].Name < result[j].Name
	})
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SeedTechnician stores a roster row without an external identity yet.
func (s *MemoryStore) SeedTechnician(name, specialization string) *domain.Technician {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	tech := &domain.Technician{
		ID:             uuid.NewString(),
		Name:           name,
		Specialization: specialization,
		Status:         domain.TechnicianStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.technicians[tech.ID] = tech
	copied := *tech
	return &copied
}

type memCustomers struct{ s *MemoryStore }

func (m memCustomers) Resolve(ctx context.Context, customer *domain.Customer) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, existing := range s.customers {
		if existing.ExternalID != customer.ExternalID {
			continue
		}
		existing.Username = customer.Username
		existing.Name = customer.Name
		if customer.Phone != "" {
			existing.Phone = customer.Phone
		}
		existing.UpdatedAt = now
		*customer = *existing
		return nil
	}
	customer.ID = uuid.NewString()
	customer.CreatedAt, customer.UpdatedAt = now, now
	copied := *customer
	s.customers[customer.ID] = &copied
	return nil
}

func (m memCustomers) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	customer, ok := s.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *customer
	return &copied, nil
}

func (m memCustomers) GetByExternalID(ctx context.Context, externalID string) (*domain.Customer, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, customer := range s.customers {
		if customer.ExternalID == externalID {
			copied := *customer
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memHistory struct{ s *MemoryStore }

func (m memHistory) Create(ctx context.Context, history *domain.TicketHistory) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	history.ID = uuid.NewString()
	history.CreatedAt = s.now()
	s.history = append(s.history, *history)
	return nil
}

func (m memHistory) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range s.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	copied := *t
	if t.Courier != nil {
		courier := *t.Courier
		copied.Courier = &courier
	}
	if t.WalkIn != nil {
		walkIn := *t.WalkIn
		copied.WalkIn = &walkIn
	}
	copied.Photos = append([]string(nil), t.Photos...)
	return &copied
}

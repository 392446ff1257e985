package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/notify"
	"github.com/repairdesk/repair-desk/internal/repository"
)

// NotificationDependencies wires the notification service.
type NotificationDependencies struct {
	Dispatcher  *notify.Dispatcher
	Customers   repository.CustomerRepository
	Authorizer  *auth.Authorizer
	Roster      []domain.TechnicianProfile
	StaffChatID string
	Logger      *zap.Logger
}

// NotificationService renders ticket events into chat messages and hands them to the dispatcher.
// Every method returns the dispatch report; none of them fail.
type NotificationService struct {
	dispatcher  *notify.Dispatcher
	customers   repository.CustomerRepository
	authz       *auth.Authorizer
	roster      []domain.TechnicianProfile
	staffChatID string
	logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  deps.Dispatcher,
		customers:   deps.Customers,
		authz:       deps.Authorizer,
		roster:      deps.Roster,
		staffChatID: deps.StaffChatID,
		logger:      logger.Named("notification_service"),
	}
}

// Roster returns the configured technician profiles.
func (n *NotificationService) Roster() []domain.TechnicianProfile {
	return n.roster
}

// Profile looks up a roster entry by external id.
func (n *NotificationService) Profile(externalID string) (domain.TechnicianProfile, bool) {
	for _, p := range n.roster {
		if p.ExternalID == externalID {
			return p, true
		}
	}
	return domain.TechnicianProfile{}, false
}

// Reply sends a direct answer to the chat the actor wrote from.
func (n *NotificationService) Reply(ctx context.Context, chatID string, msg notify.Message) notify.Report {
	return n.dispatcher.Dispatch(ctx, notify.Delivery{Target: notify.TargetCustomer, ChatID: chatID, Message: msg})
}

// TicketCreated broadcasts a new ticket to staff with one selection button per roster technician.
func (n *NotificationService) TicketCreated(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer) notify.Report {
	var keyboard [][]notify.Button
	for _, p := range n.roster {
		label := p.Name
		if p.Specialization != "" {
			label = fmt.Sprintf("%s (%s)", p.Name, p.Specialization)
		}
		keyboard = append(keyboard, []notify.Button{{Text: label, Data: TakeCallback(ticket.ID, p.ExternalID)}})
	}
	msg := notify.Message{
		Text:   "📥 New request\n\n" + ticketSummary(ticket, customer) + "\n\nAssign a technician:",
		Inline: keyboard,
	}
	return n.dispatcher.Dispatch(ctx, notify.Delivery{Target: notify.TargetStaffBroadcast, ChatID: n.staffChatID, Message: msg})
}

// TicketAssigned tells the technician about the work and the customer about the progress.
func (n *NotificationService) TicketAssigned(ctx context.Context, ticket *domain.Ticket, tech *domain.Technician) notify.Report {
	customer := n.customerOf(ctx, ticket)
	deliveries := []notify.Delivery{{
		Target: notify.TargetTechnician,
		ChatID: tech.ExternalID,
		Message: notify.Message{
			Text:   "🛠 You have been assigned a request\n\n" + ticketSummary(ticket, customer),
			Inline: statusKeyboard(ticket),
		},
	}}
	if customer != nil {
		deliveries = append(deliveries, notify.Delivery{
			Target: notify.TargetCustomer,
			ChatID: customer.ExternalID,
			Message: notify.Message{Text: fmt.Sprintf("👨‍🔧 Technician %s is working on request %s.\nStatus: %s",
				tech.Name, ticket.ExternalKey, StatusLabel(ticket.Status))},
		})
	}
	n.logger.Info("technician assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("technician_id", tech.ID))
	return n.dispatcher.Dispatch(ctx, deliveries...)
}

// StatusChanged informs the customer and, when the work is done, asks for a rating. Walk-in
// customers have no chat, so their rating request goes to the staff chat.
func (n *NotificationService) StatusChanged(ctx context.Context, ticket *domain.Ticket) notify.Report {
	customer := n.customerOf(ctx, ticket)
	var deliveries []notify.Delivery
	if customer != nil {
		deliveries = append(deliveries, notify.Delivery{
			Target:  notify.TargetCustomer,
			ChatID:  customer.ExternalID,
			Message: notify.Message{Text: fmt.Sprintf("🔔 Request %s: %s", ticket.ExternalKey, StatusLabel(ticket.Status))},
		})
	}
	if ticket.RatingEligible() && ticket.RatedAt == nil {
		request := notify.Delivery{
			Target:  notify.TargetStaffBroadcast,
			ChatID:  n.staffChatID,
			Message: notify.Message{Text: fmt.Sprintf("Walk-in request %s is ready. Rate the technician's work:", ticket.ExternalKey)},
		}
		if customer != nil {
			request.Target, request.ChatID = notify.TargetCustomer, customer.ExternalID
			request.Message.Text = "Please rate the technician's work:"
		}
		request.Message.Inline = ratingKeyboard(ticket)
		deliveries = append(deliveries, request)
	}
	if len(deliveries) == 0 {
		return notify.Report{}
	}
	return n.dispatcher.Dispatch(ctx, deliveries...)
}

// StatusButtons re-renders the technician's status controls.
func (n *NotificationService) StatusButtons(ctx context.Context, chatID string, ticket *domain.Ticket) notify.Report {
	return n.dispatcher.Dispatch(ctx, notify.Delivery{
		Target: notify.TargetTechnician,
		ChatID: chatID,
		Message: notify.Message{
			Text:   fmt.Sprintf("Request %s: %s", ticket.ExternalKey, StatusLabel(ticket.Status)),
			Inline: statusKeyboard(ticket),
		},
	})
}

// RatingApplied thanks the customer and reports the score to the technician and administrators.
func (n *NotificationService) RatingApplied(ctx context.Context, ticket *domain.Ticket, tech *domain.Technician, change *domain.RatingChange) notify.Report {
	text := fmt.Sprintf("⭐ Request %s rated %d/%d\n👨‍🔧 %s\nBefore: %.2f (%d)\nAfter: %.2f (%d)",
		ticket.ExternalKey, change.Score, domain.MaxRatingScore, tech.Name,
		change.OldRating, change.OldCount, change.NewRating, change.NewCount)
	deliveries := []notify.Delivery{{Target: notify.TargetTechnician, ChatID: tech.ExternalID, Message: notify.Message{Text: text}}}
	for _, admin := range n.authz.AdminIDs() {
		deliveries = append(deliveries, notify.Delivery{Target: notify.TargetAdmin, ChatID: admin, Message: notify.Message{Text: text}})
	}
	if customer := n.customerOf(ctx, ticket); customer != nil {
		deliveries = append(deliveries, notify.Delivery{
			Target:  notify.TargetCustomer,
			ChatID:  customer.ExternalID,
			Message: notify.Message{Text: "🙏 Thank you for your feedback!"},
		})
	}
	return n.dispatcher.Dispatch(ctx, deliveries...)
}

// customerOf returns nil for walk-in tickets. A failed lookup yields a customer without a chat,
// which the dispatcher records as a failed delivery.
func (n *NotificationService) customerOf(ctx context.Context, ticket *domain.Ticket) *domain.Customer {
	if ticket.CustomerID == nil {
		return nil
	}
	customer, err := n.customers.GetByID(ctx, *ticket.CustomerID)
	if err != nil {
		n.logger.Warn("customer lookup failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		return &domain.Customer{ID: *ticket.CustomerID}
	}
	return customer
}

func ratingKeyboard(ticket *domain.Ticket) [][]notify.Button {
	var rows [][]notify.Button
	for score := domain.MinRatingScore; score <= domain.MaxRatingScore; score++ {
		rows = append(rows, []notify.Button{{Text: strings.Repeat("⭐", score), Data: RateCallback(ticket.ID, score)}})
	}
	return rows
}

func statusKeyboard(ticket *domain.Ticket) [][]notify.Button {
	var rows [][]notify.Button
	for _, next := range ticket.Status.AllowedNext() {
		rows = append(rows, []notify.Button{{Text: StatusLabel(next), Data: StatusCallback(next, ticket.ID)}})
	}
	return rows
}

// StatusLabel is the customer-facing name of a status.
func StatusLabel(status domain.TicketStatus) string {
	switch status {
	case domain.TicketStatusNew:
		return "🆕 Received"
	case domain.TicketStatusDiagnosing:
		return "🧪 Diagnostics"
	case domain.TicketStatusRepairing:
		return "🔧 In repair"
	case domain.TicketStatusDone:
		return "✅ Ready"
	}
	return string(status)
}

func ticketSummary(ticket *domain.Ticket, customer *domain.Customer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 %s\n", ticket.ExternalKey)
	switch ticket.Channel {
	case domain.ChannelCourierDelivery:
		b.WriteString("🚚 Courier pickup\n")
		if c := ticket.Courier; c != nil {
			fmt.Fprintf(&b, "📍 %s\n📞 %s\n📅 %s\n", c.Address, c.Phone, c.Date)
			if c.Notes != nil {
				fmt.Fprintf(&b, "📝 %s\n", *c.Notes)
			}
		}
	case domain.ChannelWalkIn:
		b.WriteString("🏪 Walk-in\n")
		if w := ticket.WalkIn; w != nil {
			fmt.Fprintf(&b, "👤 %s\n📞 %s\n", w.Name, w.Phone)
		}
	default:
		b.WriteString("🚶 Self drop-off\n")
	}
	if customer != nil && customer.ExternalID != "" {
		name := customer.Name
		if customer.Username != "" {
			name = strings.TrimSpace(name + " @" + customer.Username)
		}
		fmt.Fprintf(&b, "👤 %s\n", name)
	}
	fmt.Fprintf(&b, "%s\n%s / %s / %s\n", ticket.Branch, ticket.Category, ticket.Subcategory, ticket.Brand)
	fmt.Fprintf(&b, "❗ %s\n", ticket.Problem)
	if ticket.Urgency == domain.UrgencyUrgent {
		b.WriteString("🔥 Urgent\n")
	}
	if n := len(ticket.Photos); n > 0 {
		fmt.Fprintf(&b, "📷 %d photo(s)\n", n)
	}
	return strings.TrimRight(b.String(), "\n")
}

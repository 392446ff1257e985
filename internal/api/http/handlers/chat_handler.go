package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-desk/internal/api/dto"
	"github.com/repairdesk/repair-desk/internal/domain"
	"github.com/repairdesk/repair-desk/internal/intake"
	"github.com/repairdesk/repair-desk/internal/notify"
	"github.com/repairdesk/repair-desk/internal/service"
	apperrors "github.com/repairdesk/repair-desk/pkg/util"
)

// SecretHeader carries the webhook secret configured on the bot.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ChatHandler turns bot webhook updates into service calls and answers in chat.
type ChatHandler struct {
	intake        *service.IntakeService
	inquiry       *service.InquiryService
	assignment    *service.AssignmentService
	lifecycle     *service.LifecycleService
	rating        *service.RatingService
	notifications *service.NotificationService
	secret        string
	logger        *zap.Logger
}

// ChatHandlerDependencies wires the handler.
type ChatHandlerDependencies struct {
	Intake        *service.IntakeService
	Inquiry       *service.InquiryService
	Assignment    *service.AssignmentService
	Lifecycle     *service.LifecycleService
	Rating        *service.RatingService
	Notifications *service.NotificationService
	WebhookSecret string
	Logger        *zap.Logger
}

// NewChatHandler constructs handler.
func NewChatHandler(deps ChatHandlerDependencies) *ChatHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		intake:        deps.Intake,
		inquiry:       deps.Inquiry,
		assignment:    deps.Assignment,
		lifecycle:     deps.Lifecycle,
		rating:        deps.Rating,
		notifications: deps.Notifications,
		secret:        deps.WebhookSecret,
		logger:        logger.Named("chat_handler"),
	}
}

// Webhook POST /chat/webhook. Domain failures are answered in chat and acknowledged with 200
// so the bot platform does not redeliver the update.
func (h *ChatHandler) Webhook(c *fiber.Ctx) error {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(c.Get(SecretHeader)), []byte(h.secret)) != 1 {
		return apperrors.NewUnauthorized("invalid webhook secret")
	}
	var update dto.ChatUpdate
	if err := c.BodyParser(&update); err != nil {
		return apperrors.NewValidationError("invalid update payload", nil)
	}

	ctx := c.UserContext()
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		h.handleMessage(ctx, update.Message)
	default:
		h.logger.Debug("ignoring update", zap.Int64("update_id", update.UpdateID))
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *ChatHandler) handleMessage(ctx context.Context, msg *dto.ChatMessage) {
	actor := msg.From.Actor(msg.Chat)
	in := intake.TextInput(msg.Text)
	if photo := msg.LargestPhoto(); photo != "" {
		in = intake.PhotoInput(photo)
	}

	if in.Kind == intake.InputText && h.inquiry != nil {
		reply, handled, err := h.inquiry.Answer(ctx, actor, in.Text)
		if handled {
			if err != nil {
				h.answerError(ctx, actor, err)
				return
			}
			h.notifications.Reply(ctx, actor.ReplyChat(), reply.Message())
			return
		}
	}

	reply, err := h.intake.HandleInput(ctx, actor, in)
	if err != nil {
		h.answerError(ctx, actor, err)
		return
	}
	if reply.Degraded {
		h.logger.Warn("ticket created with undelivered notifications", zap.String("ticket_id", reply.Ticket.ID))
	}
	h.notifications.Reply(ctx, actor.ReplyChat(), reply.Message())
}

func (h *ChatHandler) handleCallback(ctx context.Context, query *dto.CallbackQuery) {
	var chat dto.ChatRef
	if query.Message != nil {
		chat = query.Message.Chat
	}
	actor := query.From.Actor(chat)

	cb, err := service.ParseCallback(query.Data)
	if err != nil {
		h.logger.Warn("unparseable callback", zap.String("data", query.Data), zap.Error(err))
		return
	}

	switch cb.Action {
	case service.CallbackTake:
		res, err := h.assignment.Assign(ctx, cb.TicketID, cb.TechnicianID, actor)
		if err != nil {
			h.answerError(ctx, actor, err)
			return
		}
		h.answer(ctx, actor, fmt.Sprintf("✅ Request %s assigned to %s", res.Ticket.ExternalKey, res.Technician.Name))
	case service.CallbackStatus:
		res, err := h.lifecycle.Transition(ctx, cb.TicketID, cb.Status, actor)
		if err != nil {
			h.answerError(ctx, actor, err)
			return
		}
		h.notifications.StatusButtons(ctx, actor.ReplyChat(), res.Ticket)
	case service.CallbackRate:
		if _, err := h.rating.Rate(ctx, cb.TicketID, cb.Score, actor); err != nil {
			h.answerError(ctx, actor, err)
		}
	}
}

func (h *ChatHandler) answer(ctx context.Context, actor domain.Actor, text string) {
	h.notifications.Reply(ctx, actor.ReplyChat(), notify.Message{Text: text})
}

func (h *ChatHandler) answerError(ctx context.Context, actor domain.Actor, err error) {
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus >= fiber.StatusInternalServerError {
		h.logger.Error("chat update failed", zap.String("user_id", actor.ExternalID), zap.Error(err))
	}
	h.answer(ctx, actor, "⚠️ "+de.Message)
}

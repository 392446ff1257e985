package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// TelegramTransport delivers messages through the Bot API sendMessage method.
type TelegramTransport struct {
	baseURL string
	token   string
}

// NewTelegramTransport builds a transport for the bot identified by token.
func NewTelegramTransport(baseURL, token string) *TelegramTransport {
	return &TelegramTransport{baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

type sendMessageRequest struct {
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup any    `json:"reply_markup,omitempty"`
}

type inlineMarkup struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

type keyboardButton struct {
	Text string `json:"text"`
}

type replyMarkup struct {
	Keyboard       [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

type removeMarkup struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the message; any non-ok reply is returned as an error.
func (t *TelegramTransport) Send(ctx context.Context, chatID string, msg Message) error {
	if t.token == "" {
		return errors.New("telegram bot token not configured")
	}
	req := sendMessageRequest{ChatID: chatID, Text: msg.Text, ReplyMarkup: markupFor(msg)}

	agent := fiber.Post(fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token))
	agent.JSON(req)
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("telegram send: %w", errors.Join(errs...))
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("telegram send: status %d: decode response: %w", code, err)
	}
	if code != fiber.StatusOK || !resp.OK {
		return fmt.Errorf("telegram send: status %d: %s", code, resp.Description)
	}
	return nil
}

func markupFor(msg Message) any {
	switch {
	case len(msg.Inline) > 0:
		return inlineMarkup{InlineKeyboard: msg.Inline}
	case len(msg.Reply) > 0:
		rows := make([][]keyboardButton, 0, len(msg.Reply))
		for _, option := range msg.Reply {
			rows = append(rows, []keyboardButton{{Text: option}})
		}
		return replyMarkup{Keyboard: rows, ResizeKeyboard: true}
	case msg.RemoveKeyboard:
		return removeMarkup{RemoveKeyboard: true}
	}
	return nil
}

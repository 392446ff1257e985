package dto

import (
	"strconv"
	"strings"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// ChatUpdate is an incoming bot webhook update. Only messages and button presses are used.
type ChatUpdate struct {
	UpdateID      int64          `json:"update_id"`
	Message       *ChatMessage   `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// ChatUser identifies the sender.
type ChatUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// ChatRef identifies the conversation.
type ChatRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// PhotoSize is one resolution of an uploaded photo.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

// ChatMessage is a text or photo message.
type ChatMessage struct {
	MessageID int64       `json:"message_id"`
	From      *ChatUser   `json:"from,omitempty"`
	Chat      ChatRef     `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

// CallbackQuery is an inline button press.
type CallbackQuery struct {
	ID      string       `json:"id"`
	From    ChatUser     `json:"from"`
	Message *ChatMessage `json:"message,omitempty"`
	Data    string       `json:"data"`
}

// Actor maps the sender to a domain actor replying into chat.
func (u ChatUser) Actor(chat ChatRef) domain.Actor {
	actor := domain.Actor{
		ExternalID: strconv.FormatInt(u.ID, 10),
		Username:   u.Username,
		Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
	if chat.ID != 0 {
		actor.ChatID = strconv.FormatInt(chat.ID, 10)
	}
	return actor
}

// LargestPhoto returns the file id of the biggest photo size, or "".
func (m *ChatMessage) LargestPhoto() string {
	if m == nil || len(m.Photo) == 0 {
		return ""
	}
	best := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best.FileID
}

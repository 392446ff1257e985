package notify

import "context"

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Message is a chat message with an optional keyboard.
type Message struct {
	Text string
	// Inline renders buttons attached to the message.
	Inline [][]Button
	// Reply renders a one-tap reply keyboard below the input field.
	Reply []string
	// RemoveKeyboard hides a previously shown reply keyboard.
	RemoveKeyboard bool
}

// Transport sends one message to one chat. It makes a single attempt.
type Transport interface {
	Send(ctx context.Context, chatID string, msg Message) error
}

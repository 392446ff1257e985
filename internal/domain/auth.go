package domain

// Actor identifies whoever triggered an operation by their chat identity.
type Actor struct {
	ExternalID string
	Username   string
	Name       string
	ChatID     string
}

// ReplyChat returns the chat used to answer the actor.
func (a Actor) ReplyChat() string {
	if a.ChatID != "" {
		return a.ChatID
	}
	return a.ExternalID
}

package models

import "time"

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the display label for the role
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "You"
}

// Message is one turn of the conversation
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// IsUser reports whether the message was written by the user
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// WebhookRequest is the JSON body posted to the message-processing endpoint
type WebhookRequest struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewWebhookRequest builds the request body for a message sent at sentAt
func NewWebhookRequest(message string, sentAt time.Time) WebhookRequest {
	return WebhookRequest{
		Message:   message,
		Timestamp: FormatISO(sentAt),
	}
}

package email

import (
	"context"
	"time"
)

// SendRequest is one outgoing receipt message.
type SendRequest struct {
	To      []string
	From    string // e.g. "Iron Temple Gym <desk@irontemple.example>"; the sender default applies when empty
	Subject string
	HTML    string
	Text    string // plain-text alternative
	ReplyTo string

	// Tags label the message at the provider, e.g. receipt_number=RCP-000042.
	Tags map[string]string
}

// SendResult is the provider's acceptance of a message.
type SendResult struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers mail through an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

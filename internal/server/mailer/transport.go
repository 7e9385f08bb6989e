package mailer

import "context"

// Message is a rendered email ready for delivery.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport performs the external send. Implementations must treat a
// returned nil as a confirmed hand-off; the dispatcher writes the sent
// marker only after that confirmation.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

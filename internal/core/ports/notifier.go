package ports

import "context"

// Mail is a single outbound message handed to the Notifier.
type Mail struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Notifier delivers a message to a recipient. Callers treat failures as
// non-fatal; signup and login never fail because a notification did.
type Notifier interface {
	Send(ctx context.Context, mail Mail) error
}

// MailQueue accepts messages for asynchronous delivery, decoupling the
// request path from the mail transport.
type MailQueue interface {
	Enqueue(mail Mail)
}

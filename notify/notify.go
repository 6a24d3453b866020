package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

type MessageKind string

const (
	KindVerifyEmail   MessageKind = "verify_email"
	KindResetPassword MessageKind = "reset_password"
)

// Message is an outbound email request. Delivery is left to the Sender.
type Message struct {
	Kind    MessageKind `json:"kind"`
	To      string      `json:"to"`
	Subject string      `json:"subject"`
	Body    string      `json:"body"`
}

// Sender hands a message to whatever delivers it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the global logger. Used in development and
// by the mailer worker until a real transport is plugged in.
type LogSender struct {
	From string
}

var _ Sender = LogSender{}

func (l LogSender) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("from", l.From).
		Str("kind", string(msg.Kind)).
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email ready for delivery")
	// the body carries a live token
	log.Debug().Str("to", msg.To).Msg(msg.Body)
	return nil
}

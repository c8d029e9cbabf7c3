package nats

import (
	"context"
	"errors"
	"time"

	"github.com/telhawk-systems/rawproc/internal/logging"
)

// ErrTerminal marks a handler error that redelivery cannot fix.
var ErrTerminal = errors.New("terminal message error")

// Handler processes one message payload.
type Handler func(ctx context.Context, data []byte) error

// Message is the part of jetstream.Msg used to settle a delivery.
type Message interface {
	Subject() string
	Data() []byte
	Ack() error
	Term() error
	NakWithDelay(delay time.Duration) error
}

// Settlement is how a delivery was settled.
type Settlement string

const (
	Acked  Settlement = "ack"
	Termed Settlement = "term"
	Naked  Settlement = "nak"
)

// Settle runs handler on msg and settles it: Ack on success, Term for errors
// wrapping ErrTerminal, NakWithDelay otherwise.
func Settle(ctx context.Context, msg Message, handler Handler, nakDelay time.Duration, logger *logging.Logger) Settlement {
	err := handler(ctx, msg.Data())
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			logger.WarnContext(ctx, "ack failed", "subject", msg.Subject(), logging.Error(ackErr))
		}
		return Acked
	case errors.Is(err, ErrTerminal):
		logger.ErrorContext(ctx, "dropping message", "subject", msg.Subject(), logging.Error(err))
		if termErr := msg.Term(); termErr != nil {
			logger.WarnContext(ctx, "term failed", "subject", msg.Subject(), logging.Error(termErr))
		}
		return Termed
	default:
		logger.ErrorContext(ctx, "message handling failed, will redeliver",
			"subject", msg.Subject(),
			"delay", nakDelay,
			logging.Error(err))
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			logger.WarnContext(ctx, "nak failed", "subject", msg.Subject(), logging.Error(nakErr))
		}
		return Naked
	}
}

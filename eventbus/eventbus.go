// Package eventbus publishes and consumes messages by topic, either in
// process or over NATS.
package eventbus

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("eventbus: closed")

type Bus interface {
	Publish(topic string, msg any) error
	Subscribe(topic string, handler MessageReceiver) error
	Close() error
}

type MessageReceiver interface {
	Receive(ctx context.Context, msg any)
}

// ReceiverFunc adapts a function to MessageReceiver.
type ReceiverFunc func(ctx context.Context, msg any)

func (f ReceiverFunc) Receive(ctx context.Context, msg any) {
	f(ctx, msg)
}

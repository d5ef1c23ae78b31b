package eventbus

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var _ Bus = (*NatsConn[struct{}])(nil)

// NatsConn publishes JSON encoded messages on NATS subjects. Received
// messages are decoded into T before reaching the handler.
type NatsConn[T any] struct {
	nc     *nats.Conn
	logger *zap.Logger
}

func NewNatsBus[T any](url string, logger *zap.Logger, opts ...nats.Option) (*NatsConn[T], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to nats at %s", url)
	}
	return &NatsConn[T]{nc: nc, logger: logger.Named("eventbus")}, nil
}

func (eb *NatsConn[T]) Publish(topic string, msg any) error {
	if eb.nc.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "encoding message for %s", topic)
	}
	return eb.nc.Publish(topic, data)
}

func (eb *NatsConn[T]) Subscribe(topic string, handler MessageReceiver) error {
	if eb.nc.IsClosed() {
		return ErrClosed
	}
	_, err := eb.nc.Subscribe(topic, eb.consumedMessages(context.Background(), handler.Receive))
	return errors.Wrapf(err, "subscribing to %s", topic)
}

// Close drains pending messages and closes the connection.
func (eb *NatsConn[T]) Close() error {
	if eb.nc.IsClosed() {
		return nil
	}
	return eb.nc.Drain()
}

func (eb *NatsConn[T]) consumedMessages(ctx context.Context, receiver func(ctx context.Context, msg any)) func(*nats.Msg) {
	return func(msg *nats.Msg) {
		decoded, err := deserialize[T](msg)
		if err != nil {
			eb.logger.Warn("dropping undecodable message", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		receiver(ctx, decoded)
	}
}

func deserialize[T any](message *nats.Msg) (T, error) {
	var msg T
	err := json.Unmarshal(message.Data, &msg)
	return msg, err
}

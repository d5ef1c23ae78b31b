package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/seb7887/gofw/eventbus"
	"github.com/seb7887/gofw/httpx/errs"
	"go.uber.org/zap"
)

// DefaultEventTopic is the topic CallEvents are published on.
const DefaultEventTopic = "httpx.calls"

// CallEvent summarizes one logical call at the transport level. StatusCode
// is zero when no response was received.
type CallEvent struct {
	Client        string        `json:"client"`
	Backend       string        `json:"backend"`
	Method        string        `json:"method"`
	URL           string        `json:"url"`
	StatusCode    int           `json:"status_code,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Duration      time.Duration `json:"duration"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty"`
	At            time.Time     `json:"at"`
}

// EventPolicy publishes a CallEvent after every logical call. Publishing
// failures are logged and never affect the call.
type EventPolicy struct {
	bus     eventbus.Bus
	topic   string
	client  string
	backend string
	logger  *zap.Logger
}

func NewEventPolicy(bus eventbus.Bus, topic, client, backend string, logger *zap.Logger) *EventPolicy {
	if topic == "" {
		topic = DefaultEventTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPolicy{
		bus:     bus,
		topic:   topic,
		client:  client,
		backend: backend,
		logger:  logger,
	}
}

func (e *EventPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	ctx, info := trackCall(ctx)

	start := time.Now()
	resp, err := next(ctx, req)

	event := CallEvent{
		Client:        e.client,
		Backend:       e.backend,
		Method:        req.Method,
		URL:           req.URL.String(),
		Duration:      time.Since(start),
		At:            start,
		CorrelationID: info.correlationID,
	}
	if resp != nil {
		event.StatusCode = resp.StatusCode
	}
	if err != nil {
		event.ErrorKind = errs.Kind(err)
		event.Error = err.Error()
	}

	if pubErr := e.bus.Publish(e.topic, event); pubErr != nil {
		e.logger.Warn("call event not published", zap.String("topic", e.topic), zap.Error(pubErr))
	}

	return resp, err
}

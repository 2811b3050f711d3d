package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsDispatcher publishes events to NATS subjects in addition to delivering
// them to local subscribers.
type natsDispatcher struct {
	conn          *nats.Conn
	subjectPrefix string
	local         Dispatcher
	logger        *zap.Logger
}

// NewNATSDispatcher wraps a local dispatcher with NATS publication. Events go
// out on "<prefix>.<event_type>".
func NewNATSDispatcher(conn *nats.Conn, subjectPrefix string, local Dispatcher, logger *zap.Logger) Dispatcher {
	if subjectPrefix == "" {
		subjectPrefix = "accounts"
	}
	return &natsDispatcher{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		local:         local,
		logger:        logger,
	}
}

func (d *natsDispatcher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", d.subjectPrefix, event.Type)
	if err := d.conn.Publish(subject, data); err != nil {
		// Fire-and-forget: a broker outage must not fail the pipeline.
		d.logger.Warn("nats publish failed",
			zap.String("subject", subject),
			zap.Error(err))
	}
	return d.local.Publish(ctx, event)
}

func (d *natsDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.local.Subscribe(eventType, handler)
}

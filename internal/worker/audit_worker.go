package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/events"
)

// StartAuditWorker subscribes an audit-trail handler for every account
// lifecycle event.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}

	handler := func(_ context.Context, event events.Event) error {
		logger.Info("account event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("identifier", event.Identifier),
			zap.Bool("is_group", event.Payload.IsGroup),
			zap.Strings("reasons", event.Payload.Reasons))
		return nil
	}

	for _, eventType := range []events.EventType{
		events.EventAccountSubmitted,
		events.EventAccountApproved,
		events.EventAccountRejected,
		events.EventAccountCreated,
	} {
		dispatcher.Subscribe(eventType, handler)
	}
}

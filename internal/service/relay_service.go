package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/events"
)

// StreamRelay forwards lifecycle events to a Redis stream so external
// consumers (dashboards, notifiers) can react without coupling to this
// process. Relay failures are logged, never propagated into the request.
type StreamRelay struct {
	dispatcher events.Dispatcher
	client     *redis.Client
	logger     *zap.Logger
	stream     string
}

// NewStreamRelay creates the relay.
func NewStreamRelay(dispatcher events.Dispatcher, client *redis.Client, logger *zap.Logger, cfg config.EventsConfig) *StreamRelay {
	return &StreamRelay{
		dispatcher: dispatcher,
		client:     client,
		logger:     logger,
		stream:     cfg.StreamKey,
	}
}

// RegisterHandlers subscribes the relay to every lifecycle event type.
func (r *StreamRelay) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(events.EventTicketCreated, r.relay)
	r.dispatcher.Subscribe(events.EventTicketStatusChanged, r.relay)
	r.dispatcher.Subscribe(events.EventTicketAssigned, r.relay)
}

func (r *StreamRelay) relay(ctx context.Context, event events.Event) error {
	r.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.PersonID))

	if r.client == nil || r.stream == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("marshal event", zap.Error(err))
		return nil
	}
	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"type":  string(event.Type),
			"event": body,
		},
	}).Err(); err != nil {
		r.logger.Warn("relay event to redis", zap.Error(err), zap.String("stream", r.stream))
	}
	return nil
}

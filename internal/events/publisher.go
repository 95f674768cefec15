package events

import (
	"context"

	"github.com/clinicore/clinicore-backend/pkg/logger"
	"github.com/clinicore/clinicore-backend/pkg/messaging"
)

// Publisher publishes clinic domain events. Publish failures are logged and
// swallowed; domain operations never fail because the broker is down.
type Publisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPublisher creates a new domain event publisher
func NewPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*Publisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeClinicEvents, "clinic-server", log)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// NewNop creates a publisher that drops every event. Used in tests and when
// the broker is not configured.
func NewNop(log *logger.Logger) *Publisher {
	return &Publisher{logger: log}
}

// Publish publishes a domain event
func (p *Publisher) Publish(ctx context.Context, eventType string, data interface{}) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

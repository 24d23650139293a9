package nats

import (
	"context"
	"fmt"

	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

// Keyed events carry a stable key, published as the JetStream message id so redeliveries are deduplicated.
type Keyed interface {
	Key() string
}

type NatsPublisher struct {
	js jetstream.JetStream
}

func NewNatsPublisher(js jetstream.JetStream) *NatsPublisher {
	return &NatsPublisher{js: js}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	var opts []jetstream.PublishOpt
	if keyed, ok := event.(Keyed); ok && keyed.Key() != "" {
		opts = append(opts, jetstream.WithMsgID(keyed.Key()))
	}
	if _, err = p.js.Publish(ctx, event.Subject(), data, opts...); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Subject(), err)
	}
	return nil
}

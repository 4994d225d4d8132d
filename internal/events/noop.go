package events

import "context"

// NoopPublisher discards events. Used when no NATS URL is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a NoopPublisher.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (p *NoopPublisher) Publish(ctx context.Context, subject string, payload any) error {
	return nil
}

func (p *NoopPublisher) Close() {}

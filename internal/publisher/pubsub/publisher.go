// Package pubsub publishes run events to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"
)

// Config holds the Pub/Sub connection settings.
type Config struct {
	ProjectID string
	Topic     string
}

// Publisher sends JSON-encoded events to a single Pub/Sub topic.
type Publisher struct {
	client *gcppubsub.Client
	topic  *gcppubsub.Topic
}

// New connects to Pub/Sub and binds the configured topic.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("pubsub: project ID is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("pubsub: topic is required")
	}
	client, err := gcppubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub: creating client: %w", err)
	}
	return &Publisher{client: client, topic: client.Topic(cfg.Topic)}, nil
}

// Publish marshals the payload to JSON and publishes it, blocking until the
// server acknowledges the message or ctx is done.
func (p *Publisher) Publish(ctx context.Context, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("pubsub: marshaling payload: %w", err)
	}
	result := p.topic.Publish(ctx, &gcppubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("pubsub: publishing message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

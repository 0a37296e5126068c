// Package publisher defines the run-event publishing abstraction. A run
// event is emitted after each pipeline run so downstream consumers can react
// without polling the bucket or warehouse.
package publisher

import "context"

// RunEvent describes a completed fetch run.
type RunEvent struct {
	RunID        string `json:"run_id"`
	PostedFrom   string `json:"posted_from"`
	PostedTo     string `json:"posted_to"`
	Fetched      int    `json:"fetched"`
	FileLocation string `json:"file_location,omitempty"`
	CompletedAt  string `json:"completed_at"`
}

// Publisher pushes run-completion events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

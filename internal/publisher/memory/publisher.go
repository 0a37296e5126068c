// Package memory provides an in-process publisher for tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Publisher records published payloads instead of sending them anywhere.
type Publisher struct {
	mu       sync.RWMutex
	messages [][]byte
}

// New returns an empty in-memory publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish stores the JSON encoding of payload and returns a synthetic ID.
func (p *Publisher) Publish(_ context.Context, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("memory: marshaling payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, data)
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([][]byte, len(p.messages))
	copy(out, p.messages)
	return out
}

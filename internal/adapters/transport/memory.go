package transport

import (
	"context"
	"sync"

	"github.com/promptsentry/promptsentry/internal/domain/providers"
)

// MemoryTransport is an in-process Transport. It is used by tests and by
// single-process deployments that run every service in one binary without a
// broker. Delivery order is preserved per subject; a subscriber whose buffer
// is full misses the message, same as the Redis adapter.
type MemoryTransport struct {
	subscribers map[string]map[chan []byte]struct{}
	mu          sync.RWMutex
	closed      bool
}

// NewMemoryTransport creates an in-process transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		subscribers: make(map[string]map[chan []byte]struct{}),
	}
}

var _ providers.Transport = (*MemoryTransport)(nil)

// Connect is a no-op for the in-process transport.
func (t *MemoryTransport) Connect(ctx context.Context) error {
	return nil
}

// Publish delivers the payload to every current subscriber of the subject.
func (t *MemoryTransport) Publish(ctx context.Context, subject string, payload []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return nil
	}

	for subscriber := range t.subscribers[subject] {
		select {
		case subscriber <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a channel for the subject until ctx is cancelled.
func (t *MemoryTransport) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	t.mu.Lock()
	if t.subscribers[subject] == nil {
		t.subscribers[subject] = make(map[chan []byte]struct{})
	}
	t.subscribers[subject][ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		if subscribers, ok := t.subscribers[subject]; ok {
			if _, present := subscribers[ch]; present {
				delete(subscribers, ch)
				close(ch)
			}
		}
		t.mu.Unlock()
	}()

	return ch, nil
}

// Close drops every subscriber.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for subject, subscribers := range t.subscribers {
		for ch := range subscribers {
			close(ch)
		}
		delete(t.subscribers, subject)
	}
	return nil
}

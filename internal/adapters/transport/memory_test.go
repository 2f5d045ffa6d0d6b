package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestMemoryTransport_FanOut(t *testing.T) {
	bus := NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	a, err := bus.Subscribe(ctx, "subject")
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, "subject")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "subject", []byte("hello")))

	assert.Equal(t, []byte("hello"), recv(t, a))
	assert.Equal(t, []byte("hello"), recv(t, b))
}

func TestMemoryTransport_SubjectsAreIsolated(t *testing.T) {
	bus := NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	other, err := bus.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "subject", []byte("hello")))

	select {
	case payload := <-other:
		t.Fatalf("unexpected delivery on other subject: %q", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryTransport_UnsubscribeOnContextCancel(t *testing.T) {
	bus := NewMemoryTransport()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "subject")
	require.NoError(t, err)

	cancel()

	// The channel closes once the cancellation is observed
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after context cancellation")
		}
	}
}

func TestMemoryTransport_PublishAfterCloseIsNoOp(t *testing.T) {
	bus := NewMemoryTransport()

	ctx := context.Background()
	_, err := bus.Subscribe(ctx, "subject")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	assert.NoError(t, bus.Publish(ctx, "subject", []byte("late")))
}

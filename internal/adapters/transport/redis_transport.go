package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/promptsentry/promptsentry/internal/domain/providers"
	redisclient "github.com/promptsentry/promptsentry/internal/infrastructure/clients/redis"
	"github.com/promptsentry/promptsentry/pkg/retry"
)

const subscriberBuffer = 64

// RedisTransport implements the Transport interface over Redis Pub/Sub.
// Each subject maps to one Redis subscription fanned out to per-subscriber
// buffered channels.
type RedisTransport struct {
	client        *redisclient.Client
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan []byte]struct{}
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisTransport creates a Redis-backed transport.
func NewRedisTransport(client *redisclient.Client) providers.Transport {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisTransport{
		client:        client,
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan []byte]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Connect verifies the Redis connection, retrying with backoff so the
// services can start before the broker does.
func (t *RedisTransport) Connect(ctx context.Context) error {
	cfg := retry.DefaultConfig()
	cfg.MaxTotalTimeout = 30 * time.Second
	if err := retry.Do(ctx, cfg, func() error {
		return t.client.Ping(ctx)
	}); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}
	return nil
}

// Publish sends a payload to every subscriber of the subject.
func (t *RedisTransport) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := t.client.Client().Publish(ctx, subject, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a channel for the subject, opening the underlying
// Redis subscription on first use.
func (t *RedisTransport) Subscribe(ctx context.Context, subject string) (<-chan []byte, error) {
	t.mu.Lock()

	if _, exists := t.subscriptions[subject]; !exists {
		pubsub := t.client.Client().Subscribe(t.ctx, subject)
		t.subscriptions[subject] = pubsub
		go t.receive(subject, pubsub)
	}

	if t.subscribers[subject] == nil {
		t.subscribers[subject] = make(map[chan []byte]struct{})
	}

	ch := make(chan []byte, subscriberBuffer)
	t.subscribers[subject][ch] = struct{}{}
	t.mu.Unlock()

	log.Debug().Str("subject", subject).Msg("subscribed")

	go func() {
		<-ctx.Done()
		t.removeSubscriber(subject, ch)
	}()

	return ch, nil
}

func (t *RedisTransport) receive(subject string, pubsub *redis.PubSub) {
	defer t.cleanupSubject(subject)

	ch := pubsub.Channel()
	for {
		select {
		case <-t.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			payload := []byte(msg.Payload)

			t.mu.RLock()
			for subscriber := range t.subscribers[subject] {
				select {
				case subscriber <- payload:
				default:
					// Subscriber buffer full, drop rather than block the loop
					log.Warn().Str("subject", subject).Msg("subscriber buffer full, dropping message")
				}
			}
			t.mu.RUnlock()
		}
	}
}

func (t *RedisTransport) removeSubscriber(subject string, ch chan []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subscribers, exists := t.subscribers[subject]
	if !exists {
		return
	}
	if _, ok := subscribers[ch]; !ok {
		return
	}

	delete(subscribers, ch)
	close(ch)

	if len(subscribers) == 0 {
		delete(t.subscribers, subject)
		if pubsub, ok := t.subscriptions[subject]; ok {
			_ = pubsub.Close()
			delete(t.subscriptions, subject)
		}
	}
}

func (t *RedisTransport) cleanupSubject(subject string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for subscriber := range t.subscribers[subject] {
		close(subscriber)
	}
	delete(t.subscribers, subject)

	if pubsub, ok := t.subscriptions[subject]; ok {
		_ = pubsub.Close()
		delete(t.subscriptions, subject)
	}
}

// Close tears down every subscription and cancels the receive loops.
func (t *RedisTransport) Close() error {
	t.cancel()

	t.mu.RLock()
	subjects := make([]string, 0, len(t.subscriptions))
	for subject := range t.subscriptions {
		subjects = append(subjects, subject)
	}
	t.mu.RUnlock()

	for _, subject := range subjects {
		t.cleanupSubject(subject)
	}

	log.Info().Msg("transport closed")
	return nil
}

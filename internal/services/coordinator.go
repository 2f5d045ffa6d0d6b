package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
	"github.com/promptsentry/promptsentry/internal/domain/providers"
	"github.com/promptsentry/promptsentry/internal/infrastructure/observability"
	apperrors "github.com/promptsentry/promptsentry/pkg/errors"
)

// Fixed user-facing result messages. Raw internal error text never reaches
// the caller.
const (
	MessageInputAllowed  = "Input allowed."
	MessageInputBlocked  = "Your input was not accepted."
	MessageOutputBlocked = "Sorry, I cannot provide that information."
	MessageTimeout       = "Request timed out. Please try again."
	MessageInternal      = "There was an error processing your request."
)

// DefaultRequestTimeout bounds how long a caller waits for a verdict.
const DefaultRequestTimeout = 30 * time.Second

// Coordinator ties the fire-and-forget transport into a synchronous
// request/response API. Every caller request gets a fresh correlation id and
// a pending entry; verdicts are routed to the awaiting caller by that id,
// never by arrival order. Many requests can be in flight at once, each
// independently timed.
type Coordinator struct {
	transport providers.Transport
	timeout   time.Duration
	metrics   *observability.Metrics

	mu      sync.Mutex
	pending map[string]chan *entities.Verdict

	cancel context.CancelFunc
}

// NewCoordinator creates a coordinator. A nil metrics handle disables
// instrumentation; a non-positive timeout falls back to the default.
func NewCoordinator(transport providers.Transport, timeout time.Duration, metrics *observability.Metrics) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Coordinator{
		transport: transport,
		timeout:   timeout,
		metrics:   metrics,
		pending:   make(map[string]chan *entities.Verdict),
	}
}

// Start connects the transport and subscribes to both verdict subjects.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return apperrors.NewTransportError("coordinator failed to connect", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	for _, subject := range []string{providers.SubjectInputVerdict, providers.SubjectOutputVerdict} {
		verdicts, err := c.transport.Subscribe(runCtx, subject)
		if err != nil {
			cancel()
			return apperrors.NewTransportError("failed to subscribe to "+subject, err)
		}
		go c.consume(verdicts)
	}
	c.cancel = cancel

	log.Info().Msg("coordinator started")
	return nil
}

// Process dispatches one caller request and blocks until its verdict
// arrives, the timeout elapses, or ctx is cancelled. Suspending here never
// blocks other requests; each waits on its own channel.
func (c *Coordinator) Process(ctx context.Context, req *entities.GuardRequest) (*entities.GuardResult, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	correlationID := uuid.NewString()
	resultCh := c.register(correlationID)
	defer c.deregister(correlationID)

	task, subject := buildTask(correlationID, req)

	payload, err := json.Marshal(task)
	if err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Msg("failed to encode task")
		return &entities.GuardResult{Decision: entities.DecisionBlocked, Message: MessageInternal}, nil
	}
	if err := c.transport.Publish(ctx, subject, payload); err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Str("subject", subject).Msg("failed to dispatch task")
		return &entities.GuardResult{Decision: entities.DecisionBlocked, Message: MessageInternal}, nil
	}

	log.Debug().Str("correlation_id", correlationID).Str("subject", subject).Msg("task dispatched")

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case verdict := <-resultCh:
		c.recordVerdict(ctx, req.Source, verdict.Decision)
		return resolve(req.Source, verdict), nil

	case <-timer.C:
		log.Error().Str("correlation_id", correlationID).Dur("timeout", c.timeout).Msg("timed out waiting for verdict")
		c.recordTimeout(ctx, req.Source)
		return &entities.GuardResult{Decision: entities.DecisionBlocked, Message: MessageTimeout}, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// buildTask selects the task shape and subject from the request source.
func buildTask(correlationID string, req *entities.GuardRequest) (*entities.Task, string) {
	if req.Source == entities.SourceLLM {
		return entities.NewOutputTask(correlationID, entities.OutputPayload{
			UserQuestion:        req.UserQuestion,
			ConversationHistory: req.ConversationHistory,
			LLMResponse:         req.LLMResponse,
		}), providers.SubjectOutputTask
	}
	return entities.NewInputTask(correlationID, req.UserQuestion), providers.SubjectInputTask
}

// resolve maps a verdict onto the fixed set of caller-facing results.
func resolve(source entities.RequestSource, verdict *entities.Verdict) *entities.GuardResult {
	if source == entities.SourceLLM {
		if verdict.Allowed() {
			// The verdict message carries the vetted response itself
			return &entities.GuardResult{Decision: entities.DecisionAllowed, Message: verdict.Message}
		}
		return &entities.GuardResult{Decision: entities.DecisionBlocked, Message: MessageOutputBlocked}
	}
	if verdict.Allowed() {
		return &entities.GuardResult{Decision: entities.DecisionAllowed, Message: MessageInputAllowed}
	}
	return &entities.GuardResult{Decision: entities.DecisionBlocked, Message: MessageInputBlocked}
}

func (c *Coordinator) consume(verdicts <-chan []byte) {
	for payload := range verdicts {
		c.handleVerdict(payload)
	}
}

func (c *Coordinator) handleVerdict(payload []byte) {
	var verdict entities.Verdict
	if err := json.Unmarshal(payload, &verdict); err != nil {
		decodeErr := apperrors.NewDecodeError("malformed verdict", err)
		log.Error().Err(decodeErr).Msg("dropping verdict")
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[verdict.CorrelationID]
	if ok {
		// Remove the entry before delivery so a second verdict for the same
		// id finds nothing and becomes a no-op
		delete(c.pending, verdict.CorrelationID)
	}
	c.mu.Unlock()

	if !ok {
		log.Debug().Str("correlation_id", verdict.CorrelationID).Msg("verdict for unknown or completed request, ignoring")
		return
	}

	// Buffered channel, and this goroutine is the only sender for the entry
	ch <- &verdict
	log.Info().Str("correlation_id", verdict.CorrelationID).Str("decision", string(verdict.Decision)).Msg("verdict delivered")
}

func (c *Coordinator) register(correlationID string) chan *entities.Verdict {
	ch := make(chan *entities.Verdict, 1)
	c.mu.Lock()
	c.pending[correlationID] = ch
	c.mu.Unlock()
	return ch
}

func (c *Coordinator) deregister(correlationID string) {
	c.mu.Lock()
	delete(c.pending, correlationID)
	c.mu.Unlock()
}

// InFlight returns the number of requests currently awaiting a verdict.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stop releases the verdict subscriptions.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Coordinator) recordVerdict(ctx context.Context, source entities.RequestSource, decision entities.Decision) {
	if c.metrics == nil {
		return
	}
	c.metrics.VerdictCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(source)),
		attribute.String("decision", string(decision)),
	))
}

func (c *Coordinator) recordTimeout(ctx context.Context, source entities.RequestSource) {
	if c.metrics == nil {
		return
	}
	c.metrics.TimeoutCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(source)),
	))
}

package services

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
	"github.com/promptsentry/promptsentry/internal/domain/providers"
	apperrors "github.com/promptsentry/promptsentry/pkg/errors"
)

// InputGuardrailService consumes input tasks, runs the input policy engine
// and publishes correlated verdicts.
type InputGuardrailService struct {
	transport providers.Transport
	engine    InputEngine
	cancel    context.CancelFunc
}

// InputEngine is the policy contract the service drives.
type InputEngine interface {
	Evaluate(text string) (entities.Decision, string)
}

// NewInputGuardrailService creates the input-side guardrail service.
func NewInputGuardrailService(transport providers.Transport, engine InputEngine) *InputGuardrailService {
	return &InputGuardrailService{
		transport: transport,
		engine:    engine,
	}
}

// Start connects the transport and subscribes the task handler. The
// subscription lives until Stop or until ctx is cancelled.
func (s *InputGuardrailService) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return apperrors.NewTransportError("input guardrail service failed to connect", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	tasks, err := s.transport.Subscribe(runCtx, providers.SubjectInputTask)
	if err != nil {
		cancel()
		return apperrors.NewTransportError("failed to subscribe to input tasks", err)
	}
	s.cancel = cancel

	go s.run(runCtx, tasks)
	log.Info().Str("subject", providers.SubjectInputTask).Msg("input guardrail service started")
	return nil
}

func (s *InputGuardrailService) run(ctx context.Context, tasks <-chan []byte) {
	for payload := range tasks {
		s.handleTask(ctx, payload)
	}
}

// handleTask never lets one bad task break the subscription loop: decode
// failures are dropped without a verdict and anything else is logged.
func (s *InputGuardrailService) handleTask(ctx context.Context, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("input guardrail handler panicked")
		}
	}()

	var task entities.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		decodeErr := apperrors.NewDecodeError("malformed input task", err)
		log.Error().Err(decodeErr).Msg("dropping input task")
		return
	}

	log.Info().Str("correlation_id", task.CorrelationID).Msg("processing input guardrail task")

	decision, reason := s.engine.Evaluate(task.Input)

	verdict := entities.Verdict{
		CorrelationID: task.CorrelationID,
		Decision:      decision,
		Message:       reason,
	}
	data, err := json.Marshal(&verdict)
	if err != nil {
		log.Error().Err(err).Str("correlation_id", task.CorrelationID).Msg("failed to encode input verdict")
		return
	}

	if err := s.transport.Publish(ctx, providers.SubjectInputVerdict, data); err != nil {
		log.Error().Err(err).Str("correlation_id", task.CorrelationID).Msg("failed to publish input verdict")
	}
}

// Stop releases the subscription.
func (s *InputGuardrailService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

package services

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
	"github.com/promptsentry/promptsentry/internal/domain/providers"
	apperrors "github.com/promptsentry/promptsentry/pkg/errors"
)

// OutputGuardrailService consumes output tasks, runs the output policy
// engine and publishes correlated verdicts. Same shape as the input-side
// service; only the engine and subjects differ.
type OutputGuardrailService struct {
	transport providers.Transport
	engine    OutputEngine
	cancel    context.CancelFunc
}

// OutputEngine is the policy contract the service drives.
type OutputEngine interface {
	Evaluate(ctx context.Context, response, userInput, conversationHistory string) (entities.Decision, string)
}

// NewOutputGuardrailService creates the output-side guardrail service.
func NewOutputGuardrailService(transport providers.Transport, engine OutputEngine) *OutputGuardrailService {
	return &OutputGuardrailService{
		transport: transport,
		engine:    engine,
	}
}

// Start connects the transport and subscribes the task handler.
func (s *OutputGuardrailService) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return apperrors.NewTransportError("output guardrail service failed to connect", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	tasks, err := s.transport.Subscribe(runCtx, providers.SubjectOutputTask)
	if err != nil {
		cancel()
		return apperrors.NewTransportError("failed to subscribe to output tasks", err)
	}
	s.cancel = cancel

	go s.run(runCtx, tasks)
	log.Info().Str("subject", providers.SubjectOutputTask).Msg("output guardrail service started")
	return nil
}

func (s *OutputGuardrailService) run(ctx context.Context, tasks <-chan []byte) {
	for payload := range tasks {
		s.handleTask(ctx, payload)
	}
}

func (s *OutputGuardrailService) handleTask(ctx context.Context, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("output guardrail handler panicked")
		}
	}()

	var task entities.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		decodeErr := apperrors.NewDecodeError("malformed output task", err)
		log.Error().Err(decodeErr).Msg("dropping output task")
		return
	}
	if task.Output == nil {
		decodeErr := apperrors.NewDecodeError("output task missing composite payload", nil)
		log.Error().Err(decodeErr).Str("correlation_id", task.CorrelationID).Msg("dropping output task")
		return
	}

	log.Info().Str("correlation_id", task.CorrelationID).Msg("processing output guardrail task")

	decision, message := s.engine.Evaluate(
		ctx,
		task.Output.LLMResponse,
		task.Output.UserQuestion,
		task.Output.ConversationHistory,
	)

	verdict := entities.Verdict{
		CorrelationID: task.CorrelationID,
		Decision:      decision,
		Message:       message,
	}
	data, err := json.Marshal(&verdict)
	if err != nil {
		log.Error().Err(err).Str("correlation_id", task.CorrelationID).Msg("failed to encode output verdict")
		return
	}

	if err := s.transport.Publish(ctx, providers.SubjectOutputVerdict, data); err != nil {
		log.Error().Err(err).Str("correlation_id", task.CorrelationID).Msg("failed to publish output verdict")
	}
}

// Stop releases the subscription.
func (s *OutputGuardrailService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

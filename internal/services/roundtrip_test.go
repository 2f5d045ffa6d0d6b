package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptsentry/promptsentry/internal/adapters/transport"
	"github.com/promptsentry/promptsentry/internal/domain/entities"
	"github.com/promptsentry/promptsentry/internal/domain/providers"
	"github.com/promptsentry/promptsentry/internal/guardrails/input"
	"github.com/promptsentry/promptsentry/internal/guardrails/output"
)

type fakeLLM struct {
	verdict string
	flagged bool
}

func (f *fakeLLM) BooleanVerdict(ctx context.Context, prompt, history string) (string, error) {
	return f.verdict, nil
}

func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 1, 1}, nil
}

func (f *fakeLLM) Moderate(ctx context.Context, text string) (bool, error) {
	return f.flagged, nil
}

func inputEngineForTest() *input.Engine {
	return input.NewEngine(input.RuleSet{
		AllowedTopics:     []string{"weather"},
		OffTopicKeywords:  []string{"lottery"},
		InjectionPatterns: []string{"ignore previous instructions"},
	})
}

func TestInputService_RoundTripPreservesCorrelationID(t *testing.T) {
	bus := transport.NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	verdicts, err := bus.Subscribe(ctx, providers.SubjectInputVerdict)
	require.NoError(t, err)

	svc := NewInputGuardrailService(bus, inputEngineForTest())
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	task, _ := json.Marshal(entities.NewInputTask("corr-42", "what is the weather"))
	require.NoError(t, bus.Publish(ctx, providers.SubjectInputTask, task))

	select {
	case payload := <-verdicts:
		var verdict entities.Verdict
		require.NoError(t, json.Unmarshal(payload, &verdict))
		assert.Equal(t, "corr-42", verdict.CorrelationID)
		assert.Equal(t, entities.DecisionAllowed, verdict.Decision)
	case <-time.After(2 * time.Second):
		t.Fatal("no verdict received")
	}
}

func TestInputService_SurvivesUndecodableTask(t *testing.T) {
	bus := transport.NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	verdicts, err := bus.Subscribe(ctx, providers.SubjectInputVerdict)
	require.NoError(t, err)

	svc := NewInputGuardrailService(bus, inputEngineForTest())
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	// A garbage task produces no verdict and must not kill the loop
	require.NoError(t, bus.Publish(ctx, providers.SubjectInputTask, []byte("{{{")))

	task, _ := json.Marshal(entities.NewInputTask("after-garbage", "weather update"))
	require.NoError(t, bus.Publish(ctx, providers.SubjectInputTask, task))

	select {
	case payload := <-verdicts:
		var verdict entities.Verdict
		require.NoError(t, json.Unmarshal(payload, &verdict))
		assert.Equal(t, "after-garbage", verdict.CorrelationID)
	case <-time.After(2 * time.Second):
		t.Fatal("service stopped processing after a bad task")
	}
}

func TestOutputService_RoundTripThroughCoordinator(t *testing.T) {
	bus := transport.NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	llm := &fakeLLM{verdict: "True"}
	svc := NewOutputGuardrailService(bus, output.NewEngine(llm, llm, llm))
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	c := NewCoordinator(bus, 5*time.Second, nil)
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	result, err := c.Process(ctx, &entities.GuardRequest{
		Source:              entities.SourceLLM,
		UserQuestion:        "What is the weather?",
		ConversationHistory: "user: What is the weather?",
		LLMResponse:         "It is sunny.",
	})

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionAllowed, result.Decision)
	// An allowed output verdict carries the vetted response through
	assert.Equal(t, "It is sunny.", result.Message)
}

func TestOutputService_ModerationFlagBlocksThroughCoordinator(t *testing.T) {
	bus := transport.NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	llm := &fakeLLM{verdict: "True", flagged: true}
	svc := NewOutputGuardrailService(bus, output.NewEngine(llm, llm, llm))
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	c := NewCoordinator(bus, 5*time.Second, nil)
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	result, err := c.Process(ctx, &entities.GuardRequest{
		Source:       entities.SourceLLM,
		UserQuestion: "q",
		LLMResponse:  "something nasty",
	})

	require.NoError(t, err)
	assert.Equal(t, entities.DecisionBlocked, result.Decision)
	assert.Equal(t, MessageOutputBlocked, result.Message)
}

func TestInputService_FullPipelineWithCoordinator(t *testing.T) {
	bus := transport.NewMemoryTransport()
	defer bus.Close()

	ctx := context.Background()
	svc := NewInputGuardrailService(bus, inputEngineForTest())
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()

	c := NewCoordinator(bus, 5*time.Second, nil)
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	allowed, err := c.Process(ctx, &entities.GuardRequest{
		Source:       entities.SourceUser,
		UserQuestion: "How is the weather today?",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.DecisionAllowed, allowed.Decision)
	assert.Equal(t, MessageInputAllowed, allowed.Message)

	blocked, err := c.Process(ctx, &entities.GuardRequest{
		Source:       entities.SourceUser,
		UserQuestion: "What is the weather lottery today?",
	})
	require.NoError(t, err)
	assert.Equal(t, entities.DecisionBlocked, blocked.Decision)
	assert.Equal(t, MessageInputBlocked, blocked.Message)
}

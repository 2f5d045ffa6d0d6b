package output

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
)

type stubProviders struct {
	verdictReply   string
	verdictErr     error
	coherenceReply string
	embedByText    map[string][]float64
	embedErr       error
	flagged        bool
	moderationErr  error
}

func (s *stubProviders) BooleanVerdict(ctx context.Context, prompt string, history string) (string, error) {
	if s.verdictErr != nil {
		return "", s.verdictErr
	}
	if history != "" && s.coherenceReply != "" {
		return s.coherenceReply, nil
	}
	return s.verdictReply, nil
}

func (s *stubProviders) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	if v, ok := s.embedByText[text]; ok {
		return v, nil
	}
	return []float64{1, 0, 0}, nil
}

func (s *stubProviders) Moderate(ctx context.Context, text string) (bool, error) {
	if s.moderationErr != nil {
		return false, s.moderationErr
	}
	return s.flagged, nil
}

func passingStub() *stubProviders {
	return &stubProviders{
		verdictReply:   "True",
		coherenceReply: "True",
	}
}

func TestEngine_AllChecksPass(t *testing.T) {
	stub := passingStub()
	e := NewEngine(stub, stub, stub)

	decision, message := e.Evaluate(context.Background(), "The sky is blue.", "What color is the sky?", "")

	assert.Equal(t, entities.DecisionAllowed, decision)
	assert.Equal(t, "The sky is blue.", message)
}

func TestEngine_FactualAccuracyFailureBlocks(t *testing.T) {
	stub := passingStub()
	stub.verdictReply = "False"
	e := NewEngine(stub, stub, stub)

	decision, message := e.Evaluate(context.Background(), "resp", "input", "")

	assert.Equal(t, entities.DecisionBlocked, decision)
	assert.Equal(t, BlockedMessage, message)
}

func TestEngine_NonBooleanReplyFailsClosed(t *testing.T) {
	stub := passingStub()
	stub.verdictReply = "The statement is accurate."
	e := NewEngine(stub, stub, stub)

	decision, _ := e.Evaluate(context.Background(), "resp", "input", "")

	assert.Equal(t, entities.DecisionBlocked, decision)
}

func TestEngine_RelevancyBelowThresholdBlocks(t *testing.T) {
	stub := passingStub()
	// Orthogonal vectors score 0
	stub.embedByText = map[string][]float64{
		"resp":  {1, 0, 0},
		"input": {0, 1, 0},
	}
	e := NewEngine(stub, stub, stub)

	decision, message := e.Evaluate(context.Background(), "resp", "input", "")

	assert.Equal(t, entities.DecisionBlocked, decision)
	assert.Equal(t, BlockedMessage, message)
}

func TestEngine_ModerationFlagBlocks(t *testing.T) {
	stub := passingStub()
	stub.flagged = true
	e := NewEngine(stub, stub, stub)

	decision, _ := e.Evaluate(context.Background(), "resp", "input", "")

	assert.Equal(t, entities.DecisionBlocked, decision)
}

func TestEngine_CoherenceFailureBlocks(t *testing.T) {
	stub := passingStub()
	stub.coherenceReply = "False"
	e := NewEngine(stub, stub, stub)

	decision, _ := e.Evaluate(context.Background(), "resp", "input", "user: hi")

	assert.Equal(t, entities.DecisionBlocked, decision)
}

func TestEngine_ProviderErrorsFailClosed(t *testing.T) {
	cases := map[string]*stubProviders{
		"verdict error":    {verdictErr: errors.New("boom")},
		"embedding error":  {verdictReply: "True", coherenceReply: "True", embedErr: errors.New("boom")},
		"moderation error": {verdictReply: "True", coherenceReply: "True", moderationErr: errors.New("boom")},
	}

	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			e := NewEngine(stub, stub, stub)

			decision, message := e.Evaluate(context.Background(), "resp", "input", "")

			assert.Equal(t, entities.DecisionBlocked, decision)
			assert.Equal(t, BlockedMessage, message)
		})
	}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)

	// Degenerate inputs score 0 instead of passing the threshold
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

package output

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
	"github.com/promptsentry/promptsentry/internal/domain/providers"
)

// BlockedMessage is the only detail a caller sees for a blocked response;
// per-check findings stay in the logs.
const BlockedMessage = "The response violates one or more output guardrails."

const (
	relevancyThreshold = 0.7
	trueToken          = "true"
)

// Engine evaluates a generated response with four independent checks:
// factual accuracy, relevancy, policy compliance and contextual coherence.
// Every external-call failure counts as that check failing.
type Engine struct {
	verdicts   providers.VerdictProvider
	embeddings providers.EmbeddingProvider
	moderation providers.ModerationProvider
}

// NewEngine creates an output guardrail engine.
func NewEngine(
	verdicts providers.VerdictProvider,
	embeddings providers.EmbeddingProvider,
	moderation providers.ModerationProvider,
) *Engine {
	return &Engine{
		verdicts:   verdicts,
		embeddings: embeddings,
		moderation: moderation,
	}
}

// Evaluate runs all four checks concurrently and aggregates with a logical
// AND. When every check passes the response itself is returned as the
// message; otherwise the fixed generic message is returned.
func (e *Engine) Evaluate(ctx context.Context, response, userInput, conversationHistory string) (entities.Decision, string) {
	checks := []func(context.Context) bool{
		func(ctx context.Context) bool { return e.checkFactualAccuracy(ctx, response) },
		func(ctx context.Context) bool { return e.checkRelevancy(ctx, response, userInput) },
		func(ctx context.Context) bool { return e.checkPolicyCompliance(ctx, response) },
		func(ctx context.Context) bool { return e.checkContextualCoherence(ctx, response, conversationHistory) },
	}

	results := make([]bool, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check func(context.Context) bool) {
			defer wg.Done()
			results[i] = check(ctx)
		}(i, check)
	}
	wg.Wait()

	for _, passed := range results {
		if !passed {
			return entities.DecisionBlocked, BlockedMessage
		}
	}
	return entities.DecisionAllowed, response
}

func (e *Engine) checkFactualAccuracy(ctx context.Context, response string) bool {
	prompt := fmt.Sprintf(
		"Evaluate the factual accuracy of the following statement:\n\n'%s'\n\nRespond with 'True' if the statement is accurate, or 'False' if it's not.",
		response,
	)

	reply, err := e.verdicts.BooleanVerdict(ctx, prompt, "")
	if err != nil {
		log.Warn().Err(err).Msg("factual accuracy check failed")
		return false
	}
	if !isTrueToken(reply) {
		log.Warn().Msg("response is factually inaccurate")
		return false
	}
	return true
}

func (e *Engine) checkRelevancy(ctx context.Context, response, userInput string) bool {
	responseEmbedding, err := e.embeddings.Embed(ctx, response)
	if err != nil {
		log.Warn().Err(err).Msg("relevancy check failed")
		return false
	}
	inputEmbedding, err := e.embeddings.Embed(ctx, userInput)
	if err != nil {
		log.Warn().Err(err).Msg("relevancy check failed")
		return false
	}

	similarity := cosineSimilarity(responseEmbedding, inputEmbedding)
	if similarity < relevancyThreshold {
		log.Warn().Float64("similarity", similarity).Msg("response is not relevant to the user's input")
		return false
	}
	return true
}

func (e *Engine) checkPolicyCompliance(ctx context.Context, response string) bool {
	flagged, err := e.moderation.Moderate(ctx, response)
	if err != nil {
		log.Warn().Err(err).Msg("policy compliance check failed")
		return false
	}
	if flagged {
		log.Warn().Msg("response violates policy")
		return false
	}
	return true
}

func (e *Engine) checkContextualCoherence(ctx context.Context, response, conversationHistory string) bool {
	history := conversationHistory
	if history != "" {
		history += "\n"
	}
	history += "assistant: " + response

	prompt := "Determine if the assistant's last response is contextually coherent within the conversation. Respond with 'True' or 'False'."

	reply, err := e.verdicts.BooleanVerdict(ctx, prompt, history)
	if err != nil {
		log.Warn().Err(err).Msg("contextual coherence check failed")
		return false
	}
	if !isTrueToken(reply) {
		log.Warn().Msg("response lacks contextual coherence")
		return false
	}
	return true
}

// isTrueToken applies the strict boolean parsing: only an exact "true",
// modulo surrounding whitespace and case, counts as a passing answer.
func isTrueToken(reply string) bool {
	return strings.ToLower(strings.TrimSpace(reply)) == trueToken
}

package input

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/promptsentry/promptsentry/internal/domain/entities"
)

// Block reasons returned by Evaluate
const (
	ReasonInjection  = "Your request contains disallowed patterns."
	ReasonOffTopic   = "Your request is off-topic."
	ReasonNotAllowed = "Your request is not related to allowed topics."
)

// RuleSet is the input-side policy configuration. Patterns and keywords are
// matched as literal substrings, never as regular expressions.
type RuleSet struct {
	AllowedTopics     []string
	OffTopicKeywords  []string
	InjectionPatterns []string
}

// Engine evaluates user input against the rule set. It holds no mutable
// state, so one engine is shared safely across concurrent evaluations.
type Engine struct {
	allowedTopics     []string
	offTopicKeywords  []string
	injectionPatterns []string
}

// NewEngine creates an engine with the rule set lower-cased once up front.
func NewEngine(rules RuleSet) *Engine {
	return &Engine{
		allowedTopics:     lowerAll(rules.AllowedTopics),
		offTopicKeywords:  lowerAll(rules.OffTopicKeywords),
		injectionPatterns: lowerAll(rules.InjectionPatterns),
	}
}

// Evaluate runs the checks in order, first match wins: injection patterns,
// off-topic keywords, then the allowed-topic requirement. An empty
// allowed-topic list disables the allowed-topic check entirely.
func (e *Engine) Evaluate(text string) (entities.Decision, string) {
	lowered := strings.ToLower(text)

	for _, pattern := range e.injectionPatterns {
		if strings.Contains(lowered, pattern) {
			log.Warn().Str("pattern", pattern).Msg("prompt injection or jailbreak detected")
			return entities.DecisionBlocked, ReasonInjection
		}
	}

	for _, keyword := range e.offTopicKeywords {
		if strings.Contains(lowered, keyword) {
			log.Warn().Str("keyword", keyword).Msg("off-topic content detected")
			return entities.DecisionBlocked, ReasonOffTopic
		}
	}

	if len(e.allowedTopics) > 0 && !containsAny(lowered, e.allowedTopics) {
		log.Warn().Msg("input does not match allowed topics")
		return entities.DecisionBlocked, ReasonNotAllowed
	}

	return entities.DecisionAllowed, ""
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, v := range values {
		lowered = append(lowered, strings.ToLower(v))
	}
	return lowered
}

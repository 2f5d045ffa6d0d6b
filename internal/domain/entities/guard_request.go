package entities

import "fmt"

// RequestSource declares where the content under evaluation came from.
type RequestSource string

const (
	// SourceUser routes the request through the input guardrail
	SourceUser RequestSource = "user"

	// SourceLLM routes the request through the output guardrail
	SourceLLM RequestSource = "llm"
)

// GuardRequest is one caller request to the coordinator. For SourceUser only
// UserQuestion is required; for SourceLLM the generated response and the
// conversation history are required as well.
type GuardRequest struct {
	Source              RequestSource `json:"source"`
	UserQuestion        string        `json:"user_question"`
	ConversationHistory string        `json:"conversation_history,omitempty"`
	LLMResponse         string        `json:"llm_response,omitempty"`
}

// Validate checks the request shape before dispatch.
func (r *GuardRequest) Validate() error {
	switch r.Source {
	case SourceUser:
		return nil
	case SourceLLM:
		if r.LLMResponse == "" {
			return fmt.Errorf("llm_response is required when source is %q", SourceLLM)
		}
		return nil
	default:
		return fmt.Errorf("unknown source %q", r.Source)
	}
}

// GuardResult is the final answer delivered to the caller.
type GuardResult struct {
	Decision Decision `json:"decision"`
	Message  string   `json:"message"`
}

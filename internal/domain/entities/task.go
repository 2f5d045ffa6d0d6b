package entities

// TaskKind identifies which guardrail a task is destined for.
type TaskKind string

const (
	// TaskKindInput means the payload is raw user text bound for the input guardrail
	TaskKindInput TaskKind = "input"

	// TaskKindOutput means the payload is a generated response bound for the output guardrail
	TaskKindOutput TaskKind = "output"
)

// OutputPayload is the composite payload carried by output-side tasks.
type OutputPayload struct {
	UserQuestion        string `json:"user_question"`
	ConversationHistory string `json:"conversation_history"`
	LLMResponse         string `json:"llm_response"`
}

// Task is one unit of policy-evaluation work dispatched over the transport.
// Input tasks carry raw text in Input; output tasks carry the composite
// Output payload. Tasks are consumed exactly once and never persisted.
type Task struct {
	CorrelationID string         `json:"correlation_id"`
	Kind          TaskKind       `json:"kind"`
	Input         string         `json:"input,omitempty"`
	Output        *OutputPayload `json:"output,omitempty"`
}

// NewInputTask creates an input-side task for the given user text.
func NewInputTask(correlationID, userInput string) *Task {
	return &Task{
		CorrelationID: correlationID,
		Kind:          TaskKindInput,
		Input:         userInput,
	}
}

// NewOutputTask creates an output-side task for a generated response.
func NewOutputTask(correlationID string, payload OutputPayload) *Task {
	return &Task{
		CorrelationID: correlationID,
		Kind:          TaskKindOutput,
		Output:        &payload,
	}
}

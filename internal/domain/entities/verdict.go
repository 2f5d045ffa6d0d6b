package entities

// Decision is the outcome of a guardrail evaluation.
type Decision string

const (
	// DecisionAllowed means the content passed every check
	DecisionAllowed Decision = "allowed"

	// DecisionBlocked means at least one check rejected the content
	DecisionBlocked Decision = "blocked"
)

// Verdict is the result of evaluating one Task, returned over the transport
// with the same correlation id the task carried.
type Verdict struct {
	CorrelationID string   `json:"correlation_id"`
	Decision      Decision `json:"decision"`
	Message       string   `json:"message,omitempty"`
}

// Allowed reports whether the verdict passed.
func (v *Verdict) Allowed() bool {
	return v.Decision == DecisionAllowed
}

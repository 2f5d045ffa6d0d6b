package providers

import "context"

// Transport defines the publish/subscribe boundary the guardrail services and
// the coordinator communicate through. Implementations carry no business
// logic; payloads are opaque UTF-8 bytes.
type Transport interface {
	// Connect establishes the underlying connection
	Connect(ctx context.Context) error

	// Publish sends a payload to every subscriber of a subject
	Publish(ctx context.Context, subject string, payload []byte) error

	// Subscribe delivers each payload published on a subject to the channel
	// until the given context is cancelled
	Subscribe(ctx context.Context, subject string) (<-chan []byte, error)

	// Close tears down every subscription and the connection
	Close() error
}

// Transport subjects for guardrail tasks and their verdicts
const (
	// SubjectInputTask carries input-side tasks
	SubjectInputTask = "input_guardrail"

	// SubjectInputVerdict carries input-side verdicts
	SubjectInputVerdict = "input_guardrail_response"

	// SubjectOutputTask carries output-side tasks
	SubjectOutputTask = "output_guardrail"

	// SubjectOutputVerdict carries output-side verdicts
	SubjectOutputVerdict = "output_guardrail_response"
)

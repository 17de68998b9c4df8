package interfaces

import (
	"context"
)

// MediaInput is a binary payload handed to a multimodal model
type MediaInput struct {
	// Data holds the raw file contents
	Data []byte

	// MIMEType describes Data, e.g. "image/png" or "audio/wav"
	MIMEType string
}

// ModelService defines the generative model collaborator used by report
// generation. Implementations wrap a cloud API behind retries, rate limiting
// and a call timeout.
//
// Failures caused by the model being unreachable, misconfigured or out of
// quota are returned wrapped around common.ErrModelUnavailable so callers can
// tell them apart from a model that answered with unhelpful text.
type ModelService interface {
	// Generate sends a single text prompt and returns the raw completion.
	// The completion is not guaranteed to be well-formed.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - prompt: Fully rendered prompt text
	//
	// Returns:
	//   - string: Raw completion text
	//   - error: ErrModelUnavailable-wrapped error when no completion was produced
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateJSON is Generate with the provider asked for a JSON reply.
	// The reply is still untrusted text and must go through recovery.
	GenerateJSON(ctx context.Context, prompt string) (string, error)

	// Transcribe asks a multimodal model to return the text shown in an image
	// or spoken in an audio clip.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - media: File contents and MIME type
	//   - prompt: Instruction describing what to transcribe
	//
	// Returns:
	//   - string: Recognised text, possibly empty
	//   - error: ErrModelUnavailable-wrapped error when the call failed
	Transcribe(ctx context.Context, media MediaInput, prompt string) (string, error)

	// HealthCheck reports whether a provider is configured for use
	HealthCheck(ctx context.Context) error

	// Close releases provider clients
	Close() error
}

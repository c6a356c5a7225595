// Package llm defines the Provider interface for large language model
// backends.
//
// An LLM provider wraps a remote or local model API and exposes a uniform
// streaming interface, so the conversation loop can pipe tokens into speech
// synthesis without coupling to any specific SDK.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package llm

import "context"

// Message represents a single message in a conversation history.
type Message struct {
	// Role is one of "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before
	// the conversation history. Providers that do not natively support a
	// dedicated system field prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. The
	// special value 0 requests greedy decoding on providers that distinguish
	// it from "unset".
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means the provider default.
	MaxTokens int
}

// Chunk is a single token or fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty on a
	// chunk that only carries a FinishReason.
	Text string

	// FinishReason is set on the final chunk and indicates why generation
	// stopped. Common values are "stop" (natural end), "length" (MaxTokens
	// reached), "error" (generation failed mid-stream), and "" (non-final
	// chunk). For "error" chunks Text carries the error message.
	FinishReason string
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values as they arrive. The channel is closed by the
	// implementation when generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the channel is opened surface as a Chunk with FinishReason
	// "error"; the initial error return is non-nil only for failures that
	// prevent the stream from starting.
	//
	// The returned channel is never nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response. A
	// convenience wrapper for callers that do not need incremental output.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

package llm

import "context"

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// ChunkStream yields content deltas of a streamed completion. Recv returns
// io.EOF after the last delta. Close releases the underlying connection and is
// safe to call more than once.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// StreamingProvider is a Provider that can also stream content deltas.
type StreamingProvider interface {
	Provider
	Stream(ctx context.Context, req CompletionRequest) (ChunkStream, error)
}

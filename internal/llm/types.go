package llm

// Role is the author of a chat message as the model APIs name it.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat request.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a provider-neutral chat request. JSONMode asks the
// provider to constrain the reply to a JSON object where it supports that.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse is the result of a non-streamed request. Token counts are
// zero when the provider does not report usage.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// Cost returns the estimated USD cost of the response, or 0 for unpriced models.
func (r *CompletionResponse) Cost() float64 {
	return EstimateCost(r.Model, r.InputTokens, r.OutputTokens)
}

// Truncated reports whether the provider stopped because of the token limit.
func (r *CompletionResponse) Truncated() bool {
	switch r.FinishReason {
	case "length", "max_tokens", "MAX_TOKENS":
		return true
	}
	return false
}

package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Usage for a single chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port for the generative-text collaborator.
//
// Implementations wrap failures in domain.ErrUpstreamTimeout or
// domain.ErrUpstreamTransient when a retry may help, and in
// domain.ErrUpstreamRejected otherwise.
type AIServiceAdapter interface {
	Name() string
	// ChatWithUsage returns assistant text + usage as reported by the provider.
	// An empty model selects the adapter's default.
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
}

// TokenCounter estimates prompt size before a question is forwarded.
type TokenCounter interface {
	Count(text string) int
}

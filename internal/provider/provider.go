package provider

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned before any network call when a provider is
// missing its API key or model id.
var ErrNotConfigured = errors.New("provider not configured")

type Request struct {
	Model string
	// Messages is the role-tagged prompt for chat-style backends.
	Messages []Message
	// Prompt is the flat prompt for generate-style backends that have no
	// role-structured input. Exactly one of Messages/Prompt is set.
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
	Stream      bool
	// Tools and ToolChoice drive single-shot structured calls (classification).
	Tools      []Tool
	ToolChoice string
}

type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of the function arguments
}

type Response struct {
	ID           string
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
	Model        string
	Provider     string
}

type ToolCall struct {
	Name      string
	Arguments string // raw JSON argument object
}

// Chunk is one unit of a provider's normalized incremental output. Done is
// terminal; Err aborts the stream without necessarily having sent Done.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	CompleteStream(ctx context.Context, req *Request) (<-chan *Chunk, error)
	Name() string
}

// ToolSupport is implemented by providers whose wire format carries tool
// definitions natively. Callers that need structured output from other
// backends must instruct via the prompt instead.
type ToolSupport interface {
	SupportsTools() bool
}

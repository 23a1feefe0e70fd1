// Package vizn provides an image-generation tool adapter for agent frameworks.
//
// An ImageTool resolves a remote image-generation capability once, at construction,
// and reuses it for every call. Each call submits a single generation request,
// blocks until the remote task reaches a terminal state, and returns the identifier
// of the first output block. Image bytes stay with the remote host.
//
// The remote host sits behind a narrow set of interfaces (Provider, Capability,
// Task, Block) so it can be swapped for a fake in tests. Concrete hosts live
// under providers/.
//
// Basic usage:
//
//	provider := steamship.New(steamship.Config{APIKey: key})
//	tool, _ := vizn.NewImageTool(ctx, provider, vizn.DefaultConfig())
//	id, _ := tool.Fire(ctx, "a red bicycle on a beach")
//	fmt.Println(id)
package vizn

import "context"

// Provider resolves named remote capabilities.
type Provider interface {
	// Resolve looks up the capability registered under handle and configures it.
	// It is called once per ImageTool.
	Resolve(ctx context.Context, handle string, config Config) (Capability, error)

	// Name returns the provider identifier (e.g., "steamship", "openai")
	Name() string
}

// Capability is a resolved, configured reference to a remote generation service.
// Implementations must be safe for concurrent use; they are never mutated after Resolve.
type Capability interface {
	// Handle returns the name the capability was resolved under.
	Handle() string

	// Generate submits one generation request and returns the in-flight task.
	Generate(ctx context.Context, req GenerateRequest) (Task, error)
}

// GenerateRequest is the payload submitted to a Capability.
type GenerateRequest struct {
	Text               string // Prompt text, already normalized
	AppendOutputToFile bool   // Ask the host to persist the output
}

// Task is one in-flight remote computation.
type Task interface {
	// ID returns the remote task identifier. It may be empty for hosts that
	// complete synchronously.
	ID() string

	// Wait blocks until the task is terminal and returns its output.
	// Cancelling ctx abandons the wait; it does not cancel the remote work.
	Wait(ctx context.Context) (*Output, error)
}

// Output is the terminal result of a Task.
type Output struct {
	Blocks []Block
}

// Block is a single output artifact persisted by the remote host.
type Block interface {
	ID() string
	Raw(ctx context.Context) ([]byte, error)
}

// Sizer is implemented by blocks that know their payload size without a fetch.
type Sizer interface {
	Size() int
}

// ImageResult contains the full outcome of a successful call.
type ImageResult struct {
	ID             string   // Identifier of the first block
	TaskID         string   // Remote task identifier
	RequestID      string   // Local request identifier, as seen in hooks
	BlockIDs       []string // Identifiers of every returned block, in order
	FirstBlockSize int      // Size of the first block's payload, -1 if unknown
}

// ToolDefinition describes the tool to an agent framework or planner.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      string // JSON Schema for the tool's arguments
}

// ToolInput is the argument shape advertised in ToolDefinition.Schema.
type ToolInput struct {
	Prompt string `json:"prompt" desc:"Detailed text description of the desired image"`
}

// Tool identity shown to callers.
const (
	ToolName = "GenerateImage"

	ToolDescription = `Useful for when you need to generate an image. Provide a detailed text prompt for the desired image when invoking this
tool. Always include any UUIDs as part of the final answer returned to the user.
Output: the UUID of a generated image`
)

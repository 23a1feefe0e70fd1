package vizn

// ImageRequest flows through the pipz pipeline.
// It contains the normalized prompt, metadata, and the task outcome.
type ImageRequest struct {
	// Input fields
	Prompt string // Normalized prompt text

	// Metadata fields
	RequestID    string // Unique identifier for this request
	ToolName     string // Name of the tool handling the request
	ProviderName string // Name of the provider being used
	Handle       string // Capability handle

	// Output fields (populated by pipeline)
	TaskID string  // Remote task identifier
	Output *Output // Terminal task output
}

package vizn

import "errors"

var (
	// ErrNoOutput is returned when a task completes without any output blocks.
	ErrNoOutput = errors.New("no output generated")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrUnsupportedPrompt is returned when a prompt value cannot be serialized to text.
	ErrUnsupportedPrompt = errors.New("unsupported prompt type")
)

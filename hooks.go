package vizn

import "github.com/zoobzio/capitan"

// Signals for hook events.
const (
	CapabilityResolved      = capitan.Signal("image.capability.resolved")
	CapabilityResolveFailed = capitan.Signal("image.capability.failed")
	RequestStarted          = capitan.Signal("image.request.started")
	TaskSubmitted           = capitan.Signal("image.task.submitted")
	RequestCompleted        = capitan.Signal("image.request.completed")
	RequestFailed           = capitan.Signal("image.request.failed")
	OutputEmpty             = capitan.Signal("image.output.empty")
	ProviderCallStarted     = capitan.Signal("image.provider.call.started")
	ProviderCallCompleted   = capitan.Signal("image.provider.call.completed")
	ProviderCallFailed      = capitan.Signal("image.provider.call.failed")
	TaskPolled              = capitan.Signal("image.task.polled")
)

// Keys for hook event fields.
var (
	// Request identification.
	RequestIDKey = capitan.NewStringKey("image.request.id")
	ToolKey      = capitan.NewStringKey("image.tool")
	PromptKey    = capitan.NewStringKey("image.prompt")

	// Capability configuration.
	HandleKey      = capitan.NewStringKey("image.handle")
	OutputCountKey = capitan.NewIntKey("image.output.count")
	OutputSizeKey  = capitan.NewStringKey("image.output.size")

	// Task lifecycle.
	TaskIDKey    = capitan.NewStringKey("image.task.id")
	TaskStateKey = capitan.NewStringKey("image.task.state")
	PollCountKey = capitan.NewIntKey("image.task.polls")

	// Output blocks.
	BlockCountKey = capitan.NewIntKey("image.blocks.count")
	BlockIDKey    = capitan.NewStringKey("image.block.id")
	BlockSizeKey  = capitan.NewIntKey("image.block.size")

	// Error information.
	ErrorKey     = capitan.NewStringKey("image.error")
	ErrorTypeKey = capitan.NewStringKey("image.error.type")

	// Provider information.
	ProviderKey = capitan.NewStringKey("image.provider")
	ModelKey    = capitan.NewStringKey("image.model")

	// Provider metrics.
	DurationMsKey = capitan.NewIntKey("image.duration.ms")

	// HTTP/API metadata.
	EndpointKey       = capitan.NewStringKey("image.http.endpoint")
	HTTPStatusCodeKey = capitan.NewIntKey("image.http.status.code")
	APIErrorTypeKey   = capitan.NewStringKey("image.api.error.type")
)

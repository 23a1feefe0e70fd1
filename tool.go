package vizn

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// ImageTool turns a text instruction into one remote image generation and
// returns the identifier of the generated artifact.
//
// The capability is resolved once by NewImageTool and shared read-only by all
// calls, so an ImageTool is safe for concurrent use.
type ImageTool struct {
	name       string
	config     Config
	capability Capability
	schema     string // Pre-computed JSON schema for ToolInput
	service    *Service
}

// NewImageTool resolves the configured capability and returns a ready tool.
// If resolution fails no tool is returned; the provider error is wrapped with
// the handle that failed.
func NewImageTool(ctx context.Context, provider Provider, config Config, opts ...Option) (*ImageTool, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("image tool: %w", err)
	}

	// Generate schema once at construction
	schema, err := generateJSONSchema[ToolInput]()
	if err != nil {
		return nil, fmt.Errorf("image tool: %w", err)
	}

	capability, err := provider.Resolve(ctx, config.Handle, config)
	if err != nil {
		capitan.Error(ctx, CapabilityResolveFailed,
			ToolKey.Field(ToolName),
			ProviderKey.Field(provider.Name()),
			HandleKey.Field(config.Handle),
			ErrorKey.Field(err.Error()),
		)
		return nil, fmt.Errorf("resolve capability %q: %w", config.Handle, err)
	}

	capitan.Info(ctx, CapabilityResolved,
		ToolKey.Field(ToolName),
		ProviderKey.Field(provider.Name()),
		HandleKey.Field(config.Handle),
		OutputCountKey.Field(config.OutputCount),
		OutputSizeKey.Field(config.OutputSize),
	)

	// Apply options to build pipeline
	pipeline := NewTerminal(capability)
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}

	return &ImageTool{
		name:       ToolName,
		config:     config,
		capability: capability,
		schema:     schema,
		service:    NewService(pipeline, ToolName, provider, config.Handle),
	}, nil
}

// Name returns the tool name.
func (t *ImageTool) Name() string {
	return t.name
}

// Config returns the configuration the capability was resolved with.
func (t *ImageTool) Config() Config {
	return t.config
}

// Capability returns the resolved capability.
func (t *ImageTool) Capability() Capability {
	return t.capability
}

// GetPipeline returns the internal pipeline for composition.
func (t *ImageTool) GetPipeline() pipz.Chainable[*ImageRequest] {
	return t.service.GetPipeline()
}

// Definition describes the tool for registration with an agent framework.
func (t *ImageTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        t.name,
		Description: ToolDescription,
		Schema:      t.schema,
	}
}

// Fire generates an image for prompt and returns the first block's identifier.
//
// prompt is normally a string; other values are serialized with NormalizePrompt.
// Only the first block is returned even if the host produced more; use
// FireWithDetails to see every block.
func (t *ImageTool) Fire(ctx context.Context, prompt any) (string, error) {
	result, err := t.fire(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

// FireWithDetails generates an image and returns the full result, including
// the identifiers of every returned block.
func (t *ImageTool) FireWithDetails(ctx context.Context, prompt any) (ImageResult, error) {
	return t.fire(ctx, prompt, true)
}

// fire runs one generation. Blocks after the first are only read when allBlocks is set.
func (t *ImageTool) fire(ctx context.Context, prompt any, allBlocks bool) (ImageResult, error) {
	text, err := NormalizePrompt(prompt)
	if err != nil {
		return ImageResult{}, fmt.Errorf("[%s] %w", t.name, err)
	}

	processed, err := t.service.Execute(ctx, text)
	if err != nil {
		return ImageResult{}, err
	}

	blocks := processed.Output.Blocks
	first := blocks[0]
	size := blockSize(ctx, first)

	ids := []string{first.ID()}
	if allBlocks {
		for _, b := range blocks[1:] {
			ids = append(ids, b.ID())
		}
	}

	capitan.Info(ctx, RequestCompleted,
		RequestIDKey.Field(processed.RequestID),
		ToolKey.Field(t.name),
		ProviderKey.Field(processed.ProviderName),
		HandleKey.Field(processed.Handle),
		TaskIDKey.Field(processed.TaskID),
		BlockCountKey.Field(len(blocks)),
		BlockIDKey.Field(first.ID()),
		BlockSizeKey.Field(size),
	)

	return ImageResult{
		ID:             first.ID(),
		TaskID:         processed.TaskID,
		RequestID:      processed.RequestID,
		BlockIDs:       ids,
		FirstBlockSize: size,
	}, nil
}

// Run adapts the tool to agent frameworks that pass arguments as a map.
// It returns the block identifier as the tool's output.
func (t *ImageTool) Run(ctx context.Context, args map[string]any) (any, error) {
	return t.Fire(ctx, promptFromArgs(args))
}

// blockSize reports the payload size of b for diagnostics, or -1 when it
// cannot be determined. It never fails the call.
func blockSize(ctx context.Context, b Block) int {
	if s, ok := b.(Sizer); ok {
		return s.Size()
	}
	raw, err := b.Raw(ctx)
	if err != nil {
		return -1
	}
	return len(raw)
}

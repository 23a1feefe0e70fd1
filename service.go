package vizn

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Service runs image requests through a pipz pipeline.
// It owns request identity, hook emission, and the empty-output check.
type Service struct {
	pipeline     pipz.Chainable[*ImageRequest]
	toolName     string
	providerName string
	handle       string
}

// NewService creates a new Service with the given pipeline, tool name, provider, and handle.
func NewService(pipeline pipz.Chainable[*ImageRequest], toolName string, provider Provider, handle string) *Service {
	return &Service{
		pipeline:     pipeline,
		toolName:     toolName,
		providerName: provider.Name(),
		handle:       handle,
	}
}

// NewTerminal creates the terminal processor that submits the prompt to the
// capability and waits for the task to finish.
func NewTerminal(capability Capability) pipz.Chainable[*ImageRequest] {
	return pipz.Apply("image-generate", func(ctx context.Context, req *ImageRequest) (*ImageRequest, error) {
		task, err := capability.Generate(ctx, GenerateRequest{
			Text:               req.Prompt,
			AppendOutputToFile: true,
		})
		if err != nil {
			return req, err
		}
		req.TaskID = task.ID()

		capitan.Info(ctx, TaskSubmitted,
			RequestIDKey.Field(req.RequestID),
			ToolKey.Field(req.ToolName),
			ProviderKey.Field(req.ProviderName),
			HandleKey.Field(req.Handle),
			TaskIDKey.Field(req.TaskID),
		)

		output, err := task.Wait(ctx)
		if err != nil {
			return req, err
		}
		req.Output = output
		return req, nil
	})
}

// GetPipeline returns the internal pipeline for composition.
func (s *Service) GetPipeline() pipz.Chainable[*ImageRequest] {
	return s.pipeline
}

// Execute processes a normalized prompt through the pipeline and returns the
// completed request. The request always carries at least one output block on
// success.
//
// Errors raised by the provider are returned as-is, with pipeline wrapping
// removed. A task that finishes without blocks fails with ErrNoOutput.
func (s *Service) Execute(ctx context.Context, prompt string) (*ImageRequest, error) {
	requestID := uuid.New().String()

	request := &ImageRequest{
		Prompt:       prompt,
		RequestID:    requestID,
		ToolName:     s.toolName,
		ProviderName: s.providerName,
		Handle:       s.handle,
	}

	capitan.Info(ctx, RequestStarted,
		RequestIDKey.Field(requestID),
		ToolKey.Field(s.toolName),
		ProviderKey.Field(s.providerName),
		HandleKey.Field(s.handle),
		PromptKey.Field(prompt),
	)

	processed, err := s.pipeline.Process(ctx, request)
	if err != nil {
		errType := errorType(err)
		err = unwrapPipelineError(err)
		capitan.Error(ctx, RequestFailed,
			RequestIDKey.Field(requestID),
			ToolKey.Field(s.toolName),
			ProviderKey.Field(s.providerName),
			HandleKey.Field(s.handle),
			ErrorKey.Field(err.Error()),
			ErrorTypeKey.Field(errType),
		)
		return nil, err
	}

	if processed.Output == nil || len(processed.Output.Blocks) == 0 {
		capitan.Error(ctx, OutputEmpty,
			RequestIDKey.Field(requestID),
			ToolKey.Field(s.toolName),
			ProviderKey.Field(s.providerName),
			HandleKey.Field(s.handle),
			TaskIDKey.Field(processed.TaskID),
			BlockCountKey.Field(0),
		)
		return nil, fmt.Errorf("[%s] unable to generate image: %w", s.toolName, ErrNoOutput)
	}

	return processed, nil
}

// errorType classifies a pipeline failure for request.failed.
func errorType(err error) string {
	var pipeErr *pipz.Error[*ImageRequest]
	if errors.As(err, &pipeErr) {
		switch {
		case pipeErr.IsTimeout():
			return "timeout"
		case pipeErr.IsCanceled():
			return "canceled"
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "provider_error"
}

// unwrapPipelineError strips pipz error wrappers so callers see the
// provider's own error value.
func unwrapPipelineError(err error) error {
	for {
		var pipeErr *pipz.Error[*ImageRequest]
		if !errors.As(err, &pipeErr) || pipeErr.Err == nil {
			return err
		}
		err = pipeErr.Err
	}
}

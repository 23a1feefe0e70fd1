// Package openai implements a vizn Provider for the OpenAI image generation API.
//
// The images endpoint answers synchronously, so every task it returns is
// already terminal when Generate returns.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/vizn"
)

// Provider implements the vizn Provider interface for OpenAI API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "dall-e-2", "dall-e-3"
	BaseURL string        // Optional, defaults to "https://api.openai.com/v1"
	Timeout time.Duration // Optional, defaults to 60s
}

// Handles this provider can resolve. An empty handle uses the configured model.
var models = map[string]string{
	"":         "",
	"dall-e":   "",
	"dall-e-2": "dall-e-2",
	"dall-e-3": "dall-e-3",
}

// limits lists the sizes and the largest n each model accepts. Models not
// listed here are passed through unchecked.
var limits = map[string]struct {
	sizes []string
	maxN  int
}{
	"dall-e-2": {sizes: []string{"256x256", "512x512", "1024x1024"}, maxN: 10},
	"dall-e-3": {sizes: []string{"1024x1024", "1792x1024", "1024x1792"}, maxN: 1},
}

const endpoint = "images/generations"

// New creates a new OpenAI provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "dall-e-2"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		baseURL: config.BaseURL,
		name:    "openai",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Resolve binds the image endpoint to config. No request is made, so an
// unknown handle, a missing API key, or a size or count the model does not
// accept fails here rather than on the first call.
func (p *Provider) Resolve(_ context.Context, handle string, config vizn.Config) (vizn.Capability, error) {
	model, ok := models[handle]
	if !ok {
		return nil, fmt.Errorf("openai: unknown image model %q", handle)
	}
	if model == "" {
		model = p.model
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	if l, ok := limits[model]; ok {
		if !slices.Contains(l.sizes, config.OutputSize) {
			return nil, fmt.Errorf("openai: %w: %s does not support size %q", vizn.ErrInvalidConfig, model, config.OutputSize)
		}
		if config.OutputCount < 1 || config.OutputCount > l.maxN {
			return nil, fmt.Errorf("openai: %w: %s accepts 1 to %d images, got %d", vizn.ErrInvalidConfig, model, l.maxN, config.OutputCount)
		}
	}

	return &capability{
		provider: p,
		handle:   handle,
		model:    model,
		n:        config.OutputCount,
		size:     config.OutputSize,
	}, nil
}

// capability holds the fixed request parameters for one resolved model.
type capability struct {
	provider *Provider
	handle   string
	model    string
	n        int
	size     string
}

func (c *capability) Handle() string {
	return c.handle
}

// Generate calls the images endpoint and returns a completed task. The host
// stores each image and answers with its URL, which becomes the block ID.
func (c *capability) Generate(ctx context.Context, req vizn.GenerateRequest) (vizn.Task, error) {
	p := c.provider
	startTime := time.Now()

	// Emit provider.call.started hook
	capitan.Info(ctx, vizn.ProviderCallStarted,
		vizn.ProviderKey.Field(p.name),
		vizn.ModelKey.Field(c.model),
		vizn.EndpointKey.Field(endpoint),
	)

	jsonBody, err := json.Marshal(imageRequest{
		Model:          c.model,
		Prompt:         req.Text,
		N:              c.n,
		Size:           c.size,
		ResponseFormat: "url",
	})
	if err != nil {
		return nil, c.fail(ctx, startTime, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, c.fail(ctx, startTime, fmt.Errorf("failed to create request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.fail(ctx, startTime, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(ctx, startTime, fmt.Errorf("failed to read response: %w", err))
	}

	duration := time.Since(startTime)

	// Handle errors
	if resp.StatusCode != http.StatusOK {
		fields := []capitan.Field{
			vizn.ProviderKey.Field(p.name),
			vizn.ModelKey.Field(c.model),
			vizn.EndpointKey.Field(endpoint),
			vizn.HTTPStatusCodeKey.Field(resp.StatusCode),
			vizn.DurationMsKey.Field(int(duration.Milliseconds())),
		}

		var errorResp errorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			fields = append(fields,
				vizn.ErrorKey.Field(errorResp.Error.Message),
				vizn.APIErrorTypeKey.Field(errorResp.Error.Type),
			)
			capitan.Error(ctx, vizn.ProviderCallFailed, fields...)

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("rate limit exceeded: %s", errorResp.Error.Message)
			}
			return nil, fmt.Errorf("openai error (%d): %s", resp.StatusCode, errorResp.Error.Message)
		}

		fields = append(fields, vizn.ErrorKey.Field(fmt.Sprintf("status %d", resp.StatusCode)))
		capitan.Error(ctx, vizn.ProviderCallFailed, fields...)
		return nil, fmt.Errorf("openai error: status %d", resp.StatusCode)
	}

	var imageResp imageResponse
	if err := json.Unmarshal(body, &imageResp); err != nil {
		return nil, c.fail(ctx, startTime, fmt.Errorf("failed to parse response: %w", err))
	}

	blocks := make([]vizn.Block, 0, len(imageResp.Data))
	for i, d := range imageResp.Data {
		if d.URL == "" {
			return nil, c.fail(ctx, startTime, fmt.Errorf("%w: image %d", errMissingURL, i))
		}
		blocks = append(blocks, &block{
			url:           d.URL,
			revisedPrompt: d.RevisedPrompt,
			client:        p.httpClient,
		})
	}

	capitan.Info(ctx, vizn.ProviderCallCompleted,
		vizn.ProviderKey.Field(p.name),
		vizn.ModelKey.Field(c.model),
		vizn.EndpointKey.Field(endpoint),
		vizn.HTTPStatusCodeKey.Field(resp.StatusCode),
		vizn.DurationMsKey.Field(int(duration.Milliseconds())),
		vizn.BlockCountKey.Field(len(blocks)),
	)

	return &task{output: &vizn.Output{Blocks: blocks}}, nil
}

var errMissingURL = errors.New("openai: response has no image url")

// fail emits provider.call.failed for errors that never produced a status.
func (c *capability) fail(ctx context.Context, start time.Time, err error) error {
	capitan.Error(ctx, vizn.ProviderCallFailed,
		vizn.ProviderKey.Field(c.provider.name),
		vizn.ModelKey.Field(c.model),
		vizn.EndpointKey.Field(endpoint),
		vizn.DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		vizn.ErrorKey.Field(err.Error()),
	)
	return err
}

// task is always terminal.
type task struct {
	output *vizn.Output
}

func (*task) ID() string {
	return ""
}

func (t *task) Wait(_ context.Context) (*vizn.Output, error) {
	return t.output, nil
}

// block is an image stored by the host. Its URL identifies it and Raw
// downloads it.
type block struct {
	url           string
	revisedPrompt string
	client        *http.Client
}

func (b *block) ID() string {
	return b.url
}

func (b *block) Raw(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// RevisedPrompt returns the prompt the model actually used, if it rewrote it.
func (b *block) RevisedPrompt() string {
	return b.revisedPrompt
}

// Request/Response types for OpenAI API

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
}

type imageData struct {
	URL           string `json:"url,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

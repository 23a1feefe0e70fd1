// Package steamship implements a vizn Provider backed by a remote plugin host.
//
// Plugins are resolved into instances once; each generation becomes an
// asynchronous host task that is polled until it succeeds or fails.
package steamship

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/vizn"
)

// Task states reported by the host.
const (
	StateWaiting   = "waiting"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// ErrTaskFailed is returned by Wait when the host marks a task as failed.
var ErrTaskFailed = errors.New("task failed")

// Provider implements the vizn Provider interface for a plugin host.
type Provider struct {
	apiKey       string
	workspace    string
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
	name         string
}

// Config holds configuration for the plugin host provider.
type Config struct {
	APIKey       string
	Workspace    string        // Optional workspace handle
	BaseURL      string        // Optional, defaults to "https://api.steamship.com/api/v1"
	Timeout      time.Duration // Per HTTP request, defaults to 30s
	PollInterval time.Duration // Delay between task status checks, defaults to 1s
}

// New creates a new plugin host provider.
func New(config Config) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.steamship.com/api/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}

	return &Provider{
		apiKey:       config.APIKey,
		workspace:    config.Workspace,
		baseURL:      strings.TrimRight(config.BaseURL, "/"),
		pollInterval: config.PollInterval,
		name:         "steamship",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Resolve creates (or fetches) an instance of the plugin registered under handle,
// configured with the output count and size from config.
func (p *Provider) Resolve(ctx context.Context, handle string, config vizn.Config) (vizn.Capability, error) {
	var created createInstanceData
	if _, err := p.post(ctx, "plugin/instance/create", createInstanceRequest{
		PluginHandle:  handle,
		Config:        config.PluginConfig(),
		FetchIfExists: true,
	}, &created); err != nil {
		return nil, err
	}

	inst := created.instance()
	if inst.ID == "" {
		return nil, fmt.Errorf("steamship: plugin %q resolved without an instance id", handle)
	}

	return &PluginInstance{
		provider: p,
		id:       inst.ID,
		handle:   handle,
	}, nil
}

// PluginInstance is a resolved plugin. It is immutable and safe for concurrent use.
type PluginInstance struct {
	provider *Provider
	id       string
	handle   string
}

// ID returns the host's instance identifier.
func (i *PluginInstance) ID() string {
	return i.id
}

// Handle returns the plugin handle the instance was resolved under.
func (i *PluginInstance) Handle() string {
	return i.handle
}

// Generate submits a generation request and returns the host task.
func (i *PluginInstance) Generate(ctx context.Context, req vizn.GenerateRequest) (vizn.Task, error) {
	var out generateData
	status, err := i.provider.post(ctx, "plugin/instance/generate", generateRequest{
		PluginInstanceID:   i.id,
		Text:               req.Text,
		AppendOutputToFile: req.AppendOutputToFile,
	}, &out)
	if err != nil {
		return nil, err
	}

	t := &Task{provider: i.provider}
	t.update(status, out)
	return t, nil
}

// Task is an asynchronous host task.
// A Task is owned by a single caller; Wait must not be called concurrently.
type Task struct {
	provider *Provider
	id       string
	state    string
	message  string
	blocks   []blockData
}

// ID returns the host task identifier.
func (t *Task) ID() string {
	return t.id
}

// State returns the last known task state.
func (t *Task) State() string {
	return t.state
}

// Wait polls the host until the task is terminal.
// The wait has no deadline of its own; bound it through ctx.
func (t *Task) Wait(ctx context.Context) (*vizn.Output, error) {
	polls := 0
	ticker := time.NewTicker(t.provider.pollInterval)
	defer ticker.Stop()

	for {
		switch t.state {
		case StateSucceeded:
			return t.output(), nil
		case StateFailed:
			return nil, fmt.Errorf("steamship: %w: %s", ErrTaskFailed, t.message)
		}

		if t.id == "" {
			return nil, fmt.Errorf("steamship: task in state %q has no id", t.state)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var out generateData
		status, err := t.provider.post(ctx, "task/status", taskStatusRequest{TaskID: t.id}, &out)
		if err != nil {
			return nil, err
		}
		t.update(status, out)
		polls++

		capitan.Info(ctx, vizn.TaskPolled,
			vizn.ProviderKey.Field(t.provider.name),
			vizn.TaskIDKey.Field(t.id),
			vizn.TaskStateKey.Field(t.state),
			vizn.PollCountKey.Field(polls),
		)
	}
}

// update applies a status envelope and any output data to the task.
func (t *Task) update(status *taskStatus, out generateData) {
	if status != nil {
		if status.TaskID != "" {
			t.id = status.TaskID
		}
		t.state = status.State
		t.message = status.StatusMessage
	}
	// Synchronous plugins answer with data and no task status
	if status == nil || status.State == "" {
		t.state = StateSucceeded
	}
	if len(out.Blocks) > 0 {
		t.blocks = out.Blocks
	}
}

func (t *Task) output() *vizn.Output {
	blocks := make([]vizn.Block, len(t.blocks))
	for i, b := range t.blocks {
		blocks[i] = &Block{provider: t.provider, id: b.ID, mimeType: b.MimeType}
	}
	return &vizn.Output{Blocks: blocks}
}

// Block is an output block persisted on the host.
type Block struct {
	provider *Provider
	id       string
	mimeType string
}

// ID returns the block identifier.
func (b *Block) ID() string {
	return b.id
}

// MimeType returns the block's content type as reported by the host.
func (b *Block) MimeType() string {
	return b.mimeType
}

// Raw downloads the block payload from the host.
func (b *Block) Raw(ctx context.Context) ([]byte, error) {
	return b.provider.do(ctx, "block/raw", blockRawRequest{ID: b.id})
}

// post sends a JSON request and decodes the response envelope.
// data receives the envelope's data field when non-nil.
func (p *Provider) post(ctx context.Context, endpoint string, payload, data any) (*taskStatus, error) {
	body, err := p.do(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if data != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return nil, fmt.Errorf("failed to parse response data: %w", err)
		}
	}
	return env.Status, nil
}

// do performs one HTTP call to the host and returns the raw body.
func (p *Provider) do(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	startTime := time.Now()

	capitan.Info(ctx, vizn.ProviderCallStarted,
		vizn.ProviderKey.Field(p.name),
		vizn.EndpointKey.Field(endpoint),
	)

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, p.fail(ctx, endpoint, startTime, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, p.fail(ctx, endpoint, startTime, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.workspace != "" {
		req.Header.Set("X-Workspace-Handle", p.workspace)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, p.fail(ctx, endpoint, startTime, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.fail(ctx, endpoint, startTime, fmt.Errorf("failed to read response: %w", err))
	}

	duration := time.Since(startTime)

	if resp.StatusCode != http.StatusOK {
		msg := errorMessage(body)
		capitan.Error(ctx, vizn.ProviderCallFailed,
			vizn.ProviderKey.Field(p.name),
			vizn.EndpointKey.Field(endpoint),
			vizn.HTTPStatusCodeKey.Field(resp.StatusCode),
			vizn.DurationMsKey.Field(int(duration.Milliseconds())),
			vizn.ErrorKey.Field(msg),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: endpoint, Message: msg}
	}

	capitan.Info(ctx, vizn.ProviderCallCompleted,
		vizn.ProviderKey.Field(p.name),
		vizn.EndpointKey.Field(endpoint),
		vizn.HTTPStatusCodeKey.Field(resp.StatusCode),
		vizn.DurationMsKey.Field(int(duration.Milliseconds())),
	)

	return body, nil
}

// fail emits provider.call.failed for errors that never produced a status.
func (p *Provider) fail(ctx context.Context, endpoint string, start time.Time, err error) error {
	capitan.Error(ctx, vizn.ProviderCallFailed,
		vizn.ProviderKey.Field(p.name),
		vizn.EndpointKey.Field(endpoint),
		vizn.DurationMsKey.Field(int(time.Since(start).Milliseconds())),
		vizn.ErrorKey.Field(err.Error()),
	)
	return err
}

// APIError is returned for non-200 responses from the host.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("steamship error (%d) on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Status != nil && env.Status.StatusMessage != "" {
			return env.Status.StatusMessage
		}
		if env.Reason != "" {
			return env.Reason
		}
		if env.Message != "" {
			return env.Message
		}
	}
	if len(body) == 0 {
		return "empty response"
	}
	return strings.TrimSpace(string(body))
}

// Request/Response types for the plugin host API

type envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Status  *taskStatus     `json:"status,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Message string          `json:"message,omitempty"`
}

type taskStatus struct {
	TaskID        string `json:"taskId,omitempty"`
	State         string `json:"state,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

type createInstanceRequest struct {
	PluginHandle  string         `json:"pluginHandle"`
	Config        map[string]any `json:"config"`
	FetchIfExists bool           `json:"fetchIfExists"`
}

type instanceData struct {
	ID     string `json:"id"`
	Handle string `json:"handle,omitempty"`
}

// createInstanceData accepts the instance either bare or nested under pluginInstance.
type createInstanceData struct {
	instanceData
	PluginInstance *instanceData `json:"pluginInstance,omitempty"`
}

func (d createInstanceData) instance() instanceData {
	if d.PluginInstance != nil {
		return *d.PluginInstance
	}
	return d.instanceData
}

type generateRequest struct {
	PluginInstanceID   string `json:"pluginInstanceId"`
	Text               string `json:"text"`
	AppendOutputToFile bool   `json:"appendOutputToFile"`
}

type generateData struct {
	Blocks []blockData `json:"blocks"`
}

type blockData struct {
	ID       string `json:"id"`
	MimeType string `json:"mimeType,omitempty"`
}

type taskStatusRequest struct {
	TaskID string `json:"taskId"`
}

type blockRawRequest struct {
	ID string `json:"id"`
}

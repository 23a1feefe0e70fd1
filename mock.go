package vizn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// MockProvider simulates a remote image host for testing.
// By default every generation yields one block with a deterministic ID
// ("mock-1", "mock-2", ...). It records every resolve and generate call.
type MockProvider struct {
	name       string
	resolveErr error
	generate   func(ctx context.Context, req GenerateRequest) (*Output, error)

	counter  atomic.Int64
	mu       sync.Mutex
	configs  []Config
	requests []GenerateRequest
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithName("mock")
}

// NewMockProviderWithName creates a new mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	m := &MockProvider{name: name}
	m.generate = func(_ context.Context, req GenerateRequest) (*Output, error) {
		n := m.counter.Add(1)
		return &Output{Blocks: []Block{
			NewMockBlock(fmt.Sprintf("mock-%d", n), []byte(req.Text)),
		}}, nil
	}
	return m
}

// NewMockProviderWithBlocks creates a mock that always returns blocks with the given IDs.
// With no IDs every task completes with an empty output.
func NewMockProviderWithBlocks(ids ...string) *MockProvider {
	m := &MockProvider{name: "mock-fixed"}
	m.generate = func(_ context.Context, _ GenerateRequest) (*Output, error) {
		blocks := make([]Block, len(ids))
		for i, id := range ids {
			blocks[i] = NewMockBlock(id, []byte("image:"+id))
		}
		return &Output{Blocks: blocks}, nil
	}
	return m
}

// NewMockProviderWithError creates a mock whose generations always fail.
func NewMockProviderWithError(errMsg string) *MockProvider {
	m := &MockProvider{name: "mock-error"}
	m.generate = func(_ context.Context, _ GenerateRequest) (*Output, error) {
		return nil, errors.New(errMsg)
	}
	return m
}

// NewMockProviderWithResolveError creates a mock that cannot resolve any capability.
func NewMockProviderWithResolveError(errMsg string) *MockProvider {
	m := NewMockProviderWithName("mock-unresolvable")
	m.resolveErr = errors.New(errMsg)
	return m
}

// NewMockProviderWithCallback creates a mock that calls a function to produce each output.
func NewMockProviderWithCallback(callback func(ctx context.Context, req GenerateRequest) (*Output, error)) *MockProvider {
	return &MockProvider{name: "mock-callback", generate: callback}
}

// WithName renames the provider and returns it, so hooks can be told apart.
func (m *MockProvider) WithName(name string) *MockProvider {
	m.name = name
	return m
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// Resolve returns a capability bound to this mock.
func (m *MockProvider) Resolve(_ context.Context, handle string, config Config) (Capability, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	m.mu.Lock()
	m.configs = append(m.configs, config)
	m.mu.Unlock()
	return &mockCapability{provider: m, handle: handle}, nil
}

// Requests returns a copy of every submitted generation request.
func (m *MockProvider) Requests() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]GenerateRequest, len(m.requests))
	copy(reqs, m.requests)
	return reqs
}

// ResolvedConfigs returns a copy of every configuration passed to Resolve.
func (m *MockProvider) ResolvedConfigs() []Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	configs := make([]Config, len(m.configs))
	copy(configs, m.configs)
	return configs
}

// mockCapability forwards generations to its provider.
type mockCapability struct {
	provider *MockProvider
	handle   string
}

func (c *mockCapability) Handle() string {
	return c.handle
}

func (c *mockCapability) Generate(ctx context.Context, req GenerateRequest) (Task, error) {
	c.provider.mu.Lock()
	c.provider.requests = append(c.provider.requests, req)
	n := len(c.provider.requests)
	c.provider.mu.Unlock()

	return &mockTask{
		id:  fmt.Sprintf("task-%d", n),
		run: func(ctx context.Context) (*Output, error) { return c.provider.generate(ctx, req) },
	}, nil
}

// mockTask runs its generation when waited on.
type mockTask struct {
	id  string
	run func(ctx context.Context) (*Output, error)
}

func (t *mockTask) ID() string {
	return t.id
}

func (t *mockTask) Wait(ctx context.Context) (*Output, error) {
	return t.run(ctx)
}

// MockBlock is an in-memory Block that counts how often it is touched.
type MockBlock struct {
	id       string
	data     []byte
	accesses atomic.Int64
}

// NewMockBlock creates a block holding data.
func NewMockBlock(id string, data []byte) *MockBlock {
	return &MockBlock{id: id, data: data}
}

// ID returns the block identifier.
func (b *MockBlock) ID() string {
	b.accesses.Add(1)
	return b.id
}

// Raw returns the block payload.
func (b *MockBlock) Raw(_ context.Context) ([]byte, error) {
	b.accesses.Add(1)
	return b.data, nil
}

// Accesses returns how many times ID or Raw was called.
func (b *MockBlock) Accesses() int {
	return int(b.accesses.Load())
}

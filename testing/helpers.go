// Package testing provides utilities for testing vizn image tools.
package testing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/vizn"
)

// Provider name constants for test helpers.
const (
	SequencedProviderName = "sequenced-mock"
	FailingProviderName   = "failing-mock"
)

// OutputBuilder provides a fluent interface for constructing task outputs.
type OutputBuilder struct {
	blocks []vizn.Block
}

// NewOutputBuilder creates a new OutputBuilder.
func NewOutputBuilder() *OutputBuilder {
	return &OutputBuilder{}
}

// WithBlock appends a block holding data.
func (b *OutputBuilder) WithBlock(id string, data []byte) *OutputBuilder {
	b.blocks = append(b.blocks, vizn.NewMockBlock(id, data))
	return b
}

// WithBlocks appends one block per id, each holding "image:<id>".
func (b *OutputBuilder) WithBlocks(ids ...string) *OutputBuilder {
	for _, id := range ids {
		b.WithBlock(id, []byte("image:"+id))
	}
	return b
}

// Build returns a fresh output. Blocks are shared between outputs built from
// the same builder.
func (b *OutputBuilder) Build() *vizn.Output {
	blocks := make([]vizn.Block, len(b.blocks))
	copy(blocks, b.blocks)
	return &vizn.Output{Blocks: blocks}
}

// task is a Task whose completion is computed on Wait.
type task struct {
	id   string
	wait func(ctx context.Context) (*vizn.Output, error)
}

func (t *task) ID() string {
	return t.id
}

func (t *task) Wait(ctx context.Context) (*vizn.Output, error) {
	return t.wait(ctx)
}

// capability adapts a generate function to vizn.Capability.
type capability struct {
	handle   string
	generate func(ctx context.Context, req vizn.GenerateRequest) (vizn.Task, error)
}

func (c *capability) Handle() string {
	return c.handle
}

func (c *capability) Generate(ctx context.Context, req vizn.GenerateRequest) (vizn.Task, error) {
	return c.generate(ctx, req)
}

// SequencedProvider returns outputs in sequence.
// After all outputs are exhausted, it returns the last output repeatedly.
type SequencedProvider struct {
	outputs [][]string
	index   atomic.Int64
}

// NewSequencedProvider creates a provider whose n-th task yields blocks with
// the n-th list of ids. An empty list produces an empty output.
func NewSequencedProvider(outputs ...[]string) *SequencedProvider {
	if len(outputs) == 0 {
		outputs = [][]string{{}}
	}
	return &SequencedProvider{
		outputs: outputs,
	}
}

// Resolve returns a capability that draws from the sequence.
func (p *SequencedProvider) Resolve(_ context.Context, handle string, _ vizn.Config) (vizn.Capability, error) {
	return &capability{
		handle: handle,
		generate: func(_ context.Context, _ vizn.GenerateRequest) (vizn.Task, error) {
			idx := p.index.Add(1) - 1

			// Clamp to last output if exhausted
			if int(idx) >= len(p.outputs) {
				idx = int64(len(p.outputs) - 1)
			}
			output := NewOutputBuilder().WithBlocks(p.outputs[idx]...).Build()

			return &task{
				id:   fmt.Sprintf("seq-%d", idx+1),
				wait: func(context.Context) (*vizn.Output, error) { return output, nil },
			}, nil
		},
	}, nil
}

// Name returns the provider identifier.
func (*SequencedProvider) Name() string {
	return SequencedProviderName
}

// CallCount returns the number of generations submitted.
func (p *SequencedProvider) CallCount() int {
	return int(p.index.Load())
}

// Reset resets the call counter.
func (p *SequencedProvider) Reset() {
	p.index.Store(0)
}

// FailingProvider fails a specified number of times before succeeding.
// Failures surface from Task.Wait, the way a remote task fails.
type FailingProvider struct {
	failCount    int
	currentCount atomic.Int64
	successID    string
	failError    string
}

// NewFailingProvider creates a provider that fails failCount times then succeeds.
func NewFailingProvider(failCount int) *FailingProvider {
	return &FailingProvider{
		failCount: failCount,
		successID: "recovered",
		failError: "simulated task failure",
	}
}

// WithSuccessID sets the block id returned after failures are exhausted.
func (p *FailingProvider) WithSuccessID(id string) *FailingProvider {
	p.successID = id
	return p
}

// WithFailError sets the error message for failures.
func (p *FailingProvider) WithFailError(errMsg string) *FailingProvider {
	p.failError = errMsg
	return p
}

// Resolve returns a capability whose tasks fail until failCount is reached.
func (p *FailingProvider) Resolve(_ context.Context, handle string, _ vizn.Config) (vizn.Capability, error) {
	return &capability{
		handle: handle,
		generate: func(_ context.Context, _ vizn.GenerateRequest) (vizn.Task, error) {
			count := p.currentCount.Add(1)
			return &task{
				id: fmt.Sprintf("fail-%d", count),
				wait: func(context.Context) (*vizn.Output, error) {
					if int(count) <= p.failCount {
						return nil, fmt.Errorf("%s (attempt %d/%d)", p.failError, count, p.failCount)
					}
					return NewOutputBuilder().WithBlocks(p.successID).Build(), nil
				},
			}, nil
		},
	}, nil
}

// Name returns the provider identifier.
func (*FailingProvider) Name() string {
	return FailingProviderName
}

// CallCount returns the number of generations submitted.
func (p *FailingProvider) CallCount() int {
	return int(p.currentCount.Load())
}

// Reset resets the call counter.
func (p *FailingProvider) Reset() {
	p.currentCount.Store(0)
}

// RecordedCall represents a single generation submitted to a provider.
type RecordedCall struct {
	Handle  string
	Request vizn.GenerateRequest
}

// CallRecorder wraps a provider and records every resolve and generation.
type CallRecorder struct {
	provider vizn.Provider
	resolves []vizn.Config
	calls    []RecordedCall
	mu       sync.Mutex
}

// NewCallRecorder wraps a provider with call recording.
func NewCallRecorder(provider vizn.Provider) *CallRecorder {
	return &CallRecorder{
		provider: provider,
		calls:    make([]RecordedCall, 0),
	}
}

// Resolve delegates to the wrapped provider and records the config.
// Generations on the returned capability are recorded too.
func (r *CallRecorder) Resolve(ctx context.Context, handle string, config vizn.Config) (vizn.Capability, error) {
	r.mu.Lock()
	r.resolves = append(r.resolves, config)
	r.mu.Unlock()

	inner, err := r.provider.Resolve(ctx, handle, config)
	if err != nil {
		return nil, err
	}

	return &capability{
		handle: inner.Handle(),
		generate: func(ctx context.Context, req vizn.GenerateRequest) (vizn.Task, error) {
			r.mu.Lock()
			r.calls = append(r.calls, RecordedCall{Handle: inner.Handle(), Request: req})
			r.mu.Unlock()
			return inner.Generate(ctx, req)
		},
	}, nil
}

// Name returns the wrapped provider's name.
func (r *CallRecorder) Name() string {
	return r.provider.Name()
}

// Resolves returns a copy of every config passed to Resolve.
func (r *CallRecorder) Resolves() []vizn.Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolves := make([]vizn.Config, len(r.resolves))
	copy(resolves, r.resolves)
	return resolves
}

// Calls returns a copy of all recorded calls.
func (r *CallRecorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]RecordedCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallCount returns the number of calls recorded.
func (r *CallRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// LastCall returns the most recent call, or nil if no calls made.
func (r *CallRecorder) LastCall() *RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return nil
	}
	call := r.calls[len(r.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves = nil
	r.calls = make([]RecordedCall, 0)
}

// LatencyProvider wraps a provider and makes every task take longer to finish.
type LatencyProvider struct {
	provider vizn.Provider
	delay    time.Duration
}

// NewLatencyProvider wraps a provider with artificial delay.
// The delay is applied before each task completes and respects context cancellation.
func NewLatencyProvider(provider vizn.Provider, delay time.Duration) *LatencyProvider {
	return &LatencyProvider{
		provider: provider,
		delay:    delay,
	}
}

// Resolve delegates to the wrapped provider and slows down its tasks.
func (p *LatencyProvider) Resolve(ctx context.Context, handle string, config vizn.Config) (vizn.Capability, error) {
	inner, err := p.provider.Resolve(ctx, handle, config)
	if err != nil {
		return nil, err
	}

	return &capability{
		handle: inner.Handle(),
		generate: func(ctx context.Context, req vizn.GenerateRequest) (vizn.Task, error) {
			t, err := inner.Generate(ctx, req)
			if err != nil {
				return nil, err
			}
			return &task{
				id: t.ID(),
				wait: func(ctx context.Context) (*vizn.Output, error) {
					if p.delay > 0 {
						select {
						case <-time.After(p.delay):
							// Delay completed
						case <-ctx.Done():
							return nil, ctx.Err()
						}
					}
					return t.Wait(ctx)
				},
			}, nil
		},
	}, nil
}

// Name returns the wrapped provider's name.
func (p *LatencyProvider) Name() string {
	return p.provider.Name()
}

// ResultAccumulator tracks results across multiple calls.
type ResultAccumulator struct {
	mu        sync.Mutex
	ids       map[string]int
	blocks    atomic.Int64
	callCount atomic.Int64
}

// NewResultAccumulator creates a new result accumulator.
func NewResultAccumulator() *ResultAccumulator {
	return &ResultAccumulator{ids: make(map[string]int)}
}

// Add accumulates one call's result.
func (a *ResultAccumulator) Add(result vizn.ImageResult) {
	a.mu.Lock()
	a.ids[result.ID]++
	a.mu.Unlock()
	a.blocks.Add(int64(len(result.BlockIDs)))
	a.callCount.Add(1)
}

// UniqueIDs returns how many distinct first-block ids were seen.
func (a *ResultAccumulator) UniqueIDs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ids)
}

// Blocks returns the total number of block ids seen.
func (a *ResultAccumulator) Blocks() int {
	return int(a.blocks.Load())
}

// CallCount returns number of calls accumulated.
func (a *ResultAccumulator) CallCount() int {
	return int(a.callCount.Load())
}

// Reset clears all accumulated values.
func (a *ResultAccumulator) Reset() {
	a.mu.Lock()
	a.ids = make(map[string]int)
	a.mu.Unlock()
	a.blocks.Store(0)
	a.callCount.Store(0)
}

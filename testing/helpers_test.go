package testing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/vizn"
)

func TestOutputBuilder(t *testing.T) {
	output := NewOutputBuilder().
		WithBlocks("a", "b").
		WithBlock("c", []byte("custom")).
		Build()

	if len(output.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(output.Blocks))
	}
	if output.Blocks[0].ID() != "a" || output.Blocks[2].ID() != "c" {
		t.Errorf("unexpected block order")
	}

	raw, _ := output.Blocks[1].Raw(context.Background())
	if string(raw) != "image:b" {
		t.Errorf("expected image:b, got %q", raw)
	}

	if empty := NewOutputBuilder().Build(); len(empty.Blocks) != 0 {
		t.Errorf("expected empty output, got %d blocks", len(empty.Blocks))
	}
}

func TestSequencedProvider(t *testing.T) {
	provider := NewSequencedProvider([]string{"first"}, []string{"second", "extra"})
	tool, err := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create tool: %v", err)
	}

	ctx := context.Background()
	for i, want := range []string{"first", "second", "second"} {
		id, err := tool.Fire(ctx, "prompt")
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if id != want {
			t.Errorf("call %d: expected %s, got %s", i, want, id)
		}
	}

	if provider.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", provider.CallCount())
	}
	if provider.Name() != SequencedProviderName {
		t.Errorf("expected %s, got %s", SequencedProviderName, provider.Name())
	}

	provider.Reset()
	if provider.CallCount() != 0 {
		t.Error("expected reset counter")
	}
}

func TestSequencedProvider_Empty(t *testing.T) {
	tool, _ := vizn.NewImageTool(context.Background(), NewSequencedProvider(), vizn.DefaultConfig())

	_, err := tool.Fire(context.Background(), "prompt")
	if !errors.Is(err, vizn.ErrNoOutput) {
		t.Errorf("expected ErrNoOutput, got %v", err)
	}
}

func TestFailingProvider(t *testing.T) {
	provider := NewFailingProvider(2).WithFailError("host busy").WithSuccessID("done")
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		_, err := tool.Fire(ctx, "prompt")
		if err == nil || !strings.Contains(err.Error(), "host busy") {
			t.Errorf("attempt %d: expected failure, got %v", i, err)
		}
	}

	id, err := tool.Fire(ctx, "prompt")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if id != "done" {
		t.Errorf("expected done, got %s", id)
	}
	if provider.CallCount() != 3 {
		t.Errorf("expected 3 calls, got %d", provider.CallCount())
	}
}

func TestCallRecorder(t *testing.T) {
	recorder := NewCallRecorder(vizn.NewMockProvider())
	tool, err := vizn.NewImageTool(context.Background(), recorder, vizn.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create tool: %v", err)
	}

	if recorder.LastCall() != nil {
		t.Error("expected no calls yet")
	}

	_, _ = tool.Fire(context.Background(), "one")
	_, _ = tool.Fire(context.Background(), "two")

	if recorder.CallCount() != 2 {
		t.Errorf("expected 2 calls, got %d", recorder.CallCount())
	}
	last := recorder.LastCall()
	if last.Request.Text != "two" || last.Handle != "dall-e" {
		t.Errorf("unexpected last call: %+v", last)
	}
	if resolves := recorder.Resolves(); len(resolves) != 1 || resolves[0] != vizn.DefaultConfig() {
		t.Errorf("expected one default resolve, got %+v", resolves)
	}
	if recorder.Name() != "mock" {
		t.Errorf("expected wrapped name, got %s", recorder.Name())
	}

	recorder.Reset()
	if recorder.CallCount() != 0 || len(recorder.Resolves()) != 0 {
		t.Error("expected reset recorder")
	}
}

func TestCallRecorder_ResolveError(t *testing.T) {
	recorder := NewCallRecorder(vizn.NewMockProviderWithResolveError("missing plugin"))

	tool, err := vizn.NewImageTool(context.Background(), recorder, vizn.DefaultConfig())
	if tool != nil || err == nil {
		t.Fatalf("expected resolve failure, got tool=%v err=%v", tool, err)
	}
	if len(recorder.Resolves()) != 1 {
		t.Errorf("expected attempt to be recorded")
	}
}

func TestLatencyProvider(t *testing.T) {
	provider := NewLatencyProvider(vizn.NewMockProvider(), 30*time.Millisecond)
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())

	start := time.Now()
	if _, err := tool.Fire(context.Background(), "slow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected at least 30ms, got %v", elapsed)
	}
}

func TestLatencyProvider_ContextCancel(t *testing.T) {
	provider := NewLatencyProvider(vizn.NewMockProvider(), time.Second)
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tool.Fire(ctx, "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestResultAccumulator(t *testing.T) {
	acc := NewResultAccumulator()
	tool, _ := vizn.NewImageTool(context.Background(), NewSequencedProvider([]string{"x", "y"}), vizn.Config{OutputCount: 2})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := tool.FireWithDetails(context.Background(), "p")
			if err == nil {
				acc.Add(result)
			}
		}()
	}
	wg.Wait()

	if acc.CallCount() != 10 {
		t.Errorf("expected 10 calls, got %d", acc.CallCount())
	}
	if acc.Blocks() != 20 {
		t.Errorf("expected 20 blocks, got %d", acc.Blocks())
	}
	if acc.UniqueIDs() != 1 {
		t.Errorf("expected 1 unique id, got %d", acc.UniqueIDs())
	}

	acc.Reset()
	if acc.CallCount() != 0 || acc.UniqueIDs() != 0 {
		t.Error("expected reset accumulator")
	}
}

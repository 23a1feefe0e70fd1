package integration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/pipz"
	"github.com/zoobzio/vizn"
	viznt "github.com/zoobzio/vizn/testing"
)

func TestPipeline_Timeout(t *testing.T) {
	provider := viznt.NewLatencyProvider(vizn.NewMockProvider(), 500*time.Millisecond)
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig(),
		vizn.WithTimeout(50*time.Millisecond),
	)

	start := time.Now()
	_, err := tool.Fire(context.Background(), "slow")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("timeout did not cut the wait short: %v", elapsed)
	}
}

func TestPipeline_TimeoutSuccess(t *testing.T) {
	provider := viznt.NewLatencyProvider(vizn.NewMockProviderWithBlocks("fast"), 5*time.Millisecond)
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig(),
		vizn.WithTimeout(time.Second),
	)

	id, err := tool.Fire(context.Background(), "quick")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "fast" {
		t.Errorf("expected fast, got %s", id)
	}
}

func TestPipeline_NoRetryOnFailure(t *testing.T) {
	// A failed task is reported once; the tool never resubmits on its own
	provider := viznt.NewFailingProvider(1)
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())

	_, err := tool.Fire(context.Background(), "p")
	if err == nil {
		t.Fatal("expected failure")
	}
	if provider.CallCount() != 1 {
		t.Errorf("expected a single submission, got %d", provider.CallCount())
	}
}

func TestPipeline_ErrorHandlerObservesFailures(t *testing.T) {
	var observed atomic.Int64
	handler := pipz.Apply("observe", func(_ context.Context, e *pipz.Error[*vizn.ImageRequest]) (*pipz.Error[*vizn.ImageRequest], error) {
		observed.Add(1)
		return e, nil
	})

	provider := viznt.NewFailingProvider(2).WithFailError("host busy")
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig(),
		vizn.WithErrorHandler(handler),
	)

	for i := 0; i < 3; i++ {
		_, _ = tool.Fire(context.Background(), "p")
	}

	if observed.Load() != 2 {
		t.Errorf("expected 2 observed failures, got %d", observed.Load())
	}
}

func TestPipeline_CombinedOptions(t *testing.T) {
	var buf bytes.Buffer
	provider := viznt.NewLatencyProvider(vizn.NewMockProviderWithBlocks("combo"), 5*time.Millisecond)
	tool, err := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig(),
		vizn.WithTimeout(time.Second),
		vizn.WithDebug(&buf),
	)
	if err != nil {
		t.Fatalf("failed to create tool: %v", err)
	}

	id, err := tool.Fire(context.Background(), "together")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "combo" {
		t.Errorf("expected combo, got %s", id)
	}
	if !strings.Contains(buf.String(), "together") {
		t.Errorf("expected prompt in debug output, got %s", buf.String())
	}
}

func TestPipeline_ContextCancellation(t *testing.T) {
	provider := viznt.NewLatencyProvider(vizn.NewMockProvider(), time.Second)
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := tool.Fire(ctx, "cancel me")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
}

func TestPipeline_Composition(t *testing.T) {
	// The tool's pipeline can be embedded in a larger pipz flow
	tool, _ := vizn.NewImageTool(context.Background(), vizn.NewMockProviderWithBlocks("composed"), vizn.DefaultConfig())

	tag := pipz.Apply("tag", func(_ context.Context, req *vizn.ImageRequest) (*vizn.ImageRequest, error) {
		req.Prompt = "tagged: " + req.Prompt
		return req, nil
	})
	flow := pipz.NewSequence("flow", tag, tool.GetPipeline())

	processed, err := flow.Process(context.Background(), &vizn.ImageRequest{Prompt: "base"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed.Output == nil || processed.Output.Blocks[0].ID() != "composed" {
		t.Errorf("expected composed block, got %+v", processed.Output)
	}
	if processed.TaskID == "" {
		t.Error("expected task id to be recorded")
	}
}

func TestPipeline_MultipleCallsIndependent(t *testing.T) {
	provider := viznt.NewSequencedProvider([]string{"a"}, []string{"b"}, []string{"c"})
	tool, _ := vizn.NewImageTool(context.Background(), provider, vizn.DefaultConfig())

	var got []string
	for i := 0; i < 3; i++ {
		result, err := tool.FireWithDetails(context.Background(), "p")
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		got = append(got, result.ID+"/"+result.TaskID)
	}

	if strings.Join(got, ",") != "a/seq-1,b/seq-2,c/seq-3" {
		t.Errorf("unexpected results: %v", got)
	}
}

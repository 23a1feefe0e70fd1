package vizn

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zoobzio/pipz"
)

// Option modifies a pipeline for hardening features.
type Option func(pipz.Chainable[*ImageRequest]) pipz.Chainable[*ImageRequest]

// WithTimeout bounds the whole submit-and-wait call.
// Operations exceeding this duration are canceled and return context.DeadlineExceeded.
func WithTimeout(duration time.Duration) Option {
	return func(pipeline pipz.Chainable[*ImageRequest]) pipz.Chainable[*ImageRequest] {
		return pipz.NewTimeout("timeout", pipeline, duration)
	}
}

// WithErrorHandler adds error handling to the pipeline.
// The handler observes the failure (log, alert, count); the original error is
// still returned to the caller.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*ImageRequest]]) Option {
	return func(pipeline pipz.Chainable[*ImageRequest]) pipz.Chainable[*ImageRequest] {
		return pipz.NewHandle("error-handler", pipeline, handler)
	}
}

// WithDebug writes the submitted prompt and the returned block IDs to w.
func WithDebug(w io.Writer) Option {
	return func(pipeline pipz.Chainable[*ImageRequest]) pipz.Chainable[*ImageRequest] {
		return pipz.Apply("debug", func(ctx context.Context, req *ImageRequest) (*ImageRequest, error) {
			fmt.Fprintf(w, "\n=== DEBUG: Prompt (%s) ===\n%s\n", req.Handle, req.Prompt)

			processed, err := pipeline.Process(ctx, req)
			if err != nil {
				fmt.Fprintf(w, "\n=== DEBUG: Error ===\n%v\n", err)
				return processed, err
			}

			fmt.Fprintf(w, "\n=== DEBUG: Task %s ===\n", processed.TaskID)
			if processed.Output != nil {
				for i, b := range processed.Output.Blocks {
					fmt.Fprintf(w, "  block %d: %s\n", i, b.ID())
				}
			}
			return processed, nil
		})
	}
}

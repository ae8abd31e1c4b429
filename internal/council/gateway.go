package council

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// ModelClient is the capability the pipeline consumes to talk to one model.
// Implementations never return an error: any transport failure, non-2xx
// status, or timeout is converted into a ModelResponse with Succeeded set
// to false. Implementations must honor ctx cancellation.
type ModelClient interface {
	Invoke(ctx context.Context, model, prompt string, timeout time.Duration) ModelResponse
}

// invokeAll dispatches the same prompt to every model concurrently and
// returns one response per model in the given order, regardless of which
// call finishes first. The slice is fully populated: failed calls appear
// as unsuccessful responses in their configured position.
func invokeAll(ctx context.Context, client ModelClient, models []string, prompt string, timeout time.Duration) []ModelResponse {
	g, ctx := errgroup.WithContext(ctx)

	results := make([]ModelResponse, len(models))
	for i, model := range models {
		i, model := i, model
		g.Go(func() error {
			resp := client.Invoke(ctx, model, prompt, timeout)
			resp.Model = model
			results[i] = resp
			return nil
		})
	}

	// Goroutines never return errors; Wait only fences completion.
	_ = g.Wait()

	return results
}

// successes filters responses down to the ones that produced content,
// preserving order.
func successes(responses []ModelResponse) []ModelResponse {
	var ok []ModelResponse
	for _, r := range responses {
		if r.Succeeded {
			ok = append(ok, r)
		}
	}
	return ok
}

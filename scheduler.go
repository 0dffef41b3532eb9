package html2pdf

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// windowPause yields between windows so a long batch does not starve the
// rest of the process.
const windowPause = 5 * time.Millisecond

// Window is a half-open range [Start, End) of job indexes run together.
type Window struct {
	Start int
	End   int
}

// Size returns the number of jobs in the window.
func (w Window) Size() int {
	return w.End - w.Start
}

// Windows partitions n jobs into contiguous windows of at most limit jobs.
// limit is clamped to [1, n].
func Windows(n, limit int) []Window {
	if n <= 0 {
		return nil
	}
	limit = max(1, min(limit, n))

	windows := make([]Window, 0, (n+limit-1)/limit)
	for start := 0; start < n; start += limit {
		windows = append(windows, Window{Start: start, End: min(start+limit, n)})
	}
	return windows
}

// Scheduler runs jobs in fixed-size concurrency windows.
type Scheduler struct {
	Limit int
	Pause time.Duration
}

// NewScheduler returns a scheduler with the default inter-window pause.
func NewScheduler(limit int) *Scheduler {
	return &Scheduler{Limit: limit, Pause: windowPause}
}

// RunWindows calls fn for every index in [0, n) and returns the results in
// index order, whatever order the calls finish in. All calls of a window
// run in parallel and the whole window completes before the next starts.
// The first error cancels the window and is returned; later windows never run.
func RunWindows[T any](ctx context.Context, s *Scheduler, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	windows := Windows(n, s.Limit)
	if len(windows) == 0 {
		return nil, nil
	}

	results := make([]T, n)
	for wi, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := w.Start; i < w.End; i++ {
			g.Go(func() error {
				v, err := fn(gctx, i)
				if err != nil {
					return err
				}
				results[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if wi < len(windows)-1 && s.Pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.Pause):
			}
		}
	}
	return results, nil
}

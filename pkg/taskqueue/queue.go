// Package taskqueue runs work concurrently with a bounded width and tracks
// completion through handles.
//
// A Queue is an unordered set of handles. Drain waits until every handle has
// settled, so an empty queue means all enqueued work has finished, whether
// it succeeded or not.
package taskqueue

import (
	"context"
	"sync"
	"time"

	"e6pools/pkg/logger"
	"e6pools/pkg/ratelimit"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultWidth        = 4
	DefaultPollInterval = 1500 * time.Millisecond
)

// Options configures a Queue.
type Options struct {
	// Width is the maximum number of tasks running at once.
	Width int
	// Launch spaces out task starts.
	Launch       ratelimit.Limiter
	PollInterval time.Duration
	Logger       logger.Logger
	// OnProgress receives the number of unsettled handles on every drain
	// tick, out of all handles added since the last complete drain.
	OnProgress func(remaining, total int)
}

// Queue holds pending work.
type Queue struct {
	opts Options
	sem  *semaphore.Weighted

	mu      sync.Mutex
	handles []*Handle
	total   int
}

// New creates a Queue, filling unset options with defaults.
func New(opts Options) *Queue {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Launch == nil {
		opts.Launch = ratelimit.Unlimited()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Queue{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.Width)),
	}
}

// Enqueue starts fn once a slot is free and returns its handle.
func (q *Queue) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) *Handle {
	h := Go(ctx, name, func(ctx context.Context) error {
		if err := q.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer q.sem.Release(1)

		if err := q.opts.Launch.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
	q.Add(h)
	return h
}

// Add tracks a handle created elsewhere.
func (q *Queue) Add(h *Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handles = append(q.handles, h)
	q.total++
}

// Len returns the number of handles not yet removed by Drain.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles)
}

// Pending returns the number of handles that have not settled.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, h := range q.handles {
		if h.IsPending() {
			n++
		}
	}
	return n
}

// sweep removes settled handles and reports what is left.
func (q *Queue) sweep() (settled []*Handle, remaining, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.handles[:0]
	for _, h := range q.handles {
		if h.IsPending() {
			kept = append(kept, h)
		} else {
			settled = append(settled, h)
		}
	}
	for i := len(kept); i < len(q.handles); i++ {
		q.handles[i] = nil
	}
	q.handles = kept

	remaining, total = len(kept), q.total
	if remaining == 0 {
		q.total = 0
	}
	return settled, remaining, total
}

// Drain polls until every handle has settled and returns the settled handles
// in the order they were observed. If ctx ends first, the handles settled so
// far are returned with ctx's error and the rest stay queued.
func (q *Queue) Drain(ctx context.Context) ([]*Handle, error) {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	var out []*Handle
	for {
		settled, remaining, total := q.sweep()
		out = append(out, settled...)

		if q.opts.OnProgress != nil {
			q.opts.OnProgress(remaining, total)
		}
		if remaining == 0 {
			q.opts.Logger.DebugWithFields("Queue drained", map[string]interface{}{
				"settled": len(out),
			})
			return out, nil
		}
		q.opts.Logger.DebugWithFields("Waiting for tasks", map[string]interface{}{
			"remaining": remaining,
			"total":     total,
		})

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Rejected filters handles down to the rejected ones.
func Rejected(handles []*Handle) []*Handle {
	var out []*Handle
	for _, h := range handles {
		if h.IsRejected() {
			out = append(out, h)
		}
	}
	return out
}

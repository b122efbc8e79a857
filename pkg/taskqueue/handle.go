package taskqueue

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Status is the state of a Handle.
type Status int32

const (
	StatusPending Status = iota
	StatusFulfilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Handle tracks one unit of asynchronous work. It leaves StatusPending
// exactly once and never returns to it.
type Handle struct {
	id   uuid.UUID
	name string

	claimed atomic.Bool
	status  atomic.Int32
	err     error
	done    chan struct{}
}

func newHandle(name string) *Handle {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Handle{id: id, name: name, done: make(chan struct{})}
}

// Go runs fn in its own goroutine and returns its handle. A panic in fn
// rejects the handle.
func Go(ctx context.Context, name string, fn func(ctx context.Context) error) *Handle {
	h := newHandle(name)
	go h.run(ctx, fn)
	return h
}

// Settled returns a handle that is already fulfilled (err == nil) or
// rejected.
func Settled(name string, err error) *Handle {
	h := newHandle(name)
	h.settle(err)
	return h
}

func (h *Handle) run(ctx context.Context, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			h.settle(fmt.Errorf("task %s panicked: %v", h.name, r))
		}
	}()
	h.settle(fn(ctx))
}

// settle records the outcome. Only the first call has an effect.
func (h *Handle) settle(err error) bool {
	if !h.claimed.CompareAndSwap(false, true) {
		return false
	}
	h.err = err
	if err == nil {
		h.status.Store(int32(StatusFulfilled))
	} else {
		h.status.Store(int32(StatusRejected))
	}
	close(h.done)
	return true
}

func (h *Handle) ID() uuid.UUID  { return h.id }
func (h *Handle) Name() string   { return h.name }
func (h *Handle) Status() Status { return Status(h.status.Load()) }

func (h *Handle) IsPending() bool   { return h.Status() == StatusPending }
func (h *Handle) IsFulfilled() bool { return h.Status() == StatusFulfilled }
func (h *Handle) IsRejected() bool  { return h.Status() == StatusRejected }

// Done is closed once the handle settles.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the rejection reason, or nil while pending or when fulfilled.
func (h *Handle) Err() error {
	if h.IsPending() {
		return nil
	}
	return h.err
}

// Wait blocks until the handle settles and returns its error, or until ctx
// is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

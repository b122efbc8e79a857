package tools

import (
	"context"
	"strings"
	"sync"
)

// Call is one recorded command invocation.
type Call struct {
	Name string
	Args []string
}

// String joins the program and its arguments with spaces.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Recorder is a Runner that records invocations instead of executing them.
// Handler, when set, decides the outcome of each call and may create the
// files a real program would.
type Recorder struct {
	Handler func(name string, args []string) error

	mu    sync.Mutex
	calls []Call
}

// Run implements Runner.
func (r *Recorder) Run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	handler := r.Handler
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if handler != nil {
		return handler(name, args)
	}
	return nil
}

// Calls returns a copy of the recorded invocations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the invocations of one program.
func (r *Recorder) CallsTo(name string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

package render

import (
	"context"
	"sync"
)

// Future is a single-resolution completion handle.
// The first Resolve wins; later calls are ignored.
type Future struct {
	done   chan struct{}
	once   sync.Once
	canvas *Canvas
	err    error
	abort  func()
}

// NewFuture creates an unresolved future. abort, if non-nil, is called when
// a waiter gives up so that in-flight loading stops.
func NewFuture(abort func()) *Future {
	return &Future{done: make(chan struct{}), abort: abort}
}

// Resolve settles the future. It reports whether this call did so.
func (f *Future) Resolve(c *Canvas, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.canvas, f.err = c, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx ends. When ctx ends first,
// loading is aborted and ctx.Err() is returned.
func (f *Future) Wait(ctx context.Context) (*Canvas, error) {
	select {
	case <-f.done:
		return f.canvas, f.err
	default:
	}
	select {
	case <-f.done:
		return f.canvas, f.err
	case <-ctx.Done():
		if f.abort != nil {
			f.abort()
		}
		return nil, ctx.Err()
	}
}

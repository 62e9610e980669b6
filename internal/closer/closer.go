// Package closer collects shutdown functions and runs them together.
package closer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Closer runs every registered function concurrently on Close.
type Closer struct {
	mu     sync.Mutex
	fns    []func(context.Context) error
	closed bool
}

// Add registers f. Functions added after Close are ignored.
func (c *Closer) Add(f func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.fns = append(c.fns, f)
}

// AddFunc registers a function that cannot fail.
func (c *Closer) AddFunc(f func()) {
	c.Add(func(context.Context) error {
		f()
		return nil
	})
}

// Close runs the registered functions once and returns the first error.
// Later calls return nil.
func (c *Closer) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)
	for _, f := range fns {
		eg.Go(func() error {
			return f(ctx)
		})
	}
	return eg.Wait()
}

package persist

import (
	"context"
	"sync"
)

// Transport performs persistence operations.
type Transport interface {
	Sync(ctx context.Context, method Method, target Target, opts *Options) (Handle, error)
}

// Hook is a single link of the persistence chain. A nil Handle with a nil
// error means the call was accepted but nothing was sent.
type Hook func(ctx context.Context, method Method, target Target, opts *Options) (Handle, error)

func (h Hook) Sync(ctx context.Context, method Method, target Target, opts *Options) (Handle, error) {
	return h(ctx, method, target, opts)
}

type Middleware func(next Hook) Hook

// Chain composes middleware around t. The first middleware is outermost and
// sees every call first.
func Chain(t Transport, middleware ...Middleware) Hook {
	h := Hook(t.Sync)
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// Dispatcher is the registered interceptor chain in front of a transport.
// It is safe for concurrent use.
type Dispatcher struct {
	mu         sync.RWMutex
	transport  Transport
	middleware []Middleware
	hook       Hook
}

func NewDispatcher(t Transport, middleware ...Middleware) *Dispatcher {
	d := &Dispatcher{transport: t}
	d.Use(middleware...)
	return d
}

// Use appends middleware to the chain. Middleware run in registration order.
func (d *Dispatcher) Use(middleware ...Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.middleware = append(d.middleware, middleware...)
	d.hook = Chain(d.transport, d.middleware...)
}

func (d *Dispatcher) Sync(ctx context.Context, method Method, target Target, opts *Options) (Handle, error) {
	if opts == nil {
		opts = &Options{}
	}

	d.mu.RLock()
	hook := d.hook
	d.mu.RUnlock()

	return hook(ctx, method, target, opts)
}

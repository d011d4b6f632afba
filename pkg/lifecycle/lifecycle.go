// Package lifecycle instruments a persistence chain so that every call
// broadcasts its lifecycle.
//
// For each call the middleware creates a Tracker, appends it to the target's
// pending list and publishes Topic{Kind: "async", Type: <event>} on the
// target, on the global "async" bus and on an optional secondary bus. When
// the transport settles the call the tracker emits Success or Error followed
// by Complete, and once the target has no pending operations left the target
// emits Drained.
//
//	d := persist.NewDispatcher(transport, lifecycle.Middleware())
//	m := model.New("/books", d, model.WithID("1"))
//	m.On(lifecycle.Drained, func(events.Event) { ... })
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

const (
	// Kind is the kind of every operation event published by this package.
	Kind = "async"

	// PendingKey is the state key of the pending operation list.
	PendingKey = "_pendingAsyncEvents"
)

var (
	Success  = events.Named("success")
	Error    = events.Named("error")
	Complete = events.Named("complete")

	// Drained is emitted on a target when its last pending operation
	// settles.
	Drained = events.Named("async:load-complete")
)

// Topic returns the topic operations of the given event type are published
// on. An empty type returns the topic receiving every operation.
func Topic(event string) events.Topic {
	return events.Topic{Kind: Kind, Type: event}
}

// Global returns the process-wide bus every operation is published on. The
// first call installs the listener maintaining the fetched flags of targets.
func Global() *events.Emitter {
	return events.Global(Kind, trackFetched)
}

func trackFetched(bus *events.Emitter) {
	events.Subscribe(bus, Topic(string(persist.Read)), func(_ events.Topic, t *Tracker) {
		t.On(Success, func(events.Event) {
			t.Target().State().MarkFetched()
		})
		t.On(Error, func(events.Event) {
			t.Target().State().MarkFetchError()
		})
	})
}

type config struct {
	handler *events.Emitter
}

type Option func(*config)

// WithHandler publishes every operation on bus as well, after the global
// bus.
func WithHandler(bus *events.Emitter) Option {
	return func(c *config) {
		c.handler = bus
	}
}

// Middleware returns the lifecycle instrumentation for a persistence chain.
func Middleware(opts ...Option) persist.Middleware {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next persist.Hook) persist.Hook {
		return func(ctx context.Context, method persist.Method, target persist.Target, opts *persist.Options) (persist.Handle, error) {
			if opts == nil {
				opts = &persist.Options{}
			}

			intercept, err := opts.Interceptor()
			if err != nil {
				return nil, err
			}

			if opts.URL == "" {
				opts.URL = target.URL()
			}

			t := newTracker(method, target, opts)
			t.pending.Add(t)
			slog.Debug("lifecycle: operation started", "op", t.id, "method", method, "event", t.event, "url", opts.URL)

			topic := Topic(t.event)
			target.Trigger(topic, t)
			Global().Trigger(topic, t)
			if cfg.handler != nil {
				cfg.handler.Trigger(topic, t)
			}

			t.wrap()

			// the interceptor owns settlement, whatever it returns
			if intercept != nil {
				h, err := intercept.Intercept(ctx, opts)
				if err != nil {
					t.reject(err)
					return nil, err
				}
				return h, nil
			}

			h, err := next(ctx, method, target, opts)
			if err != nil {
				t.reject(err)
				return nil, err
			}
			if h == nil {
				// vetoed or prevented further down the chain
				t.untrack()
			}
			return h, nil
		}
	}
}

// IsLoading returns the operations of target that have not settled yet, or
// nil when it is idle.
func IsLoading(target persist.Target) []persist.Operation {
	p, ok := target.State().Lookup(PendingKey)
	if !ok {
		return nil
	}
	return p.Operations()
}

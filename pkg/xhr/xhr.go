// Package xhr tracks the activity of a persistence chain on its targets.
//
// Every call is published as Topic{Kind: "xhr", Type: <event>} on the target
// and on the global bus with a *Context payload. Listeners of the context can
// cancel the call, veto or observe the request right before it is sent
// (BeforeSend), rewrite or take over the response (AfterSend), and follow its
// settlement (Success, Error, Complete). The context is kept in the target's
// pending list from the moment the transport sends it until it settles; when
// the list drains the target emits Names.CompleteEvent.
//
// Transports must call Options.BeforeSend synchronously from Sync before the
// request is sent.
package xhr

import (
	"context"
	"log/slog"

	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

// Middleware returns the activity instrumentation for a persistence chain.
// Names are frozen from this point on.
func Middleware() persist.Middleware {
	return std.middleware()
}

func (in *instrument) middleware() persist.Middleware {
	in.use()

	return func(next persist.Hook) persist.Hook {
		return func(ctx context.Context, method persist.Method, target persist.Target, opts *persist.Options) (persist.Handle, error) {
			if opts == nil {
				opts = &persist.Options{}
			}
			if opts.URL == "" {
				opts.URL = target.URL()
			}

			c := in.track(method, target, target, opts)
			if c.PreventDefault() {
				// whoever prevented the call is responsible for settling it
				slog.Debug("xhr: operation prevented", "op", c.id, "aborted", c.Aborted())
				return nil, nil
			}

			h, err := next(ctx, method, target, opts)
			if err != nil {
				c.discard()
				return nil, err
			}
			if h != nil {
				c.attach(h)
			}
			return h, nil
		}
	}
}

// track publishes a call on owner and decorates its options. Calls issued
// against owner itself are published on the global bus too.
func (in *instrument) track(method persist.Method, owner, target persist.Target, opts *persist.Options) *Context {
	names := in.use()
	c := newContext(method, owner, target, opts, names)

	slog.Debug("xhr: operation started", "op", c.id, "method", method, "event", c.event, "url", opts.URL, "forwarded", c.Forwarded())

	topic := names.Topic(c.event)
	owner.Trigger(topic, c)
	if !c.Forwarded() {
		in.global().Trigger(topic, c)
	}

	c.wrap()
	return c
}

// IsLoading returns the operations of target that have been sent and have
// not settled yet, or nil when it is idle.
func IsLoading(target persist.Target) []persist.Operation {
	return std.isLoading(target)
}

func (in *instrument) isLoading(target persist.Target) []persist.Operation {
	p, ok := target.State().Lookup(in.use().LoadingAttribute)
	if !ok {
		return nil
	}
	return p.Operations()
}

// WhenFetched calls success with target once it has been fetched. A target
// already fetched is passed synchronously; a read already in flight is
// joined; otherwise target.Fetch is issued. Failure, when not nil, receives
// the error of the read.
func WhenFetched(ctx context.Context, target persist.Fetcher, success func(persist.Target), failure func(error)) error {
	return std.whenFetched(ctx, target, success, failure)
}

func (in *instrument) whenFetched(ctx context.Context, target persist.Fetcher, success func(persist.Target), failure func(error)) error {
	if target.State().HasBeenFetched() {
		success(target)
		return nil
	}

	var inflight *Context
	for _, op := range in.isLoading(target) {
		if c, ok := op.(*Context); ok && c.Method() == persist.Read {
			inflight = c
			break
		}
	}

	if inflight != nil {
		slog.Debug("xhr: joining fetch in flight", "op", inflight.id, "url", target.URL())
		inflight.On(Success, func(events.Event) {
			success(target)
		})
		if failure != nil {
			events.Subscribe(inflight, Error, func(_ events.Topic, r *Result) {
				failure(r.Err)
			})
		}
		return nil
	}

	_, err := target.Fetch(ctx, &persist.Options{
		Success: func(any, int, persist.Handle) {
			success(target)
		},
		Error: func(_ persist.Handle, _ string, err error) {
			if failure != nil {
				failure(err)
			}
		},
	})
	return err
}

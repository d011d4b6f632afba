// Package persist defines the persistence hook that every create, read,
// update and delete operation flows through, and the contracts the
// instrumenting middleware and the transports agree on.
//
// A Dispatcher owns a Transport (the component that actually performs the
// operation) and an ordered list of Middleware. Each middleware receives the
// next hook in the chain and may observe, decorate the options of, or replace
// the call:
//
//	d := persist.NewDispatcher(transport)
//	d.Use(lifecycle.Middleware(), xhr.Middleware())
//	h, err := d.Sync(ctx, persist.Read, model, &persist.Options{
//		Success: func(data any, status int, h persist.Handle) { ... },
//	})
//
// Completion is reported asynchronously through Options.Success or
// Options.Error; a transport invokes at most one of them, once.
package persist

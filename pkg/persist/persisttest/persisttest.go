// Package persisttest provides a manually settled transport for tests of
// code built on package persist.
package persisttest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/resonatehq/syncevents/pkg/persist"
)

type Handle struct {
	aborts atomic.Int32
}

func (h *Handle) Abort() {
	h.aborts.Add(1)
}

// Aborts returns how many times Abort was called.
func (h *Handle) Aborts() int {
	return int(h.aborts.Load())
}

// Call is one operation that reached the transport.
type Call struct {
	Method   persist.Method
	Target   persist.Target
	Options  *persist.Options
	Settings *persist.Settings
	Handle   *Handle
}

// Succeed settles the call through its success callback.
func (c *Call) Succeed(data any, status int) {
	if c.Options.Success != nil {
		c.Options.Success(data, status, c.Handle)
	}
}

// Fail settles the call through its error callback.
func (c *Call) Fail(status string, err error) {
	if c.Options.Error != nil {
		c.Options.Error(c.Handle, status, err)
	}
}

// Transport records every call and leaves settlement to the test. Like a
// browser transport it runs Options.BeforeSend synchronously and does not
// send when it returns false.
type Transport struct {
	mu     sync.Mutex
	calls  []*Call
	vetoed int
}

func New() *Transport {
	return &Transport{}
}

func (t *Transport) Sync(ctx context.Context, method persist.Method, target persist.Target, opts *persist.Options) (persist.Handle, error) {
	call := &Call{
		Method:  method,
		Target:  target,
		Options: opts,
		Settings: &persist.Settings{
			Method: method,
			Verb:   method.Verb(),
			URL:    opts.URL,
			Header: opts.Header,
			Body:   opts.Body,
		},
		Handle: &Handle{},
	}

	if opts.BeforeSend != nil && !opts.BeforeSend(call.Handle, call.Settings) {
		t.mu.Lock()
		t.vetoed++
		t.mu.Unlock()
		return nil, nil
	}

	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.mu.Unlock()

	return call.Handle, nil
}

// Calls returns the calls that were sent, in order.
func (t *Transport) Calls() []*Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Call, len(t.calls))
	copy(out, t.calls)
	return out
}

func (t *Transport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// Last returns the most recent call, or nil.
func (t *Transport) Last() *Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.calls) == 0 {
		return nil
	}
	return t.calls[len(t.calls)-1]
}

// Vetoed returns how many calls were stopped by BeforeSend.
func (t *Transport) Vetoed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vetoed
}

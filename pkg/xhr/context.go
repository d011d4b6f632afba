package xhr

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

var (
	BeforeSend = events.Named("before-send")
	AfterSend  = events.Named("after-send")
	Success    = events.Named("success")
	Error      = events.Named("error")
	Complete   = events.Named("complete")
)

// Response is the payload of AfterSend. Listeners may replace the data handed
// to the success callback with Context.SetData, or take over settlement with
// Context.SetPreventDefault and a later call of Options.Success.
type Response struct {
	Context *Context
	Data    any
	Code    int
	Handle  persist.Handle
}

// Result is the payload of Success, Error and Complete.
type Result struct {
	Context *Context
	Type    string

	// Data and Code are set on success.
	Data any
	Code int

	// Handle, Status and Err are set on error.
	Handle persist.Handle
	Status string
	Err    error
}

// Context follows one persistence call from issue to settlement on one
// target. A forwarded call has one context per target it is forwarded to,
// all sharing the same Options.
type Context struct {
	events.Emitter

	id     string
	method persist.Method
	event  string
	target persist.Target
	owner  persist.Target
	opts   *persist.Options
	names  Names

	mu             sync.Mutex
	handle         persist.Handle
	settings       *persist.Settings
	data           any
	aborted        bool
	preventDefault bool
	tracked        bool

	settled atomic.Bool
}

func (c *Context) String() string {
	return fmt.Sprintf("Context(id=%s, method=%s, url=%s)", c.id, c.method, c.opts.URL)
}

func (c *Context) ID() string {
	return c.id
}

func (c *Context) Method() persist.Method {
	return c.method
}

// Event is the event type the call was published under.
func (c *Context) Event() string {
	return c.event
}

// Target is the target the call was issued against. For a forwarded call it
// differs from the target the context is tracked on.
func (c *Context) Target() persist.Target {
	return c.target
}

func (c *Context) Forwarded() bool {
	return c.target != c.owner
}

func (c *Context) Options() *persist.Options {
	return c.opts
}

// Handle returns the transport handle, nil until the transport runs
// BeforeSend.
func (c *Context) Handle() persist.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

func (c *Context) Settings() *persist.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *Context) Data() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// SetData replaces the payload handed to the success callback. It only has
// an effect from an AfterSend listener.
func (c *Context) SetData(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = v
}

func (c *Context) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *Context) PreventDefault() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preventDefault
}

// SetPreventDefault suppresses the default behavior of the current phase:
// sending the request when set before it is sent, settling it when set from
// an AfterSend listener.
func (c *Context) SetPreventDefault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preventDefault = true
}

// Abort cancels the call. It prevents the request from being sent, or asks
// the transport to cancel it when it already is. Only the first call has an
// effect and calling it after settlement does nothing.
func (c *Context) Abort() {
	if c.settled.Load() {
		return
	}

	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	c.preventDefault = true
	h := c.handle
	c.mu.Unlock()

	slog.Debug("xhr: operation aborted", "op", c.id, "sent", h != nil)
	if h != nil {
		h.Abort()
	}
}

func (c *Context) Settled() bool {
	return c.settled.Load()
}

func (c *Context) attach(h persist.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = h
}

// wrap decorates the options in place. Calls forwarded to other targets wrap
// the same options again, so the outermost wrapper belongs to the target the
// call was issued against.
func (c *Context) wrap() {
	before := c.opts.BeforeSend
	c.opts.BeforeSend = func(h persist.Handle, s *persist.Settings) bool {
		c.mu.Lock()
		c.handle = h
		c.settings = s
		c.mu.Unlock()

		if before != nil && !before(h, s) {
			return false
		}

		c.Trigger(BeforeSend, c)
		if c.PreventDefault() {
			return false
		}

		c.mu.Lock()
		c.tracked = true
		c.mu.Unlock()
		c.owner.State().Track(c.names.LoadingAttribute, c)
		return true
	}

	success := c.opts.Success
	c.opts.Success = func(data any, code int, h persist.Handle) {
		if c.settled.Load() {
			return
		}

		if !c.PreventDefault() {
			c.Trigger(AfterSend, &Response{Context: c, Data: data, Code: code, Handle: h})
			if d := c.Data(); d != nil {
				data = d
			}
			if c.PreventDefault() {
				// the listener settles by calling Options.Success itself
				return
			}
		}

		if !c.settled.CompareAndSwap(false, true) {
			return
		}
		if success != nil {
			success(data, code, h)
		}
		c.settle(Success, &Result{Context: c, Type: "success", Data: data, Code: code})
	}

	failure := c.opts.Error
	c.opts.Error = func(h persist.Handle, status string, err error) {
		if !c.settled.CompareAndSwap(false, true) {
			return
		}
		if failure != nil {
			failure(h, status, err)
		}
		c.settle(Error, &Result{Context: c, Type: "error", Handle: h, Status: status, Err: err})
	}
}

func (c *Context) settle(topic events.Topic, r *Result) {
	drained := c.untrack()
	slog.Debug("xhr: operation settled", "op", c.id, "type", r.Type, "status", r.Status)

	c.Trigger(topic, r)
	c.Trigger(Complete, r)

	if drained {
		c.owner.Trigger(c.names.Drained(), c)
	}
}

// discard untracks a call the transport refused.
func (c *Context) discard() {
	if !c.settled.CompareAndSwap(false, true) {
		return
	}
	if c.untrack() {
		c.owner.Trigger(c.names.Drained(), c)
	}
}

// untrack removes the context from the pending list and reports whether the
// list drained, in which case the owner's state no longer holds it.
func (c *Context) untrack() bool {
	c.mu.Lock()
	tracked := c.tracked
	c.mu.Unlock()

	if !tracked {
		return false
	}
	removed, left := c.owner.State().Untrack(c.names.LoadingAttribute, c)
	return removed && left == 0
}

func newContext(method persist.Method, owner, target persist.Target, opts *persist.Options, names Names) *Context {
	return &Context{
		id:     uuid.NewString(),
		method: method,
		event:  opts.EventName(method),
		target: target,
		owner:  owner,
		opts:   opts,
		names:  names,
	}
}

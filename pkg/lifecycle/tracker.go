package lifecycle

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

// Outcome is the payload of the Success, Error and Complete events of a
// tracker. It reproduces the arguments of the settling callback.
type Outcome struct {
	Type    string
	Target  persist.Target
	Options *persist.Options

	// Data and Code are set on success.
	Data any
	Code int

	// Handle, Status and Err are set on error.
	Handle persist.Handle
	Status string
	Err    error
}

// Tracker follows one persistence call from issue to settlement.
type Tracker struct {
	events.Emitter

	id      string
	method  persist.Method
	event   string
	target  persist.Target
	opts    *persist.Options
	pending *persist.Pending
	settled atomic.Bool
}

func newTracker(method persist.Method, target persist.Target, opts *persist.Options) *Tracker {
	return &Tracker{
		id:      uuid.NewString(),
		method:  method,
		event:   opts.EventName(method),
		target:  target,
		opts:    opts,
		pending: target.State().Pending(PendingKey),
	}
}

func (t *Tracker) String() string {
	return fmt.Sprintf("Tracker(id=%s, method=%s, url=%s)", t.id, t.method, t.opts.URL)
}

func (t *Tracker) ID() string {
	return t.id
}

func (t *Tracker) Method() persist.Method {
	return t.method
}

// Event is the event type the call was published under.
func (t *Tracker) Event() string {
	return t.event
}

func (t *Tracker) Target() persist.Target {
	return t.target
}

func (t *Tracker) Options() *persist.Options {
	return t.opts
}

func (t *Tracker) Settled() bool {
	return t.settled.Load()
}

func (t *Tracker) wrap() {
	success, failure := t.opts.Success, t.opts.Error

	t.opts.Success = func(data any, code int, h persist.Handle) {
		if !t.settled.CompareAndSwap(false, true) {
			return
		}
		if success != nil {
			success(data, code, h)
		}
		t.settle(Success, &Outcome{
			Type:    "success",
			Target:  t.target,
			Options: t.opts,
			Data:    data,
			Code:    code,
		})
	}

	t.opts.Error = func(h persist.Handle, status string, err error) {
		if !t.settled.CompareAndSwap(false, true) {
			return
		}
		if failure != nil {
			failure(h, status, err)
		}
		t.settle(Error, &Outcome{
			Type:    "error",
			Target:  t.target,
			Options: t.opts,
			Handle:  h,
			Status:  status,
			Err:     err,
		})
	}
}

func (t *Tracker) settle(topic events.Topic, o *Outcome) {
	removed, left := t.pending.Remove(t)
	slog.Debug("lifecycle: operation settled", "op", t.id, "type", o.Type, "pending", left)

	t.Trigger(topic, o)
	t.Trigger(Complete, o)

	if removed && left == 0 {
		t.target.Trigger(Drained, t)
	}
}

// reject settles a call the transport refused. The caller learns of err
// from the return of Sync, so only the tracker events are emitted.
func (t *Tracker) reject(err error) {
	if !t.settled.CompareAndSwap(false, true) {
		return
	}
	t.settle(Error, &Outcome{
		Type:    "error",
		Target:  t.target,
		Options: t.opts,
		Status:  persist.StatusError,
		Err:     err,
	})
}

// untrack removes a call that was not sent from the pending list. Whoever
// stopped it may still settle it later; that settlement is delivered but
// does not drain the list a second time.
func (t *Tracker) untrack() {
	if t.settled.Load() {
		return
	}
	if removed, left := t.pending.Remove(t); removed && left == 0 {
		t.target.Trigger(Drained, t)
	}
}

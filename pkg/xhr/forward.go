package xhr

import (
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

// Forward re-raises the calls issued on source as calls of dest until
// StopForwarding is called. An empty typ forwards every call, otherwise only
// calls of that event type. The forwarded call shares the options of the
// original, so dest tracks and settles it without a second transport call.
func Forward(source, dest persist.Target, typ string) {
	std.forward(source, dest, typ)
}

// StopForwarding undoes Forward for the same source, dest and typ.
func StopForwarding(source, dest persist.Target, typ string) int {
	return std.stopForwarding(source, dest, typ)
}

// ForwardWhile forwards every call issued on source to dest while fn runs.
func ForwardWhile(source, dest persist.Target, fn func()) {
	std.forwardWhile(source, dest, fn)
}

func (in *instrument) forward(source, dest persist.Target, typ string) *events.Subscription {
	names := in.use()
	return source.OnBehalf(dest, names.Topic(typ), func(ev events.Event) {
		if c, ok := ev.Payload.(*Context); ok {
			in.track(c.Method(), dest, c.Target(), c.Options())
		}
	})
}

func (in *instrument) stopForwarding(source, dest persist.Target, typ string) int {
	return source.OffBehalf(dest, in.use().Topic(typ))
}

func (in *instrument) forwardWhile(source, dest persist.Target, fn func()) {
	sub := in.forward(source, dest, "")
	defer source.Off(sub)

	fn()
}

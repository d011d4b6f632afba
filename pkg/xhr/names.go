package xhr

import (
	"errors"
	"sync"

	"github.com/resonatehq/syncevents/pkg/events"
)

var ErrConfigured = errors.New("xhr: names can only be configured before first use")

// Names are the event and attribute names the tracker publishes under.
type Names struct {
	// CompleteEvent is emitted on a target when its last pending operation
	// settles.
	CompleteEvent string `mapstructure:"complete-event" flag:"complete-event" desc:"event emitted when a target goes idle" default:"xhr:complete"`

	// LoadingAttribute is the state key of the pending operation list.
	LoadingAttribute string `mapstructure:"loading-attribute" flag:"loading-attribute" desc:"state key of the pending operation list" default:"xhrActivity"`

	// EventName is the kind of every operation event.
	EventName string `mapstructure:"event-name" flag:"event-name" desc:"kind of every operation event" default:"xhr"`

	// GlobalAttribute names the global bus.
	GlobalAttribute string `mapstructure:"global-attribute" flag:"global-attribute" desc:"name of the global bus" default:"xhrEvents"`
}

func DefaultNames() Names {
	return Names{
		CompleteEvent:    "xhr:complete",
		LoadingAttribute: "xhrActivity",
		EventName:        "xhr",
		GlobalAttribute:  "xhrEvents",
	}
}

func (n Names) withDefaults() Names {
	d := DefaultNames()
	if n.CompleteEvent == "" {
		n.CompleteEvent = d.CompleteEvent
	}
	if n.LoadingAttribute == "" {
		n.LoadingAttribute = d.LoadingAttribute
	}
	if n.EventName == "" {
		n.EventName = d.EventName
	}
	if n.GlobalAttribute == "" {
		n.GlobalAttribute = d.GlobalAttribute
	}
	return n
}

// Topic returns the topic operations of the given event type are published
// on. An empty type returns the topic receiving every operation.
func (n Names) Topic(event string) events.Topic {
	return events.Topic{Kind: n.EventName, Type: event}
}

// Drained is the topic of the event emitted when a target goes idle.
func (n Names) Drained() events.Topic {
	return events.Named(n.CompleteEvent)
}

// instrument holds the names in effect. They are frozen by the first
// operation that reads them.
type instrument struct {
	mu     sync.Mutex
	names  Names
	frozen bool
}

func newInstrument(n Names) *instrument {
	return &instrument{names: n.withDefaults()}
}

var std = newInstrument(Names{})

func (in *instrument) configure(n Names) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	n = n.withDefaults()
	if in.frozen && n != in.names {
		return ErrConfigured
	}
	in.names = n
	return nil
}

func (in *instrument) use() Names {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.frozen = true
	return in.names
}

func (in *instrument) global() *events.Emitter {
	names := in.use()
	return events.Global(names.GlobalAttribute, func(bus *events.Emitter) {
		trackFetched(bus, names)
	})
}

// Configure overrides the names used by the package. Empty fields keep their
// default. Once any operation has been tracked or the global bus has been
// requested it returns ErrConfigured for names other than the current ones.
func Configure(n Names) error {
	return std.configure(n)
}

// CurrentNames returns the names in effect and freezes them.
func CurrentNames() Names {
	return std.use()
}

// Global returns the process-wide bus every operation is published on,
// creating it on first use together with the listener maintaining the
// fetched flags of targets.
func Global() *events.Emitter {
	return std.global()
}

func trackFetched(bus *events.Emitter, names Names) {
	events.Subscribe(bus, names.Topic("read"), func(_ events.Topic, c *Context) {
		c.On(Success, func(events.Event) {
			c.Target().State().MarkFetched()
		})
		c.On(Error, func(events.Event) {
			c.Target().State().MarkFetchError()
		})
	})
}

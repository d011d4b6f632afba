// Package events provides the reactive-object capability shared by targets,
// operation trackers and global buses: an Emitter that dispatches structured
// Topic descriptors synchronously to subscribed handlers.
//
// A Topic is a kind plus an optional type. Operation events are published
// once with both parts set; a subscriber to the bare kind receives every type
// of that kind, a subscriber to the full topic receives only that type:
//
//	e.On(events.Topic{Kind: "xhr"}, all)                // every operation
//	e.On(events.Topic{Kind: "xhr", Type: "read"}, read) // reads only
//	e.Trigger(events.Topic{Kind: "xhr", Type: "read"}, ctx)
//
// Kind-only topics (see Named) are matched exactly and never fan out.
package events

type Topic struct {
	Kind string
	Type string
}

// Named returns a kind-only topic. The name is taken verbatim, so
// Named("xhr:complete") and Topic{Kind: "xhr", Type: "complete"} are distinct
// descriptors even though they print the same.
func Named(name string) Topic {
	return Topic{Kind: name}
}

// With returns the topic of the given type within t's kind.
func (t Topic) With(typ string) Topic {
	return Topic{Kind: t.Kind, Type: typ}
}

func (t Topic) Scoped() bool {
	return t.Type != ""
}

func (t Topic) String() string {
	if t.Type == "" {
		return t.Kind
	}
	return t.Kind + ":" + t.Type
}

// matches reports whether a subscription to t receives an event published on p.
func (t Topic) matches(p Topic) bool {
	if t == p {
		return true
	}
	return t.Type == "" && p.Type != "" && t.Kind == p.Kind
}

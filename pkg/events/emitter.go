package events

import (
	"sync"
	"sync/atomic"

	"github.com/iotaledger/hive.go/runtime/event"
)

type Event struct {
	Topic   Topic
	Payload any

	// subscriptions with a higher sequence were made during the trigger
	ceiling uint64
}

type Handler func(Event)

// Source is implemented by anything that can be subscribed to and emitted on.
type Source interface {
	On(topic Topic, fn Handler) *Subscription
	OnBehalf(owner any, topic Topic, fn Handler) *Subscription
	Off(sub *Subscription) bool
	OffBehalf(owner any, topic Topic) int
	Trigger(topic Topic, payload any)
}

var subseq atomic.Uint64

type Subscription struct {
	seq   uint64
	topic Topic
	owner any
	hook  atomic.Pointer[event.Hook[func(Event)]]
}

func (s *Subscription) Topic() Topic {
	return s.topic
}

func (s *Subscription) Owner() any {
	return s.owner
}

func (s *Subscription) unhook() {
	if h := s.hook.Load(); h != nil {
		h.Unhook()
	}
}

// Emitter is a synchronous publish/subscribe hub keyed by Topic. Every topic
// with subscribers is backed by its own event; a trigger fires the event of
// the bare kind first, then the event of the exact topic. Handlers of one
// topic run in no particular order, on the goroutine that calls Trigger; a
// panicking handler propagates to the caller of Trigger. The zero value is
// ready to use.
type Emitter struct {
	mu     sync.RWMutex
	topics map[Topic]*event.Event1[Event]
	subs   map[*Subscription]struct{}
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

func (e *Emitter) On(topic Topic, fn Handler) *Subscription {
	return e.hook(&Subscription{topic: topic}, fn)
}

// OnBehalf subscribes fn on behalf of owner so that the subscription can be
// removed later with OffBehalf without holding on to it. Owner must be
// comparable, typically a pointer.
func (e *Emitter) OnBehalf(owner any, topic Topic, fn Handler) *Subscription {
	return e.hook(&Subscription{topic: topic, owner: owner}, fn)
}

// Once subscribes fn for the next matching event only.
func (e *Emitter) Once(topic Topic, fn Handler) *Subscription {
	sub := &Subscription{topic: topic}
	return e.hook(sub, func(ev Event) {
		// the first trigger to forget sub runs fn
		if e.forget(sub) {
			sub.unhook()
			fn(ev)
		}
	}, event.WithMaxTriggerCount(1))
}

func (e *Emitter) hook(sub *Subscription, fn Handler, opts ...event.Option) *Subscription {
	sub.seq = subseq.Add(1)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.topics == nil {
		e.topics = map[Topic]*event.Event1[Event]{}
		e.subs = map[*Subscription]struct{}{}
	}

	ev, ok := e.topics[sub.topic]
	if !ok {
		ev = event.New1[Event]()
		e.topics[sub.topic] = ev
	}

	e.subs[sub] = struct{}{}
	sub.hook.Store(ev.Hook(func(fired Event) {
		if sub.seq <= fired.ceiling {
			fn(fired)
		}
	}, opts...))

	return sub
}

func (e *Emitter) forget(sub *Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.subs[sub]; !ok {
		return false
	}
	delete(e.subs, sub)
	return true
}

// Off removes sub and reports whether it was still subscribed.
func (e *Emitter) Off(sub *Subscription) bool {
	if sub == nil || !e.forget(sub) {
		return false
	}

	sub.unhook()
	return true
}

// OffBehalf removes every subscription owner made on exactly topic and
// returns how many were removed.
func (e *Emitter) OffBehalf(owner any, topic Topic) int {
	if owner == nil {
		return 0
	}

	e.mu.Lock()
	var removed []*Subscription
	for sub := range e.subs {
		if sub.owner == owner && sub.topic == topic {
			delete(e.subs, sub)
			removed = append(removed, sub)
		}
	}
	e.mu.Unlock()

	for _, sub := range removed {
		sub.unhook()
	}
	return len(removed)
}

func (e *Emitter) Trigger(topic Topic, payload any) {
	e.mu.RLock()
	var fired []*event.Event1[Event]
	if topic.Scoped() {
		if ev, ok := e.topics[Topic{Kind: topic.Kind}]; ok {
			fired = append(fired, ev)
		}
	}
	if ev, ok := e.topics[topic]; ok {
		fired = append(fired, ev)
	}
	e.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload, ceiling: subseq.Load()}
	for _, f := range fired {
		f.Trigger(ev)
	}
}

// Listeners returns the number of subscriptions that would receive an event
// published on topic.
func (e *Emitter) Listeners(topic Topic) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for sub := range e.subs {
		if sub.topic.matches(topic) {
			n++
		}
	}
	return n
}

// Subscribe binds a handler typed on the event payload. Events whose payload
// is not a T are ignored, so a handler can be registered against an interface
// to receive every payload implementing it.
func Subscribe[T any](src Source, topic Topic, fn func(Topic, T)) *Subscription {
	return src.On(topic, func(ev Event) {
		if p, ok := ev.Payload.(T); ok {
			fn(ev.Topic, p)
		}
	})
}

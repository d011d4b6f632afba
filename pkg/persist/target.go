package persist

import (
	"context"
	"sync"

	"github.com/resonatehq/syncevents/pkg/events"
)

// Target is an object operations are issued against.
type Target interface {
	events.Source
	URL() string
	State() *State
}

// Fetcher is a target that knows how to issue its own read.
type Fetcher interface {
	Target
	Fetch(ctx context.Context, opts *Options) (Handle, error)
}

// Operation is one tracked, in-flight persistence call.
type Operation interface {
	ID() string
	Method() Method
	Event() string
	Target() Target
	Options() *Options
}

// State is the instrumentation state a target carries: pending operation
// lists keyed by attribute name, and fetched flags. The zero value is ready
// to use.
type State struct {
	mu       sync.Mutex
	pending  map[string]*Pending
	fetched  bool
	fetchErr bool
}

// Pending returns the list registered under key, creating it if needed.
func (s *State) Pending(key string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(key)
}

func (s *State) list(key string) *Pending {
	if s.pending == nil {
		s.pending = map[string]*Pending{}
	}
	p, ok := s.pending[key]
	if !ok {
		p = &Pending{}
		s.pending[key] = p
	}
	return p
}

// Lookup returns the list registered under key without creating it.
func (s *State) Lookup(key string) (*Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	return p, ok
}

// Track appends op to the list under key, registering the list if needed,
// and returns the new length.
func (s *State) Track(key string, op Operation) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(key).Add(op)
}

// Untrack removes op from the list under key and unregisters the list once
// it is empty, in the same step as the removal. It reports whether op was
// present and the number of operations left.
func (s *State) Untrack(key string, op Operation) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	if !ok {
		return false, 0
	}

	removed, left := p.Remove(op)
	if left == 0 {
		delete(s.pending, key)
	}
	return removed, left
}

func (s *State) HasBeenFetched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

func (s *State) HadFetchError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchErr
}

// MarkFetched records a successful read.
func (s *State) MarkFetched() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = true
	s.fetchErr = false
}

// MarkFetchError records a failed read. A previous successful read still
// counts as fetched.
func (s *State) MarkFetchError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = true
}

// Pending is an ordered list of live operations.
type Pending struct {
	mu  sync.Mutex
	ops []Operation
}

// Add appends op and returns the new length.
func (p *Pending) Add(op Operation) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ops = append(p.ops, op)
	return len(p.ops)
}

// Remove removes op by identity. It reports whether op was present and the
// number of operations left, both observed atomically, so that exactly one
// caller sees the transition to empty.
func (p *Pending) Remove(op Operation) (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, o := range p.ops {
		if o == op {
			p.ops = append(p.ops[:i:i], p.ops[i+1:]...)
			return true, len(p.ops)
		}
	}
	return false, len(p.ops)
}

func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops)
}

// Operations returns a copy of the live operations in issue order.
func (p *Pending) Operations() []Operation {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.ops) == 0 {
		return nil
	}
	out := make([]Operation, len(p.ops))
	copy(out, p.ops)
	return out
}

// Find returns the first live operation matching fn, or nil.
func (p *Pending) Find(fn func(Operation) bool) Operation {
	for _, op := range p.Operations() {
		if fn(op) {
			return op
		}
	}
	return nil
}

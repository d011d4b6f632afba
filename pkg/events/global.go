package events

import (
	"sync"
	"sync/atomic"
)

type globalBus struct {
	once    sync.Once
	emitter atomic.Pointer[Emitter]
}

var (
	globalsMu sync.Mutex
	globals   = map[string]*globalBus{}
)

// Global returns the process-wide bus registered under name, creating it on
// first use. The setup functions of the first call run exactly once, before
// the bus is handed to anyone; later calls never re-initialise the bus and
// their setup functions are ignored. Setup must not call Global for the same
// name.
func Global(name string, setup ...func(*Emitter)) *Emitter {
	globalsMu.Lock()
	g, ok := globals[name]
	if !ok {
		g = &globalBus{}
		globals[name] = g
	}
	globalsMu.Unlock()

	g.once.Do(func() {
		e := NewEmitter()
		for _, fn := range setup {
			fn(e)
		}
		g.emitter.Store(e)
	})

	return g.emitter.Load()
}

// Initialized reports whether the bus registered under name has been created.
func Initialized(name string) bool {
	globalsMu.Lock()
	defer globalsMu.Unlock()

	g, ok := globals[name]
	return ok && g.emitter.Load() != nil
}

package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

type Collection struct {
	events.Emitter

	url   string
	sync  persist.Transport
	state persist.State

	mu     sync.RWMutex
	models []*Model
}

func NewCollection(url string, transport persist.Transport) *Collection {
	return &Collection{
		url:  url,
		sync: transport,
	}
}

func (c *Collection) String() string {
	return fmt.Sprintf("Collection(url=%s, len=%d)", c.url, c.Len())
}

func (c *Collection) URL() string {
	return c.url
}

func (c *Collection) State() *persist.State {
	return &c.state
}

// New returns a model rooted at the collection url without adding it.
func (c *Collection) New(opts ...Option) *Model {
	return New(c.url, c.sync, opts...)
}

func (c *Collection) Add(models ...*Model) {
	c.mu.Lock()
	c.models = append(c.models, models...)
	c.mu.Unlock()

	for _, m := range models {
		c.Trigger(events.Named("add"), m)
	}
}

func (c *Collection) Models() []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Model, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Fetch reads the collection; on success a list of attribute maps replaces
// the current models before opts.Success runs.
func (c *Collection) Fetch(ctx context.Context, opts *persist.Options) (persist.Handle, error) {
	if opts == nil {
		opts = &persist.Options{}
	}

	success := opts.Success
	opts.Success = func(data any, status int, h persist.Handle) {
		if items, ok := data.([]any); ok {
			c.reset(items)
		}
		if success != nil {
			success(data, status, h)
		}
	}

	return c.sync.Sync(ctx, persist.Read, c, opts)
}

func (c *Collection) reset(items []any) {
	models := make([]*Model, 0, len(items))
	for _, item := range items {
		if attrs, ok := item.(map[string]any); ok {
			models = append(models, New(c.url, c.sync, WithAttributes(attrs)))
		}
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()

	c.Trigger(events.Named("reset"), models)
}

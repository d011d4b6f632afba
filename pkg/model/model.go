// Package model provides the minimal reactive targets the instrumentation
// runs against: a Model of attributes addressed by URL, and a Collection of
// models. Both route their persistence calls through a persist.Transport,
// normally a persist.Dispatcher with the tracking middleware installed.
package model

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync"

	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
)

type Option func(*Model)

func WithAttributes(attrs map[string]any) Option {
	return func(m *Model) {
		maps.Copy(m.attrs, attrs)
	}
}

func WithID(id string) Option {
	return func(m *Model) {
		m.attrs["id"] = id
	}
}

type Model struct {
	events.Emitter

	root  string
	sync  persist.Transport
	state persist.State

	mu    sync.RWMutex
	attrs map[string]any
}

func New(root string, transport persist.Transport, opts ...Option) *Model {
	m := &Model{
		root:  root,
		sync:  transport,
		attrs: map[string]any{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) String() string {
	return fmt.Sprintf("Model(url=%s)", m.URL())
}

// URL is the collection root joined with the model id, or the root alone for
// a model that has not been saved yet.
func (m *Model) URL() string {
	id := m.ID()
	if id == "" {
		return m.root
	}
	return strings.TrimRight(m.root, "/") + "/" + url.PathEscape(id)
}

func (m *Model) State() *persist.State {
	return &m.state
}

func (m *Model) ID() string {
	switch id := m.Get("id").(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

func (m *Model) IsNew() bool {
	return m.ID() == ""
}

func (m *Model) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attrs[key]
}

// Set merges attrs and emits "change" with the merged keys when any value
// was given.
func (m *Model) Set(attrs map[string]any) {
	if len(attrs) == 0 {
		return
	}

	m.mu.Lock()
	maps.Copy(m.attrs, attrs)
	m.mu.Unlock()

	m.Trigger(events.Named("change"), attrs)
}

func (m *Model) Attributes() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.attrs)
}

// Fetch reads the model; on success the returned attributes are merged
// before opts.Success runs.
func (m *Model) Fetch(ctx context.Context, opts *persist.Options) (persist.Handle, error) {
	opts = m.absorb(opts)
	return m.sync.Sync(ctx, persist.Read, m, opts)
}

// Save creates the model when it is new and updates it otherwise.
func (m *Model) Save(ctx context.Context, opts *persist.Options) (persist.Handle, error) {
	method := persist.Update
	if m.IsNew() {
		method = persist.Create
	}

	opts = m.absorb(opts)
	if opts.Body == nil {
		opts.Body = m.Attributes()
	}
	return m.sync.Sync(ctx, method, m, opts)
}

func (m *Model) Destroy(ctx context.Context, opts *persist.Options) (persist.Handle, error) {
	if opts == nil {
		opts = &persist.Options{}
	}
	return m.sync.Sync(ctx, persist.Delete, m, opts)
}

func (m *Model) absorb(opts *persist.Options) *persist.Options {
	if opts == nil {
		opts = &persist.Options{}
	}

	success := opts.Success
	opts.Success = func(data any, status int, h persist.Handle) {
		if attrs, ok := data.(map[string]any); ok {
			m.Set(attrs)
		}
		if success != nil {
			success(data, status, h)
		}
	}
	return opts
}

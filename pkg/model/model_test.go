package model

import (
	"context"
	"testing"

	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/persist/persisttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelURL(t *testing.T) {
	for _, tc := range []struct {
		name string
		root string
		opts []Option
		url  string
	}{
		{name: "new", root: "/books", url: "/books"},
		{name: "with id", root: "/books", opts: []Option{WithID("1")}, url: "/books/1"},
		{name: "trailing slash", root: "/books/", opts: []Option{WithID("1")}, url: "/books/1"},
		{name: "escaped id", root: "/books", opts: []Option{WithID("a b")}, url: "/books/a%20b"},
		{name: "numeric id", root: "/books", opts: []Option{WithAttributes(map[string]any{"id": 7})}, url: "/books/7"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := New(tc.root, persisttest.New(), tc.opts...)
			assert.Equal(t, tc.url, m.URL())
		})
	}
}

func TestModelSave(t *testing.T) {
	for _, tc := range []struct {
		name   string
		opts   []Option
		method persist.Method
	}{
		{name: "new model is created", method: persist.Create},
		{name: "existing model is updated", opts: []Option{WithID("1")}, method: persist.Update},
	} {
		t.Run(tc.name, func(t *testing.T) {
			transport := persisttest.New()
			m := New("/books", transport, append(tc.opts, WithAttributes(map[string]any{"title": "Dune"}))...)

			_, err := m.Save(context.Background(), nil)
			require.NoError(t, err)

			call := transport.Last()
			require.NotNil(t, call)
			assert.Equal(t, tc.method, call.Method)
			assert.Same(t, m, call.Target)
			assert.Equal(t, "Dune", call.Options.Body.(map[string]any)["title"])
		})
	}
}

func TestModelFetchMergesAttributes(t *testing.T) {
	transport := persisttest.New()
	m := New("/books", transport, WithID("1"))

	var changed map[string]any
	events.Subscribe(m, events.Named("change"), func(_ events.Topic, attrs map[string]any) {
		changed = attrs
	})

	var seen any
	_, err := m.Fetch(context.Background(), &persist.Options{
		Success: func(data any, status int, h persist.Handle) {
			// attributes are merged before the caller's callback
			seen = m.Get("title")
		},
	})
	require.NoError(t, err)

	call := transport.Last()
	require.NotNil(t, call)
	assert.Equal(t, persist.Read, call.Method)

	call.Succeed(map[string]any{"title": "Dune"}, 200)

	assert.Equal(t, "Dune", seen)
	assert.Equal(t, map[string]any{"title": "Dune"}, changed)
	assert.Equal(t, map[string]any{"id": "1", "title": "Dune"}, m.Attributes())
}

func TestModelDestroy(t *testing.T) {
	transport := persisttest.New()
	m := New("/books", transport, WithID("1"))

	_, err := m.Destroy(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, persist.Delete, transport.Last().Method)
}

func TestCollectionFetchResets(t *testing.T) {
	transport := persisttest.New()
	c := NewCollection("/books", transport)
	c.Add(c.New(WithID("old")))

	var reset []*Model
	events.Subscribe(c, events.Named("reset"), func(_ events.Topic, models []*Model) {
		reset = models
	})

	_, err := c.Fetch(context.Background(), nil)
	require.NoError(t, err)

	transport.Last().Succeed([]any{
		map[string]any{"id": "1"},
		map[string]any{"id": "2"},
		"ignored",
	}, 200)

	require.Len(t, reset, 2)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "/books/1", c.Models()[0].URL())
	assert.Equal(t, "/books/2", c.Models()[1].URL())
}

package xhr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/model"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/persist/persisttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	in        *instrument
	names     Names
	transport *persisttest.Transport
	dispatch  *persist.Dispatcher
}

// newFixture isolates each test on its own global bus.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	in := newInstrument(Names{GlobalAttribute: "xhr-test-" + uuid.NewString()})
	transport := persisttest.New()

	return &fixture{
		in:        in,
		names:     in.use(),
		transport: transport,
		dispatch:  persist.NewDispatcher(transport, in.middleware()),
	}
}

func (f *fixture) model(id string) *model.Model {
	return model.New("/books", f.dispatch, model.WithID(id))
}

func (f *fixture) loading(target persist.Target) bool {
	_, ok := target.State().Lookup(f.names.LoadingAttribute)
	return ok
}

func TestReadSuccess(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	var log []string
	var global int
	f.in.global().On(f.names.Topic(""), func(events.Event) { global++ })
	m.On(f.names.Drained(), func(events.Event) { log = append(log, "drained") })
	events.Subscribe(m, f.names.Topic("read"), func(_ events.Topic, c *Context) {
		log = append(log, "xhr:read")
		for _, topic := range []events.Topic{BeforeSend, AfterSend, Success, Error, Complete} {
			c.On(topic, func(ev events.Event) { log = append(log, ev.Topic.String()) })
		}
	})

	_, err := m.Fetch(context.Background(), &persist.Options{
		Success: func(any, int, persist.Handle) { log = append(log, "callback") },
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.transport.Len())
	assert.Equal(t, 1, global)
	assert.True(t, f.loading(m))
	require.Len(t, f.in.isLoading(m), 1)

	c := f.in.isLoading(m)[0].(*Context)
	assert.Same(t, f.transport.Last().Handle, c.Handle())
	assert.Equal(t, "/books/1", c.Settings().URL)

	f.transport.Last().Succeed(map[string]any{"title": "Dune"}, 200)

	assert.Equal(t, []string{
		"xhr:read",
		"before-send",
		"after-send",
		"callback",
		"success",
		"complete",
		"drained",
	}, log)
	assert.False(t, f.loading(m))
	assert.Nil(t, f.in.isLoading(m))
	assert.True(t, m.State().HasBeenFetched())
	assert.Equal(t, "Dune", m.Get("title"))
}

func TestReadErrorMarksFetchError(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	var result *Result
	events.Subscribe(m, f.names.Topic(""), func(_ events.Topic, c *Context) {
		events.Subscribe(c, Complete, func(_ events.Topic, r *Result) { result = r })
	})

	_, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	f.transport.Last().Fail(persist.StatusError, boom)

	require.NotNil(t, result)
	assert.Equal(t, "error", result.Type)
	assert.Equal(t, persist.StatusError, result.Status)
	assert.ErrorIs(t, result.Err, boom)
	assert.False(t, m.State().HasBeenFetched())
	assert.True(t, m.State().HadFetchError())
}

func TestBeforeSendVeto(t *testing.T) {
	for _, tc := range []struct {
		name  string
		opts  func() *persist.Options
		setup func(c *Context)
	}{
		{
			name: "options",
			opts: func() *persist.Options {
				return &persist.Options{BeforeSend: func(persist.Handle, *persist.Settings) bool { return false }}
			},
		},
		{
			name: "listener",
			opts: func() *persist.Options { return &persist.Options{} },
			setup: func(c *Context) {
				c.On(BeforeSend, func(events.Event) { c.SetPreventDefault() })
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.model("1")

			var beforeSend bool
			events.Subscribe(m, f.names.Topic(""), func(_ events.Topic, c *Context) {
				c.On(BeforeSend, func(events.Event) { beforeSend = true })
				if tc.setup != nil {
					tc.setup(c)
				}
			})

			_, err := m.Save(context.Background(), tc.opts())
			require.NoError(t, err)

			assert.Equal(t, 0, f.transport.Len())
			assert.Equal(t, 1, f.transport.Vetoed())
			assert.False(t, f.loading(m))
			assert.Equal(t, tc.setup != nil, beforeSend)
		})
	}
}

func TestAbortBeforeSend(t *testing.T) {
	ctrl := gomock.NewController(t)
	in := newInstrument(Names{GlobalAttribute: "xhr-test-" + uuid.NewString()})
	transport := persisttest.NewMockTransport(ctrl)
	m := model.New("/books", persist.NewDispatcher(transport, in.middleware()), model.WithID("1"))

	var ctx *Context
	events.Subscribe(m, in.use().Topic("read"), func(_ events.Topic, c *Context) {
		ctx = c
		c.Abort()
	})

	h, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, h)
	require.NotNil(t, ctx)
	assert.True(t, ctx.Aborted())
	assert.True(t, ctx.PreventDefault())
	assert.Nil(t, in.isLoading(m))
}

func TestAbortInFlight(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	_, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)

	call := f.transport.Last()
	c := f.in.isLoading(m)[0].(*Context)

	c.Abort()
	c.Abort()
	assert.True(t, c.Aborted())
	assert.Equal(t, 1, call.Handle.Aborts())

	var completes int
	c.On(Complete, func(events.Event) { completes++ })
	call.Fail(persist.StatusAbort, context.Canceled)
	assert.Equal(t, 1, completes)
	assert.False(t, f.loading(m))
}

func TestAbortAfterSettlement(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	_, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)

	call := f.transport.Last()
	c := f.in.isLoading(m)[0].(*Context)
	call.Succeed(nil, 200)

	assert.NotPanics(t, c.Abort)
	assert.False(t, c.Aborted())
	assert.Equal(t, 0, call.Handle.Aborts())
}

func TestAfterSendReplacesData(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	events.Subscribe(m, f.names.Topic(""), func(_ events.Topic, c *Context) {
		events.Subscribe(c, AfterSend, func(_ events.Topic, r *Response) {
			data := r.Data.(map[string]any)
			r.Context.SetData(map[string]any{"title": data["name"]})
		})
	})

	var got any
	_, err := m.Fetch(context.Background(), &persist.Options{
		Success: func(data any, _ int, _ persist.Handle) { got = data },
	})
	require.NoError(t, err)

	f.transport.Last().Succeed(map[string]any{"name": "Dune"}, 200)
	assert.Equal(t, map[string]any{"title": "Dune"}, got)
	assert.Equal(t, "Dune", m.Get("title"))
}

func TestAfterSendTakesOverSettlement(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	var ctx *Context
	events.Subscribe(m, f.names.Topic(""), func(_ events.Topic, c *Context) {
		ctx = c
		c.On(AfterSend, func(events.Event) { c.SetPreventDefault() })
	})

	var callbacks, drains int
	m.On(f.names.Drained(), func(events.Event) { drains++ })
	_, err := m.Fetch(context.Background(), &persist.Options{
		Success: func(any, int, persist.Handle) { callbacks++ },
	})
	require.NoError(t, err)

	call := f.transport.Last()
	call.Succeed(map[string]any{}, 200)
	assert.Equal(t, 0, callbacks)
	assert.False(t, ctx.Settled())
	assert.True(t, f.loading(m))

	ctx.Options().Success(map[string]any{"title": "later"}, 200, call.Handle)
	assert.Equal(t, 1, callbacks)
	assert.True(t, ctx.Settled())
	assert.Equal(t, 1, drains)
	assert.Equal(t, "later", m.Get("title"))
}

func TestPendingTracksUnsettled(t *testing.T) {
	for _, n := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			f := newFixture(t)
			m := f.model("1")

			drains := 0
			m.On(f.names.Drained(), func(events.Event) {
				drains++
				assert.False(t, f.loading(m))
			})

			for i := 0; i < n; i++ {
				_, err := m.Save(context.Background(), nil)
				require.NoError(t, err)
				assert.Len(t, f.in.isLoading(m), i+1)
			}

			for i, call := range f.transport.Calls() {
				assert.Equal(t, 0, drains)
				if i%2 == 0 {
					call.Succeed(nil, 200)
				} else {
					call.Fail(persist.StatusError, errors.New("conflict"))
				}
				assert.Len(t, f.in.isLoading(m), n-i-1)
			}
			assert.Equal(t, 1, drains)
		})
	}
}

func TestSettlementIsIdempotent(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	counts := map[string]int{}
	events.Subscribe(m, f.names.Topic(""), func(_ events.Topic, c *Context) {
		for _, topic := range []events.Topic{Success, Error, Complete} {
			c.On(topic, func(ev events.Event) { counts[ev.Topic.String()]++ })
		}
	})
	m.On(f.names.Drained(), func(events.Event) { counts["drained"]++ })

	_, err := m.Save(context.Background(), &persist.Options{
		Error: func(persist.Handle, string, error) { counts["callback"]++ },
	})
	require.NoError(t, err)

	call := f.transport.Last()
	call.Fail(persist.StatusTimeout, context.DeadlineExceeded)
	call.Fail(persist.StatusTimeout, context.DeadlineExceeded)
	call.Succeed(nil, 200)

	assert.Equal(t, map[string]int{
		"error":    1,
		"complete": 1,
		"callback": 1,
		"drained":  1,
	}, counts)
}

func TestWhenFetched(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	var fetched []persist.Target
	success := func(target persist.Target) { fetched = append(fetched, target) }

	require.NoError(t, f.in.whenFetched(context.Background(), m, success, nil))
	require.NoError(t, f.in.whenFetched(context.Background(), m, success, nil))
	assert.Equal(t, 1, f.transport.Len())
	assert.Empty(t, fetched)

	f.transport.Last().Succeed(map[string]any{}, 200)
	assert.Equal(t, []persist.Target{m, m}, fetched)

	// fetched targets are passed synchronously
	require.NoError(t, f.in.whenFetched(context.Background(), m, success, nil))
	assert.Len(t, fetched, 3)
	assert.Equal(t, 1, f.transport.Len())
}

func TestWhenFetchedFailure(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")

	var errs []error
	failure := func(err error) { errs = append(errs, err) }
	success := func(persist.Target) { t.Fatal("unexpected success") }

	require.NoError(t, f.in.whenFetched(context.Background(), m, success, failure))
	require.NoError(t, f.in.whenFetched(context.Background(), m, success, failure))

	boom := errors.New("boom")
	f.transport.Last().Fail(persist.StatusError, boom)

	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], boom)
	assert.ErrorIs(t, errs[1], boom)
	assert.True(t, m.State().HadFetchError())
}

func TestForward(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")
	c := model.NewCollection("/books", f.dispatch)

	var global, forwarded int
	f.in.global().On(f.names.Topic(""), func(events.Event) { global++ })
	events.Subscribe(c, f.names.Topic("update"), func(_ events.Topic, ctx *Context) {
		forwarded++
		assert.True(t, ctx.Forwarded())
		assert.Same(t, m, ctx.Target())
	})

	drained := 0
	c.On(f.names.Drained(), func(events.Event) { drained++ })

	f.in.forward(m, c, "")

	_, err := m.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.transport.Len())
	assert.Equal(t, 1, global)
	assert.Equal(t, 1, forwarded)
	assert.Len(t, f.in.isLoading(m), 1)
	assert.Len(t, f.in.isLoading(c), 1)

	f.transport.Last().Succeed(nil, 200)
	assert.Nil(t, f.in.isLoading(c))
	assert.Equal(t, 1, drained)

	assert.Equal(t, 1, f.in.stopForwarding(m, c, ""))
	_, err = m.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, forwarded)
}

func TestForwardType(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")
	c := model.NewCollection("/books", f.dispatch)

	var got []string
	events.Subscribe(c, f.names.Topic(""), func(_ events.Topic, ctx *Context) {
		got = append(got, ctx.Event())
	})

	f.in.forward(m, c, "delete")

	_, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)
	_, err = m.Destroy(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"delete"}, got)
	assert.Equal(t, 0, f.in.stopForwarding(m, c, ""))
	assert.Equal(t, 1, f.in.stopForwarding(m, c, "delete"))
}

func TestForwardWhile(t *testing.T) {
	f := newFixture(t)
	m := f.model("1")
	c := model.NewCollection("/books", f.dispatch)

	var forwarded int
	c.On(f.names.Topic(""), func(events.Event) { forwarded++ })

	f.in.forwardWhile(m, c, func() {
		_, err := m.Fetch(context.Background(), nil)
		require.NoError(t, err)
	})
	assert.Equal(t, 1, forwarded)
	assert.Equal(t, 0, m.Listeners(f.names.Topic("read")))

	assert.Panics(t, func() {
		f.in.forwardWhile(m, c, func() { panic("boom") })
	})
	assert.Equal(t, 0, m.Listeners(f.names.Topic("read")))

	_, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, forwarded)
}

func TestTransportErrorDrains(t *testing.T) {
	f := newFixture(t)

	boom := errors.New("refused")
	d := persist.NewDispatcher(persist.Hook(func(ctx context.Context, method persist.Method, target persist.Target, opts *persist.Options) (persist.Handle, error) {
		opts.BeforeSend(nil, &persist.Settings{Method: method})
		return nil, boom
	}), f.in.middleware())
	m := model.New("/books", d, model.WithID("1"))

	drains := 0
	m.On(f.names.Drained(), func(events.Event) { drains++ })

	_, err := m.Save(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.loading(m))
	assert.Equal(t, 1, drains)
}

func TestConfigure(t *testing.T) {
	in := newInstrument(Names{})
	require.NoError(t, in.configure(Names{EventName: "sync", GlobalAttribute: "sync-" + uuid.NewString()}))

	names := in.use()
	assert.Equal(t, "sync", names.EventName)
	assert.Equal(t, "xhr:complete", names.CompleteEvent)
	assert.Equal(t, "xhrActivity", names.LoadingAttribute)

	assert.ErrorIs(t, in.configure(Names{EventName: "late"}), ErrConfigured)
	assert.NoError(t, in.configure(names))
	assert.Equal(t, "sync", in.use().EventName)
}

func TestConfigureAfterUse(t *testing.T) {
	Middleware()
	assert.ErrorIs(t, Configure(Names{EventName: "late"}), ErrConfigured)
	assert.Equal(t, DefaultNames(), CurrentNames())
}

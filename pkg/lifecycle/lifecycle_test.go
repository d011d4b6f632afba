package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/model"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/persist/persisttest"
	"github.com/resonatehq/syncevents/pkg/xhr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setup(t *testing.T, opts ...Option) (*persisttest.Transport, *model.Model) {
	t.Helper()

	transport := persisttest.New()
	d := persist.NewDispatcher(transport, Middleware(opts...))
	return transport, model.New("/books", d, model.WithID("1"))
}

// record appends the string form of every event published on src.
func record(src events.Source, log *[]string, prefix string, topics ...events.Topic) {
	for _, topic := range topics {
		src.On(topic, func(ev events.Event) {
			*log = append(*log, prefix+ev.Topic.String())
		})
	}
}

func TestReadSuccess(t *testing.T) {
	transport, m := setup(t)

	var log []string
	var tracker *Tracker
	record(m, &log, "model:", Topic(""), Drained)
	events.Subscribe(m, Topic("read"), func(_ events.Topic, tr *Tracker) {
		tracker = tr
		record(tr, &log, "tracker:", Success, Error, Complete)
	})

	var called bool
	_, err := m.Fetch(context.Background(), &persist.Options{
		Success: func(data any, code int, h persist.Handle) {
			called = true
			log = append(log, "callback")
		},
	})
	require.NoError(t, err)
	require.NotNil(t, tracker)

	assert.Equal(t, "/books/1", transport.Last().Options.URL)
	assert.Equal(t, persist.Read, tracker.Method())
	assert.Equal(t, "read", tracker.Event())
	assert.Same(t, m, tracker.Target())
	assert.Equal(t, []persist.Operation{tracker}, IsLoading(m))

	transport.Last().Succeed(map[string]any{"title": "Dune"}, 200)

	assert.True(t, called)
	assert.Equal(t, []string{
		"model:async:read",
		"callback",
		"tracker:success",
		"tracker:complete",
		"model:async:load-complete",
	}, log)
	assert.Nil(t, IsLoading(m))
	assert.True(t, m.State().HasBeenFetched())
	assert.False(t, m.State().HadFetchError())
	assert.Equal(t, "Dune", m.Get("title"))
}

func TestReadError(t *testing.T) {
	transport, m := setup(t)

	var outcome *Outcome
	events.Subscribe(m, Topic("read"), func(_ events.Topic, tr *Tracker) {
		events.Subscribe(tr, Error, func(_ events.Topic, o *Outcome) {
			outcome = o
		})
	})

	_, err := m.Fetch(context.Background(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	call := transport.Last()
	call.Fail(persist.StatusError, boom)

	require.NotNil(t, outcome)
	assert.Equal(t, "error", outcome.Type)
	assert.Equal(t, persist.StatusError, outcome.Status)
	assert.Same(t, call.Handle, outcome.Handle)
	assert.ErrorIs(t, outcome.Err, boom)
	assert.False(t, m.State().HasBeenFetched())
	assert.True(t, m.State().HadFetchError())
}

func TestGlobalAndHandlerBuses(t *testing.T) {
	handler := events.NewEmitter()
	_, m := setup(t, WithHandler(handler))

	var log []string
	sub := Global().On(Topic("update"), func(ev events.Event) {
		if ev.Payload.(*Tracker).Target() == persist.Target(m) {
			log = append(log, "global")
		}
	})
	t.Cleanup(func() { Global().Off(sub) })

	handler.On(Topic(""), func(events.Event) {
		log = append(log, "handler")
	})
	m.On(Topic(""), func(events.Event) {
		log = append(log, "model")
	})

	_, err := m.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"model", "global", "handler"}, log)
}

func TestEventOverride(t *testing.T) {
	_, m := setup(t)

	var got []string
	m.On(Topic(""), func(ev events.Event) {
		got = append(got, ev.Topic.Type)
	})

	_, err := m.Fetch(context.Background(), &persist.Options{Event: "refresh"})
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh"}, got)
}

func TestPendingTracksUnsettled(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			transport, m := setup(t)

			drains := 0
			m.On(Drained, func(events.Event) { drains++ })

			for i := 0; i < n; i++ {
				_, err := m.Save(context.Background(), nil)
				require.NoError(t, err)
				assert.Len(t, IsLoading(m), i+1)
			}

			// settle out of issue order
			calls := transport.Calls()
			for i := len(calls) - 1; i >= 0; i-- {
				assert.Equal(t, 0, drains)
				calls[i].Succeed(nil, 204)
				assert.Len(t, IsLoading(m), i)
			}
			assert.Equal(t, 1, drains)

			// a second drain fires again
			_, err := m.Save(context.Background(), nil)
			require.NoError(t, err)
			transport.Last().Succeed(nil, 204)
			assert.Equal(t, 2, drains)
		})
	}
}

func TestSettlementIsIdempotent(t *testing.T) {
	transport, m := setup(t)

	var successes, errs, completes, callbacks, drains int
	events.Subscribe(m, Topic(""), func(_ events.Topic, tr *Tracker) {
		tr.On(Success, func(events.Event) { successes++ })
		tr.On(Error, func(events.Event) { errs++ })
		tr.On(Complete, func(events.Event) { completes++ })
	})
	m.On(Drained, func(events.Event) { drains++ })

	_, err := m.Destroy(context.Background(), &persist.Options{
		Success: func(any, int, persist.Handle) { callbacks++ },
		Error:   func(persist.Handle, string, error) { callbacks++ },
	})
	require.NoError(t, err)

	call := transport.Last()
	call.Succeed(nil, 204)
	call.Succeed(nil, 204)
	call.Fail(persist.StatusError, errors.New("late"))

	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 1, completes)
	assert.Equal(t, 1, callbacks)
	assert.Equal(t, 1, drains)
}

func TestIntercept(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := persisttest.NewMockTransport(ctrl)
	m := model.New("/books", persist.NewDispatcher(transport, Middleware()), model.WithID("1"))

	var started, drained bool
	m.On(Topic("read"), func(events.Event) { started = true })
	m.On(Drained, func(events.Event) { drained = true })

	var intercepted *persist.Options
	_, err := m.Fetch(context.Background(), &persist.Options{
		Intercept: persist.InterceptorFunc(func(ctx context.Context, opts *persist.Options) (persist.Handle, error) {
			intercepted = opts
			return nil, nil
		}),
	})
	require.NoError(t, err)
	require.NotNil(t, intercepted)
	assert.True(t, started)
	assert.Len(t, IsLoading(m), 1)

	intercepted.Success(map[string]any{"title": "cached"}, 200, nil)
	assert.True(t, drained)
	assert.Nil(t, IsLoading(m))
	assert.Equal(t, "cached", m.Get("title"))
}

func TestInvalidIntercept(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := persisttest.NewMockTransport(ctrl)
	m := model.New("/books", persist.NewDispatcher(transport, Middleware()))

	var started bool
	m.On(Topic(""), func(events.Event) { started = true })

	var fn persist.InterceptorFunc
	_, err := m.Fetch(context.Background(), &persist.Options{Intercept: fn})

	assert.ErrorIs(t, err, persist.ErrInvalidIntercept)
	assert.False(t, started)
	assert.Nil(t, IsLoading(m))
}

func TestTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	transport := persisttest.NewMockTransport(ctrl)
	m := model.New("/books", persist.NewDispatcher(transport, Middleware()), model.WithID("1"))

	boom := errors.New("queue full")
	transport.EXPECT().
		Sync(gomock.Any(), persist.Update, m, gomock.Any()).
		Return(nil, boom).
		Times(1)

	var log []string
	var outcome *Outcome
	events.Subscribe(m, Topic("update"), func(_ events.Topic, tr *Tracker) {
		record(tr, &log, "tracker:", Success, Error, Complete)
		events.Subscribe(tr, Error, func(_ events.Topic, o *Outcome) { outcome = o })
	})
	record(m, &log, "model:", Drained)

	_, err := m.Save(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, IsLoading(m))
	assert.Equal(t, []string{"tracker:error", "tracker:complete", "model:async:load-complete"}, log)

	require.NotNil(t, outcome)
	assert.Equal(t, persist.StatusError, outcome.Status)
	assert.ErrorIs(t, outcome.Err, boom)
}

func TestStoppedDownstream(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts func(m *model.Model) *persist.Options
	}{
		{
			name: "BeforeSendVeto",
			opts: func(*model.Model) *persist.Options {
				return &persist.Options{
					BeforeSend: func(persist.Handle, *persist.Settings) bool { return false },
				}
			},
		},
		{
			name: "PreventedBeforeSend",
			opts: func(m *model.Model) *persist.Options {
				events.Subscribe(m, xhr.CurrentNames().Topic(""), func(_ events.Topic, c *xhr.Context) {
					c.On(xhr.BeforeSend, func(events.Event) { c.SetPreventDefault() })
				})
				return &persist.Options{}
			},
		},
		{
			name: "AbortedBeforeSend",
			opts: func(m *model.Model) *persist.Options {
				events.Subscribe(m, xhr.CurrentNames().Topic(""), func(_ events.Topic, c *xhr.Context) {
					c.Abort()
				})
				return &persist.Options{}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			transport := persisttest.New()
			d := persist.NewDispatcher(transport, Middleware(), xhr.Middleware())
			m := model.New("/books", d, model.WithID("1"))

			drains := 0
			m.On(Drained, func(events.Event) { drains++ })

			h, err := m.Save(context.Background(), tc.opts(m))
			require.NoError(t, err)
			assert.Nil(t, h)

			assert.Equal(t, 0, transport.Len())
			assert.Nil(t, xhr.IsLoading(m))
			assert.Nil(t, IsLoading(m))
			assert.Equal(t, 1, drains)
		})
	}
}

func TestPreventedThenSettled(t *testing.T) {
	transport := persisttest.New()
	d := persist.NewDispatcher(transport, Middleware(), xhr.Middleware())
	m := model.New("/books", d, model.WithID("1"))

	// a listener takes the call over and settles it later
	var takeover *persist.Options
	events.Subscribe(m, xhr.CurrentNames().Topic(""), func(_ events.Topic, c *xhr.Context) {
		c.SetPreventDefault()
		takeover = c.Options()
	})

	drains, successes := 0, 0
	m.On(Drained, func(events.Event) { drains++ })

	h, err := m.Fetch(context.Background(), &persist.Options{
		Success: func(any, int, persist.Handle) { successes++ },
	})
	require.NoError(t, err)
	assert.Nil(t, h)
	assert.Nil(t, IsLoading(m))
	assert.Equal(t, 1, drains)

	require.NotNil(t, takeover)
	takeover.Success(map[string]any{"title": "cached"}, 200, nil)

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, drains)
	assert.Equal(t, "cached", m.Get("title"))
}

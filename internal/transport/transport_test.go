package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/echo"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/network"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store"
	"github.com/resonatehq/syncevents/internal/app/subsystems/aio/store/sqlite"
	"github.com/resonatehq/syncevents/internal/kernel/system"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/metrics"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/model"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/xhr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	data   any
	code   int
	status string
	err    error
}

type fixture struct {
	transport *Transport
	server    *httptest.Server
}

func setup(t *testing.T) *fixture {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"title": c.GetHeader("X-Title")})
	})
	r.POST("/ok", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.JSON(http.StatusCreated, body)
	})
	r.GET("/fail", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})
	r.GET("/garbage", func(c *gin.Context) {
		c.String(http.StatusOK, "{not json")
	})
	r.GET("/hang", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	server := httptest.NewServer(r)

	db, err := sqlite.New(&sqlite.Config{Path: ":memory:", TxTimeout: time.Second})
	require.NoError(t, err)

	config := &aio.SubsystemConfig{Size: 100, Workers: 1, BatchSize: 10}
	a := aio.New(100, metrics.New(prometheus.NewRegistry()))
	a.AddSubsystem(t_aio.Echo, echo.New(), config)
	a.AddSubsystem(t_aio.Network, network.New(&network.Config{Timeout: 5 * time.Second}), config)
	a.AddSubsystem(t_aio.Store, db, config)
	require.NoError(t, a.Start())

	s := system.New(a, &system.Config{CompletionBatchSize: 100, SignalTimeout: 10 * time.Millisecond})
	errs := make(chan error, 1)
	go func() { errs <- s.Loop() }()

	t.Cleanup(func() {
		<-s.Shutdown()
		assert.NoError(t, <-errs)
		assert.NoError(t, a.Stop())
		server.Close()
	})

	return &fixture{
		transport: New(a, t_aio.Echo, t_aio.Network, t_aio.Store),
		server:    server,
	}
}

func (f *fixture) call(t *testing.T, method persist.Method, url string, body any) outcome {
	t.Helper()

	ch := make(chan outcome, 1)
	h, err := f.transport.Sync(context.Background(), method, model.New(url, f.transport), &persist.Options{
		Body: body,
		Success: func(data any, code int, _ persist.Handle) {
			ch <- outcome{data: data, code: code}
		},
		Error: func(_ persist.Handle, status string, err error) {
			ch <- outcome{status: status, err: err}
		},
	})
	require.NoError(t, err)
	require.NotNil(t, h)

	return wait(t, ch)
}

func wait(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()

	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
		return outcome{}
	}
}

func TestEcho(t *testing.T) {
	f := setup(t)

	o := f.call(t, persist.Update, "echo://books/1", map[string]any{"title": "dune"})
	require.NoError(t, o.err)
	assert.Equal(t, 200, o.code)
	assert.Equal(t, map[string]any{"title": "dune"}, o.data)

	o = f.call(t, persist.Read, "echo://books/1", nil)
	require.NoError(t, o.err)
	assert.Nil(t, o.data)
}

func TestNetwork(t *testing.T) {
	f := setup(t)

	for _, tc := range []struct {
		name   string
		method persist.Method
		path   string
		body   any
		data   any
		code   int
		status string
		errIs  int
	}{
		{
			name:   "read",
			method: persist.Read,
			path:   "/ok",
			data:   map[string]any{"title": ""},
			code:   http.StatusOK,
		},
		{
			name:   "create",
			method: persist.Create,
			path:   "/ok",
			body:   map[string]any{"title": "dune"},
			data:   map[string]any{"title": "dune"},
			code:   http.StatusCreated,
		},
		{
			name:   "error status",
			method: persist.Read,
			path:   "/fail",
			status: persist.StatusError,
			errIs:  http.StatusInternalServerError,
		},
		{
			name:   "not found",
			method: persist.Delete,
			path:   "/ok",
			status: persist.StatusError,
			errIs:  http.StatusNotFound,
		},
		{
			name:   "parse error",
			method: persist.Read,
			path:   "/garbage",
			status: persist.StatusParse,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			o := f.call(t, tc.method, f.server.URL+tc.path, tc.body)
			if tc.status != "" {
				require.Error(t, o.err)
				assert.Equal(t, tc.status, o.status)
				assert.Equal(t, tc.errIs, Code(o.err))
				return
			}

			require.NoError(t, o.err)
			assert.Equal(t, tc.code, o.code)
			assert.Equal(t, tc.data, o.data)
		})
	}
}

func TestHeaders(t *testing.T) {
	f := setup(t)

	ch := make(chan outcome, 1)
	_, err := f.transport.Sync(context.Background(), persist.Read, model.New(f.server.URL+"/ok", f.transport), &persist.Options{
		Header: map[string]string{"X-Title": "dune"},
		Success: func(data any, code int, _ persist.Handle) {
			ch <- outcome{data: data, code: code}
		},
	})
	require.NoError(t, err)

	o := wait(t, ch)
	assert.Equal(t, map[string]any{"title": "dune"}, o.data)
}

func TestAbort(t *testing.T) {
	f := setup(t)

	ch := make(chan outcome, 1)
	h, err := f.transport.Sync(context.Background(), persist.Read, model.New(f.server.URL+"/hang", f.transport), &persist.Options{
		Success: func(data any, code int, _ persist.Handle) {
			ch <- outcome{data: data, code: code}
		},
		Error: func(_ persist.Handle, status string, err error) {
			ch <- outcome{status: status, err: err}
		},
	})
	require.NoError(t, err)

	h.Abort()
	h.Abort()

	o := wait(t, ch)
	assert.Equal(t, persist.StatusAbort, o.status)
	assert.ErrorIs(t, o.err, context.Canceled)
}

func TestBeforeSend(t *testing.T) {
	f := setup(t)

	t.Run("veto", func(t *testing.T) {
		called := false
		h, err := f.transport.Sync(context.Background(), persist.Read, model.New("echo://books", f.transport), &persist.Options{
			BeforeSend: func(h persist.Handle, s *persist.Settings) bool {
				assert.NotNil(t, h)
				assert.Equal(t, "GET", s.Verb)
				assert.Equal(t, "echo://books", s.URL)
				return false
			},
			Success: func(any, int, persist.Handle) { called = true },
			Error:   func(persist.Handle, string, error) { called = true },
		})
		require.NoError(t, err)
		assert.Nil(t, h)
		assert.False(t, called)
	})

	t.Run("rewrite", func(t *testing.T) {
		ch := make(chan outcome, 1)
		_, err := f.transport.Sync(context.Background(), persist.Create, model.New("echo://books", f.transport), &persist.Options{
			Body: map[string]any{"title": "dune"},
			BeforeSend: func(_ persist.Handle, s *persist.Settings) bool {
				s.Body = map[string]any{"title": "emma"}
				return true
			},
			Success: func(data any, code int, _ persist.Handle) {
				ch <- outcome{data: data, code: code}
			},
		})
		require.NoError(t, err)

		o := wait(t, ch)
		assert.Equal(t, map[string]any{"title": "emma"}, o.data)
	})
}

func TestUnsupportedUrl(t *testing.T) {
	f := setup(t)

	for _, url := range []string{"ftp://books/1", "/", "/books"} {
		t.Run(url, func(t *testing.T) {
			method := persist.Read
			if url == "/books" {
				method = persist.Update
			}

			h, err := f.transport.Sync(context.Background(), method, model.New(url, f.transport), &persist.Options{})
			assert.ErrorIs(t, err, ErrUnsupportedUrl)
			assert.Nil(t, h)
		})
	}

	tr := New(nil, t_aio.Store)
	_, err := tr.Sync(context.Background(), persist.Read, model.New("echo://books", tr), &persist.Options{})
	assert.ErrorIs(t, err, ErrUnsupportedUrl)
}

func TestStore(t *testing.T) {
	f := setup(t)

	o := f.call(t, persist.Create, "/books", map[string]any{"title": "dune"})
	require.NoError(t, o.err)
	assert.Equal(t, http.StatusCreated, o.code)

	attrs, ok := o.data.(map[string]any)
	require.True(t, ok)
	id, ok := attrs["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, "dune", attrs["title"])

	o = f.call(t, persist.Create, "/books", map[string]any{"id": id, "title": "emma"})
	assert.Equal(t, http.StatusConflict, Code(o.err))
	assert.ErrorIs(t, o.err, store.ErrConflict)

	o = f.call(t, persist.Patch, "/books/"+id, map[string]any{"author": "herbert"})
	require.NoError(t, o.err)
	assert.Equal(t, map[string]any{"id": id, "title": "dune", "author": "herbert"}, o.data)

	o = f.call(t, persist.Update, "/books/"+id, map[string]any{"title": "dune messiah"})
	require.NoError(t, o.err)
	assert.Equal(t, map[string]any{"id": id, "title": "dune messiah"}, o.data)

	o = f.call(t, persist.Create, "/books/2", map[string]any{"title": "emma"})
	require.NoError(t, o.err)

	o = f.call(t, persist.Read, "/books", nil)
	require.NoError(t, o.err)
	assert.Equal(t, []any{
		map[string]any{"id": id, "title": "dune messiah"},
		map[string]any{"id": "2", "title": "emma"},
	}, o.data)

	o = f.call(t, persist.Delete, "/books/"+id, nil)
	require.NoError(t, o.err)
	assert.Equal(t, http.StatusNoContent, o.code)

	for _, method := range []persist.Method{persist.Read, persist.Update, persist.Patch, persist.Delete} {
		t.Run(fmt.Sprintf("%s missing", method), func(t *testing.T) {
			o := f.call(t, method, "/books/"+id, map[string]any{})
			assert.Equal(t, persist.StatusError, o.status)
			assert.Equal(t, http.StatusNotFound, Code(o.err))
			assert.ErrorIs(t, o.err, store.ErrNotFound)
		})
	}
}

func TestTrackedModel(t *testing.T) {
	f := setup(t)

	names := xhr.CurrentNames()
	d := persist.NewDispatcher(f.transport, xhr.Middleware())
	m := model.New("/books", d)

	drained := make(chan struct{}, 1)
	m.On(names.Drained(), func(events.Event) { drained <- struct{}{} })

	ch := make(chan outcome, 1)
	_, err := m.Save(context.Background(), &persist.Options{
		Body: map[string]any{"title": "dune"},
		Success: func(data any, code int, _ persist.Handle) {
			ch <- outcome{data: data, code: code}
		},
	})
	require.NoError(t, err)

	o := wait(t, ch)
	assert.Equal(t, http.StatusCreated, o.code)
	assert.Equal(t, "dune", m.Get("title"))
	assert.NotEmpty(t, m.ID())

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for drain")
	}
	assert.Nil(t, xhr.IsLoading(m))
}

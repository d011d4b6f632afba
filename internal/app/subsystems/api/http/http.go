package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/resonatehq/syncevents/internal/app/auth"
	"github.com/resonatehq/syncevents/internal/app/subsystems/api"
	"github.com/resonatehq/syncevents/internal/metrics"
	"github.com/resonatehq/syncevents/pkg/persist"
)

type Config struct {
	Addr    string        `flag:"addr" desc:"http server address" default:":8001"`
	Timeout time.Duration `flag:"timeout" desc:"http server graceful shutdown timeout" default:"10s"`
	Cors    Cors          `flag:"cors" desc:"http cors settings"`
}

type Cors struct {
	AllowOrigins []string `flag:"allow-origin" desc:"allowed origins, if not provided cors is not enabled"`
}

type Http struct {
	config *Config
	server *http.Server
}

// New returns the records api. Every request issues one operation through
// hook, normally a dispatcher with the tracking middleware installed. A nil
// authenticator leaves the api open.
func New(hook persist.Transport, metrics *metrics.Metrics, config *Config, authenticator auth.Authenticator) api.Subsystem {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(instrument(metrics))

	if len(config.Cors.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: config.Cors.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.Use(auth.Middleware(authenticator))

	s := &server{hook: hook}

	// Records API
	r.GET("/records/:collection", s.readRecords)
	r.POST("/records/:collection", s.createRecord)
	r.GET("/records/:collection/:id", s.readRecord)
	r.PUT("/records/:collection/:id", s.updateRecord)
	r.PATCH("/records/:collection/:id", s.patchRecord)
	r.DELETE("/records/:collection/:id", s.deleteRecord)

	return &Http{
		config: config,
		server: &http.Server{
			Addr:    config.Addr,
			Handler: r,
		},
	}
}

func (h *Http) Start(errors chan<- error) {
	slog.Info("starting http server", "addr", h.config.Addr)
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errors <- err
	}
}

func (h *Http) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	return h.server.Shutdown(ctx)
}

func (h *Http) String() string {
	return "http"
}

func instrument(metrics *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.ApiInFlight.WithLabelValues(route, "http").Inc()
		defer metrics.ApiInFlight.WithLabelValues(route, "http").Dec()

		c.Next()

		metrics.ApiTotal.WithLabelValues(route, "http", strconv.Itoa(c.Writer.Status())).Inc()
	}
}

type server struct {
	hook persist.Transport
}

type result struct {
	data   any
	code   int
	status string
	err    error
}

// sync issues one operation and writes its outcome once it settles.
func (s *server) sync(c *gin.Context, method persist.Method, target persist.Target, body any) {
	cq := make(chan *result, 1)

	h, err := s.hook.Sync(c.Request.Context(), method, target, &persist.Options{
		Body: body,
		Success: func(data any, code int, _ persist.Handle) {
			select {
			case cq <- &result{data: data, code: code}:
			default:
				panic("response channel must not block")
			}
		},
		Error: func(_ persist.Handle, status string, err error) {
			select {
			case cq <- &result{status: status, err: err}:
			default:
				panic("response channel must not block")
			}
		},
	})
	if err != nil {
		err := api.ServerError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	// a nil handle with no outcome means the operation was not sent
	var res *result
	if h == nil {
		select {
		case res = <-cq:
		default:
			c.Status(http.StatusNoContent)
			return
		}
	} else {
		select {
		case res = <-cq:
		case <-c.Request.Context().Done():
			h.Abort()
			return
		}
	}

	if res.err != nil {
		err := api.OperationError(res.status, res.err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	if res.code == http.StatusNoContent || res.data == nil {
		c.Status(res.code)
		return
	}

	c.JSON(res.code, res.data)
}

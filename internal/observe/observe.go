// Package observe subscribes to the global operation bus and reports every
// tracked operation: debug logs for issue and settlement, prometheus
// metrics, and json operation records handed to sink plugins.
package observe

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/metrics"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/xhr"
)

// Record is the operation record published to sinks.
type Record struct {
	Id       string `json:"id"`
	Method   string `json:"method"`
	Event    string `json:"event"`
	Url      string `json:"url"`
	Status   string `json:"status"`
	Code     int    `json:"code,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"durationMs"`
}

type sink struct {
	plugin aio.Plugin
	addr   []byte
}

type Observer struct {
	names   xhr.Names
	metrics *metrics.Metrics

	mu    sync.RWMutex
	sinks []*sink
}

func New(names xhr.Names, metrics *metrics.Metrics) *Observer {
	return &Observer{
		names:   names,
		metrics: metrics,
	}
}

// AddSink forwards the record of every settled operation to plugin, at
// addr.
func (o *Observer) AddSink(plugin aio.Plugin, addr []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sinks = append(o.sinks, &sink{plugin: plugin, addr: addr})
}

// Attach observes every operation published on bus, normally xhr.Global().
func (o *Observer) Attach(bus events.Source) *events.Subscription {
	return events.Subscribe(bus, o.names.Topic(""), func(_ events.Topic, c *xhr.Context) {
		o.observe(c)
	})
}

// Watch counts and logs the drains of target.
func (o *Observer) Watch(target persist.Target) *events.Subscription {
	return target.On(o.names.Drained(), func(events.Event) {
		slog.Info("xhr:drained", "url", target.URL())
		o.metrics.XhrDrains.Inc()
	})
}

func (o *Observer) observe(c *xhr.Context) {
	start := time.Now()
	method := c.Method().String()

	slog.Debug("xhr:issue", "op", c.ID(), "method", method, "event", c.Event(), "url", c.Options().URL)

	var mu sync.Mutex
	var sent bool

	c.On(xhr.BeforeSend, func(events.Event) {
		if c.PreventDefault() {
			return
		}

		mu.Lock()
		sent = true
		mu.Unlock()
		o.metrics.XhrInFlight.WithLabelValues(method).Inc()
	})

	events.Subscribe(c, xhr.Complete, func(_ events.Topic, r *xhr.Result) {
		mu.Lock()
		counted := sent
		mu.Unlock()
		if counted {
			o.metrics.XhrInFlight.WithLabelValues(method).Dec()
		}

		status := r.Type
		if r.Err != nil {
			status = r.Status
		}
		o.metrics.XhrTotal.WithLabelValues(method, status).Inc()

		if r.Err != nil {
			slog.Debug("xhr:settle", "op", c.ID(), "method", method, "status", status, "err", r.Err)
		} else {
			slog.Debug("xhr:settle", "op", c.ID(), "method", method, "status", status, "code", r.Code)
		}

		record := &Record{
			Id:       c.ID(),
			Method:   method,
			Event:    c.Event(),
			Url:      c.Options().URL,
			Status:   status,
			Code:     r.Code,
			Duration: time.Since(start).Milliseconds(),
		}
		if r.Err != nil {
			record.Error = r.Err.Error()
		}

		o.publish(record)
	})
}

func (o *Observer) publish(record *Record) {
	o.mu.RLock()
	sinks := o.sinks
	o.mu.RUnlock()

	if len(sinks) == 0 {
		return
	}

	body, err := json.Marshal(record)
	if err != nil {
		slog.Warn("failed to encode operation record", "op", record.Id, "err", err)
		return
	}

	for _, s := range sinks {
		plugin := s.plugin
		ok := plugin.Enqueue(&aio.Message{
			Addr: s.addr,
			Body: body,
			Done: func(success bool, err error) {
				if !success {
					slog.Warn("failed to publish operation record", "sink", plugin, "op", record.Id, "err", err)
				}
			},
		})
		if !ok {
			slog.Warn("sink queue full, dropping operation record", "sink", plugin, "op", record.Id)
		}
	}
}

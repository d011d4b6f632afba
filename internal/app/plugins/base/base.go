package base

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/metrics"
)

type BaseConfig struct {
	Size        int           `flag:"size" desc:"submission buffered channel size" default:"1000" validate:"gt=0"`
	Workers     int           `flag:"workers" desc:"number of workers" default:"4" validate:"gt=0"`
	Timeout     time.Duration `flag:"timeout" desc:"request timeout" default:"30s"`
	Retries     int           `flag:"retries" desc:"number of times a failed message is resent" default:"0" validate:"gte=0"`
	TimeToRetry time.Duration `flag:"ttr" desc:"time to wait before resending" default:"1s"`
}

// Processor delivers one message. It reports whether the message was
// delivered; a false result with a nil error is not retried.
type Processor interface {
	Process(addr []byte, body []byte) (bool, error)
}

type Worker struct {
	id        int
	sq        <-chan *aio.Message
	processor Processor
	config    *BaseConfig
	metrics   *metrics.Metrics
	name      string
}

type Plugin struct {
	name    string
	sq      chan *aio.Message
	workers []*Worker
	cleanup func() error
}

func NewPlugin(name string, config *BaseConfig, metrics *metrics.Metrics, processor Processor, cleanup func() error) *Plugin {
	sq := make(chan *aio.Message, config.Size)
	workers := make([]*Worker, config.Workers)

	for i := 0; i < config.Workers; i++ {
		workers[i] = &Worker{
			id:        i,
			sq:        sq,
			processor: processor,
			config:    config,
			metrics:   metrics,
			name:      name,
		}
	}

	return &Plugin{
		name:    name,
		sq:      sq,
		workers: workers,
		cleanup: cleanup,
	}
}

func (p *Plugin) String() string {
	return fmt.Sprintf("sink:%s", p.name)
}

func (p *Plugin) Type() string {
	return p.name
}

func (p *Plugin) Start(chan<- error) error {
	for _, worker := range p.workers {
		go worker.Start()
	}
	return nil
}

func (p *Plugin) Stop() error {
	if p.sq != nil {
		close(p.sq)
	}
	if p.cleanup != nil {
		return p.cleanup()
	}
	return nil
}

func (p *Plugin) Enqueue(msg *aio.Message) bool {
	if p.sq == nil || msg == nil {
		return false
	}

	select {
	case p.sq <- msg:
		return true
	default:
		return false
	}
}

func (w *Worker) String() string {
	return fmt.Sprintf("sink:%s", w.name)
}

func (w *Worker) Start() {
	counter := w.metrics.AioWorkerInFlight.WithLabelValues(w.String(), strconv.Itoa(w.id))
	w.metrics.AioWorker.WithLabelValues(w.String()).Inc()
	defer w.metrics.AioWorker.WithLabelValues(w.String()).Dec()

	for {
		msg, ok := <-w.sq
		if !ok {
			return
		}

		counter.Inc()
		success, err := w.process(msg)
		if err != nil {
			slog.Warn("failed to process message", "plugin", w.name, "err", err)
		}

		status := "success"
		if !success {
			status = "failure"
		}
		w.metrics.AioTotal.WithLabelValues(w.String(), status).Inc()

		if msg.Done != nil {
			msg.Done(success, err)
		}
		counter.Dec()
	}
}

func (w *Worker) process(msg *aio.Message) (bool, error) {
	var success bool
	var err error

	for attempt := 0; attempt <= w.config.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.config.TimeToRetry)
		}

		success, err = w.processor.Process(msg.Addr, msg.Body)
		if success || err == nil {
			break
		}
	}

	return success, err
}

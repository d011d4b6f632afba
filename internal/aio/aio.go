package aio

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/metrics"
	"github.com/resonatehq/syncevents/internal/util"
)

var ErrSubmissionQueueFull = errors.New("aio submission queue full")

type AIO interface {
	String() string
	AddSubsystem(kind t_aio.Kind, subsystem Subsystem, config *SubsystemConfig)
	Start() error
	Stop() error
	Enqueue(*bus.SQE[t_aio.Submission, t_aio.Completion])
	Dequeue(int) []*bus.CQE[t_aio.Submission, t_aio.Completion]
	Signal(<-chan any) <-chan any
	InFlight() int
}

type aio struct {
	cq         chan *bus.CQE[t_aio.Submission, t_aio.Completion]
	subsystems map[t_aio.Kind]*subsystemWrapper
	signal     chan struct{}
	inflight   atomic.Int64
	metrics    *metrics.Metrics
}

type subsystemWrapper struct {
	Subsystem
	sq      chan<- *bus.SQE[t_aio.Submission, t_aio.Completion]
	workers []*workerWrapper
}

type workerWrapper struct {
	Worker
	name      string
	i         int
	sq        <-chan *bus.SQE[t_aio.Submission, t_aio.Completion]
	cq        chan<- *bus.CQE[t_aio.Submission, t_aio.Completion]
	signal    chan<- struct{}
	batchSize int
	metrics   *metrics.Metrics
}

func New(size int, metrics *metrics.Metrics) AIO {
	return &aio{
		cq:         make(chan *bus.CQE[t_aio.Submission, t_aio.Completion], size),
		subsystems: map[t_aio.Kind]*subsystemWrapper{},
		signal:     make(chan struct{}, 1),
		metrics:    metrics,
	}
}

func (a *aio) AddSubsystem(kind t_aio.Kind, subsystem Subsystem, config *SubsystemConfig) {
	sq := make(chan *bus.SQE[t_aio.Submission, t_aio.Completion], config.Size)
	workers := make([]*workerWrapper, config.Workers)

	for i := 0; i < config.Workers; i++ {
		workers[i] = &workerWrapper{
			Worker:    subsystem.NewWorker(i),
			name:      kind.String(),
			i:         i,
			sq:        sq,
			cq:        a.cq,
			signal:    a.signal,
			batchSize: config.BatchSize,
			metrics:   a.metrics,
		}
	}

	a.subsystems[kind] = &subsystemWrapper{
		Subsystem: subsystem,
		sq:        sq,
		workers:   workers,
	}
}

func (a *aio) Start() error {
	for _, subsystem := range util.OrderedRange(a.subsystems) {
		if err := subsystem.Start(); err != nil {
			return err
		}
		for _, worker := range subsystem.workers {
			go worker.start()
		}
	}

	return nil
}

// Stop closes the submission queues and stops the subsystems. Completions
// still queued remain available to Dequeue.
func (a *aio) Stop() error {
	for _, subsystem := range util.OrderedRange(a.subsystems) {
		close(subsystem.sq)

		if err := subsystem.Stop(); err != nil {
			return err
		}
	}

	return nil
}

func (a *aio) Enqueue(sqe *bus.SQE[t_aio.Submission, t_aio.Completion]) {
	subsystem, ok := a.subsystems[sqe.Submission.Kind]
	util.Assert(ok, fmt.Sprintf("no subsystem registered for aio kind %s", sqe.Submission.Kind))
	util.Assert(sqe.Metadata != nil, "metadata must be set")

	sqe.Metadata.Tags.Set("aio", sqe.Submission.Kind.String())

	select {
	case subsystem.sq <- sqe:
		slog.Debug("aio:enqueue", "sqe", sqe)
		a.inflight.Add(1)
		a.metrics.AioInFlight.WithLabelValues(sqe.Submission.Kind.String()).Inc()
	default:
		sqe.Callback(nil, fmt.Errorf("aio:subsystem:%s: %w", subsystem, ErrSubmissionQueueFull))
	}
}

func (a *aio) Dequeue(n int) []*bus.CQE[t_aio.Submission, t_aio.Completion] {
	cqes := []*bus.CQE[t_aio.Submission, t_aio.Completion]{}

	// collects n entries or until the channel is
	// exhausted, whichever happens first
	for i := 0; i < n; i++ {
		select {
		case cqe := <-a.cq:
			var status string
			if cqe.Error != nil {
				status = "failure"
			} else {
				status = "success"
			}

			kind := cqe.Metadata.Tags.Get("aio")
			a.metrics.AioTotal.WithLabelValues(kind, status).Inc()
			a.metrics.AioInFlight.WithLabelValues(kind).Dec()
			a.inflight.Add(-1)

			slog.Debug("aio:dequeue", "cqe", cqe)
			cqes = append(cqes, cqe)
		default:
			return cqes
		}
	}

	return cqes
}

// Signal returns a channel that is closed once completions are available to
// Dequeue, or when cancel is closed.
func (a *aio) Signal(cancel <-chan any) <-chan any {
	ch := make(chan any)

	go func() {
		defer close(ch)

		select {
		case <-a.signal:
		case <-cancel:
		}
	}()

	return ch
}

// InFlight returns the number of submissions enqueued and not dequeued yet.
func (a *aio) InFlight() int {
	return int(a.inflight.Load())
}

func (a *aio) String() string {
	return fmt.Sprintf(
		"AIO(size=%d, subsystems=%s)",
		cap(a.cq),
		util.OrderedRange(a.subsystems),
	)
}

// worker

func (w *workerWrapper) start() {
	counter := w.metrics.AioWorkerInFlight.WithLabelValues(w.name, strconv.Itoa(w.i))
	w.metrics.AioWorker.WithLabelValues(w.name).Inc()
	defer w.metrics.AioWorker.WithLabelValues(w.name).Dec()

	for {
		sqes, ok := w.collect()
		if len(sqes) > 0 {
			counter.Set(float64(len(sqes)))
			for i, cqe := range w.Process(sqes) {
				cqe.Metadata = sqes[i].Metadata
				w.cq <- cqe
				w.notify()
				counter.Dec()
			}
		}
		if !ok {
			return
		}
	}
}

// collect blocks for one submission and then takes whatever else is queued,
// up to the batch size. Submissions abandoned by their submitter complete
// with the context error without reaching the worker.
func (w *workerWrapper) collect() ([]*bus.SQE[t_aio.Submission, t_aio.Completion], bool) {
	sqes := []*bus.SQE[t_aio.Submission, t_aio.Completion]{}

	sqe, ok := <-w.sq
	if !ok {
		return sqes, false
	}
	sqes = w.admit(sqes, sqe)

	for len(sqes) < w.batchSize {
		select {
		case sqe, ok := <-w.sq:
			if !ok {
				return sqes, false
			}
			sqes = w.admit(sqes, sqe)
		default:
			return sqes, true
		}
	}

	return sqes, true
}

func (w *workerWrapper) admit(sqes []*bus.SQE[t_aio.Submission, t_aio.Completion], sqe *bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.SQE[t_aio.Submission, t_aio.Completion] {
	if err := sqe.Context().Err(); err != nil {
		w.cq <- &bus.CQE[t_aio.Submission, t_aio.Completion]{
			Metadata: sqe.Metadata,
			Callback: sqe.Callback,
			Error:    err,
		}
		w.notify()
		return sqes
	}
	return append(sqes, sqe)
}

func (w *workerWrapper) notify() {
	// a pending signal already wakes the loop
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

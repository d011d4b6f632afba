package util

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resonatehq/syncevents/cmd/config"
	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/kernel/system"
	"github.com/resonatehq/syncevents/internal/metrics"
	"github.com/resonatehq/syncevents/internal/observe"
	"github.com/resonatehq/syncevents/internal/transport"
	"github.com/resonatehq/syncevents/pkg/events"
	"github.com/resonatehq/syncevents/pkg/lifecycle"
	"github.com/resonatehq/syncevents/pkg/persist"
	"github.com/resonatehq/syncevents/pkg/xhr"
)

// Runtime is the persistence chain used by a command: the aio subsystems
// driven by the system loop in the background, behind a dispatcher with both
// trackers installed.
type Runtime struct {
	Dispatcher *persist.Dispatcher
	Metrics    *metrics.Metrics
	Observer   *observe.Observer

	aio    aio.AIO
	system *system.System
	sub    *events.Subscription
	done   chan error
}

func Start(cfg *config.Config, reg prometheus.Registerer) (*Runtime, error) {
	if err := xhr.Configure(cfg.Xhr); err != nil {
		return nil, err
	}

	metrics := metrics.New(reg)

	// aio
	a := aio.New(cfg.AIO.Size, metrics)
	kinds, err := cfg.AIO.Subsystems.Instantiate(a)
	if err != nil {
		return nil, err
	}
	if err := a.Start(); err != nil {
		slog.Error("failed to start aio", "error", err)
		return nil, err
	}

	// control loop
	s := system.New(a, &cfg.System)
	done := make(chan error, 1)
	go func() {
		done <- s.Loop()
	}()

	// observer
	observer := observe.New(xhr.CurrentNames(), metrics)
	sub := observer.Attach(xhr.Global())

	return &Runtime{
		Dispatcher: persist.NewDispatcher(transport.New(a, kinds...), lifecycle.Middleware(), xhr.Middleware()),
		Metrics:    metrics,
		Observer:   observer,
		aio:        a,
		system:     s,
		sub:        sub,
		done:       done,
	}, nil
}

// Stop waits for every operation in flight to settle, then stops the aio
// subsystems.
func (r *Runtime) Stop() error {
	<-r.system.Shutdown()
	xhr.Global().Off(r.sub)

	if err := <-r.done; err != nil {
		slog.Error("control loop failed", "error", err)
		return err
	}
	if err := r.aio.Stop(); err != nil {
		slog.Error("failed to stop aio", "error", err)
		return err
	}

	return nil
}

package system

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/util"
)

type Config struct {
	CompletionBatchSize int           `flag:"completion-batch-size" desc:"max completions processed per tick" default:"1000" validate:"gt=0"`
	SignalTimeout       time.Duration `flag:"signal-timeout" desc:"time to wait for an aio signal" default:"1s" validate:"gt=0"`
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config(cbs=%d, st=%s)",
		c.CompletionBatchSize,
		c.SignalTimeout,
	)
}

// System is the completion loop. Every completion callback runs on the
// goroutine running Loop, one at a time, so persistence callbacks and the
// events they trigger never run concurrently with each other.
type System struct {
	aio          aio.AIO
	config       *Config
	shutdown     chan any
	shortCircuit chan any
	stopping     chan any
	once         sync.Once
}

func New(aio aio.AIO, config *Config) *System {
	return &System{
		aio:          aio,
		config:       config,
		shutdown:     make(chan any),
		shortCircuit: make(chan any),
		stopping:     make(chan any),
	}
}

func (s *System) String() string {
	return fmt.Sprintf(
		"System(aio=%s, config=%s)",
		s.aio,
		s.config,
	)
}

func (s *System) Loop() error {
	defer close(s.shutdown)

	for {
		// tick first
		s.Tick(time.Now().UnixMilli())

		// complete shutdown if done
		if s.Done() {
			return nil
		}

		// create signal
		cancel := make(chan any)
		aioSignal := s.aio.Signal(cancel)

		// wait for a signal, short circuit, or timeout; whichever occurs
		// first
		select {
		case <-aioSignal:
		case <-s.shortCircuit:
		case <-time.After(s.config.SignalTimeout):
		}

		// close the cancel channel so the aio can stop listening and wait
		// for the signal channel to close
		close(cancel)
		<-aioSignal
	}
}

// Tick runs the callbacks of the completions available now.
func (s *System) Tick(t int64) {
	util.Assert(s.config.CompletionBatchSize > 0, "completion batch size must be greater than zero")

	cqes := s.aio.Dequeue(s.config.CompletionBatchSize)
	util.Assert(len(cqes) <= s.config.CompletionBatchSize, "cqe length must be no greater than the completion batch size")

	for _, cqe := range cqes {
		slog.Debug("system:complete", "t", t, "cqe", cqe)
		cqe.Callback(cqe.Completion, cqe.Error)
	}
}

// Shutdown asks the loop to return once every in flight submission has
// completed. The returned channel is closed when it has.
func (s *System) Shutdown() <-chan any {
	s.once.Do(func() {
		close(s.stopping)

		// short circuit the system loop
		close(s.shortCircuit)
	})

	return s.shutdown
}

func (s *System) Done() bool {
	select {
	case <-s.stopping:
		return s.aio.InFlight() == 0
	default:
		return false
	}
}

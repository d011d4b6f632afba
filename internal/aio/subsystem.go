package aio

import (
	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
)

type Subsystem interface {
	String() string
	NewWorker(int) Worker
	Start() error
	Stop() error
}

// Worker processes batches of submissions. Process returns one completion
// per submission, in submission order.
type Worker interface {
	Process([]*bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.CQE[t_aio.Submission, t_aio.Completion]
}

type SubsystemConfig struct {
	Size      int `flag:"size" desc:"submission buffered channel size" default:"100" validate:"gt=0"`
	Workers   int `flag:"workers" desc:"number of workers" default:"1" validate:"gt=0"`
	BatchSize int `flag:"batch-size" desc:"max submissions processed per iteration" default:"100" validate:"gt=0"`
}

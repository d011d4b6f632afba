package echo

import (
	"github.com/resonatehq/syncevents/internal/aio"
	"github.com/resonatehq/syncevents/internal/kernel/bus"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
	"github.com/resonatehq/syncevents/internal/util"
)

// Echo answers every submission with its own data. Targets synced through it
// receive the body they sent.
type Echo struct{}

type EchoDevice struct{}

func New() aio.Subsystem {
	return &Echo{}
}

func (e *Echo) String() string {
	return "echo"
}

func (e *Echo) Start() error {
	return nil
}

func (e *Echo) Stop() error {
	return nil
}

func (e *Echo) NewWorker(int) aio.Worker {
	return &EchoDevice{}
}

func (d *EchoDevice) Process(sqes []*bus.SQE[t_aio.Submission, t_aio.Completion]) []*bus.CQE[t_aio.Submission, t_aio.Completion] {
	cqes := make([]*bus.CQE[t_aio.Submission, t_aio.Completion], len(sqes))

	for i, sqe := range sqes {
		util.Assert(sqe.Submission.Echo != nil, "submission must not be nil")

		cqes[i] = &bus.CQE[t_aio.Submission, t_aio.Completion]{
			Completion: &t_aio.Completion{
				Kind: t_aio.Echo,
				Echo: &t_aio.EchoCompletion{
					Data: sqe.Submission.Echo.Data,
				},
			},
			Callback: sqe.Callback,
		}
	}

	return cqes
}

package bus

import (
	"context"
	"fmt"

	"github.com/resonatehq/syncevents/internal/kernel/metadata"
	"github.com/resonatehq/syncevents/internal/kernel/t_aio"
)

type Input interface {
	t_aio.Submission
}

type Output interface {
	t_aio.Completion
}

type SQE[I Input, O Output] struct {
	Metadata   *metadata.Metadata
	Submission *I
	Callback   func(*O, error)

	// Ctx is cancelled when the submitter abandons the submission. Workers
	// skip cancelled submissions and pass Ctx on to blocking calls.
	Ctx context.Context
}

func (sqe *SQE[I, O]) String() string {
	return fmt.Sprintf("SQE(metadata=%s, submission=%v)", sqe.Metadata, sqe.Submission)
}

// Context returns Ctx, or a background context when none was given.
func (sqe *SQE[I, O]) Context() context.Context {
	if sqe.Ctx == nil {
		return context.Background()
	}
	return sqe.Ctx
}

type CQE[I Input, O Output] struct {
	Metadata   *metadata.Metadata
	Completion *O
	Callback   func(*O, error)

	// reserved for platform level errors, the submission did not complete
	Error error
}

func (cqe *CQE[I, O]) String() string {
	return fmt.Sprintf("CQE(metadata=%s, completion=%v, error=%v)", cqe.Metadata, cqe.Completion, cqe.Error)
}

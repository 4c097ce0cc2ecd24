package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var ErrJobCanceled = errors.New("job canceled")

// Job is one collection or sermon retrieval. Per-item failures belong in the
// job's own report; an error returned from Run is fatal for the whole batch.
type Job struct {
	Name string
	Run  func(ctx context.Context, logger zerolog.Logger) error
}

// Runner caps the number of jobs in flight. A Runner may be shared by
// several batches, in which case the cap applies to all of them together.
type Runner struct {
	sem *semaphore.Weighted
}

func NewRunner(maxConcurrency int) *Runner {
	return &Runner{
		sem: semaphore.NewWeighted(int64(max(maxConcurrency, 1))),
	}
}

// Run starts every job and waits for all of them. The first job error
// cancels the jobs still running or waiting with ErrJobCanceled as the cause
// and is returned.
func (r *Runner) Run(ctx context.Context, logger zerolog.Logger, jobs []Job) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var g errgroup.Group
	for _, job := range jobs {
		logger := logger.With().Str("job", job.Name).Logger()

		g.Go(func() error {
			if err := r.sem.Acquire(ctx, 1); nil != err {
				logger.Debug().Msg("Job canceled before start")
				return context.Cause(ctx)
			}
			defer r.sem.Release(1)

			if nil != ctx.Err() {
				return context.Cause(ctx)
			}

			logger.Debug().Msg("Job started")
			if err := job.Run(ctx, logger); nil != err {
				cancel(ErrJobCanceled)
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
			logger.Debug().Msg("Job finished")

			return nil
		})
	}

	return g.Wait()
}

package broadcast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

type scheduledJob struct {
	name     string
	interval time.Duration
	run      Job
	lastRun  time.Time
}

// Scheduler runs registered jobs at fixed intervals. Jobs run one at a
// time in registration order, so a family registered first always
// publishes before one registered later on a shared tick, and a job can
// never overlap itself.
type Scheduler struct {
	log        *zap.SugaredLogger
	jobTimeout time.Duration
	tick       time.Duration
	now        func() time.Time
	jobs       []*scheduledJob
}

// DefaultJobTimeout bounds one job execution; a wedged database query
// must not stall every other family forever.
const DefaultJobTimeout = 10 * time.Second

// NewScheduler builds an empty scheduler. A zero timeout means
// DefaultJobTimeout.
func NewScheduler(log *zap.SugaredLogger, jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	return &Scheduler{
		log:        log,
		jobTimeout: jobTimeout,
		tick:       time.Second,
		now:        time.Now,
	}
}

// Every registers a job to run each time interval has elapsed since its
// previous run. The first run happens on the first tick. Registration is
// not safe once Run has started.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	s.jobs = append(s.jobs, &scheduledJob{name: name, interval: interval, run: job})
}

// Run ticks once a second until the context is canceled, running every
// due job. A failing or panicking job is logged and retried on its next
// interval; it never takes the scheduler down.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPending(ctx)
		}
	}
}

func (s *Scheduler) runPending(ctx context.Context) {
	now := s.now()
	for _, job := range s.jobs {
		if !job.lastRun.IsZero() && now.Sub(job.lastRun) < job.interval {
			continue
		}
		job.lastRun = now
		if err := s.runOne(ctx, job); err != nil {
			s.log.Errorw("scheduled job failed", "job", job.name, "error", err)
		}
	}
}

func (s *Scheduler) runOne(ctx context.Context, job *scheduledJob) (err error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.run(jobCtx)
}

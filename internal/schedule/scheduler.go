// Package schedule wraps gocron for the periodic work of the daemon: polling
// watched paths and probing the relay link.
package schedule

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
)

// Scheduler runs named periodic tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	clock clockwork.Clock
}

// WithClock drives the scheduler from clock instead of wall time.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates a started scheduler.
func New(opts ...Option) (*Scheduler, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	var gopts []gocron.SchedulerOption
	if o.clock != nil {
		gopts = append(gopts, gocron.WithClock(o.clock))
	}
	s, err := gocron.NewScheduler(gopts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create scheduler").Build()
	}
	s.Start()
	return &Scheduler{scheduler: s}, nil
}

// Every runs task at a fixed interval. Runs never overlap: a run still in
// progress when the next one is due causes that tick to be skipped.
func (s *Scheduler) Every(name string, interval time.Duration, task func()) (uuid.UUID, error) {
	if interval <= 0 {
		return uuid.Nil, ferrors.ValidationError("interval must be positive").
			WithContext("job", name).
			WithContext("interval", interval.String()).
			Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return uuid.Nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to schedule job").
			WithContext("job", name).
			Build()
	}
	slog.Debug("Scheduled job", slog.String("job", name), slog.Duration("interval", interval))
	return job.ID(), nil
}

// Remove cancels a job. Unknown ids are ignored.
func (s *Scheduler) Remove(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	_ = s.scheduler.RemoveJob(id)
}

// Stop shuts the scheduler down and waits for running tasks.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

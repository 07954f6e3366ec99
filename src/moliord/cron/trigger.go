// Package cron periodically enqueues the schedule task onto the Worker's
// task queue, so needs_build deb builds are promoted even when nothing else
// triggers a scheduler pass.
package cron

import (
	"fmt"
	"time"

	"github.com/bitswalk/molior/src/common/logs"
	"github.com/bitswalk/molior/src/moliord/engine"
	"github.com/go-co-op/gocron/v2"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the cron package.
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Trigger fires engine.ScheduleTask onto a TaskQueue at a fixed interval.
type Trigger struct {
	scheduler gocron.Scheduler
}

// New creates a Trigger that enqueues a ScheduleTask every interval. The
// scheduler is not started until Start is called.
func New(queue *engine.TaskQueue, interval time.Duration) (*Trigger, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler pass trigger: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			queue.Enqueue(engine.ScheduleTask{})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register scheduler pass job: %w", err)
	}

	return &Trigger{scheduler: s}, nil
}

// Start begins firing the scheduler pass trigger in the background.
func (t *Trigger) Start() {
	log.Info("scheduler pass trigger started")
	t.scheduler.Start()
}

// Stop halts the trigger, waiting for any in-flight fire to complete.
func (t *Trigger) Stop() error {
	if err := t.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler pass trigger: %w", err)
	}
	return nil
}

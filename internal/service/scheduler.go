package service

import (
	"context"
	"time"

	"github.com/shivanandham/pregnancy-assistant/internal/logx"
)

// Task is an idempotent unit of scheduled work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler owns a single timer and runs its tasks on every tick. It is
// fully decoupled from the request path.
type Scheduler struct {
	interval time.Duration
	tasks    []Task
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(interval time.Duration, tasks ...Task) *Scheduler {
	return &Scheduler{
		interval: interval,
		tasks:    tasks,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the timer loop. Tasks also run once at startup so a
// restarted process does not wait a full interval for overdue work.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		s.runAll()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runAll()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runAll() {
	for _, task := range s.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if err := task.Run(ctx); err != nil {
			logx.Error().Err(err).Str("task", task.Name).Msg("scheduled task failed")
		} else {
			logx.Info().Str("task", task.Name).Msg("scheduled task completed")
		}
		cancel()
	}
}

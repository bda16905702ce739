// Package jobs runs periodic maintenance next to the HTTP server.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger *slog.Logger
	jobs   []Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool
	isRunning       bool
}

func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		jobs:   jobs,
		ctx:    ctx,
		cancel: cancel,
	}
}

// executeJobSafely runs a job only if no other job is currently executing.
// It reports whether the job ran; a job that panics still counts as run.
func (s *Scheduler) executeJobSafely(job Job) (ran bool) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name))
		s.processingMutex.Unlock()
		return false
	}
	s.isProcessing = true
	s.processingMutex.Unlock()
	ran = true

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name), slog.Any("error", err))
	}
	return ran
}

// Start launches one ticker loop per job. Jobs with a non-positive interval
// are skipped.
func (s *Scheduler) Start() error {
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.isRunning = true

	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.Info("Background job disabled", slog.String("job", job.Name))
			continue
		}

		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					s.executeJobSafely(job)
				case <-s.ctx.Done():
					return
				}
			}
		}(job)
		s.logger.Info("Started background job", slog.String("job", job.Name), slog.Duration("interval", job.Interval))
	}
	return nil
}

// Stop halts all background jobs and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// RunNow executes the named job once, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			if !s.executeJobSafely(job) {
				return fmt.Errorf("job %s skipped: another job is running", name)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

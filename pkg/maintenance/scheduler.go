// Package maintenance runs periodic housekeeping jobs, such as database
// optimization, next to a long running server.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rubiojr/resdir/pkg/log"
)

// Optimizer is implemented by stores that can refresh planner statistics
// and compact themselves.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Job is a named task run every Interval. An Interval of zero registers the
// job for RunOnce only.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	clock  clock.Clock
	logger *log.Logger

	mu      sync.Mutex
	jobs    []Job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler returns a stopped scheduler. A nil clock means wall time.
func NewScheduler(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clock:  clk,
		logger: log.ForService("maintenance"),
	}
}

// Add registers a job. Jobs added while the scheduler is running start
// ticking right away.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if job.Interval < 0 {
		return fmt.Errorf("job %s has a negative interval", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)

	if s.running {
		s.startJob(job)
	}
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name
	}
	return names
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}
	if len(s.jobs) == 0 {
		return errors.New("no jobs configured")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopCh = make(chan struct{})
	s.running = true

	for _, job := range s.jobs {
		s.startJob(job)
	}
	s.logger.Infof("scheduler started with %d jobs", len(s.jobs))
	return nil
}

// startJob must be called with mu held.
func (s *Scheduler) startJob(job Job) {
	if job.Interval == 0 {
		s.logger.Debugf("job %s has no interval, not scheduling it", job.Name)
		return
	}
	ticker := s.clock.Ticker(job.Interval)
	s.wg.Add(1)
	go s.runJob(s.ctx, s.stopCh, job, ticker)
	s.logger.Infof("scheduled %s every %v", job.Name, job.Interval)
}

func (s *Scheduler) runJob(ctx context.Context, stopCh <-chan struct{}, job Job, ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := s.clock.Now()
	s.logger.Debugf("running %s", job.Name)
	if err := job.Run(ctx); err != nil {
		s.logger.Errorf("%s failed: %v", job.Name, err)
		return fmt.Errorf("%s: %w", job.Name, err)
	}
	s.logger.Infof("%s finished in %v", job.Name, s.clock.Since(start))
	return nil
}

// RunOnce runs every registered job now, in order, and joins their errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.execute(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop halts every ticker and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Infof("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

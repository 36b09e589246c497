package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bastionproject/bastion/internal/logging"
)

// JobFunc is the work a scheduled job performs.
type JobFunc func(ctx context.Context) error

// Job is one named recurring task.
type Job struct {
	Name     string
	Schedule *Schedule
	Run      JobFunc

	mu        sync.Mutex
	lastRun   time.Time
	lastError error
}

// JobStatus is a point-in-time snapshot of one job.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	NextRun   time.Time  `json:"nextRun"`
}

// Scheduler runs a set of named jobs, each on its own schedule.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []*Job
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{stop: make(chan struct{})}
}

// Register adds a job. Registration after Start has no effect on the
// running set.
func (s *Scheduler) Register(name, expr string, fn JobFunc) error {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &Job{Name: name, Schedule: schedule, Run: fn})
	return nil
}

// Start launches one goroutine per registered job.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	jobs := s.jobs
	s.mu.Unlock()

	for _, job := range jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}
	logging.Info("scheduler started", logging.Int("jobs", len(jobs)))
}

// Stop halts all jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stop)
	s.wg.Wait()
	logging.Info("scheduler stopped")
}

// Status reports all jobs.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	jobs := s.jobs
	s.mu.Unlock()

	now := time.Now()
	statuses := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		job.mu.Lock()
		st := JobStatus{Name: job.Name, Schedule: job.Schedule.String()}
		if !job.lastRun.IsZero() {
			lr := job.lastRun
			st.LastRun = &lr
			st.NextRun = job.Schedule.NextRun(lr)
		} else {
			st.NextRun = job.Schedule.NextRun(now)
		}
		if job.lastError != nil {
			st.LastError = job.lastError.Error()
		}
		job.mu.Unlock()
		statuses = append(statuses, st)
	}
	return statuses
}

func (s *Scheduler) runJob(job *Job) {
	defer s.wg.Done()

	nextRun := job.Schedule.NextRun(time.Now())
	logging.Info("job scheduled",
		logging.String("job", job.Name),
		logging.String("schedule", job.Schedule.String()),
		logging.Time("nextRun", nextRun))

	for {
		waitDuration := time.Until(nextRun)
		if waitDuration < 0 {
			waitDuration = time.Second
		}

		select {
		case <-s.stop:
			return
		case <-time.After(waitDuration):
			start := time.Now()
			err := job.Run(context.Background())

			job.mu.Lock()
			job.lastRun = time.Now()
			job.lastError = err
			job.mu.Unlock()

			if err != nil {
				logging.Error("scheduled job failed",
					logging.String("job", job.Name), logging.Err(err))
			} else {
				logging.Info("scheduled job completed",
					logging.String("job", job.Name),
					logging.Duration("took", time.Since(start)))
			}

			nextRun = job.Schedule.NextRun(time.Now())
		}
	}
}

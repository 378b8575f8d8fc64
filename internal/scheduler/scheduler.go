package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned when a trigger names a job that was never
// registered
var ErrUnknownJob = errors.New("no such job")

// Job is a unit of background work: the price refresh and the database
// maintenance. Run must be safe to call from the cron goroutine and
// from a manual HTTP trigger at the same time; jobs guard their own
// overlap.
type Job interface {
	Run() error
	Name() string
}

// JobStatus describes a registered job for the system status endpoint
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler runs registered jobs on cron schedules (with a seconds
// field) and on demand by name, recording each job's last run outcome.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu        sync.Mutex
	jobs      map[string]Job
	schedules map[string]string
	lastRun   map[string]time.Time
	lastErr   map[string]error
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		log:       log.With().Str("component", "scheduler").Logger(),
		jobs:      make(map[string]Job),
		schedules: make(map[string]string),
		lastRun:   make(map[string]time.Time),
		lastErr:   make(map[string]error),
	}
}

// Start begins running the registered schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop stops the cron loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job under its name with a cron schedule such as
// "0 0 22 * * MON-FRI" or "@every 1h".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}

	s.mu.Lock()
	s.jobs[job.Name()] = job
	s.schedules[job.Name()] = schedule
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow triggers a registered job by name, outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	s.log.Info().Str("job", name).Msg("Running job on demand")
	return s.execute(job)
}

// Jobs returns the registered jobs with their last run outcome, sorted
// by name
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for name := range s.jobs {
		status := JobStatus{
			Name:     name,
			Schedule: s.schedules[name],
			LastRun:  s.lastRun[name],
		}
		if err := s.lastErr[name]; err != nil {
			status.LastError = err.Error()
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// execute runs a job and records its outcome
func (s *Scheduler) execute(job Job) error {
	start := time.Now()
	err := job.Run()

	s.mu.Lock()
	s.lastRun[job.Name()] = start
	s.lastErr[job.Name()] = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		return err
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration", time.Since(start)).
		Msg("Job completed")
	return nil
}

// Package jobs runs named background tasks on cron schedules and on demand.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/pkg/logger"
)

var (
	ErrUnknownJob    = errors.New("unknown job")
	ErrJobRunning    = errors.New("job already running")
	ErrDuplicateJob  = errors.New("job already registered")
	ErrRunnerStarted = errors.New("runner already started")
)

// Task is the body of a job. The same function runs for scheduled and manual
// triggers.
type Task func(ctx context.Context) error

type JobStatus struct {
	Name         string     `json:"name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	Runs         int        `json:"runs"`
	Failures     int        `json:"failures"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastDuration string     `json:"last_duration,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextRunAt    *time.Time `json:"next_run_at,omitempty"`
}

type job struct {
	name    string
	spec    string
	task    Task
	entryID cron.EntryID

	running  bool
	runs     int
	failures int
	lastRun  *time.Time
	lastDur  time.Duration
	lastErr  string
}

type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context
	clock   clockwork.Clock
	logger  *logrus.Entry

	mu        sync.Mutex
	jobs      map[string]*job
	order     []string
	isRunning bool
	wg        sync.WaitGroup
}

func NewRunner(baseCtx context.Context, loc *time.Location, clock clockwork.Clock, log *logrus.Logger) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	entry := logger.WithComponent(log, "jobs")
	cl := cronLogger{entry: entry}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		baseCtx: baseCtx,
		clock:   clock,
		logger:  entry,
		jobs:    make(map[string]*job),
	}
}

// Register adds a job under a standard five-field cron spec.
func (r *Runner) Register(name, spec string, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrDuplicateJob)
	}

	j := &job{name: name, spec: spec, task: task}
	id, err := r.cron.AddFunc(spec, func() {
		if err := r.RunNow(r.baseCtx, name); err != nil && !errors.Is(err, ErrJobRunning) {
			r.logger.WithError(err).WithField("job", name).Error("Scheduled job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s (%q): %w", name, spec, err)
	}
	j.entryID = id
	r.jobs[name] = j
	r.order = append(r.order, name)
	return nil
}

func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return ErrRunnerStarted
	}
	r.cron.Start()
	r.isRunning = true
	r.logger.WithField("jobs", len(r.jobs)).Info("Job runner started")
	return nil
}

// Stop halts the schedule and waits for running jobs, including manual ones.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		r.wg.Wait()
		return
	}
	r.isRunning = false
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.wg.Wait()
	r.logger.Info("Job runner stopped")
}

// Trigger starts a job in the background and returns at once.
func (r *Runner) Trigger(name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	if j.running {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrJobRunning)
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.RunNow(r.baseCtx, name); err != nil && !errors.Is(err, ErrJobRunning) {
			r.logger.WithError(err).WithField("job", name).Error("Triggered job failed")
		}
	}()
	return nil
}

// RunNow runs a job on the calling goroutine. A job never overlaps itself.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	j, ok := r.jobs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	if j.running {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", name, ErrJobRunning)
	}
	j.running = true
	r.mu.Unlock()

	start := r.clock.Now()
	r.logger.WithField("job", name).Info("Job started")
	err := j.task(ctx)
	elapsed := r.clock.Since(start)

	r.mu.Lock()
	j.running = false
	j.runs++
	j.lastRun = &start
	j.lastDur = elapsed
	j.lastErr = ""
	if err != nil {
		j.failures++
		j.lastErr = err.Error()
	}
	r.mu.Unlock()

	entry := r.logger.WithFields(logrus.Fields{"job": name, "duration": elapsed})
	if err != nil {
		entry.WithError(err).Warn("Job finished with error")
		return err
	}
	entry.Info("Job finished")
	return nil
}

// Status lists every job in registration order.
func (r *Runner) Status() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]JobStatus, 0, len(r.order))
	for _, name := range r.order {
		j := r.jobs[name]
		st := JobStatus{
			Name:      j.name,
			Schedule:  j.spec,
			Running:   j.running,
			Runs:      j.runs,
			Failures:  j.failures,
			LastRunAt: j.lastRun,
			LastError: j.lastErr,
		}
		if j.lastRun != nil {
			st.LastDuration = j.lastDur.String()
		}
		if r.isRunning {
			if next := r.cron.Entry(j.entryID).Next; !next.IsZero() {
				st.NextRunAt = &next
			}
		}
		out = append(out, st)
	}
	return out
}

// cronLogger routes cron's own messages through logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

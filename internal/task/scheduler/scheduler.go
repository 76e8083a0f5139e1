package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "guildmirror/pkg/logx"
)

// Job is one scheduled run. ctx ends when the scheduler stops.
type Job func(ctx context.Context)

type Scheduler struct {
	log logx.Logger
	c   *cron.Cron
	job Job

	mu    sync.Mutex
	ctx   context.Context
	entry cron.EntryID
	spec  Spec

	running atomic.Bool
	wg      sync.WaitGroup
	skipped atomic.Uint64
}

// New returns a stopped scheduler evaluating schedules in loc (nil means
// local time).
func New(loc *time.Location, job Job, log logx.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "scheduler"))
	cl := cronLogger{log: log}
	return &Scheduler{
		log: log,
		c: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		job: job,
		ctx: context.Background(),
	}
}

// cronLogger routes robfig/cron's logging into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}

// LoadLocation resolves a timezone name; empty means local time.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// Set installs spec as the only schedule, replacing any previous one.
func (s *Scheduler) Set(spec Spec) error {
	sched, err := spec.schedule()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 {
		s.c.Remove(s.entry)
	}
	s.entry = s.c.Schedule(sched, cron.FuncJob(s.fire))
	s.spec = spec
	s.log.Info("schedule set", logx.String("spec", spec.String()), logx.Time("next", s.nextLocked()))
	return nil
}

func (s *Scheduler) Spec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Next is the next fire time, zero when no schedule is set or the
// scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Scheduler) nextLocked() time.Time {
	if s.entry == 0 {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

func (s *Scheduler) Skipped() uint64 { return s.skipped.Load() }

// Start begins firing; jobs get ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.c.Start()
}

// Stop stops new ticks and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	<-s.c.Stop().Done()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("scheduler: job still running"), ctx.Err())
	}
}

// RunNow runs the job on the caller's goroutine unless one is already
// running. It reports whether the job ran.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn("run skipped, previous run still in progress")
		return false
	}
	s.wg.Add(1)
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()
	s.job(ctx)
	return true
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.RunNow(ctx)
	s.log.Debug("next run", logx.Time("at", s.Next()))
}

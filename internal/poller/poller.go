// Package poller schedules periodic read requests for named point groups,
// grounded directly on the teacher's poller/poller.go: one ticking job per
// group, a TimeNow injection point for deterministic tests, and per-job
// statistics logged on a periodic health tick.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const jobHealthTickInterval = 60 * time.Second

// defaultWarmUp matches spec.md §4.5's "wait a warm-up interval (≈20s) to
// let the bus quiesce" before the first poll of any group.
const defaultWarmUp = 20 * time.Second

// Reader issues a read request for the given points, blocking until the
// request (and any chunking/pacing within it) has been submitted. Normally
// producer.Producer.Read.
type Reader func(ctx context.Context, points []string) error

// Group is a named set of points polled together on a single schedule.
type Group struct {
	Name     string
	Points   []string
	Interval time.Duration
	Enabled  bool
}

// Config configures a Poller.
type Config struct {
	Logger *zap.Logger
	Groups []Group
	Read   Reader

	// WarmUp delays each group's first poll after Start. Defaults to 20s.
	WarmUp time.Duration

	// TimeNow allows mocking time in tests. Defaults to time.Now.
	TimeNow func() time.Time
}

// Poller runs one job per configured group until its context is cancelled.
type Poller struct {
	logger    *zap.Logger
	jobs      []*job
	isRunning atomic.Bool
}

// New builds a Poller. Disabled groups are accepted but never polled.
func New(conf Config) *Poller {
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	warmUp := conf.WarmUp
	if warmUp == 0 {
		warmUp = defaultWarmUp
	}
	timeNow := conf.TimeNow
	if timeNow == nil {
		timeNow = time.Now
	}

	jobs := make([]*job, 0, len(conf.Groups))
	for _, g := range conf.Groups {
		if !g.Enabled {
			continue
		}
		if g.Interval <= 0 {
			// config.validate rejects this for an enabled group; guarded
			// again here since time.NewTicker panics on a zero duration.
			logger.Warn("skipping poller group with non-positive interval", zap.String("group", g.Name))
			continue
		}
		jobs = append(jobs, &job{
			logger:  logger,
			group:   g,
			read:    conf.Read,
			warmUp:  warmUp,
			timeNow: timeNow,
		})
	}

	return &Poller{logger: logger, jobs: jobs}
}

// Start runs every enabled group's job until ctx is cancelled, blocking
// until all of them have returned.
func (p *Poller) Start(ctx context.Context) error {
	if running := p.isRunning.Swap(true); running {
		return errAlreadyRunning
	}
	defer p.isRunning.Store(false)

	if len(p.jobs) == 0 {
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	for _, j := range p.jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			j.run(ctx)
		}(j)
	}
	wg.Wait()
	return nil
}

// Statistics returns a snapshot of every group's statistics, in the order
// groups were configured (skipping disabled ones).
func (p *Poller) Statistics() []GroupStatistics {
	out := make([]GroupStatistics, len(p.jobs))
	for i, j := range p.jobs {
		out[i] = j.stats.snapshot()
	}
	return out
}

var errAlreadyRunning = &pollerError{"poller is already running"}

type pollerError struct{ msg string }

func (e *pollerError) Error() string { return e.msg }

// GroupStatistics holds per-group counters, identified by Name.
type GroupStatistics struct {
	Name       string
	PollCount  uint64
	ErrorCount uint64
	LastError  string
}

type groupStats struct {
	mu    sync.RWMutex
	stats GroupStatistics
}

func (s *groupStats) incPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.PollCount++
}

func (s *groupStats) incError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ErrorCount++
	s.stats.LastError = err.Error()
}

func (s *groupStats) snapshot() GroupStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

type job struct {
	logger  *zap.Logger
	group   Group
	read    Reader
	warmUp  time.Duration
	timeNow func() time.Time

	stats groupStats
}

func (j *job) run(ctx context.Context) {
	j.stats.stats.Name = j.group.Name

	warmUp := time.NewTimer(j.warmUp)
	defer warmUp.Stop()
	select {
	case <-warmUp.C:
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(j.group.Interval)
	defer ticker.Stop()
	healthTicker := time.NewTicker(jobHealthTickInterval)
	defer healthTicker.Stop()

	for {
		select {
		case <-ticker.C:
			start := j.timeNow()
			err := j.read(ctx, j.group.Points)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				j.stats.incError(err)
				j.logger.Warn("poll failed",
					zap.String("group", j.group.Name),
					zap.Error(err),
					zap.Duration("elapsed", j.timeNow().Sub(start)),
				)
				continue
			}
			j.stats.incPoll()
		case <-healthTicker.C:
			j.logger.Debug("poller group health tick",
				zap.String("group", j.group.Name),
				zap.Any("stats", j.stats.snapshot()),
			)
		case <-ctx.Done():
			return
		}
	}
}

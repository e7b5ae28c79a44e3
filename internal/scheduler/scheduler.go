// Package scheduler runs the bot's recurring jobs (poll cycle, day
// rollover, audit prune) on a cron in the reference time zone.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "goalbot/pkg/logx"
)

type Config struct {
	Timezone string // IANA TZ, e.g. "America/New_York"
}

type jobDef struct {
	name string
	spec string // cron spec or @every
	run  func(ctx context.Context)
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	loc *time.Location

	c    *cron.Cron
	defs []jobDef

	runCtx context.Context
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone: %w", err)
		}
		loc = l
	}
	return &Service{log: log, loc: loc}, nil
}

func (s *Service) Location() *time.Location { return s.loc }

// Add registers a job. Must be called before Start.
func (s *Service) Add(name, spec string, run func(ctx context.Context)) {
	s.mu.Lock()
	s.defs = append(s.defs, jobDef{name: name, spec: spec, run: run})
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx = ctx
	s.c = cron.New(cron.WithLocation(s.loc))

	for _, d := range s.defs {
		d := d
		_, err := s.c.AddFunc(d.spec, func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("panic in scheduled job",
						logx.String("job", d.name),
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			if s.runCtx.Err() != nil {
				return
			}
			s.run(d)
		})
		if err != nil {
			s.c = nil
			return fmt.Errorf("schedule %q (%s): %w", d.name, d.spec, err)
		}
	}

	s.c.Start()
	s.log.Info("scheduler started",
		logx.Int("jobs", len(s.defs)),
		logx.String("timezone", s.loc.String()))
	return nil
}

func (s *Service) run(d jobDef) {
	start := time.Now()
	d.run(s.runCtx)
	s.log.Debug("job finished",
		logx.String("job", d.name),
		logx.Duration("took", time.Since(start)))
}

// Stop halts scheduling and waits for running jobs up to the ctx deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	done := c.Stop().Done()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; abandoning running jobs")
	}
}

package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// ClockToCron turns a daily "HH:MM" time into a five-field cron expression.
func ClockToCron(clock string) (string, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return "", fmt.Errorf("invalid time %q, want HH:MM", clock)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("invalid hour in %q", clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid minute in %q", clock)
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// Scheduler fires a job on a cron schedule until its context is cancelled.
type Scheduler struct {
	expr   *cronexpr.Expression
	spec   string
	job    func(ctx context.Context) error
	logger *log.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

func NewScheduler(spec string, job func(ctx context.Context) error, logger *log.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is required")
	}
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", spec, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{expr: expr, spec: spec, job: job, logger: logger, now: time.Now, after: time.After}, nil
}

// Next returns the first fire time strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t)
}

// Run blocks, firing the job at each scheduled time. A failing job is logged
// and the schedule continues. Returns ctx.Err() when cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Printf("[INFO] scheduler started with %q", s.spec)
	for {
		next := s.Next(s.now())
		if next.IsZero() {
			return fmt.Errorf("cron expression %q has no future fire time", s.spec)
		}
		s.logger.Printf("[INFO] next run at %s", next.Format(time.RFC3339))
		select {
		case <-ctx.Done():
			s.logger.Printf("[INFO] scheduler stopped")
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}
		s.logger.Printf("[INFO] scheduled run triggered")
		if err := s.job(ctx); err != nil {
			s.logger.Printf("[ERROR] scheduled run failed: %v", err)
		}
	}
}

package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// Schedule - повторяющийся запуск по правилу RFC 5545,
// например "FREQ=DAILY;BYHOUR=8;BYMINUTE=0;BYSECOND=0"
type Schedule struct {
	rule *rrule.RRule
	loc  *time.Location
}

// Parse разбирает правило; отсчет идет с полуночи дня start
func Parse(spec string, start time.Time, loc *time.Location) (*Schedule, error) {
	opt, err := rrule.StrToROption(spec)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", spec, err)
	}

	start = start.In(loc)
	opt.Dtstart = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule %q: %w", spec, err)
	}

	return &Schedule{rule: rule, loc: loc}, nil
}

// Next - ближайший запуск строго после t; нулевое время, если правило исчерпано
func (s *Schedule) Next(t time.Time) time.Time {
	return s.rule.After(t.In(s.loc), false)
}

// Run вызывает job в каждый момент расписания, пока не отменен ctx
func (s *Schedule) Run(ctx context.Context, name string, job func(ctx context.Context) error) {
	logger := logrus.WithField("job", name)

	for {
		next := s.Next(time.Now())
		if next.IsZero() {
			logger.Info("Schedule exhausted, stopping")
			return
		}

		logger.WithField("next_run", next.Format("2006-01-02 15:04:05")).Debug("Job scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("Job loop stopped")
			return
		case <-timer.C:
		}

		if err := job(ctx); err != nil {
			logger.WithError(err).Error("Scheduled job failed")
		}
	}
}

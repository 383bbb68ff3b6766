// Package sched drives the reduced-polling window: two daily cron entries
// that tell the coordinator when the window opens and closes.
package sched

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Windowed is the slice of the coordinator the scheduler drives.
type Windowed interface {
	SetReducedWindow(active bool)
}

type Scheduler struct {
	cron   *cron.Cron
	target Windowed
	start  clockTime
	end    clockTime
	now    func() time.Time
}

type clockTime struct {
	hour   int
	minute int
}

func parseClockTime(s string) (clockTime, error) {
	var ct clockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &ct.hour, &ct.minute); err != nil {
		return ct, fmt.Errorf("malformed clock time %q: %w", s, err)
	}
	if ct.hour < 0 || ct.hour > 23 || ct.minute < 0 || ct.minute > 59 {
		return ct, fmt.Errorf("clock time %q out of range", s)
	}
	return ct, nil
}

func (ct clockTime) minutes() int {
	return ct.hour*60 + ct.minute
}

func (ct clockTime) cronSpec() string {
	return fmt.Sprintf("%d %d * * *", ct.minute, ct.hour)
}

// New builds a scheduler for the daily window [start, end). Both arguments
// are "HH:MM" local time; a window wrapping midnight is allowed.
func New(target Windowed, start, end string) (*Scheduler, error) {
	startCT, err := parseClockTime(start)
	if err != nil {
		return nil, err
	}
	endCT, err := parseClockTime(end)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cron:   cron.New(),
		target: target,
		start:  startCT,
		end:    endCT,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(startCT.cronSpec(), func() {
		log.Info().Str("until", end).Msg("Reduced polling window opened")
		s.target.SetReducedWindow(true)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule window start: %w", err)
	}
	if _, err := s.cron.AddFunc(endCT.cronSpec(), func() {
		log.Info().Msg("Reduced polling window closed")
		s.target.SetReducedWindow(false)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule window end: %w", err)
	}

	return s, nil
}

// Start applies the current window state immediately, then runs the cron
// entries for the edges.
func (s *Scheduler) Start() {
	s.target.SetReducedWindow(s.InWindow(s.now()))
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// InWindow reports whether t falls inside the daily window.
func (s *Scheduler) InWindow(t time.Time) bool {
	now := t.Hour()*60 + t.Minute()
	start, end := s.start.minutes(), s.end.minutes()

	if start == end {
		return false
	}
	if start < end {
		return now >= start && now < end
	}
	// Window wraps midnight.
	return now >= start || now < end
}

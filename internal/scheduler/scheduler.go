// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Refresher drops cached forecasts so the next request recomputes them.
type Refresher interface {
	RefreshCache() int
}

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New registers a cache refresh at spec, a standard five field cron
// expression or a descriptor such as "@hourly".
func New(spec string, r Refresher) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		log:  slog.With("component", "scheduler"),
	}

	_, err := s.cron.AddFunc(spec, func() {
		n := r.RefreshCache()
		s.log.Info("scheduled cache refresh", "removed", n)
	})
	if err != nil {
		return nil, fmt.Errorf("error scheduling cache refresh %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("starting scheduler", "jobs", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

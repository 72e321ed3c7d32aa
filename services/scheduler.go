package services

import (
	"github.com/robfig/cron/v3"

	"repbbs/utils"
)

// Scheduler runs the reputation decay sweep on a fixed cron schedule,
// decoupled from request handling. Sweep failures are logged and never
// crash the serving process.
type Scheduler struct {
	engine *cron.Cron
	decay  *DecayService
}

// NewScheduler registers the decay sweep under the given cron spec
// (e.g. "@midnight" for once per day at 00:00).
func NewScheduler(decay *DecayService, spec string) (*Scheduler, error) {
	s := &Scheduler{engine: cron.New(), decay: decay}
	if _, err := s.engine.AddFunc(spec, s.runSweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) runSweep() {
	stats, err := s.decay.Sweep()
	if err != nil {
		utils.Sugar.Errorf("reputation decay sweep failed after %s (scanned=%d penalized=%d): %v",
			stats.Elapsed, stats.Scanned, stats.Penalized, err)
		return
	}
	utils.Sugar.Infof("reputation decay sweep done in %s: scanned=%d penalized=%d",
		stats.Elapsed, stats.Scanned, stats.Penalized)
}

// Start launches the cron engine in its own goroutine.
func (s *Scheduler) Start() {
	s.engine.Start()
}

// Stop halts scheduling; a sweep already in flight runs to completion.
func (s *Scheduler) Stop() {
	s.engine.Stop()
}

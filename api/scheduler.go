/*
scheduler.go - Automated extension sweep scheduler

PURPOSE:
  Runs the extension sweep on a cron schedule so contracts with machines
  still on site past their contracted end keep receiving monthly plans
  without anyone reporting a return. The sweep is idempotent: months that
  already have a plan are skipped, so overlapping runs are harmless.

DESIGN:
  - robfig/cron drives the schedule (default: daily at 02:00)
  - One run also fires immediately on Start, so a restarted server
    catches up without waiting a day
  - Manual runs remain available via POST /api/admin/extension-sweep

CONFIGURATION:
  - Spec:    cron expression (default "0 2 * * *")
  - Enabled: whether the scheduler is active (default true)

USAGE:
  scheduler := NewSweepScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerExtensionSweep endpoint (manual sweep)
  - contracts/service.go: ExtensionSweep implementation
*/
package api

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/haulbase/billing-engine/contracts"
)

// SweepScheduler runs the daily extension sweep.
type SweepScheduler struct {
	Service *contracts.Service
	Spec    string
	Enabled bool

	cron *cron.Cron
}

// NewSweepScheduler creates a scheduler with the default daily schedule.
func NewSweepScheduler(svc *contracts.Service) *SweepScheduler {
	return &SweepScheduler{
		Service: svc,
		Spec:    "0 2 * * *",
		Enabled: true,
	}
}

// Start begins the scheduler and runs one sweep immediately.
func (ss *SweepScheduler) Start() error {
	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return nil
	}

	ss.cron = cron.New()
	if _, err := ss.cron.AddFunc(ss.Spec, ss.sweep); err != nil {
		return err
	}
	ss.cron.Start()
	log.Printf("[Scheduler] Started with schedule: %s", ss.Spec)

	// Catch up immediately; a restart must not delay extensions by a day.
	go ss.sweep()
	return nil
}

// Stop stops the scheduler, waiting for a running sweep to finish.
func (ss *SweepScheduler) Stop() {
	if ss.cron != nil {
		<-ss.cron.Stop().Done()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) sweep() {
	result, err := ss.Service.ExtensionSweep(context.Background())
	if err != nil {
		log.Printf("[Scheduler] Extension sweep failed: %v", err)
		return
	}
	if result.Extensions > 0 {
		log.Printf("[Scheduler] Extension sweep created plans for %d contract(s)", result.Extensions)
	}
}

// Package reaper runs the periodic sweep that moves idle sessions to the
// timeout status. The interpreter has no timer of its own; this is the
// only place inactivity is detected.
package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakopay/ussd/internal/stores/session"
)

// Reaper sweeps the session store on a cron schedule
type Reaper struct {
	sessions session.Store
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
}

// New creates a reaper sweeping on the given cron schedule
// (e.g. "@every 30s")
func New(sessions session.Store, schedule string) (*Reaper, error) {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Reaper{
		sessions: sessions,
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}

	if _, err := r.cron.AddFunc(schedule, r.Sweep); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}

	return r, nil
}

// Start begins the background sweeps
func (r *Reaper) Start() {
	r.cron.Start()
}

// Stop gracefully stops the reaper
func (r *Reaper) Stop() {
	r.cancel()
	r.cron.Stop()
}

// Sweep expires every session whose inactivity budget has run out. A
// timeout is a normal lifecycle transition, so failures are logged and the
// next sweep picks up whatever was missed
func (r *Reaper) Sweep() {
	expired, err := r.sessions.ExpireIdle(r.ctx, r.now().UTC())
	if err != nil {
		log.Printf("[REAPER]: Sweep failed: %v", err)
		return
	}

	if expired > 0 {
		log.Printf("[REAPER]: Timed out %d idle session(s)", expired)
	}
}

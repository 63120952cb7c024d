package core

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// schedule is one pending room destruction. The struct, not a bare timer, is
// the cancellation token: every decision at fire time consults the table
// entry rather than trusting the timer that happened to go off.
type schedule struct {
	fireAt time.Time
	timer  *clock.Timer
	fired  bool
}

// Destroyer keeps at most one destruction schedule per room and owns the
// timers behind them. It is pure mechanism: the fire callback re-enters the
// controller, which re-checks preconditions and performs the teardown.
type Destroyer struct {
	mu        sync.Mutex
	schedules map[RoomID]*schedule
	clk       clock.Clock
	recheck   time.Duration
	fire      func(RoomID)
	log       *zerolog.Logger
	stopped   bool
}

// NewDestroyer creates a destroyer. recheck is how soon a timer that went
// off ahead of its recorded deadline tries again.
func NewDestroyer(clk clock.Clock, recheck time.Duration, fire func(RoomID), logger *zerolog.Logger) *Destroyer {
	if recheck <= 0 {
		recheck = time.Second
	}
	return &Destroyer{
		schedules: make(map[RoomID]*schedule),
		clk:       clk,
		recheck:   recheck,
		fire:      fire,
		log:       logger,
	}
}

// Arm schedules destruction after delay. If a schedule already exists the
// original deadline is kept; armed reports whether this call created one.
func (d *Destroyer) Arm(room RoomID, delay time.Duration) (fireAt time.Time, armed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return time.Time{}, false
	}
	if sched, ok := d.schedules[room]; ok {
		return sched.fireAt, false
	}

	sched := &schedule{fireAt: d.clk.Now().Add(delay)}
	sched.timer = d.clk.AfterFunc(delay, func() { d.onTimer(room) })
	d.schedules[room] = sched

	d.log.Debug().
		Str("room", string(room)).
		Time("fire_at", sched.fireAt).
		Msg("destruction armed")
	return sched.fireAt, true
}

// Cancel clears the room's schedule. It reports whether one existed and is
// safe to call any number of times.
func (d *Destroyer) Cancel(room RoomID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	sched, ok := d.schedules[room]
	if !ok {
		return false
	}
	sched.timer.Stop()
	delete(d.schedules, room)

	d.log.Debug().Str("room", string(room)).Msg("destruction cancelled")
	return true
}

// Deadline returns the room's pending deadline, if any.
func (d *Destroyer) Deadline(room RoomID) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sched, ok := d.schedules[room]
	if !ok {
		return time.Time{}, false
	}
	return sched.fireAt, true
}

// Stop cancels every schedule. Used on shutdown.
func (d *Destroyer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for room, sched := range d.schedules {
		sched.timer.Stop()
		delete(d.schedules, room)
	}
}

// onTimer runs on the clock's goroutine when a destruction timer goes off.
// Coarse or skewed timers can fire ahead of the recorded deadline; in that
// case the schedule stays put and a short re-check timer takes over.
func (d *Destroyer) onTimer(room RoomID) {
	d.mu.Lock()
	sched, ok := d.schedules[room]
	if !ok || d.stopped || sched.fired {
		d.mu.Unlock()
		return
	}
	if d.clk.Now().Before(sched.fireAt) {
		sched.timer = d.clk.AfterFunc(d.recheck, func() { d.onTimer(room) })
		d.mu.Unlock()
		return
	}
	sched.fired = true
	d.mu.Unlock()

	d.fire(room)
}

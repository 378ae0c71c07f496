package rtio

import "time"

// Wall is a wall-clock timeline for bench use, where the bus bridge executes
// transactions as they arrive rather than at scheduled timestamps.  Delays
// really sleep and Now derives from the host clock, so placement is accurate
// to operating system scheduling, not to a tick.  Calibration results taken
// over a Wall timeline are indicative only; production systems use the
// hardware scheduler.
type Wall struct {
	// Tick is the period of one timeline tick.
	Tick time.Duration

	epoch time.Time
}

// NewWall returns a wall-clock timeline starting at the current instant.
func NewWall(tick time.Duration) *Wall {
	return &Wall{Tick: tick, epoch: time.Now()}
}

// Now returns the elapsed time since the epoch in ticks.
func (w *Wall) Now() int64 {
	return int64(time.Since(w.epoch) / w.Tick)
}

// At sleeps until the wall clock reaches the given tick count.  Positions in
// the past return immediately; a host cannot move its cursor backward.
func (w *Wall) At(t int64) {
	target := w.epoch.Add(time.Duration(t) * w.Tick)
	if d := time.Until(target); d > 0 {
		time.Sleep(d)
	}
}

// Delay sleeps for the given duration.
func (w *Wall) Delay(d time.Duration) {
	time.Sleep(d)
}

// DelayTicks sleeps for the given tick count.
func (w *Wall) DelayTicks(t int64) {
	time.Sleep(time.Duration(t) * w.Tick)
}

package rtio

import "time"

// Sim is a logical timeline.  Now/At/Delay manipulate an integer cursor and
// nothing ever sleeps, so a full calibration pass runs in microseconds of
// host time.  It is the timeline used by the package tests and by simulated
// channels in ddssrv.
type Sim struct {
	// Tick is the period of one timeline tick.
	Tick time.Duration

	cursor int64
}

// NewSim returns a simulated timeline with the given tick period.
func NewSim(tick time.Duration) *Sim {
	return &Sim{Tick: tick}
}

// Now returns the cursor position in ticks.
func (s *Sim) Now() int64 {
	return s.cursor
}

// At moves the cursor to an absolute position.
func (s *Sim) At(t int64) {
	s.cursor = t
}

// Delay advances the cursor by a duration, truncated to whole ticks.
func (s *Sim) Delay(d time.Duration) {
	s.cursor += s.TicksFor(d)
}

// DelayTicks advances the cursor by a tick count.
func (s *Sim) DelayTicks(t int64) {
	s.cursor += t
}

// TicksFor converts a duration to ticks, truncating any sub-tick remainder.
func (s *Sim) TicksFor(d time.Duration) int64 {
	return int64(d / s.Tick)
}

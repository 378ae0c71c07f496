/*Package rtio defines the real-time timeline primitives consumed by the
device drivers in this repository.

Drivers in this module do not own time.  They issue bus transactions against
a timeline cursor owned by a Scheduler and fire pulses on output lines owned
by Pulsers.  On production systems both are backed by a hardware event
scheduler with deterministic, sub-microsecond placement; this package also
provides two software implementations:

	Sim   a purely logical timeline for tests and hardware-free operation
	Wall  a wall-clock timeline for bench use over a bus bridge

Timeline positions are expressed in ticks of a fixed period.  Conversions
from durations must be exact; drivers assert this at configuration time
rather than silently rounding.
*/
package rtio

import "time"

// Scheduler is a timeline with a movable cursor.  All methods operate on the
// cursor; none of them return errors, a timeline either exists or the
// program cannot run at all.
type Scheduler interface {
	// Now returns the current timeline cursor in ticks.
	Now() int64

	// At moves the timeline cursor to an absolute tick count.  Moving the
	// cursor backward is allowed: it schedules subsequent events earlier,
	// it does not travel in time.
	At(t int64)

	// Delay advances the cursor by a duration.
	Delay(d time.Duration)

	// DelayTicks advances the cursor by a tick count.
	DelayTicks(t int64)
}

// Pulser is a digital output line that can emit a single pulse at the
// timeline cursor.  Emitting a pulse advances the cursor by the pulse width,
// matching the blocking semantics of the drivers' single thread of control.
type Pulser interface {
	// Pulse emits a pulse of the given duration.
	Pulse(d time.Duration)

	// PulseTicks emits a pulse of the given width in ticks.
	PulseTicks(t int64)
}

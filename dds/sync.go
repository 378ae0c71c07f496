package dds

import (
	"fmt"
	"time"
)

// Multichip synchronization: the chips on one board sample a shared SYNC_IN
// clock; each chip delays its sample point by a programmable tap (~75 ps)
// and validates it against a programmable setup/hold window.  A violation
// asserts the channel's sticky sample-error flag in the board status word.

const (
	// syncTapsPerPeriod is 1/(f_SYSCLK*75ps), the delay taps spanning one
	// system clock period
	syncTapsPerPeriod = 14

	// maxDelayTap is the largest programmable SYNC_IN delay tap
	maxDelayTap = 31

	// syncSettle is the wait between programming a candidate and sampling
	// the error flag, long enough to integrate a few hundred sync cycles
	syncSettle = 40 * time.Microsecond
)

const (
	// alignScanSpan is the modulo of the alignment scan in fine ticks
	alignScanSpan = 8

	// syncClkPeriod is the synchronization clock period in fine ticks
	syncClkPeriod = 4
)

// SetSync programs the multichip synchronization register: SYNC_IN delay
// tap (0-31) and symmetric setup/hold validation window, both in ~75 ps
// steps.  The sync generator stays disabled and its preset at zero.
func (c *Channel) SetSync(inDelay, window int) error {
	return c.Write32(RegMSync,
		uint32(window)<<28| // setup/hold validation window
			1<<27| // sync receiver enable
			// generator disable, rising edge, preset 0, output delay 0
			uint32(inDelay)<<3) // input delay tap
}

// ClearSmpErr clears the sticky sample-error flag and re-enables its
// monitoring.
func (c *Channel) ClearSmpErr() error {
	if err := c.Write32(RegCFR2, cfr2ClearSmpErr); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	if err := c.Write32(RegCFR2, cfr2Base); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	return nil
}

// TuneSyncDelay finds a stable SYNC_IN delay and validation window.
//
// The search runs from the widest validation window down to the narrowest,
// scanning delay taps outward around seed (seed, seed-1, seed+1, seed-2,
// seed+2, ...) at each width, so of several valid taps the one nearest the
// seed wins.  The first error-free combination is narrowed by one step for
// margin, programmed, and returned.
//
// Feed the returned delay back into Config.SyncDelaySeed to have Init
// re-run the search from a known-good starting point.
func (c *Channel) TuneSyncDelay(seed int) (int, int, error) {
	if c.cfg.ChipSelect < 4 {
		return 0, 0, fmt.Errorf("%w: chip select %d has no sample-error lane",
			ErrConfigurationInvalid, c.cfg.ChipSelect)
	}
	const minWindow = 1
	maxWindow := syncTapsPerPeriod/4 + 1 // ~300 ps setup and hold
	for window := maxWindow; window >= minWindow; window-- {
		for i := 0; i < syncTapsPerPeriod; i++ {
			// alternate search direction around the seed
			step := i
			if i&1 == 1 {
				step = -i
			}
			inDelay := seed + step>>1
			if inDelay < 0 || inDelay > maxDelayTap {
				continue
			}
			if err := c.SetSync(inDelay, window); err != nil {
				return 0, 0, err
			}
			if err := c.ClearSmpErr(); err != nil {
				return 0, 0, err
			}
			c.sched.Delay(syncSettle)
			sta, err := c.ctl.StatusRead()
			if err != nil {
				return 0, 0, err
			}
			if StaSmpErr(sta)>>uint(c.channelIndex())&1 == 0 {
				window -= minWindow // add margin
				if err := c.SetSync(inDelay, window); err != nil {
					return 0, 0, err
				}
				if err := c.ClearSmpErr(); err != nil {
					return 0, 0, err
				}
				c.sched.Delay(syncSettle)
				return inDelay, window, nil
			}
		}
	}
	return 0, 0, ErrNoValidSyncWindow
}

// MeasureIOUpdateAlignment locates the alignment between the update pulse
// and the synchronization clock using the digital ramp generator as a
// probe: a unit-slope ramp is started by an update pulse on the coarse
// grid, a second pulse at the candidate delay realigns it, and the low bit
// of the effective frequency tuning word indicates the odd/even sync-clock
// half-cycle the pulse landed in.
//
// The probe reprograms ramp and control registers; do not interleave it
// with normal output operations.
func (c *Channel) MeasureIOUpdateAlignment(delay int64) (int32, error) {
	// ramp accumulator autoclear and load ramp rate on update
	if err := c.Write32(RegCFR1, cfr1RampProbe); err != nil {
		return 0, err
	}
	// route the ramp to the FTW
	if err := c.Write32(RegCFR2, cfr2RampEnable); err != nil {
		return 0, err
	}
	// no limits
	if err := c.Write64(RegDRampLimit, 0xffffffff, 0); err != nil {
		return 0, err
	}
	// dt = 1 sync-clock cycle
	if err := c.Write32(RegDRampRate, 0x00010000); err != nil {
		return 0, err
	}
	// dFTW = 1 (negative slope, worked around by the autoclear)
	if err := c.Write64(RegDRampStep, 0xffffffff, 0); err != nil {
		return 0, err
	}
	c.sched.At((c.sched.Now() + 0x10) & coarseAlign)
	c.ctl.IOUpdate().PulseTicks(ioUpdatePulseTicks)
	if err := c.Write32(RegCFR1, cfr1Base); err != nil {
		return 0, err
	}
	// stop the ramp
	if err := c.Write64(RegDRampStep, 0, 0); err != nil {
		return 0, err
	}
	c.sched.At((c.sched.Now()+0x10)&coarseAlign + delay)
	c.ctl.IOUpdate().PulseTicks(32 - delay) // realign
	ftw, err := c.Read32(RegFTW)
	if err != nil {
		return 0, err
	}
	c.sched.Delay(100 * time.Microsecond) // slack
	if err := c.Write32(RegCFR2, cfr2Base); err != nil {
		return 0, err
	}
	c.ctl.IOUpdate().PulseTicks(ioUpdatePulseTicks)
	return int32(ftw & 1), nil
}

// TuneIOUpdateDelay finds a stable update-pulse delay relative to the
// synchronization clock: it scans increasing delays until the half-cycle
// indicator flips and returns a delay midway between two such transitions,
// modulo the sync-clock period.  Assumes the fine timebase runs at four
// times the synchronization clock.
//
// Feed the result back into Config.IOUpdateDelay.
func (c *Channel) TuneIOUpdateDelay() (int64, error) {
	return alignmentScan(c.cfg.IOUpdateDelay, c.MeasureIOUpdateAlignment)
}

func alignmentScan(d0 int64, probe func(int64) (int32, error)) (int64, error) {
	t0, err := probe(d0)
	if err != nil {
		return 0, err
	}
	for i := int64(1); i < alignScanSpan; i++ {
		t, err := probe((d0 + i) & (alignScanSpan - 1))
		if err != nil {
			return 0, err
		}
		if t != t0 {
			return (d0 + i + syncClkPeriod/2) & (syncClkPeriod - 1), nil
		}
	}
	return 0, ErrNoAlignmentEdge
}

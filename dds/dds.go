/*Package dds controls the DDS channels of a multi-channel RF synthesizer
board: frequency, phase and amplitude updates with deterministic timing,
PLL bring-up, and the clock-synchronization calibration searches.

A Channel owns one DDS chip behind a shared serial configuration bus and a
shared update-pulse line; the carrier board's housekeeping CPLD (status word,
attenuators, RF switches) is reached through the Controller interface, with
Board as the production implementation.  Callers are responsible for
serializing access across channels on the same board: a Channel assumes the
bus and pulse line are uncontended for the duration of each call.

Basic usage:

	br := spi.NewBridge("192.168.100.40:4021", false)
	if err := br.Open(); err != nil {
		log.Fatal(err)
	}
	sched := rtio.NewWall(time.Nanosecond)
	board := dds.NewBoard(br, br)
	ch, err := dds.NewChannel(br, sched, board, dds.Config{
		ChipSelect: 4,
		PLLN:       40,
		PLLCp:      7,
		PLLVCO:     5,
		RefClk:     100e6,
		TickPeriod: time.Nanosecond,
		SyncDelaySeed: -1,
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := ch.Init(false); err != nil {
		log.Fatal(err)
	}
	turns, err := ch.Set(80e6, 0, 1, dds.PhaseModeDefault, -1)
*/
package dds

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/iontrap/golabrf/rtio"
	"github.com/iontrap/golabrf/spi"
)

// PhaseMode selects how a frequency/phase update treats the chip's phase
// accumulator.
type PhaseMode int

const (
	// PhaseModeDefault defers to the channel's default phase mode.
	PhaseModeDefault PhaseMode = iota - 1

	// PhaseModeContinuous leaves the phase accumulator running across
	// updates; the output phase is continuous and the phase offset word
	// is written verbatim.  Also known as relative phase mode.
	PhaseModeContinuous

	// PhaseModeAbsolute clears the phase accumulator on the update pulse,
	// so the output phase at the update instant equals the phase offset.
	PhaseModeAbsolute

	// PhaseModeTracking clears the accumulator like PhaseModeAbsolute and
	// offsets the phase word by the phase the chip would have accumulated
	// had it run at the new frequency since a fiducial timestamp.  Also
	// known as coherent phase mode.  The default fiducial timestamp is 0.
	PhaseModeTracking
)

var (
	// ErrConfigurationInvalid is wrapped by all constructor-time
	// validation failures.
	ErrConfigurationInvalid = errors.New("dds: configuration invalid")

	// ErrIdentityMismatch is generated when the device-presence check
	// fails during Init.
	ErrIdentityMismatch = errors.New("dds: AUX DAC identity mismatch, chip absent or not responding")

	// ErrPLLLockTimeout is generated when PLL lock is not observed
	// within the polling budget during Init.
	ErrPLLLockTimeout = errors.New("dds: PLL lock timeout")

	// ErrNoValidSyncWindow is generated when the sync-delay search
	// exhausts every window/delay combination.
	ErrNoValidSyncWindow = errors.New("dds: no valid sync window/delay combination")

	// ErrNoAlignmentEdge is generated when the update-pulse alignment
	// scan finds no sync-clock edge within one full period.
	ErrNoAlignmentEdge = errors.New("dds: no update pulse to sync clock alignment edge found")
)

// vcoBands holds the valid system clock range, in MHz, for each VCO range
// selector.
var vcoBands = [6][2]float64{
	{370, 510},
	{420, 590},
	{500, 700},
	{600, 880},
	{700, 950},
	{820, 1150},
}

// Bus clock dividers for writes and readback.  Readback is clocked slower;
// the chip's serial output path is not rated for the write clock.
const (
	spitWrite = 2
	spitRead  = 16
)

// busConfig carries the clocking flags common to every transfer: CPOL=0,
// CPHA=0, MSB first, active-low chip select.
const busConfig spi.Flag = 0

// ioUpdatePulseTicks is the width of the update pulse in ticks; it must
// exceed one system clock period.
const ioUpdatePulseTicks = 8

// coarseAlign is the mask aligning the timeline cursor to the coarse grid
// that the synchronization clock divides from, 16 fine ticks.  Updates
// placed off this grid latch on a nondeterministic sync-clock phase.
const coarseAlign = ^int64(0xf)

// Config holds the construction parameters of a Channel.  It is immutable
// after NewChannel returns.
type Config struct {
	// ChipSelect addresses the chip on the shared bus.  3 addresses
	// multiple chips at once (where the board is configured for it),
	// 4-7 address individual channels.
	ChipSelect int

	// PLLN is the PLL feedback divider.  The system clock is
	// RefClk/4*PLLN.
	PLLN int

	// PLLCp is the PLL charge pump setting, 0-7.
	PLLCp int

	// PLLVCO is the PLL VCO range selector, 0-5.
	PLLVCO int

	// RefClk is the reference clock frequency in Hz, before the board's
	// by-four clock fanout divider.
	RefClk float64

	// TickPeriod is the period of one scheduler tick.
	TickPeriod time.Duration

	// SyncDelaySeed is the starting delay tap for the sync-delay search
	// run during Init.  Negative disables synchronization tuning.
	// Run TuneSyncDelay once and feed the returned delay back here.
	SyncDelaySeed int

	// IOUpdateDelay is the update-pulse alignment delay in ticks.
	// Run TuneIOUpdateDelay once and feed the result back here.
	IOUpdateDelay int64
}

// Controller is the carrier-board housekeeping surface a Channel depends
// on: the shared update-pulse line, the board status word, the digital step
// attenuators, and the RF output switches.  Board implements it for real
// hardware; Mock implements it for tests and simulation.
type Controller interface {
	// IOUpdate returns the shared update-pulse line.
	IOUpdate() rtio.Pulser

	// StatusRead returns the board status word; see the Sta helpers.
	StatusRead() (uint32, error)

	// SetAttMu sets the attenuator for a board channel (0-3) in machine
	// units, 0.125 dB steps, 0xff = 0 dB.
	SetAttMu(channel int, att uint8) error

	// RFSwitch opens or closes the RF output switch of a board channel.
	RFSwitch(channel int, on bool) error
}

// Channel is one DDS chip on the board.  All methods issue blocking bus
// transactions and scheduled pulses on the channel's timeline; there is no
// internal concurrency and no cancellation, a call completes or fails
// outright.
type Channel struct {
	bus   spi.Bus
	sched rtio.Scheduler
	ctl   Controller
	cfg   Config

	sysclk        float64
	ftwPerHz      float64
	sysclkPerTick int32

	phaseMode PhaseMode
}

// NewChannel validates cfg and returns a Channel.  Validation failures wrap
// ErrConfigurationInvalid and occur before any hardware access.
func NewChannel(bus spi.Bus, sched rtio.Scheduler, ctl Controller, cfg Config) (*Channel, error) {
	if cfg.ChipSelect < 3 || cfg.ChipSelect > 7 {
		return nil, fmt.Errorf("%w: chip select %d outside [3,7]", ErrConfigurationInvalid, cfg.ChipSelect)
	}
	if cfg.PLLN < 12 || cfg.PLLN > 127 {
		return nil, fmt.Errorf("%w: PLL multiplier %d outside [12,127]", ErrConfigurationInvalid, cfg.PLLN)
	}
	if cfg.PLLCp < 0 || cfg.PLLCp > 7 {
		return nil, fmt.Errorf("%w: charge pump setting %d outside [0,7]", ErrConfigurationInvalid, cfg.PLLCp)
	}
	if cfg.PLLVCO < 0 || cfg.PLLVCO > 5 {
		return nil, fmt.Errorf("%w: VCO range selector %d outside [0,5]", ErrConfigurationInvalid, cfg.PLLVCO)
	}
	if cfg.RefClk/4 > 60e6 {
		return nil, fmt.Errorf("%w: reference clock %g Hz exceeds 240 MHz", ErrConfigurationInvalid, cfg.RefClk)
	}
	sysclk := cfg.RefClk * float64(cfg.PLLN) / 4 // board clock fanout divides by 4
	if sysclk > 1e9 {
		return nil, fmt.Errorf("%w: system clock %g Hz exceeds 1 GHz", ErrConfigurationInvalid, sysclk)
	}
	band := vcoBands[cfg.PLLVCO]
	if mhz := sysclk / 1e6; mhz < band[0] || mhz > band[1] {
		return nil, fmt.Errorf("%w: system clock %g MHz outside VCO%d band [%g,%g] MHz",
			ErrConfigurationInvalid, sysclk/1e6, cfg.PLLVCO, band[0], band[1])
	}
	if cfg.TickPeriod <= 0 {
		return nil, fmt.Errorf("%w: tick period %v not positive", ErrConfigurationInvalid, cfg.TickPeriod)
	}
	spt := sysclk * cfg.TickPeriod.Seconds()
	if spt != math.Trunc(spt) {
		return nil, fmt.Errorf("%w: %g system clock cycles per tick is not an integer",
			ErrConfigurationInvalid, spt)
	}
	return &Channel{
		bus:           bus,
		sched:         sched,
		ctl:           ctl,
		cfg:           cfg,
		sysclk:        sysclk,
		ftwPerHz:      (1 << 32) / sysclk,
		sysclkPerTick: int32(spt),
		phaseMode:     PhaseModeContinuous,
	}, nil
}

// Config returns the channel's construction parameters.
func (c *Channel) Config() Config {
	return c.cfg
}

// Sysclk returns the derived system clock frequency in Hz.
func (c *Channel) Sysclk() float64 {
	return c.sysclk
}

// channelIndex is the board channel lane of this chip select; valid for
// chip selects 4-7 only.
func (c *Channel) channelIndex() int {
	return c.cfg.ChipSelect - 4
}

// SetPhaseMode sets the default phase mode for future calls to Set and
// SetMu.  The default can be overridden per call.
func (c *Channel) SetPhaseMode(mode PhaseMode) {
	c.phaseMode = mode
}

// Write32 writes a 32-bit register: an 8-bit instruction transfer carrying
// the address, then a 32-bit data transfer ending the transaction.
func (c *Channel) Write32(addr uint8, data uint32) error {
	if err := c.bus.Configure(busConfig, 8, spitWrite, c.cfg.ChipSelect); err != nil {
		return err
	}
	if err := c.bus.Write(uint32(addr) << 24); err != nil {
		return err
	}
	if err := c.bus.Configure(busConfig|spi.FlagEnd, 32, spitWrite, c.cfg.ChipSelect); err != nil {
		return err
	}
	return c.bus.Write(data)
}

// Read32 reads a 32-bit register.
func (c *Channel) Read32(addr uint8) (uint32, error) {
	if err := c.bus.Configure(busConfig, 8, spitWrite, c.cfg.ChipSelect); err != nil {
		return 0, err
	}
	if err := c.bus.Write(uint32(addr|regReadFlag) << 24); err != nil {
		return 0, err
	}
	if err := c.bus.Configure(busConfig|spi.FlagEnd|spi.FlagInput, 32, spitRead, c.cfg.ChipSelect); err != nil {
		return 0, err
	}
	if err := c.bus.Write(0); err != nil {
		return 0, err
	}
	return c.bus.Read()
}

// Write64 writes a 64-bit register as an instruction transfer followed by
// high and low 32-bit data transfers.
func (c *Channel) Write64(addr uint8, high, low uint32) error {
	if err := c.bus.Configure(busConfig, 8, spitWrite, c.cfg.ChipSelect); err != nil {
		return err
	}
	if err := c.bus.Write(uint32(addr) << 24); err != nil {
		return err
	}
	if err := c.bus.Configure(busConfig, 32, spitWrite, c.cfg.ChipSelect); err != nil {
		return err
	}
	if err := c.bus.Write(high); err != nil {
		return err
	}
	if err := c.bus.Configure(busConfig|spi.FlagEnd, 32, spitWrite, c.cfg.ChipSelect); err != nil {
		return err
	}
	return c.bus.Write(low)
}

// Init initializes and configures the chip: bus mode, presence check, PLL
// configuration and lock wait, and the sync-delay search if a seed was
// configured.  Pulses the update line several times.
//
// With blind set, the presence check and the lock poll are skipped and a
// fixed settle wait is used instead, so several channels can be brought up
// back to back and checked in a batch afterwards.  Chip select 3 addresses
// multiple chips and has no status lane of its own; it must be initialized
// blind.
func (c *Channel) Init(blind bool) error {
	if !blind && c.cfg.ChipSelect < 4 {
		return fmt.Errorf("%w: chip select %d has no status lane, init must be blind",
			ErrConfigurationInvalid, c.cfg.ChipSelect)
	}
	// force the bus mode configuration first; nothing else is reachable
	// until SDIO is in 3-wire mode
	if err := c.Write32(RegCFR1, cfr1Base); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	c.sched.Delay(1 * time.Millisecond)
	if !blind {
		// the AUX DAC calibration byte doubles as an identity check
		auxDAC, err := c.Read32(RegAuxDAC)
		if err != nil {
			return err
		}
		if auxDAC&0xff != auxDACIdentity {
			return fmt.Errorf("%w: AUX DAC reads %#02x, want %#02x",
				ErrIdentityMismatch, auxDAC&0xff, auxDACIdentity)
		}
		c.sched.Delay(50 * time.Microsecond) // slack
	}
	if err := c.Write32(RegCFR2, cfr2ClearSmpErr); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	cfr3 := uint32(cfr3Base |
		c.cfg.PLLVCO<<24 |
		c.cfg.PLLCp<<19 |
		c.cfg.PLLN<<1)
	if err := c.Write32(RegCFR3, cfr3|cfr3PFDReset); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	if err := c.Write32(RegCFR3, cfr3); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	if blind {
		c.sched.Delay(100 * time.Millisecond)
	} else {
		locked := false
		for i := 0; i < 100; i++ {
			sta, err := c.ctl.StatusRead()
			if err != nil {
				return err
			}
			c.sched.Delay(1 * time.Millisecond)
			if StaPLLLock(sta)>>uint(c.channelIndex())&1 == 1 {
				locked = true
				break
			}
		}
		if !locked {
			return ErrPLLLockTimeout
		}
	}
	if c.cfg.SyncDelaySeed >= 0 {
		if _, _, err := c.TuneSyncDelay(c.cfg.SyncDelaySeed); err != nil {
			return err
		}
	}
	c.sched.Delay(1 * time.Millisecond)
	return nil
}

// PowerDown powers down chip blocks per the given bits; see the datasheet.
func (c *Channel) PowerDown(bits uint32) error {
	if err := c.Write32(RegCFR1, cfr1Base|bits<<4); err != nil {
		return err
	}
	c.ctl.IOUpdate().Pulse(1 * time.Microsecond)
	return nil
}

// SetMu writes profile 0 in machine units (32-bit frequency tuning word,
// 16-bit phase offset word, 14-bit amplitude scale factor) and latches it
// with an update pulse.
//
// mode overrides the channel's default phase mode for this call when not
// PhaseModeDefault.  refTime is the fiducial timestamp in ticks used by
// Absolute and Tracking modes; negative means unset, which Tracking treats
// as timestamp 0.
//
// The timeline cursor is aligned to the coarse grid before and after the
// transaction, because the synchronization clock divides the fine timebase
// by 16.
//
// Returns the phase offset word after application of the tracking offset;
// feed it back in as the current phase when chaining Continuous-mode calls.
func (c *Channel) SetMu(ftw, pow, asf int32, mode PhaseMode, refTime int64) (int32, error) {
	if mode == PhaseModeDefault {
		mode = c.phaseMode
	}
	c.sched.At(c.sched.Now() & coarseAlign)
	if mode != PhaseModeContinuous {
		// arm phase accumulator autoclear; it applies to the next
		// update pulse, which is the one this call fires
		if err := c.Write32(RegCFR1, cfr1AutoClear); err != nil {
			return 0, err
		}
		if mode == PhaseModeTracking && refTime < 0 {
			refTime = 0
		}
		if refTime >= 0 {
			// the low 32 bits of the time difference suffice: the
			// wraparound matches the width of the chip's phase
			// accumulator.  There is no need to use the update
			// pulse time itself, the difference is an output
			// pipeline latency.
			dt := int32(c.sched.Now()) - int32(refTime)
			pow += (dt * ftw * c.sysclkPerTick) >> 16
		}
	}
	err := c.Write64(RegProfile0,
		uint32(asf&0x3fff)<<16|uint32(pow)&0xffff,
		uint32(ftw))
	if err != nil {
		return 0, err
	}
	c.sched.DelayTicks(c.cfg.IOUpdateDelay)
	c.ctl.IOUpdate().PulseTicks(ioUpdatePulseTicks)
	c.sched.At(c.sched.Now() & coarseAlign)
	if mode != PhaseModeContinuous {
		// disarm, so the clear applies exactly once; future update
		// pulses latch without clearing
		if err := c.Write32(RegCFR1, cfr1Base); err != nil {
			return 0, err
		}
	}
	return pow, nil
}

// Set writes profile 0 in SI units: frequency in Hz, phase in turns,
// amplitude in units of full scale.  See SetMu for mode and refTime.
// Returns the resulting phase offset in turns.
func (c *Channel) Set(frequency, phase, amplitude float64, mode PhaseMode, refTime int64) (float64, error) {
	pow, err := c.SetMu(
		c.FrequencyToFTW(frequency),
		TurnsToPOW(phase),
		AmplitudeToASF(amplitude),
		mode, refTime)
	return POWToTurns(pow), err
}

// SetAttMu sets this channel's digital step attenuator in machine units.
func (c *Channel) SetAttMu(att uint8) error {
	return c.ctl.SetAttMu(c.channelIndex(), att)
}

// SetAtt sets this channel's digital step attenuator in dB.
func (c *Channel) SetAtt(att float64) error {
	mu, err := AttToMu(att)
	if err != nil {
		return err
	}
	return c.ctl.SetAttMu(c.channelIndex(), mu)
}

// SetRFSwitch opens or closes this channel's RF output switch.
func (c *Channel) SetRFSwitch(on bool) error {
	return c.ctl.RFSwitch(c.channelIndex(), on)
}

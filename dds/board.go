package dds

import (
	"fmt"

	"github.com/iontrap/golabrf/rtio"
	"github.com/iontrap/golabrf/spi"
)

// The carrier board's housekeeping CPLD sits on the same bus as the DDS
// chips, on chip selects of its own: a 24-bit configuration word whose
// shift-out doubles as the status readback, and a 32-bit register driving
// the four digital step attenuators.

// Board chip selects and clock dividers.
const (
	csCfg = 1
	csAtt = 2

	spitCfg = 2
	spitAtt = 6
)

// Configuration word bit offsets.
const (
	cfgRFSwitch = 0 // four RF switch bits, one per channel
	cfgLED      = 4 // four LED bits
)

// Status word field offsets; see the Sta helpers.
const (
	staRFSwitch = 0
	staSmpErr   = 4
	staPLLLock  = 8
	staIfcMode  = 12
	staProtoRev = 16
)

// StaRFSwitch extracts the RF switch states from a status word.
func StaRFSwitch(sta uint32) int {
	return int(sta >> staRFSwitch & 0xf)
}

// StaSmpErr extracts the per-channel sample-error flags from a status word.
func StaSmpErr(sta uint32) int {
	return int(sta >> staSmpErr & 0xf)
}

// StaPLLLock extracts the per-channel PLL lock flags from a status word.
func StaPLLLock(sta uint32) int {
	return int(sta >> staPLLLock & 0xf)
}

// StaIfcMode extracts the interface mode switches from a status word.
func StaIfcMode(sta uint32) int {
	return int(sta >> staIfcMode & 0xf)
}

// StaProtoRev extracts the gateware protocol revision from a status word.
func StaProtoRev(sta uint32) int {
	return int(sta >> staProtoRev & 0x7f)
}

// Board is the production Controller: it drives the housekeeping CPLD over
// the shared bus and hands out the update-pulse line.  One Board serves the
// four channels of a carrier; like Channel, it assumes uncontended access
// per call.
type Board struct {
	bus spi.Bus
	io  rtio.Pulser

	cfg uint32
	att uint32
}

// NewBoard returns a Board over the given bus and update-pulse line.
// The configuration word starts at zero: all RF switches off.
func NewBoard(bus spi.Bus, io rtio.Pulser) *Board {
	return &Board{bus: bus, io: io, att: 0xffffffff} // attenuators at 0 dB
}

// WriteCfg writes the 24-bit configuration word and returns the status
// word shifted out during the same transfer.
func (b *Board) WriteCfg(cfg uint32) (uint32, error) {
	if err := b.bus.Configure(busConfig|spi.FlagEnd|spi.FlagInput, 24, spitCfg, csCfg); err != nil {
		return 0, err
	}
	if err := b.bus.Write(cfg << 8); err != nil {
		return 0, err
	}
	sta, err := b.bus.Read()
	if err != nil {
		return 0, err
	}
	b.cfg = cfg
	return sta, nil
}

// StatusRead returns the board status word by rewriting the current
// configuration.
func (b *Board) StatusRead() (uint32, error) {
	return b.WriteCfg(b.cfg)
}

// IOUpdate returns the shared update-pulse line.
func (b *Board) IOUpdate() rtio.Pulser {
	return b.io
}

// SetAttMu sets one channel's digital step attenuator in machine units.
// The full 32-bit register is rewritten; the other channels keep their
// cached settings.
func (b *Board) SetAttMu(channel int, att uint8) error {
	if channel < 0 || channel > 3 {
		return fmt.Errorf("%w: board channel %d outside [0,3]", ErrConfigurationInvalid, channel)
	}
	shift := uint(channel) * 8
	b.att = b.att&^(0xff<<shift) | uint32(att)<<shift
	if err := b.bus.Configure(busConfig|spi.FlagEnd, 32, spitAtt, csAtt); err != nil {
		return err
	}
	return b.bus.Write(b.att)
}

// AttMu returns the cached attenuator machine word for a channel.
func (b *Board) AttMu(channel int) uint8 {
	return uint8(b.att >> (uint(channel) * 8))
}

// RFSwitch opens or closes one channel's RF output switch via the
// configuration word.
func (b *Board) RFSwitch(channel int, on bool) error {
	if channel < 0 || channel > 3 {
		return fmt.Errorf("%w: board channel %d outside [0,3]", ErrConfigurationInvalid, channel)
	}
	cfg := b.cfg
	bit := uint32(1) << (cfgRFSwitch + uint(channel))
	if on {
		cfg |= bit
	} else {
		cfg &^= bit
	}
	_, err := b.WriteCfg(cfg)
	return err
}

package dds

import (
	"time"

	"github.com/iontrap/golabrf/rtio"
	"github.com/iontrap/golabrf/spi"
)

// Mock simulates one DDS chip plus the board CPLD behind the bus, against a
// simulated timeline.  It implements spi.Bus; compose it with a real Board
// to obtain a Controller, so tests and the hardware-free service exercise
// the production register packing end to end:
//
//	sched := rtio.NewSim(time.Nanosecond)
//	mock := dds.NewMock(sched)
//	board := dds.NewBoard(mock, mock.IOUpdate())
//	ch, err := dds.NewChannel(mock, sched, board, cfg)
//
// The exported knobs shape the simulated hardware: identity byte, PLL lock
// behavior, the valid sync window, and the update-pulse alignment phase.
type Mock struct {
	// Sched is the timeline pulses are timestamped against.
	Sched *rtio.Sim

	// ChipSelect is the chip select the simulated chip answers to; its
	// board lane is ChipSelect-4.
	ChipSelect int

	// Identity is the AUX DAC calibration byte.
	Identity uint32

	// NoLock prevents the PLL from ever locking.
	NoLock bool

	// PollsUntilLock is the number of status reads after PLL
	// configuration before the lock flag asserts.
	PollsUntilLock int

	// GoodDelayLo, GoodDelayHi and GoodWindow delimit the sync
	// combinations that sample cleanly: delay in [lo,hi] and window at
	// most GoodWindow.
	GoodDelayLo, GoodDelayHi, GoodWindow int

	// AlwaysSmpErr asserts the sample-error flag regardless of the sync
	// setting.
	AlwaysSmpErr bool

	// AlignPhase is the offset, in fine ticks, between the update-pulse
	// line and the chip's synchronization clock.
	AlignPhase int64

	// Events records every bus commit and pulse in order.
	Events []Event

	// bus transfer state
	flags  spi.Flag
	length int
	cs     int
	addr   uint8
	words  []uint32
	staged uint32

	// chip state
	regs   map[uint8]uint32
	regs64 map[uint8][2]uint32
	effFTW uint32

	// board state
	boardCfg       uint32
	attReg         uint32
	pfdClear       bool
	pollsSinceCfr3 int

	lastPulseAt int64
}

// Event is one bus commit or pulse observed by the Mock.
type Event struct {
	// Kind is one of "write", "read", "cfg", "att", "pulse".
	Kind string

	// Addr is the chip register address for write/read events.
	Addr uint8

	// Data holds the committed words (write: one or two words; cfg: the
	// configuration word; att: the attenuator word; pulse: the width).
	Data []uint32

	// At is the timeline cursor when the event committed.
	At int64
}

// NewMock returns a Mock with a present, lockable chip on chip select 4 and
// a sync window spanning all taps.
func NewMock(sched *rtio.Sim) *Mock {
	return &Mock{
		Sched:          sched,
		ChipSelect:     4,
		Identity:       auxDACIdentity,
		PollsUntilLock: 3,
		GoodDelayLo:    0,
		GoodDelayHi:    maxDelayTap,
		GoodWindow:     syncTapsPerPeriod/4 + 1,
		regs:           make(map[uint8]uint32),
		regs64:         make(map[uint8][2]uint32),
	}
}

func (m *Mock) lane() int {
	return m.ChipSelect - 4
}

func (m *Mock) record(kind string, addr uint8, data ...uint32) {
	m.Events = append(m.Events, Event{Kind: kind, Addr: addr, Data: data, At: m.Sched.Now()})
}

// Configure implements spi.Bus.
func (m *Mock) Configure(flags spi.Flag, length, div, cs int) error {
	m.flags = flags
	m.length = length
	m.cs = cs
	return nil
}

// Write implements spi.Bus.
func (m *Mock) Write(data uint32) error {
	switch m.cs {
	case csCfg:
		m.boardCfg = data >> 8
		m.pollsSinceCfr3++
		m.staged = m.status()
		m.record("cfg", 0, m.boardCfg)
	case csAtt:
		m.attReg = data
		m.record("att", 0, data)
	default:
		m.chipWrite(data)
	}
	return nil
}

// Read implements spi.Bus.
func (m *Mock) Read() (uint32, error) {
	return m.staged, nil
}

func (m *Mock) chipWrite(data uint32) {
	if m.length == 8 {
		m.addr = uint8(data >> 24)
		m.words = m.words[:0]
		return
	}
	a := m.addr &^ regReadFlag
	if m.addr&regReadFlag != 0 {
		m.staged = m.readReg(a)
		m.record("read", a, m.staged)
		return
	}
	m.words = append(m.words, data)
	if m.flags&spi.FlagEnd != 0 {
		m.commit(a, append([]uint32(nil), m.words...))
	}
}

func (m *Mock) commit(addr uint8, words []uint32) {
	if len(words) == 2 {
		m.regs64[addr] = [2]uint32{words[0], words[1]}
	} else {
		m.regs[addr] = words[0]
	}
	if addr == RegCFR3 {
		if words[0]&cfr3PFDReset == 0 {
			m.pfdClear = true
			m.pollsSinceCfr3 = 0
		} else {
			m.pfdClear = false
		}
	}
	m.record("write", addr, words...)
}

func (m *Mock) readReg(addr uint8) uint32 {
	switch addr {
	case RegAuxDAC:
		return m.Identity
	case RegFTW:
		if m.regs[RegCFR2] == cfr2RampEnable {
			// ramp probe: report the sync-clock half-cycle the
			// last update pulse landed in
			return uint32((m.lastPulseAt + m.AlignPhase) >> 1 & 1)
		}
		return m.effFTW
	default:
		return m.regs[addr]
	}
}

// status assembles the board status word from the simulated chip.  Lanes
// other than this chip's read as locked and error-free.
func (m *Mock) status() uint32 {
	lock := uint32(0xf)
	if m.NoLock || !m.pfdClear || m.pollsSinceCfr3 < m.PollsUntilLock {
		lock &^= 1 << uint(m.lane())
	}
	var smp uint32
	if !m.syncGood() {
		smp = 1 << uint(m.lane())
	}
	return lock<<staPLLLock | smp<<staSmpErr | m.boardCfg&0xf<<staRFSwitch
}

func (m *Mock) syncGood() bool {
	if m.AlwaysSmpErr {
		return false
	}
	msync, ok := m.regs[RegMSync]
	if !ok {
		return false
	}
	delay := int(msync >> 3 & 0x1f)
	window := int(msync >> 28 & 0xf)
	return delay >= m.GoodDelayLo && delay <= m.GoodDelayHi && window <= m.GoodWindow
}

// IOUpdate returns the simulated update-pulse line.  Pulsing latches
// profile 0 and advances the timeline by the pulse width.
func (m *Mock) IOUpdate() rtio.Pulser {
	return mockPulser{m}
}

type mockPulser struct {
	m *Mock
}

func (p mockPulser) PulseTicks(t int64) {
	m := p.m
	m.lastPulseAt = m.Sched.Now()
	m.effFTW = m.regs64[RegProfile0][1]
	m.record("pulse", 0, uint32(t))
	m.Sched.DelayTicks(t)
}

func (p mockPulser) Pulse(d time.Duration) {
	p.PulseTicks(p.m.Sched.TicksFor(d))
}

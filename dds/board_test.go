package dds

import (
	"errors"
	"testing"
	"time"

	"github.com/iontrap/golabrf/rtio"
)

func testBoard() (*Board, *Mock) {
	sched := rtio.NewSim(time.Nanosecond)
	mock := NewMock(sched)
	return NewBoard(mock, mock.IOUpdate()), mock
}

func TestStaHelpers(t *testing.T) {
	sta := uint32(0x7f<<staProtoRev | 0x5<<staIfcMode | 0xa<<staPLLLock | 0x3<<staSmpErr | 0xc<<staRFSwitch)
	if got := StaProtoRev(sta); got != 0x7f {
		t.Errorf("StaProtoRev = %#x, want 0x7f", got)
	}
	if got := StaIfcMode(sta); got != 0x5 {
		t.Errorf("StaIfcMode = %#x, want 0x5", got)
	}
	if got := StaPLLLock(sta); got != 0xa {
		t.Errorf("StaPLLLock = %#x, want 0xa", got)
	}
	if got := StaSmpErr(sta); got != 0x3 {
		t.Errorf("StaSmpErr = %#x, want 0x3", got)
	}
	if got := StaRFSwitch(sta); got != 0xc {
		t.Errorf("StaRFSwitch = %#x, want 0xc", got)
	}
}

func TestBoardAttPacking(t *testing.T) {
	b, mock := testBoard()
	// all four attenuators start at 0 dB
	for ch := 0; ch < 4; ch++ {
		if got := b.AttMu(ch); got != 0xff {
			t.Errorf("channel %d initial att = %#x, want 0xff", ch, got)
		}
	}
	if err := b.SetAttMu(2, 0x80); err != nil {
		t.Fatal(err)
	}
	if got, want := mock.attReg, uint32(0xff80ffff); got != want {
		t.Errorf("attenuator register = %#08x, want %#08x", got, want)
	}
	if got := b.AttMu(2); got != 0x80 {
		t.Errorf("channel 2 att = %#x, want 0x80", got)
	}
	// the other lanes are untouched
	if got := b.AttMu(1); got != 0xff {
		t.Errorf("channel 1 att = %#x, want 0xff", got)
	}
	for _, bad := range []int{-1, 4} {
		if err := b.SetAttMu(bad, 0); !errors.Is(err, ErrConfigurationInvalid) {
			t.Errorf("SetAttMu(%d) error = %v, want ErrConfigurationInvalid", bad, err)
		}
	}
}

func TestBoardRFSwitchBits(t *testing.T) {
	b, mock := testBoard()
	if err := b.RFSwitch(1, true); err != nil {
		t.Fatal(err)
	}
	if err := b.RFSwitch(3, true); err != nil {
		t.Fatal(err)
	}
	if got, want := mock.boardCfg, uint32(0xa); got != want {
		t.Errorf("configuration word = %#x, want %#x", got, want)
	}
	if err := b.RFSwitch(1, false); err != nil {
		t.Fatal(err)
	}
	if got, want := mock.boardCfg, uint32(0x8); got != want {
		t.Errorf("configuration word = %#x, want %#x", got, want)
	}
	if err := b.RFSwitch(4, true); !errors.Is(err, ErrConfigurationInvalid) {
		t.Errorf("RFSwitch(4) error = %v, want ErrConfigurationInvalid", err)
	}
}

func TestBoardStatusRoundTrip(t *testing.T) {
	b, _ := testBoard()
	if err := b.RFSwitch(0, true); err != nil {
		t.Fatal(err)
	}
	sta, err := b.StatusRead()
	if err != nil {
		t.Fatal(err)
	}
	if StaRFSwitch(sta) != 1 {
		t.Errorf("status RF switch field = %#x, want 1", StaRFSwitch(sta))
	}
}

package spi

import (
	"bufio"
	"io"
	"net"
	"testing"
)

// fakeBridge speaks the bridge side of the telegram protocol over an
// io.ReadWriter.  Writes are looped back: a FlagInput transfer stages the
// last written word for the next read request.
type fakeBridge struct {
	lastWrite []byte
	staged    []byte
	pulses    int
}

func (f *fakeBridge) serve(conn io.ReadWriter) {
	rdr := bufio.NewReader(conn)
	for {
		raw, err := rdr.ReadBytes(telEnd)
		if err != nil {
			return
		}
		body, err := decodeTelegram(raw)
		if err != nil {
			conn.Write(makeTelegram([]byte{statusBadOp}))
			continue
		}
		var reply []byte
		switch body[0] {
		case opConfigure:
			if body[1]&byte(FlagInput) != 0 {
				f.staged = f.lastWrite
			}
			reply = []byte{statusOK}
		case opWrite:
			f.lastWrite = append([]byte(nil), body[1:]...)
			reply = []byte{statusOK}
		case opRead:
			reply = append([]byte{statusOK}, f.staged...)
		case opPulse:
			f.pulses++
			reply = []byte{statusOK}
		default:
			reply = []byte{statusBadOp}
		}
		if _, err := conn.Write(makeTelegram(reply)); err != nil {
			return
		}
	}
}

func pipeBridge(t *testing.T) (*Bridge, *fakeBridge) {
	t.Helper()
	client, server := net.Pipe()
	fake := &fakeBridge{staged: []byte{0, 0, 0, 0}}
	go fake.serve(server)
	b := NewBridge("test", false)
	b.Conn = client
	t.Cleanup(func() { client.Close(); server.Close() })
	return b, fake
}

func TestBridgeWriteRead(t *testing.T) {
	b, _ := pipeBridge(t)
	if err := b.Configure(0, 32, 2, 4); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if err := b.Configure(FlagEnd|FlagInput, 32, 16, 4); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(0x0D0A5E0D); err != nil { // all special bytes
		t.Fatal(err)
	}
	got, err := b.Read()
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x0D0A5E0D {
		t.Errorf("read back %#08x, want 0x0D0A5E0D", got)
	}
}

func TestBridgePulse(t *testing.T) {
	b, fake := pipeBridge(t)
	b.PulseTicks(8)
	// pulse errors are swallowed; synchronize on a transfer
	if err := b.Configure(0, 8, 2, 4); err != nil {
		t.Fatal(err)
	}
	if fake.pulses != 1 {
		t.Errorf("bridge saw %d pulses, want 1", fake.pulses)
	}
}

func TestBridgeNotConnected(t *testing.T) {
	b := NewBridge("test", false)
	if err := b.Write(0); err != ErrNotConnected {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
	if _, err := b.Read(); err != ErrNotConnected {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestBridgeBadStatus(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	go func() {
		rdr := bufio.NewReader(server)
		if _, err := rdr.ReadBytes(telEnd); err != nil {
			return
		}
		server.Write(makeTelegram([]byte{statusBusBusy}))
	}()
	b := NewBridge("test", false)
	b.Conn = client
	if err := b.Write(0); err == nil {
		t.Error("busy status reported no error")
	}
}

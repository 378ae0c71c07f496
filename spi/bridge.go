package spi

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

var (
	// ErrNotConnected is generated when Conn is nil and a transfer is attempted
	ErrNotConnected = errors.New("conn is nil, not connected to bridge")
)

/*Bridge is a Bus implementation that forwards transfers to a bus bridge
board over a byte link (RS232 or TCP).  The bridge owns the shift engine and
the update-pulse line; this type only frames requests and checks responses.

The zero value is not usable; construct with NewBridge and call Open before
issuing transfers, or inject a Conn directly (tests do this with net.Pipe).

Bridge also implements rtio.Pulser for the update-pulse line routed through
the bridge board.
*/
type Bridge struct {
	// Addr is the network or filesystem address of the bridge,
	// e.g. 192.168.100.40:4021 or /dev/ttyUSB2
	Addr string

	// IsSerial selects RS232 (true) or TCP (false) transport
	IsSerial bool

	// Tick is the period of one pulse-width tick on the bridge
	Tick time.Duration

	// Conn is the underlying connection
	Conn io.ReadWriteCloser
}

// NewBridge creates a new Bridge instance with a 1ns pulse tick.
func NewBridge(addr string, isSerial bool) *Bridge {
	return &Bridge{Addr: addr, IsSerial: isSerial, Tick: time.Nanosecond}
}

// SerialConf yields the serial configuration used for RS232 bridges.
func (b *Bridge) SerialConf() *serial.Config {
	return &serial.Config{
		Name:        b.Addr,
		Baud:        115200,
		ReadTimeout: 3 * time.Second}
}

// Open the connection, setting the Conn variable.  Connection attempts are
// retried with exponential backoff; bridge boards drop the link while their
// gateware reloads.
func (b *Bridge) Open() error {
	wasTimeout := false
	op := func() error {
		err := b.open()
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "refused") {
				return err
			}
			wasTimeout = true
			return nil
		}
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return errors.Errorf("connection timeout to %s", b.Addr)
	}
	return err
}

func (b *Bridge) open() error {
	var (
		conn io.ReadWriteCloser
		err  error
	)
	if b.IsSerial {
		conn, err = serial.OpenPort(b.SerialConf())
	} else {
		conn, err = tcpSetup(b.Addr, 3*time.Second)
	}
	if err != nil {
		return err
	}
	b.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable
func (b *Bridge) Close() error {
	if b.Conn == nil {
		return nil
	}
	err := b.Conn.Close()
	if err == nil {
		b.Conn = nil
	}
	return err
}

// transact writes one request telegram and reads the response body,
// verifying its status byte.
func (b *Bridge) transact(op byte, args []byte) ([]byte, error) {
	if b.Conn == nil {
		return nil, ErrNotConnected
	}
	tele := makeTelegram(append([]byte{op}, args...))
	if _, err := b.Conn.Write(tele); err != nil {
		return nil, errors.Wrap(err, "writing telegram to bridge")
	}
	raw, err := bufio.NewReader(b.Conn).ReadBytes(telEnd)
	if err != nil {
		return nil, errors.Wrap(err, "reading telegram from bridge")
	}
	body, err := decodeTelegram(raw)
	if err != nil {
		return nil, err
	}
	if body[0] != statusOK {
		return nil, errors.Errorf("bridge returned status %#x for opcode %#x", body[0], op)
	}
	return body[1:], nil
}

// Configure sets up the next transfer on the bridge's shift engine.
func (b *Bridge) Configure(flags Flag, length, div, cs int) error {
	_, err := b.transact(opConfigure, []byte{byte(flags), byte(length), byte(div), byte(cs)})
	return err
}

// Write shifts out one word.
func (b *Bridge) Write(data uint32) error {
	_, err := b.transact(opWrite, []byte{
		byte(data >> 24), byte(data >> 16), byte(data >> 8), byte(data)})
	return err
}

// Read returns the word captured by the last FlagInput transfer.
func (b *Bridge) Read() (uint32, error) {
	data, err := b.transact(opRead, nil)
	if err != nil {
		return 0, err
	}
	if len(data) != 4 {
		return 0, errors.Errorf("bridge read returned %d bytes, expected 4", len(data))
	}
	return uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]), nil
}

// PulseTicks fires the bridge's update-pulse line for a width in ticks.
// Errors are swallowed to satisfy rtio.Pulser; a failed pulse surfaces on
// the next transfer.
func (b *Bridge) PulseTicks(t int64) {
	b.transact(opPulse, []byte{
		byte(t >> 56), byte(t >> 48), byte(t >> 40), byte(t >> 32),
		byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)})
}

// Pulse fires the update-pulse line for a duration.
func (b *Bridge) Pulse(d time.Duration) {
	b.PulseTicks(int64(d / b.Tick))
}

// tcpSetup opens a new TCP connection and sets a timeout on connect, read, and write
func tcpSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}

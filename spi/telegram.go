package spi

import (
	"bytes"
	"fmt"

	"github.com/snksoft/crc"
)

// The bridge board speaks a telegram protocol on its control link.
// Telegrams are encoded as [SOT][BODY][CRC][EOT]; the request body is
// [OPCODE][ARGS...], the response body is [STATUS][DATA...].  Special
// characters inside body and CRC are escaped as described in sanitize.

const (
	// telStart is the start of telegram byte
	telStart = 0x0D

	// telEnd is the end of telegram byte
	telEnd = 0x0A

	// escapeMarker is the byte prefixed to an escaped special character
	escapeMarker = 0x5E

	// escapeShift is the amount special characters are shifted up by.
	// special characters max out at 0x5E, so shifted values never collide
	// with SOT or EOT
	escapeShift = 0x40
)

// bridge opcodes
const (
	opConfigure = 0x01
	opWrite     = 0x02
	opRead      = 0x03
	opPulse     = 0x04
)

// bridge status codes
const (
	statusOK      = 0x00
	statusBadOp   = 0x01
	statusBusBusy = 0x02
)

var (
	// specialChars must not appear raw inside a telegram body
	specialChars = []byte{telEnd, telStart, escapeMarker}

	crcTable = crc.NewTable(crc.XMODEM)
)

func crcBytes(body []byte) []byte {
	c := crcTable.CalculateCRC(body)
	return []byte{byte(c >> 8), byte(c)}
}

func sanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if bytes.IndexByte(specialChars, b) >= 0 {
			out = append(out, escapeMarker, b+escapeShift)
		} else {
			out = append(out, b)
		}
	}
	return out
}

func reverseSanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	unshiftNext := false
	for _, b := range data {
		if b == escapeMarker {
			unshiftNext = true
			continue
		}
		if unshiftNext {
			b -= escapeShift
			unshiftNext = false
		}
		out = append(out, b)
	}
	return out
}

// makeTelegram frames a body with start/end bytes, escaping, and a CRC-16
// (CCITT XMODEM) over the unescaped body.
func makeTelegram(body []byte) []byte {
	out := []byte{telStart}
	out = append(out, sanitize(body)...)
	out = append(out, sanitize(crcBytes(body))...)
	out = append(out, telEnd)
	return out
}

// decodeTelegram strips the framing from a raw telegram and verifies its
// CRC, returning the body.
func decodeTelegram(tele []byte) ([]byte, error) {
	iStart := bytes.IndexByte(tele, telStart)
	if iStart < 0 {
		return nil, fmt.Errorf("telegram start byte %#x not found", telStart)
	}
	iEnd := bytes.IndexByte(tele, telEnd)
	if iEnd < 0 {
		return nil, fmt.Errorf("telegram end byte %#x not found", telEnd)
	}
	body := reverseSanitize(tele[iStart+1 : iEnd])
	if len(body) < 3 {
		return nil, fmt.Errorf("telegram too short, %d bytes after unescaping", len(body))
	}
	fidx := len(body) - 2
	recv := body[fidx:]
	body = body[:fidx]
	if !bytes.Equal(recv, crcBytes(body)) {
		return nil, fmt.Errorf("telegram CRC mismatch, bridge link corrupted")
	}
	return body, nil
}

/*Package spi provides the serial configuration bus consumed by the DDS
drivers in this repository.

The Bus interface mirrors the primitives of the hardware shift engine: a
transfer is configured (word width, clocking flags, clock divider, chip
select) and then words are shifted out or in.  A transaction spans one or
more transfers and is terminated by the transfer carrying FlagEnd, which
releases the chip select.

Two implementations are provided: Bridge, which forwards transfers to a bus
bridge board over RS232 or TCP, and the in-package simulators of the device
packages (see package dds).
*/
package spi

// Flag is a bitfield controlling a single bus transfer.
type Flag uint32

const (
	// FlagOffline disables the bus interface and tristates its pins.
	FlagOffline Flag = 1 << iota

	// FlagEnd marks the last transfer of a transaction; the chip select
	// is deasserted after the transfer completes.
	FlagEnd

	// FlagInput captures the shifted-in word for retrieval via Read.
	FlagInput

	// FlagCSPolarity inverts the chip select line (active high).
	FlagCSPolarity

	// FlagClkPolarity sets the idle clock level to high (CPOL=1).
	FlagClkPolarity

	// FlagClkPhase samples on the trailing clock edge (CPHA=1).
	FlagClkPhase

	// FlagLSBFirst shifts data least-significant bit first.
	FlagLSBFirst

	// FlagHalfDuplex uses the output line for input as well.
	FlagHalfDuplex
)

// Bus is a serial configuration bus.  Implementations are not safe for
// concurrent use; callers own serialization across channels sharing the bus.
type Bus interface {
	// Configure sets up the next transfer: clocking flags, transfer
	// length in bits (up to 32), clock divider, and chip select.
	Configure(flags Flag, length, div, cs int) error

	// Write shifts out one word, left-aligned to the configured length.
	Write(data uint32) error

	// Read returns the word shifted in during the most recent transfer
	// configured with FlagInput.
	Read() (uint32, error)
}

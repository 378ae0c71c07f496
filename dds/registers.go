package dds

// Register addresses of the DDS chip.  Addresses are 7 bits; reads set the
// top bit of the instruction byte.
const (
	RegCFR1       = 0x00 // control function register 1
	RegCFR2       = 0x01 // control function register 2
	RegCFR3       = 0x02 // control function register 3 (PLL)
	RegAuxDAC     = 0x03 // auxiliary DAC control
	RegIOUpdate   = 0x04 // IO update rate
	RegFTW        = 0x07 // frequency tuning word
	RegPOW        = 0x08 // phase offset word
	RegASF        = 0x09 // amplitude scale factor
	RegMSync      = 0x0A // multichip synchronization
	RegDRampLimit = 0x0B // digital ramp limits
	RegDRampStep  = 0x0C // digital ramp step size
	RegDRampRate  = 0x0D // digital ramp rate
	RegProfile0   = 0x0E
	RegProfile1   = 0x0F
	RegProfile2   = 0x10
	RegProfile3   = 0x11
	RegProfile4   = 0x12
	RegProfile5   = 0x13
	RegProfile6   = 0x14
	RegProfile7   = 0x15
	RegRAM        = 0x16
)

// regReadFlag is OR'd into the instruction byte for register reads.
const regReadFlag = 0x80

// Control register bit patterns.  The base values keep SDIO in 3-wire mode
// (serial data out on its own pin), which the bus framing relies on.
const (
	// cfr1Base: SDIO input only
	cfr1Base = 0x00000002

	// cfr1AutoClear arms "clear phase accumulator on the next update pulse"
	cfr1AutoClear = 0x00002002

	// cfr1RampProbe arms digital ramp accumulator autoclear and load LRR
	// on update, used only by the alignment probe
	cfr1RampProbe = 0x0000c002

	// cfr2Base: amplitude scale from profiles, effective FTW readback,
	// sample-error monitoring enabled
	cfr2Base = 0x01010000

	// cfr2ClearSmpErr additionally clears the sticky sample-error flag
	cfr2ClearSmpErr = 0x01010020

	// cfr2RampEnable routes the digital ramp generator to the FTW
	cfr2RampEnable = 0x01090000

	// cfr3Base carries the fixed PLL biasing; VCO range, charge pump and
	// divider are OR'd in per channel
	cfr3Base = 0x0807c100

	// cfr3PFDReset holds the phase-frequency detector in reset
	cfr3PFDReset = 0x00000400
)

// auxDACIdentity is the power-on calibration byte in the low bits of the
// AUX DAC register, used as a device-presence check during Init.
const auxDACIdentity = 0x7f

package dds

import (
	"fmt"
	"math"
)

// Conversions between physical units and machine words.  All rounding is
// half-to-even (math.RoundToEven), matching the host float semantics the
// calibration data was taken with; the tests pin this down.

// FrequencyToFTW returns the frequency tuning word for a frequency in Hz.
// The word wraps as a 32-bit signed value.
func (c *Channel) FrequencyToFTW(frequency float64) int32 {
	return int32(int64(math.RoundToEven(c.ftwPerHz * frequency)))
}

// FTWToFrequency returns the frequency in Hz for a frequency tuning word.
func (c *Channel) FTWToFrequency(ftw int32) float64 {
	return float64(ftw) / c.ftwPerHz
}

// TurnsToPOW returns the phase offset word for a phase in turns.
func TurnsToPOW(turns float64) int32 {
	return int32(int64(math.RoundToEven(turns * 0x10000)))
}

// POWToTurns returns the phase in turns for a phase offset word.
func POWToTurns(pow int32) float64 {
	return float64(pow) / 0x10000
}

// AmplitudeToASF returns the amplitude scale factor for an amplitude in
// units of full scale.
func AmplitudeToASF(amplitude float64) int32 {
	return int32(math.RoundToEven(amplitude * 0x3ffe))
}

// ASFToAmplitude returns the amplitude in units of full scale for an
// amplitude scale factor.
func ASFToAmplitude(asf int32) float64 {
	return float64(asf) / 0x3ffe
}

// AttToMu returns the attenuator machine word for an attenuation in dB.
// The attenuators step in 0.125 dB over [0, 31.5] dB.
func AttToMu(att float64) (uint8, error) {
	mu := 255 - math.RoundToEven(att*8)
	if mu < 0 || mu > 255 {
		return 0, fmt.Errorf("%w: attenuation %g dB outside [0,31.5]", ErrConfigurationInvalid, att)
	}
	return uint8(mu), nil
}

// MuToAtt returns the attenuation in dB for an attenuator machine word.
func MuToAtt(mu uint8) float64 {
	return float64(255-int(mu)) / 8
}

package dds

import "fmt"

// String returns the lowercase name of the phase mode.
func (m PhaseMode) String() string {
	switch m {
	case PhaseModeContinuous:
		return "continuous"
	case PhaseModeAbsolute:
		return "absolute"
	case PhaseModeTracking:
		return "tracking"
	case PhaseModeDefault:
		return "default"
	default:
		return fmt.Sprintf("PhaseMode(%d)", int(m))
	}
}

// ParsePhaseMode maps a case-sensitive mode name to a PhaseMode.
func ParsePhaseMode(name string) (PhaseMode, error) {
	switch name {
	case "continuous":
		return PhaseModeContinuous, nil
	case "absolute":
		return PhaseModeAbsolute, nil
	case "tracking":
		return PhaseModeTracking, nil
	default:
		return PhaseModeDefault, fmt.Errorf("dds: unknown phase mode %q", name)
	}
}

// PhaseModeName returns the name of the channel's default phase mode.
func (c *Channel) PhaseModeName() string {
	return c.phaseMode.String()
}

// SetPhaseModeName sets the default phase mode by name: "continuous",
// "absolute" or "tracking".
func (c *Channel) SetPhaseModeName(name string) error {
	mode, err := ParsePhaseMode(name)
	if err != nil {
		return err
	}
	c.SetPhaseMode(mode)
	return nil
}

// SetOutput writes frequency (Hz), phase (turns) and amplitude (full scale)
// using the channel's default phase mode, returning the phase in turns.
func (c *Channel) SetOutput(frequency, phase, amplitude float64) (float64, error) {
	return c.Set(frequency, phase, amplitude, PhaseModeDefault, -1)
}

// SetOutputMu writes profile 0 in machine units using the channel's default
// phase mode, returning the resulting phase offset word.
func (c *Channel) SetOutputMu(ftw, pow, asf int32) (int32, error) {
	return c.SetMu(ftw, pow, asf, PhaseModeDefault, -1)
}

package mmcm

import (
	"fmt"
	"log/slog"
)

// InputConfig is the static input clock configuration.
type InputConfig struct {
	Frequency     uint32 `yaml:"frequency"`
	Divide        uint32 `yaml:"divide"`
	Multiply      uint32 `yaml:"multiply"`
	Phase         int32  `yaml:"phase"`
	BandwidthHigh bool   `yaml:"bandwidth_high"`
}

// OutputConfig is the static configuration of one output. A zero
// frequency means the output runs at VCO/divide.
type OutputConfig struct {
	Frequency uint32 `yaml:"frequency"`
	Divide    uint32 `yaml:"divide"`
	Duty      uint32 `yaml:"duty"`
	Phase     int32  `yaml:"phase"`
}

// Config describes one logiCLK core.
type Config struct {
	Input         InputConfig    `yaml:"input"`
	PreciseOutput int            `yaml:"precise_output"`
	Outputs       []OutputConfig `yaml:"outputs"`
}

// validate checks the configuration and builds the initial state. It
// reports whether any output asked for an explicit frequency.
// Out-of-range output frequencies are dropped with a warning.
func (c Config) validate(log *slog.Logger) (state, bool, error) {
	var s state
	var setFreq bool

	if len(c.Outputs) != Outputs {
		return s, false, fmt.Errorf("%d outputs, want %d: %w", len(c.Outputs), Outputs, ErrInvalidConfig)
	}

	in := c.Input
	if in.Frequency < InputFreqMin || in.Frequency > InputFreqMax {
		return s, false, fmt.Errorf("input frequency %d Hz: %w", in.Frequency, ErrInvalidConfig)
	}
	if in.Divide < DivclkDivideMin || in.Divide > DivclkDivideMax {
		return s, false, fmt.Errorf("input divide %d: %w", in.Divide, ErrInvalidConfig)
	}
	if in.Multiply < FboutMultMin || in.Multiply > FboutMultMax {
		return s, false, fmt.Errorf("input multiply %d: %w", in.Multiply, ErrInvalidConfig)
	}
	if in.Phase < PhaseMin || in.Phase > PhaseMax {
		return s, false, fmt.Errorf("input phase %d: %w", in.Phase, ErrInvalidConfig)
	}
	if c.PreciseOutput < 0 || c.PreciseOutput >= Outputs {
		return s, false, fmt.Errorf("precise output %d: %w", c.PreciseOutput, ErrInvalidConfig)
	}

	s.input = Input{
		Frequency:     in.Frequency,
		Multiply:      in.Multiply,
		Phase:         in.Phase,
		Divide:        in.Divide,
		BandwidthHigh: in.BandwidthHigh,
	}

	for i, oc := range c.Outputs {
		if oc.Frequency != 0 && (oc.Frequency < OutputFreqMin || oc.Frequency > OutputFreqMax) {
			log.Warn("unsupported output frequency", "output", i, "frequency", oc.Frequency)
			oc.Frequency = 0
		}
		if oc.Frequency != 0 {
			setFreq = true
		}
		if oc.Divide < ClkoutDivideMin || oc.Divide > ClkoutDivideMax {
			return s, false, fmt.Errorf("output %d divide %d: %w", i, oc.Divide, ErrInvalidConfig)
		}
		if oc.Duty < ClkoutDutyMin || oc.Duty > ClkoutDutyMax {
			return s, false, fmt.Errorf("output %d duty %d: %w", i, oc.Duty, ErrInvalidConfig)
		}
		if oc.Phase < PhaseMin || oc.Phase > PhaseMax {
			return s, false, fmt.Errorf("output %d phase %d: %w", i, oc.Phase, ErrInvalidConfig)
		}

		s.outputs[i] = Output{
			ID:        i,
			Frequency: oc.Frequency,
			Divide:    oc.Divide,
			Duty:      oc.Duty,
			Phase:     oc.Phase,
			Precise:   i == c.PreciseOutput,
		}
	}

	return s, setFreq, nil
}

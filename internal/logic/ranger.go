package logic

import (
	"fmt"

	"github.com/sweeney/ranger-sensor/internal/gpio"
)

// Trigger timing from the HC-SR04 datasheet.
const (
	// SettleLowUs is how long the trigger is held LOW before the pulse.
	SettleLowUs = 5
	// TriggerHighUs is the minimum trigger pulse width.
	TriggerHighUs = 10
	// DefaultEchoTimeoutUs matches the usual pulse-in default of one second.
	DefaultEchoTimeoutUs = 1000000
)

// DistanceCm converts an echo width to centimetres (speed of sound
// 0.034 cm/µs, halved for the round trip).
func DistanceCm(pulseUs uint64) float64 {
	return float64(pulseUs) * 0.034 / 2
}

// RangerConfig describes an ultrasonic trigger/echo sensor.
type RangerConfig struct {
	TriggerPin int
	EchoPin    int
	// SamplingPeriodMs is the minimum interval between measurement cycles.
	SamplingPeriodMs uint64
	// EchoTimeoutUs bounds the echo measurement; 0 selects DefaultEchoTimeoutUs.
	EchoTimeoutUs uint64
}

// Ranger drives a trigger/echo sensor through its pulse sequence without
// sleeping. Poll advances the sequence by at most one phase per call.
type Ranger struct {
	hw            gpio.Hardware
	triggerPin    int
	echoPin       int
	periodMs      uint64
	echoTimeoutUs uint64

	phase        Phase
	phaseEntryUs uint64
	lastSampleMs uint64

	// driven is the last level written to the trigger pin; valid once drove is set.
	driven gpio.Level
	drove  bool

	reading Reading
}

// NewRanger validates cfg and returns a Ranger in PhaseIdleToLow.
func NewRanger(hw gpio.Hardware, cfg RangerConfig) (*Ranger, error) {
	if hw == nil {
		return nil, ErrNilHardware
	}
	if cfg.TriggerPin < 0 || cfg.TriggerPin > gpio.MaxPin {
		return nil, fmt.Errorf("trigger pin %d: %w", cfg.TriggerPin, ErrInvalidPin)
	}
	if cfg.EchoPin < 0 || cfg.EchoPin > gpio.MaxPin {
		return nil, fmt.Errorf("echo pin %d: %w", cfg.EchoPin, ErrInvalidPin)
	}
	if cfg.TriggerPin == cfg.EchoPin {
		return nil, fmt.Errorf("pin %d: %w", cfg.EchoPin, ErrSamePins)
	}

	timeout := cfg.EchoTimeoutUs
	if timeout == 0 {
		timeout = DefaultEchoTimeoutUs
	}
	return &Ranger{
		hw:            hw,
		triggerPin:    cfg.TriggerPin,
		echoPin:       cfg.EchoPin,
		periodMs:      cfg.SamplingPeriodMs,
		echoTimeoutUs: timeout,
	}, nil
}

// Configure sets the trigger as an output and the echo as an input.
func (r *Ranger) Configure() error {
	if err := r.hw.SetPinMode(r.triggerPin, gpio.Output); err != nil {
		return fmt.Errorf("configure trigger: %w", err)
	}
	if err := r.hw.SetPinMode(r.echoPin, gpio.Input); err != nil {
		return fmt.Errorf("configure echo: %w", err)
	}
	return nil
}

// Poll does at most one step of the measurement cycle. Nothing happens until
// more than the sampling period has passed since the last measurement.
//
// In PhaseMeasuring Poll blocks in MeasurePulseWidth for up to the echo
// timeout; this stalls the whole loop and is the one blocking point. measured
// is true when a cycle completed and Reading holds a new value. A timed out
// echo is reported as a zero Reading, not as an error.
//
// On error the phase is left unchanged and the step is retried next call.
func (r *Ranger) Poll() (measured bool, err error) {
	if r.hw.NowMillis()-r.lastSampleMs <= r.periodMs {
		return false, nil
	}

	switch r.phase {
	case PhaseIdleToLow:
		if err := r.drive(gpio.Low); err != nil {
			return false, err
		}
		r.phase = PhaseLowToHigh

	case PhaseLowToHigh:
		if r.hw.NowMicros()-r.phaseEntryUs < SettleLowUs {
			return false, nil
		}
		// The echo can rise before the Measuring poll; start capturing
		// edges before the trigger goes up.
		if a, ok := r.hw.(gpio.EdgeArmer); ok {
			if err := a.ArmEdges(r.echoPin); err != nil {
				return false, fmt.Errorf("arm echo: %w", err)
			}
		}
		if err := r.drive(gpio.High); err != nil {
			return false, err
		}
		r.phase = PhaseHighToLowTrigger

	case PhaseHighToLowTrigger:
		if r.hw.NowMicros()-r.phaseEntryUs < TriggerHighUs {
			return false, nil
		}
		if err := r.drive(gpio.Low); err != nil {
			return false, err
		}
		r.phase = PhaseMeasuring

	case PhaseMeasuring:
		pulse, err := r.hw.MeasurePulseWidth(r.echoPin, gpio.High, r.echoTimeoutUs)
		if err != nil {
			return false, fmt.Errorf("measure echo: %w", err)
		}
		r.reading = Reading{PulseUs: pulse, DistanceCm: DistanceCm(pulse)}
		r.lastSampleMs = r.hw.NowMillis()
		r.phase = PhaseIdleToLow
		return true, nil
	}
	return false, nil
}

// drive sets the trigger level. The write and the phase timestamp are skipped
// when the pin already reads the level this driver last drove.
func (r *Ranger) drive(level gpio.Level) error {
	cur, err := r.hw.ReadDigital(r.triggerPin)
	if err != nil {
		return fmt.Errorf("read trigger: %w", err)
	}
	if r.drove && r.driven == level && cur == level {
		return nil
	}
	if err := r.hw.WriteDigital(r.triggerPin, level); err != nil {
		return fmt.Errorf("drive trigger %s: %w", level, err)
	}
	r.driven = level
	r.drove = true
	r.phaseEntryUs = r.hw.NowMicros()
	return nil
}

// Reset abandons the current cycle and returns to PhaseIdleToLow. The last
// reading and sampling timestamp are kept.
func (r *Ranger) Reset() {
	r.phase = PhaseIdleToLow
	r.drove = false
}

// Phase returns the step the next Poll will attempt.
func (r *Ranger) Phase() Phase {
	return r.phase
}

// Reading returns the last completed measurement.
func (r *Ranger) Reading() Reading {
	return r.reading
}

// DistanceCm returns the last measured distance; 0 means no echo.
func (r *Ranger) DistanceCm() float64 {
	return r.reading.DistanceCm
}

// PulseUs returns the last measured echo width.
func (r *Ranger) PulseUs() uint64 {
	return r.reading.PulseUs
}

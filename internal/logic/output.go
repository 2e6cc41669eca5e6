package logic

import (
	"fmt"

	"github.com/sweeney/ranger-sensor/internal/gpio"
)

// Output is a digital output device (LED, relay) that follows a toggle bit.
type Output struct {
	hw      gpio.Hardware
	pin     int
	on      bool
	written bool
}

// NewOutput returns an Output for pin, initially off.
func NewOutput(hw gpio.Hardware, pin int) (*Output, error) {
	if hw == nil {
		return nil, ErrNilHardware
	}
	if pin < 0 || pin > gpio.MaxPin {
		return nil, fmt.Errorf("output pin %d: %w", pin, ErrInvalidPin)
	}
	return &Output{hw: hw, pin: pin}, nil
}

// Configure sets the pin as an output and drives it to the current state.
func (o *Output) Configure() error {
	if err := o.hw.SetPinMode(o.pin, gpio.Output); err != nil {
		return fmt.Errorf("configure output: %w", err)
	}
	o.written = false
	return o.Set(o.on)
}

// Set drives the pin HIGH for on. The pin is only written when the state changes.
func (o *Output) Set(on bool) error {
	if o.written && on == o.on {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := o.hw.WriteDigital(o.pin, level); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	o.on = on
	o.written = true
	return nil
}

// On reports the last state written.
func (o *Output) On() bool {
	return o.on
}

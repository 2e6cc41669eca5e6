// Package logic contains the button and ultrasonic ranger state machines.
// All hardware access and time goes through gpio.Hardware; nothing here
// sleeps. Each driver is polled once per loop tick and is not safe for
// concurrent use.
package logic

import (
	"errors"
	"time"
)

var (
	ErrInvalidPin      = errors.New("pin out of range")
	ErrInvalidDebounce = errors.New("debounce window out of range")
	ErrSamePins        = errors.New("trigger and echo pins must differ")
	ErrNilHardware     = errors.New("nil hardware")
)

// MaxDebounceMs is the largest accepted debounce window.
const MaxDebounceMs = 127

// Phase is a step of the ranger trigger sequence.
type Phase uint8

const (
	PhaseIdleToLow Phase = iota
	PhaseLowToHigh
	PhaseHighToLowTrigger
	PhaseMeasuring
)

func (p Phase) String() string {
	switch p {
	case PhaseIdleToLow:
		return "IDLE_TO_LOW"
	case PhaseLowToHigh:
		return "LOW_TO_HIGH"
	case PhaseHighToLowTrigger:
		return "HIGH_TO_LOW_TRIGGER"
	case PhaseMeasuring:
		return "MEASURING"
	}
	return "UNKNOWN"
}

// Reading is the result of one measurement cycle.
// A zero PulseUs means the echo timed out; DistanceCm is then 0 as well.
type Reading struct {
	PulseUs    uint64
	DistanceCm float64
}

// NoEcho reports whether the reading is the timeout sentinel.
func (r Reading) NoEcho() bool {
	return r.PulseUs == 0
}

// State is the logical state of the toggled output.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a toggle bit to a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Counts tracks driver activity since startup.
type Counts struct {
	Toggles      int
	Measurements int
	NoEcho       int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

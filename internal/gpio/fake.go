package gpio

import (
	"fmt"
	"time"
)

// Write records a single WriteDigital call on a FakeHardware.
type Write struct {
	Pin   int
	Level Level
	AtUs  uint64
}

// FakeHardware is a test double with a simulated clock and pin levels.
// Not safe for concurrent use.
type FakeHardware struct {
	// Micros is the simulated microsecond clock.
	Micros uint64

	// Levels holds the current level of every pin that was read or written.
	Levels map[int]Level

	// Modes records the last mode set for each pin.
	Modes map[int]Mode

	// Writes logs every successful WriteDigital call in order.
	Writes []Write

	// Echoes contains scripted pulse widths in microseconds.
	// Each call to MeasurePulseWidth consumes the next one; an exhausted
	// queue behaves like a timeout.
	Echoes []uint64

	// EchoDelayUs, when non-zero, makes an armed echo rise this long after
	// ArmEdges instead of when MeasurePulseWidth is called. This models an
	// echo that starts between the trigger and the measurement poll.
	EchoDelayUs uint64

	// Measurements counts MeasurePulseWidth calls.
	Measurements int

	// Arms counts ArmEdges calls.
	Arms int

	armedUs map[int]uint64

	// ReadError, WriteError and MeasureError, if set, are returned by the
	// matching call.
	ReadError    error
	WriteError   error
	MeasureError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeHardware creates a FakeHardware with the clock at zero and every pin LOW.
func NewFakeHardware() *FakeHardware {
	return &FakeHardware{
		Levels:  make(map[int]Level),
		Modes:   make(map[int]Mode),
		armedUs: make(map[int]uint64),
	}
}

// Advance moves the simulated clock forward.
func (f *FakeHardware) Advance(d time.Duration) {
	f.Micros += uint64(d / time.Microsecond)
}

// SetMillis sets the simulated clock to the given millisecond value.
func (f *FakeHardware) SetMillis(ms uint64) {
	f.Micros = ms * 1000
}

// Set forces the level seen on an input pin.
func (f *FakeHardware) Set(pin int, level Level) {
	f.Levels[pin] = level
}

// SetPinMode records the mode.
func (f *FakeHardware) SetPinMode(pin int, mode Mode) error {
	if pin < 0 || pin > MaxPin {
		return fmt.Errorf("set mode pin %d: out of range", pin)
	}
	f.Modes[pin] = mode
	return nil
}

// ReadDigital returns the simulated pin level.
func (f *FakeHardware) ReadDigital(pin int) (Level, error) {
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	return f.Levels[pin], nil
}

// WriteDigital sets the simulated pin level and logs the write.
func (f *FakeHardware) WriteDigital(pin int, level Level) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Levels[pin] = level
	f.Writes = append(f.Writes, Write{Pin: pin, Level: level, AtUs: f.Micros})
	return nil
}

// NowMillis returns the simulated clock in milliseconds.
func (f *FakeHardware) NowMillis() uint64 {
	return f.Micros / 1000
}

// NowMicros returns the simulated clock in microseconds.
func (f *FakeHardware) NowMicros() uint64 {
	return f.Micros
}

// ArmEdges records the arm time for pin.
func (f *FakeHardware) ArmEdges(pin int) error {
	if pin < 0 || pin > MaxPin {
		return fmt.Errorf("arm pin %d: out of range", pin)
	}
	f.Arms++
	f.armedUs[pin] = f.Micros
	return nil
}

// MeasurePulseWidth consumes the next scripted echo width. The pulse rises
// when the call is made, or EchoDelayUs after the arm when the pin is armed.
// The clock advances to the end of the pulse if that is still ahead, or by
// the full timeout when the pulse is missing or too long.
func (f *FakeHardware) MeasurePulseWidth(pin int, level Level, timeoutUs uint64) (uint64, error) {
	f.Measurements++
	if f.MeasureError != nil {
		return 0, f.MeasureError
	}

	armedAt, armed := f.armedUs[pin]
	delete(f.armedUs, pin)

	if len(f.Echoes) == 0 {
		f.Micros += timeoutUs
		return 0, nil
	}

	width := f.Echoes[0]
	f.Echoes = f.Echoes[1:]
	if width == 0 || width > timeoutUs {
		f.Micros += timeoutUs
		return 0, nil
	}

	rise := f.Micros
	if armed && f.EchoDelayUs > 0 {
		rise = armedAt + f.EchoDelayUs
	}
	if rise > f.Micros && rise-f.Micros+width > timeoutUs {
		f.Micros += timeoutUs
		return 0, nil
	}

	if end := rise + width; end > f.Micros {
		f.Micros = end
	}
	return width, nil
}

// Close marks the hardware as closed.
func (f *FakeHardware) Close() error {
	f.Closed = true
	return nil
}

// WritesTo returns the logged writes for a single pin.
func (f *FakeHardware) WritesTo(pin int) []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded writes and injected errors. Clock and levels are kept.
func (f *FakeHardware) Reset() {
	f.Writes = nil
	f.Echoes = nil
	f.Measurements = 0
	f.Arms = 0
	f.armedUs = make(map[int]uint64)
	f.ReadError = nil
	f.WriteError = nil
	f.MeasureError = nil
	f.Closed = false
}

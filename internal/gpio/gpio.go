// Package gpio provides the hardware capabilities the drivers consume:
// digital pin I/O, monotonic clocks and echo pulse measurement.
// The real implementation uses the Linux GPIO character device.
// The fake implementation simulates pins and time for tests and sim runs.
package gpio

// Level is a digital pin level.
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Invert returns the opposite level.
func (l Level) Invert() Level {
	if l == High {
		return Low
	}
	return High
}

// Mode is a pin direction and bias.
type Mode uint8

const (
	Input Mode = iota
	InputPullUp
	InputPullDown
	Output
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "INPUT"
	case InputPullUp:
		return "INPUT_PULLUP"
	case InputPullDown:
		return "INPUT_PULLDOWN"
	case Output:
		return "OUTPUT"
	}
	return "UNKNOWN"
}

// MaxPin is the highest line offset accepted by the drivers.
const MaxPin = 127

// Default pin assignments (BCM numbering).
const (
	DefaultPinButton  = 17
	DefaultPinOutput  = 27
	DefaultPinTrigger = 23
	DefaultPinEcho    = 24
)

// Hardware is the minimal capability set the drivers need.
//
// Clocks are monotonic and wrap like unsigned counters; callers compute
// elapsed time with unsigned subtraction.
type Hardware interface {
	// SetPinMode configures a pin. Called once at setup.
	SetPinMode(pin int, mode Mode) error

	// ReadDigital returns the instantaneous level of a pin.
	ReadDigital(pin int) (Level, error)

	// WriteDigital drives an output pin.
	WriteDigital(pin int, level Level) error

	// NowMillis returns the monotonic millisecond counter.
	NowMillis() uint64

	// NowMicros returns the monotonic microsecond counter.
	NowMicros() uint64

	// MeasurePulseWidth blocks until a pulse of the given level has been
	// observed on pin and returns its width in microseconds. It returns 0
	// when no complete pulse arrives within timeoutUs. This is the only
	// blocking call in the interface.
	MeasurePulseWidth(pin int, level Level, timeoutUs uint64) (uint64, error)

	// Close releases hardware resources.
	Close() error
}

// EdgeArmer is implemented by hardware that timestamps input edges in the
// background. ArmEdges opens a capture window on pin: the next
// MeasurePulseWidth on that pin pairs every edge seen since the arm, even
// edges that arrived before MeasurePulseWidth was called. Edges from before
// the arm are discarded.
//
// Without an arm, MeasurePulseWidth only sees edges after it is called.
type EdgeArmer interface {
	ArmEdges(pin int) error
}

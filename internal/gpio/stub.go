//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported")

// RealHardware is not available on non-Linux platforms.
type RealHardware struct{}

// NewRealHardware returns an error on non-Linux platforms.
func NewRealHardware(chipName string) (*RealHardware, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (r *RealHardware) SetPinMode(pin int, mode Mode) error { return errUnsupported }

func (r *RealHardware) ReadDigital(pin int) (Level, error) { return Low, errUnsupported }

func (r *RealHardware) WriteDigital(pin int, level Level) error { return errUnsupported }

func (r *RealHardware) NowMillis() uint64 { return 0 }

func (r *RealHardware) NowMicros() uint64 { return 0 }

func (r *RealHardware) ArmEdges(pin int) error { return errUnsupported }

func (r *RealHardware) MeasurePulseWidth(pin int, level Level, timeoutUs uint64) (uint64, error) {
	return 0, errUnsupported
}

// Close is a no-op on non-Linux platforms.
func (r *RealHardware) Close() error {
	return nil
}

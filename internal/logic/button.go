package logic

import (
	"fmt"

	"github.com/sweeney/ranger-sensor/internal/gpio"
)

// ButtonConfig describes a physical push button.
type ButtonConfig struct {
	Pin int
	// DebounceMs is how long the raw level must hold before it is trusted (0-127).
	DebounceMs int
	// ActiveLow marks a button wired to ground with a pull-up; pressed reads LOW.
	ActiveLow bool
}

// Button debounces a switch and toggles a caller-owned bit on each press.
type Button struct {
	hw          gpio.Hardware
	pin         int
	debounceMs  uint64
	activeLevel gpio.Level

	previousRaw  gpio.Level
	debounced    gpio.Level
	lastChangeMs uint64
}

// NewButton validates cfg and returns a Button in the released state.
func NewButton(hw gpio.Hardware, cfg ButtonConfig) (*Button, error) {
	if hw == nil {
		return nil, ErrNilHardware
	}
	if cfg.Pin < 0 || cfg.Pin > gpio.MaxPin {
		return nil, fmt.Errorf("button pin %d: %w", cfg.Pin, ErrInvalidPin)
	}
	if cfg.DebounceMs < 0 || cfg.DebounceMs > MaxDebounceMs {
		return nil, fmt.Errorf("button debounce %dms: %w", cfg.DebounceMs, ErrInvalidDebounce)
	}

	active := gpio.High
	if cfg.ActiveLow {
		active = gpio.Low
	}
	return &Button{
		hw:          hw,
		pin:         cfg.Pin,
		debounceMs:  uint64(cfg.DebounceMs),
		activeLevel: active,
		previousRaw: active.Invert(),
		debounced:   active.Invert(),
	}, nil
}

// Configure sets the pin as an input biased towards the released level.
func (b *Button) Configure() error {
	mode := gpio.InputPullDown
	if b.activeLevel == gpio.Low {
		mode = gpio.InputPullUp
	}
	if err := b.hw.SetPinMode(b.pin, mode); err != nil {
		return fmt.Errorf("configure button: %w", err)
	}
	return nil
}

// Poll samples the pin once. When a change into the pressed level has been
// stable for longer than the debounce window, *state is inverted and toggled
// is true. Releases never toggle.
//
// Every raw change, including noise, restarts the window.
func (b *Button) Poll(state *bool) (toggled bool, err error) {
	raw, err := b.hw.ReadDigital(b.pin)
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}
	now := b.hw.NowMillis()

	if raw != b.previousRaw {
		b.lastChangeMs = now
	}

	if now-b.lastChangeMs > b.debounceMs && raw != b.debounced {
		b.debounced = raw
		if b.debounced == b.activeLevel {
			*state = !*state
			toggled = true
		}
	}

	b.previousRaw = raw
	return toggled, nil
}

// Pin returns the button's pin.
func (b *Button) Pin() int {
	return b.pin
}

// Level returns the debounced pin level.
func (b *Button) Level() gpio.Level {
	return b.debounced
}

// Pressed reports whether the debounced level is the pressed level.
func (b *Button) Pressed() bool {
	return b.debounced == b.activeLevel
}

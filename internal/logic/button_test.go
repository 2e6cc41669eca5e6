package logic

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/sweeney/ranger-sensor/internal/gpio"
)

const testButtonPin = 17

func newTestButton(t *testing.T, debounceMs int, activeLow bool) (*Button, *gpio.FakeHardware) {
	t.Helper()
	hw := gpio.NewFakeHardware()
	if activeLow {
		hw.Set(testButtonPin, gpio.High)
	}
	b, err := NewButton(hw, ButtonConfig{Pin: testButtonPin, DebounceMs: debounceMs, ActiveLow: activeLow})
	if err != nil {
		t.Fatalf("NewButton: %v", err)
	}
	return b, hw
}

// pollAt sets the clock and raw level, then polls once.
func pollAt(t *testing.T, b *Button, hw *gpio.FakeHardware, ms uint64, raw gpio.Level, state *bool) bool {
	t.Helper()
	hw.SetMillis(ms)
	hw.Set(testButtonPin, raw)
	toggled, err := b.Poll(state)
	if err != nil {
		t.Fatalf("Poll at %dms: %v", ms, err)
	}
	return toggled
}

func TestNewButtonDefaults(t *testing.T) {
	b, _ := newTestButton(t, 20, false)
	if b.Pin() != testButtonPin {
		t.Errorf("Pin: got %d, want %d", b.Pin(), testButtonPin)
	}
	if b.Level() != gpio.Low {
		t.Errorf("initial level: got %s, want LOW", b.Level())
	}
	if b.Pressed() {
		t.Error("new button should not be pressed")
	}
}

func TestNewButtonValidation(t *testing.T) {
	hw := gpio.NewFakeHardware()
	tests := []struct {
		name string
		cfg  ButtonConfig
		want error
	}{
		{"negative pin", ButtonConfig{Pin: -1, DebounceMs: 20}, ErrInvalidPin},
		{"pin too large", ButtonConfig{Pin: gpio.MaxPin + 1, DebounceMs: 20}, ErrInvalidPin},
		{"negative debounce", ButtonConfig{Pin: 1, DebounceMs: -1}, ErrInvalidDebounce},
		{"debounce too large", ButtonConfig{Pin: 1, DebounceMs: MaxDebounceMs + 1}, ErrInvalidDebounce},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewButton(hw, tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := NewButton(nil, ButtonConfig{Pin: 1}); !errors.Is(err, ErrNilHardware) {
		t.Errorf("nil hardware: got %v", err)
	}
	if _, err := NewButton(hw, ButtonConfig{Pin: gpio.MaxPin, DebounceMs: MaxDebounceMs}); err != nil {
		t.Errorf("upper bounds should be accepted: %v", err)
	}
}

func TestButtonConfigure(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	if err := b.Configure(); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if hw.Modes[testButtonPin] != gpio.InputPullDown {
		t.Errorf("active-high mode: got %s, want INPUT_PULLDOWN", hw.Modes[testButtonPin])
	}

	b, hw = newTestButton(t, 20, true)
	b.Configure()
	if hw.Modes[testButtonPin] != gpio.InputPullUp {
		t.Errorf("active-low mode: got %s, want INPUT_PULLUP", hw.Modes[testButtonPin])
	}
}

// Window 20ms; button held LOW, driven HIGH at t0 and kept HIGH.
func TestButtonDebounceScenario(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	state := false
	const t0 = 1000

	pollAt(t, b, hw, t0-10, gpio.Low, &state)

	if pollAt(t, b, hw, t0, gpio.High, &state) {
		t.Error("should not toggle on the first HIGH sample")
	}

	if pollAt(t, b, hw, t0+19, gpio.High, &state) {
		t.Error("should not toggle at t0+19ms")
	}
	if b.Level() != gpio.Low {
		t.Errorf("at t0+19ms level: got %s, want LOW", b.Level())
	}
	if state {
		t.Error("state flipped too early")
	}

	if !pollAt(t, b, hw, t0+21, gpio.High, &state) {
		t.Error("expected toggle at t0+21ms")
	}
	if b.Level() != gpio.High {
		t.Errorf("at t0+21ms level: got %s, want HIGH", b.Level())
	}
	if !state {
		t.Error("expected state to flip from false to true")
	}
}

func TestButtonExactWindowDoesNotCommit(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	state := false

	pollAt(t, b, hw, 100, gpio.High, &state)
	pollAt(t, b, hw, 120, gpio.High, &state)
	if b.Level() != gpio.Low {
		t.Error("elapsed time equal to the window must not commit")
	}

	pollAt(t, b, hw, 121, gpio.High, &state)
	if b.Level() != gpio.High {
		t.Error("elapsed time beyond the window should commit")
	}
}

func TestButtonPressReleaseTogglesOnce(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	state := false
	toggles := 0

	// LOW for 50ms, HIGH for 50ms, LOW for 50ms at 1ms ticks
	for ms := uint64(0); ms < 150; ms++ {
		raw := gpio.Low
		if ms >= 50 && ms < 100 {
			raw = gpio.High
		}
		if pollAt(t, b, hw, 1000+ms, raw, &state) {
			toggles++
			if raw != gpio.High {
				t.Errorf("toggle at %dms on a LOW commit", ms)
			}
		}
	}

	if toggles != 1 {
		t.Errorf("expected exactly 1 toggle, got %d", toggles)
	}
	if !state {
		t.Error("expected state=true after one press")
	}
	if b.Level() != gpio.Low {
		t.Errorf("expected released level after release, got %s", b.Level())
	}
}

func TestButtonTwoPressesToggleBack(t *testing.T) {
	b, hw := newTestButton(t, 10, false)
	state := false

	ms := uint64(1000)
	for press := 0; press < 2; press++ {
		for i := 0; i < 30; i++ {
			pollAt(t, b, hw, ms, gpio.High, &state)
			ms++
		}
		for i := 0; i < 30; i++ {
			pollAt(t, b, hw, ms, gpio.Low, &state)
			ms++
		}
	}

	if state {
		t.Error("two presses should return state to false")
	}
}

func TestButtonFlickerNeverCommits(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	state := false

	// Toggle raw every 5ms for 500ms, polling every millisecond.
	for ms := uint64(0); ms < 500; ms++ {
		raw := gpio.Level((ms / 5) % 2)
		if pollAt(t, b, hw, 1000+ms, raw, &state) {
			t.Fatalf("unexpected toggle at %dms", ms)
		}
	}

	if b.Level() != gpio.Low {
		t.Errorf("flicker should never commit, level=%s", b.Level())
	}
	if state {
		t.Error("flicker should never flip state")
	}
}

func TestButtonNoiseRestartsWindow(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	state := false

	pollAt(t, b, hw, 1000, gpio.High, &state)
	pollAt(t, b, hw, 1015, gpio.High, &state)
	// One noisy LOW sample restarts the window
	pollAt(t, b, hw, 1016, gpio.Low, &state)
	pollAt(t, b, hw, 1017, gpio.High, &state)

	pollAt(t, b, hw, 1025, gpio.High, &state)
	if b.Level() != gpio.Low {
		t.Error("window should have restarted on the noisy sample")
	}

	pollAt(t, b, hw, 1038, gpio.High, &state)
	if b.Level() != gpio.High {
		t.Error("expected commit 21ms after the last change")
	}
}

func TestButtonZeroWindow(t *testing.T) {
	b, hw := newTestButton(t, 0, false)
	state := false

	pollAt(t, b, hw, 10, gpio.High, &state)
	if state {
		t.Error("zero window still requires a later sample")
	}
	pollAt(t, b, hw, 11, gpio.High, &state)
	if !state {
		t.Error("expected toggle one millisecond after the change")
	}
}

func TestButtonActiveLow(t *testing.T) {
	b, hw := newTestButton(t, 20, true)
	state := false

	if b.Level() != gpio.High {
		t.Errorf("active-low button should start released (HIGH), got %s", b.Level())
	}

	pollAt(t, b, hw, 1000, gpio.High, &state)
	pollAt(t, b, hw, 1100, gpio.Low, &state)
	if !pollAt(t, b, hw, 1121, gpio.Low, &state) {
		t.Error("expected toggle on LOW commit for active-low button")
	}
	if !b.Pressed() {
		t.Error("expected Pressed() while held LOW")
	}

	pollAt(t, b, hw, 1200, gpio.High, &state)
	if pollAt(t, b, hw, 1221, gpio.High, &state) {
		t.Error("release must not toggle")
	}
	if !state {
		t.Error("expected state=true after one press")
	}
}

func TestButtonReadError(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	state := false

	pollAt(t, b, hw, 1000, gpio.High, &state)

	hw.ReadError = errors.New("line fault")
	hw.SetMillis(1100)
	toggled, err := b.Poll(&state)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, hw.ReadError) {
		t.Errorf("error should wrap the hardware error, got %v", err)
	}
	if toggled || state {
		t.Error("a failed read must not change state")
	}

	hw.ReadError = nil
	if !pollAt(t, b, hw, 1101, gpio.High, &state) {
		t.Error("expected recovery on the next tick")
	}
}

// Random raw sequences: the debounced level may only change after the raw
// signal has been constant for longer than the window.
func TestButtonCommitRequiresStableRaw(t *testing.T) {
	const window = 20
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		b, hw := newTestButton(t, window, false)
		state := false
		raw := gpio.Low
		lastRawChange := uint64(0)
		prev := b.Level()

		for ms := uint64(1); ms < 2000; ms++ {
			// Mostly stable with occasional bursts of noise
			if rng.Intn(40) == 0 {
				raw = raw.Invert()
			}
			if hw.Levels[testButtonPin] != raw {
				lastRawChange = ms
			}

			pollAt(t, b, hw, ms, raw, &state)

			if b.Level() != prev {
				if ms-lastRawChange <= window {
					t.Fatalf("run %d: commit at %dms only %dms after raw change", run, ms, ms-lastRawChange)
				}
				if b.Level() != raw {
					t.Fatalf("run %d: committed %s but raw is %s", run, b.Level(), raw)
				}
				prev = b.Level()
			}
		}
	}
}

func TestButtonWindowAcrossWraparound(t *testing.T) {
	b, hw := newTestButton(t, 20, false)
	var on bool

	// The press started 6ms before the millisecond counter wrapped.
	b.previousRaw = gpio.High
	b.lastChangeMs = math.MaxUint64 - 5

	if pollAt(t, b, hw, 14, gpio.High, &on) || on {
		t.Fatal("toggled 20ms into the window")
	}
	if !pollAt(t, b, hw, 15, gpio.High, &on) || !on {
		t.Error("expected a toggle 21ms into the window")
	}
}

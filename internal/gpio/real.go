//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// edgeQueue is the number of buffered edge events kept per input line.
const edgeQueue = 16

// RealHardware drives actual hardware using the Linux GPIO character device.
// Echo pulses are timed from kernel edge event timestamps rather than by
// polling the line level.
type RealHardware struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	edges map[int]chan gpiocdev.LineEvent
	marks map[int]time.Duration // ArmEdges times, on the event clock
	start time.Time
}

// NewRealHardware opens the named GPIO chip (e.g. "gpiochip0").
func NewRealHardware(chipName string) (*RealHardware, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealHardware{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
		edges: make(map[int]chan gpiocdev.LineEvent),
		marks: make(map[int]time.Duration),
		start: time.Now(),
	}, nil
}

// SetPinMode requests the line with the given direction and bias.
// Inputs are requested with edge detection on both edges.
func (r *RealHardware) SetPinMode(pin int, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.lines[pin]; ok {
		delete(r.lines, pin)
		delete(r.edges, pin)
		delete(r.marks, pin)
		if err := closeLine(pin, old); err != nil {
			return err
		}
	}

	var opts []gpiocdev.LineReqOption
	switch mode {
	case Output:
		opts = append(opts, gpiocdev.AsOutput(0))
	case Input, InputPullUp, InputPullDown:
		ch := make(chan gpiocdev.LineEvent, edgeQueue)
		opts = append(opts,
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				select {
				case ch <- evt:
				default:
					// Nobody is measuring this line; drop.
				}
			}),
		)
		switch mode {
		case InputPullUp:
			opts = append(opts, gpiocdev.WithPullUp)
		case InputPullDown:
			opts = append(opts, gpiocdev.WithPullDown)
		}
		r.edges[pin] = ch
	default:
		return fmt.Errorf("set mode pin %d: unknown mode %d", pin, mode)
	}

	line, err := r.chip.RequestLine(pin, opts...)
	if err != nil {
		delete(r.edges, pin)
		return fmt.Errorf("request pin %d as %s: %w", pin, mode, err)
	}
	r.lines[pin] = line
	return nil
}

func (r *RealHardware) line(pin int) (*gpiocdev.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d not configured", pin)
	}
	return l, nil
}

// ReadDigital returns the current line value.
func (r *RealHardware) ReadDigital(pin int) (Level, error) {
	l, err := r.line(pin)
	if err != nil {
		return Low, err
	}
	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// WriteDigital sets the line value.
func (r *RealHardware) WriteDigital(pin int, level Level) error {
	l, err := r.line(pin)
	if err != nil {
		return err
	}
	if err := l.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// NowMillis returns milliseconds since the hardware was opened.
func (r *RealHardware) NowMillis() uint64 {
	return uint64(time.Since(r.start).Milliseconds())
}

// NowMicros returns microseconds since the hardware was opened.
func (r *RealHardware) NowMicros() uint64 {
	return uint64(time.Since(r.start).Microseconds())
}

// eventClock reads CLOCK_MONOTONIC, the clock gpiocdev stamps edge events
// with by default.
func eventClock() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, fmt.Errorf("read monotonic clock: %w", err)
	}
	return time.Duration(ts.Nano()), nil
}

// ArmEdges discards queued edges on pin and marks the start of the next
// measurement window.
func (r *RealHardware) ArmEdges(pin int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.edges[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured as input", pin)
	}
	mark, err := eventClock()
	if err != nil {
		return err
	}
	drain(ch)
	r.marks[pin] = mark
	return nil
}

func drain(ch chan gpiocdev.LineEvent) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// MeasurePulseWidth waits for an edge into level followed by an edge out of
// it and returns the time between them. Edges are taken from the last
// ArmEdges on pin, or from the call itself when the pin is not armed; a
// pulse already in progress at that point is ignored. Returns 0 if the pulse
// does not complete within timeoutUs.
func (r *RealHardware) MeasurePulseWidth(pin int, level Level, timeoutUs uint64) (uint64, error) {
	r.mu.Lock()
	ch, ok := r.edges[pin]
	mark, armed := r.marks[pin]
	delete(r.marks, pin)
	r.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("pin %d not configured as input", pin)
	}
	if !armed {
		var err error
		if mark, err = eventClock(); err != nil {
			return 0, err
		}
	}

	timer := time.NewTimer(time.Duration(timeoutUs) * time.Microsecond)
	defer timer.Stop()

	p := pulse{mark: mark, level: level}
	for {
		select {
		case evt := <-ch:
			e := Edge{Rising: evt.Type == gpiocdev.LineEventRisingEdge, At: evt.Timestamp}
			if width, done := p.feed(e); done {
				return uint64(width / time.Microsecond), nil
			}
		case <-timer.C:
			return 0, nil
		}
	}
}

// Close reconfigures inputs to pull-down (matching Pi boot defaults), drives
// outputs low and releases all lines and the chip.
func (r *RealHardware) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for pin, l := range r.lines {
		if _, isInput := r.edges[pin]; !isInput {
			if err := l.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("drive pin %d low: %w", pin, err))
			}
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := closeLine(pin, l); err != nil {
			errs = append(errs, err)
		}
	}
	r.lines = map[int]*gpiocdev.Line{}
	r.edges = map[int]chan gpiocdev.LineEvent{}
	r.marks = map[int]time.Duration{}

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

package gpio

import (
	"fmt"
	"io"
	"time"
)

// Edge is a timestamped transition on an input line.
type Edge struct {
	Rising bool
	// At is the edge time on the monotonic clock.
	At time.Duration
}

// pulse pairs edges into one pulse at level. Edges before mark are ignored,
// as is a pulse already in progress at mark.
type pulse struct {
	mark    time.Duration
	level   Level
	began   time.Duration
	started bool
}

// feed consumes one edge and reports the width once the closing edge
// arrives. A closing edge that is not later than the opening one gives 0.
func (p *pulse) feed(e Edge) (time.Duration, bool) {
	if e.At < p.mark {
		return 0, false
	}
	into := e.Rising == (p.level == High)
	switch {
	case !p.started && into:
		p.began = e.At
		p.started = true
	case p.started && !into:
		if e.At <= p.began {
			return 0, true
		}
		return e.At - p.began, true
	}
	return 0, false
}

// pairEdges returns the width of the first complete pulse at level among
// edges at or after mark.
func pairEdges(edges []Edge, mark time.Duration, level Level) (time.Duration, bool) {
	p := pulse{mark: mark, level: level}
	for _, e := range edges {
		if w, ok := p.feed(e); ok {
			return w, true
		}
	}
	return 0, false
}

// closeLine releases a requested line, naming the pin in any error.
func closeLine(pin int, l io.Closer) error {
	if err := l.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", pin, err)
	}
	return nil
}

package gpio

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Step is one scripted change applied to a FakeHardware at a simulated time.
//
//	at 40ms set 17 high    # drive input pin 17 HIGH
//	at 100ms echo 580us    # queue a 580µs echo for the next measurement
type Step struct {
	At    time.Duration
	Kind  StepKind
	Pin   int
	Level Level
	Width time.Duration
}

// StepKind selects what a Step does.
type StepKind string

const (
	StepSet  StepKind = "set"
	StepEcho StepKind = "echo"
)

// ParseScript reads a scenario, one step per line. Blank lines and
// '#' comments are ignored. Steps are returned ordered by time.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		fields, err := shlex.Split(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if len(fields) == 0 {
			continue
		}
		step, err := parseStep(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		steps = append(steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return steps, nil
}

func parseStep(fields []string) (Step, error) {
	if len(fields) < 3 || fields[0] != "at" {
		return Step{}, fmt.Errorf("expected \"at <time> <action> ...\", got %q", strings.Join(fields, " "))
	}
	at, err := time.ParseDuration(fields[1])
	if err != nil {
		return Step{}, fmt.Errorf("bad time %q: %w", fields[1], err)
	}
	if at < 0 {
		return Step{}, fmt.Errorf("negative time %s", at)
	}

	step := Step{At: at, Kind: StepKind(fields[2])}
	args := fields[3:]
	switch step.Kind {
	case StepSet:
		if len(args) != 2 {
			return Step{}, fmt.Errorf("set: expected <pin> <high|low>")
		}
		pin, err := strconv.Atoi(args[0])
		if err != nil || pin < 0 || pin > MaxPin {
			return Step{}, fmt.Errorf("set: bad pin %q", args[0])
		}
		step.Pin = pin
		switch strings.ToLower(args[1]) {
		case "high", "1":
			step.Level = High
		case "low", "0":
			step.Level = Low
		default:
			return Step{}, fmt.Errorf("set: bad level %q", args[1])
		}
	case StepEcho:
		if len(args) != 1 {
			return Step{}, fmt.Errorf("echo: expected <width>")
		}
		w, err := time.ParseDuration(args[0])
		if err != nil || w < 0 {
			return Step{}, fmt.Errorf("echo: bad width %q", args[0])
		}
		step.Width = w
	default:
		return Step{}, fmt.Errorf("unknown action %q", fields[2])
	}
	return step, nil
}

// Player applies scripted steps to a FakeHardware as its clock advances.
type Player struct {
	hw    *FakeHardware
	steps []Step
	next  int
}

// NewPlayer creates a Player. Steps must be ordered by time, as returned by
// ParseScript.
func NewPlayer(hw *FakeHardware, steps []Step) *Player {
	return &Player{hw: hw, steps: steps}
}

// Apply runs every pending step whose time has been reached and returns how
// many were applied.
func (p *Player) Apply() int {
	now := time.Duration(p.hw.NowMicros()) * time.Microsecond
	applied := 0
	for p.next < len(p.steps) && p.steps[p.next].At <= now {
		s := p.steps[p.next]
		switch s.Kind {
		case StepSet:
			p.hw.Set(s.Pin, s.Level)
		case StepEcho:
			p.hw.Echoes = append(p.hw.Echoes, uint64(s.Width/time.Microsecond))
		}
		p.next++
		applied++
	}
	return applied
}

// Done reports whether every step has been applied.
func (p *Player) Done() bool {
	return p.next >= len(p.steps)
}

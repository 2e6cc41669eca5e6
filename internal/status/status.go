// Package status provides a thread-safe status tracker for the ranger-sensor daemon.
// The poll loop writes it; HTTP handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ranger-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	DebounceMs    int64
	SamplingMs    int64
	EchoTimeoutUs int64
	HeartbeatMs   int64
	ButtonPin     int
	OutputPin     int
	TriggerPin    int
	EchoPin       int
	Broker        string
	HTTPAddr      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type — safe to use after the lock is released.
type Snapshot struct {
	Output        logic.State
	Pressed       bool
	Phase         logic.Phase
	Reading       logic.Reading
	ReadingTime   time.Time // zero until the first measurement
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// HasReading reports whether a measurement has completed.
func (s Snapshot) HasReading() bool {
	return !s.ReadingTime.IsZero()
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the driver state. Called from the poll loop on every tick.
func (t *Tracker) Update(output logic.State, pressed bool, phase logic.Phase, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Output = output
	t.snap.Pressed = pressed
	t.snap.Phase = phase
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetReading records a completed measurement.
func (t *Tracker) SetReading(r logic.Reading, at time.Time) {
	t.mu.Lock()
	t.snap.Reading = r
	t.snap.ReadingTime = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

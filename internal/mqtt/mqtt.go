// Package mqtt publishes ranger readings, toggle events and system events,
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/ranger-sensor/internal/logic"
)

// Topics for published messages.
const (
	TopicReadings = "sensors/ranger/readings"
	TopicToggle   = "sensors/ranger/toggle"
	TopicSystem   = "sensors/ranger/system"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishReading sends a distance measurement.
	// Returns error if publishing fails (should not crash the process).
	PublishReading(event ReadingEvent) error

	// PublishToggle sends a button toggle.
	PublishToggle(event ToggleEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReadingEvent is a completed ranger measurement.
type ReadingEvent struct {
	Timestamp time.Time
	Reading   logic.Reading
}

// ToggleEvent is a validated button press that flipped the output.
type ToggleEvent struct {
	Timestamp time.Time
	State     logic.State
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// ReadingPayload is the JSON message for a reading.
type ReadingPayload struct {
	Ranger RangerPayload `json:"ranger"`
}

// RangerPayload contains the measurement. NoEcho is set when the echo timed
// out; distance and pulse are then zero.
type RangerPayload struct {
	Timestamp  string  `json:"timestamp"`
	DistanceCm float64 `json:"distance_cm"`
	PulseUs    uint64  `json:"pulse_us"`
	NoEcho     bool    `json:"no_echo"`
}

// ToggleMessage is the JSON message for a toggle.
type ToggleMessage struct {
	Toggle TogglePayload `json:"toggle"`
}

// TogglePayload contains the new output state.
type TogglePayload struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
}

// FormatReading creates the JSON payload for a reading. Distance is rounded to 0.01 cm.
func FormatReading(event ReadingEvent) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Ranger: RangerPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			DistanceCm: math.Round(event.Reading.DistanceCm*100) / 100,
			PulseUs:    event.Reading.PulseUs,
			NoEcho:     event.Reading.NoEcho(),
		},
	})
}

// FormatToggle creates the JSON payload for a toggle event.
func FormatToggle(event ToggleEvent) ([]byte, error) {
	return json.Marshal(ToggleMessage{
		Toggle: TogglePayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			State:     string(event.State),
		},
	})
}

// SystemPayload is the payload for simple system events (LWT, RECONNECTED)
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

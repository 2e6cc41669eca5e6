package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Output        string       `json:"output"`
	Pressed       bool         `json:"pressed"`
	Phase         string       `json:"phase"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the last measurement.
type ReadingJSON struct {
	DistanceCm float64 `json:"distance_cm"`
	PulseUs    uint64  `json:"pulse_us"`
	NoEcho     bool    `json:"no_echo"`
	Timestamp  string  `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of driver counts.
type CountsJSON struct {
	Toggles      int `json:"toggles"`
	Measurements int `json:"measurements"`
	NoEcho       int `json:"no_echo"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	SamplingMs    int64  `json:"sampling_ms"`
	EchoTimeoutUs int64  `json:"echo_timeout_us"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	ButtonPin     int    `json:"button_pin"`
	OutputPin     int    `json:"output_pin"`
	TriggerPin    int    `json:"trigger_pin"`
	EchoPin       int    `json:"echo_pin"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	output := string(snap.Output)
	if output == "" {
		output = "UNKNOWN"
	}

	inner := StatusInner{
		Output:        output,
		Pressed:       snap.Pressed,
		Phase:         snap.Phase.String(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Toggles:      snap.Counts.Toggles,
			Measurements: snap.Counts.Measurements,
			NoEcho:       snap.Counts.NoEcho,
		},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			DebounceMs:    snap.Config.DebounceMs,
			SamplingMs:    snap.Config.SamplingMs,
			EchoTimeoutUs: snap.Config.EchoTimeoutUs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			ButtonPin:     snap.Config.ButtonPin,
			OutputPin:     snap.Config.OutputPin,
			TriggerPin:    snap.Config.TriggerPin,
			EchoPin:       snap.Config.EchoPin,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}

	if snap.HasReading() {
		inner.Reading = &ReadingJSON{
			DistanceCm: math.Round(snap.Reading.DistanceCm*100) / 100,
			PulseUs:    snap.Reading.PulseUs,
			NoEcho:     snap.Reading.NoEcho(),
			Timestamp:  snap.ReadingTime.UTC().Format(time.RFC3339),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/ranger-sensor/internal/logic"
)

var testStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	cfg := Config{PollMs: 1, DebounceMs: 20, SamplingMs: 100, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(testStart, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(testStart) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, testStart)
	}
	if snap.Config.SamplingMs != 100 {
		t.Errorf("Config.SamplingMs: got %d, want 100", snap.Config.SamplingMs)
	}
	if snap.HasReading() {
		t.Error("expected no reading initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	tr.Update(logic.StateOn, true, logic.PhaseMeasuring, logic.Counts{Toggles: 3, Measurements: 10, NoEcho: 1})

	snap := tr.Snapshot()
	if snap.Output != logic.StateOn {
		t.Errorf("Output: got %q, want ON", snap.Output)
	}
	if !snap.Pressed {
		t.Error("expected Pressed=true")
	}
	if snap.Phase != logic.PhaseMeasuring {
		t.Errorf("Phase: got %s, want MEASURING", snap.Phase)
	}
	if snap.Counts.Measurements != 10 {
		t.Errorf("Counts.Measurements: got %d, want 10", snap.Counts.Measurements)
	}
}

func TestSetReading(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	at := testStart.Add(time.Second)
	tr.SetReading(logic.Reading{PulseUs: 580, DistanceCm: 9.86}, at)

	snap := tr.Snapshot()
	if !snap.HasReading() {
		t.Fatal("expected a reading")
	}
	if snap.Reading.PulseUs != 580 || !snap.ReadingTime.Equal(at) {
		t.Errorf("unexpected reading: %+v at %v", snap.Reading, snap.ReadingTime)
	}
}

func TestSetMQTTConnectedAndNetwork(t *testing.T) {
	tr := NewTracker(testStart, Config{})

	tr.SetMQTTConnected(true)
	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if snap.Network == nil || snap.Network.IP != "192.168.1.42" {
		t.Errorf("unexpected network: %+v", snap.Network)
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	tr.now = func() time.Time { return testStart.Add(15 * time.Minute) }

	snap := tr.Snapshot()
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(testStart, Config{})
	tr.Update(logic.StateOn, false, logic.PhaseIdleToLow, logic.Counts{Toggles: 1})
	snap1 := tr.Snapshot()

	tr.Update(logic.StateOff, true, logic.PhaseLowToHigh, logic.Counts{Toggles: 2})

	if snap1.Output != logic.StateOn || snap1.Counts.Toggles != 1 {
		t.Error("snapshot should be a copy")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Output:        logic.StateOn,
		Phase:         logic.PhaseLowToHigh,
		Reading:       logic.Reading{PulseUs: 580, DistanceCm: logic.DistanceCm(580)},
		ReadingTime:   testStart.Add(14 * time.Minute),
		Counts:        logic.Counts{Toggles: 5, Measurements: 200, NoEcho: 2},
		StartTime:     testStart,
		Now:           testStart.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 1, DebounceMs: 20, SamplingMs: 100, TriggerPin: 23, EchoPin: 24, Broker: "tcp://localhost:1883"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Output != "ON" {
		t.Errorf("Output: got %q, want ON", s.Output)
	}
	if s.Phase != "LOW_TO_HIGH" {
		t.Errorf("Phase: got %q", s.Phase)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.Reading == nil {
		t.Fatal("expected reading")
	}
	if s.Reading.DistanceCm != 9.86 || s.Reading.PulseUs != 580 || s.Reading.NoEcho {
		t.Errorf("unexpected reading: %+v", s.Reading)
	}
	if s.Reading.Timestamp != "2026-01-01T00:14:00Z" {
		t.Errorf("reading timestamp: got %q", s.Reading.Timestamp)
	}
	if s.Counts.Measurements != 200 || s.Counts.NoEcho != 2 {
		t.Errorf("unexpected counts: %+v", s.Counts)
	}
	if s.Config.TriggerPin != 23 || s.Config.EchoPin != 24 {
		t.Errorf("unexpected config: %+v", s.Config)
	}
	if s.Event != "" || s.Reason != "" {
		t.Error("web format should not carry event/reason")
	}
}

func TestFormatJSONUnknownAndNoReading(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart.Add(time.Second)}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["status"]["output"] != "UNKNOWN" {
		t.Errorf("output: got %v, want UNKNOWN", raw["status"]["output"])
	}
	if _, ok := raw["status"]["reading"]; ok {
		t.Error("reading should be omitted before the first measurement")
	}
}

func TestFormatJSONNoEchoReading(t *testing.T) {
	snap := Snapshot{
		StartTime:   testStart,
		Now:         testStart,
		ReadingTime: testStart,
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)
	if parsed.Status.Reading == nil || !parsed.Status.Reading.NoEcho {
		t.Errorf("expected no_echo reading, got %+v", parsed.Status.Reading)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Output:    logic.StateOff,
		StartTime: testStart,
		Now:       testStart.Add(30 * time.Minute),
		Network:   &NetworkInfo{Type: "wifi", SSID: "MyNet"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event/reason: %q %q", parsed.Status.Event, parsed.Status.Reason)
	}
	if parsed.Status.Network == nil || parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("unexpected network: %+v", parsed.Status.Network)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: testStart, Now: testStart}

	var raw map[string]map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	if _, exists := raw["status"]["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if raw["status"]["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", raw["status"]["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.StateOn, i%2 == 0, logic.Phase(i%4), logic.Counts{Measurements: i})
			tr.SetReading(logic.Reading{PulseUs: uint64(i)}, time.Now())
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = FormatJSON(tr.Snapshot())
		}
	}()

	wg.Wait()
}

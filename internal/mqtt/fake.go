package mqtt

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Readings contains all reading events that were published.
	Readings []ReadingEvent

	// Toggles contains all toggle events that were published.
	Toggles []ToggleEvent

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// Payloads contains every JSON payload in publish order.
	Payloads [][]byte

	// PublishError, if set, will be returned by PublishReading and PublishToggle.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishReading records the reading.
func (f *FakePublisher) PublishReading(event ReadingEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatReading(event)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishToggle records the toggle.
func (f *FakePublisher) PublishToggle(event ToggleEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatToggle(event)
	if err != nil {
		return err
	}
	f.Toggles = append(f.Toggles, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events and injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishReading(ReadingEvent) error { return nil }
func (NopPublisher) PublishToggle(ToggleEvent) error   { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error   { return nil }
func (NopPublisher) Close() error                      { return nil }
func (NopPublisher) IsConnected() bool                 { return false }

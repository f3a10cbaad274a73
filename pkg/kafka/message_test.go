package kafka

import (
	"testing"
	"time"
)

func TestMessageBuilder_Build(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	msg, err := NewMessage().
		WithKey("booking-1").
		WithValue(map[string]string{"status": "Assigned"}).
		WithEventType("booking.assigned").
		WithSource("rental-api").
		WithTimestamp(ts).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if msg.GetEventID() == "" {
		t.Error("event id should be generated")
	}
	if msg.GetEventType() != "booking.assigned" || msg.Headers[HeaderSource] != "rental-api" {
		t.Errorf("headers = %v", msg.Headers)
	}
	if msg.Headers[HeaderTimestamp] != "2025-06-01T10:00:00Z" {
		t.Errorf("timestamp header = %q", msg.Headers[HeaderTimestamp])
	}

	var body map[string]string
	if err := msg.DecodeValue(&body); err != nil || body["status"] != "Assigned" {
		t.Errorf("DecodeValue() = %v, %v", body, err)
	}
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if err == nil {
		t.Error("Build() should surface the encoding error")
	}
}

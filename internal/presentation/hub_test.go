package presentation

import (
	"encoding/json"
	"testing"

	"candledash/internal/logger"
	"candledash/internal/model"
)

// TestEncodeBatchFormat verifies the hand-typed wire shape round-trips
// through JSON with the fields the dashboard frontend expects: a slot index
// plus a kind-tagged value.
func TestEncodeBatchFormat(t *testing.T) {
	batch := []model.Slot{
		{Index: 0, Value: model.IndicatorValue{Kind: model.RSI, RSI: 57.25}},
		{Index: 1, Value: model.IndicatorValue{Kind: model.Volatility, Volatility: -1.2345}},
	}

	raw := encodeBatch(batch)

	var frame struct {
		Type  string `json:"type"`
		TS    int64  `json:"ts"`
		Slots []struct {
			Index int     `json:"index"`
			Kind  string  `json:"kind"`
			Value float32 `json:"value"`
		} `json:"slots"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("encodeBatch output is not valid JSON: %v\nraw: %s", err, raw)
	}

	if frame.Type != "indicators" {
		t.Errorf("type: got %q, want %q", frame.Type, "indicators")
	}
	if len(frame.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(frame.Slots))
	}
	if frame.Slots[0].Kind != "rsi" || frame.Slots[0].Value != 57.25 {
		t.Errorf("slot 0: got %+v", frame.Slots[0])
	}
	if frame.Slots[1].Kind != "volatility" || frame.Slots[1].Value != -1.2345 {
		t.Errorf("slot 1: got %+v", frame.Slots[1])
	}
}

func TestEncodeBatchEmpty(t *testing.T) {
	raw := encodeBatch(nil)
	var frame struct {
		Slots []json.RawMessage `json:"slots"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("invalid JSON for empty batch: %v", err)
	}
	if len(frame.Slots) != 0 {
		t.Errorf("expected no slots, got %d", len(frame.Slots))
	}
}

// TestHubPublishTracksLatest verifies Publish records the most recent value
// per slot, independent of any connected websocket client (used by
// register() to catch a new client up immediately).
func TestHubPublishTracksLatest(t *testing.T) {
	h := NewHub(nil, logger.Discard())

	h.Publish([]model.Slot{{Index: 3, Value: model.IndicatorValue{Kind: model.RSI, RSI: 40}}})
	h.Publish([]model.Slot{{Index: 3, Value: model.IndicatorValue{Kind: model.RSI, RSI: 45}}})

	h.mu.RLock()
	got := h.latest[3]
	h.mu.RUnlock()

	if got.RSI != 45 {
		t.Errorf("latest[3].RSI = %v, want 45", got.RSI)
	}
}

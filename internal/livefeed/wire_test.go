package livefeed

import (
	"testing"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// Serializing and parsing the wire envelope yields a Bar equal to the
// original within numeric parsing precision.
func TestWireRoundTrip(t *testing.T) {
	pair := model.NewPair("btcusdt")
	bar := model.Bar{
		Open:     64123.5,
		High:     64200.12,
		Low:      64000.0,
		Close:    64150.75,
		Volume:   12.34567,
		OpenTime: 1_700_000_040_000,
		Closed:   true,
	}

	raw := encodeFrame(pair, timeframe.M1, bar)

	gotPair, gotTF, gotBar, ok, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("decodeFrame: %v", err)
	}
	if !ok {
		t.Fatal("decodeFrame: expected ok=true")
	}
	if gotPair != pair {
		t.Errorf("pair = %v, want %v", gotPair, pair)
	}
	if gotTF != timeframe.M1 {
		t.Errorf("tf = %v, want %v", gotTF, timeframe.M1)
	}
	if gotBar != bar {
		t.Errorf("bar = %+v, want %+v", gotBar, bar)
	}
}

func TestDecodeFrameUnknownTimeframeDropped(t *testing.T) {
	raw := encodeFrame(model.NewPair("ETHUSDT"), timeframe.M1, model.Bar{OpenTime: 60_000})
	// corrupt the interval tag to something unsupported.
	raw = []byte(replaceOnce(string(raw), `"i":"1m"`, `"i":"7m"`))

	_, _, _, ok, err := decodeFrame(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected unknown interval tag to be silently dropped")
	}
}

func TestDecodeFrameMalformedJSON(t *testing.T) {
	_, _, _, ok, err := decodeFrame([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected a decode error for malformed JSON")
	}
	if ok {
		t.Fatal("malformed JSON should never report ok=true")
	}
}

func replaceOnce(s, old, new string) string {
	for i := 0; i+len(old) <= len(s); i++ {
		if s[i:i+len(old)] == old {
			return s[:i] + new + s[i+len(old):]
		}
	}
	return s
}

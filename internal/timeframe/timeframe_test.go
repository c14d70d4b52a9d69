package timeframe

import "testing"

func TestMinutesAndMillis(t *testing.T) {
	cases := []struct {
		tf      Timeframe
		minutes int
	}{
		{M1, 1}, {M5, 5}, {M15, 15}, {M30, 30}, {H1, 60}, {H4, 240}, {D1, 1440},
	}
	for _, tc := range cases {
		if got := tc.tf.Minutes(); got != tc.minutes {
			t.Errorf("%v.Minutes() = %d, want %d", tc.tf, got, tc.minutes)
		}
		if got := tc.tf.Millis(); got != int64(tc.minutes)*60_000 {
			t.Errorf("%v.Millis() = %d, want %d", tc.tf, got, int64(tc.minutes)*60_000)
		}
	}
}

func TestTagRoundTrip(t *testing.T) {
	for _, tf := range All {
		tag := tf.Tag()
		got, ok := ParseTag(tag)
		if !ok {
			t.Fatalf("ParseTag(%q) not ok", tag)
		}
		if got != tf {
			t.Errorf("ParseTag(%q) = %v, want %v", tag, got, tf)
		}
	}
}

func TestParseTagUnknown(t *testing.T) {
	if _, ok := ParseTag("7m"); ok {
		t.Fatal("expected unknown tag to fail")
	}
}

func TestFloor(t *testing.T) {
	// 5m window = 300_000ms. t=900_123 -> floor to 900_000 (3*300_000)
	if got := M5.Floor(900_123); got != 900_000 {
		t.Errorf("Floor = %d, want 900000", got)
	}
	// exact multiple stays put
	if got := M1.Floor(60_000); got != 60_000 {
		t.Errorf("Floor(60000) = %d, want 60000", got)
	}
	if got := H1.Floor(0); got != 0 {
		t.Errorf("Floor(0) = %d, want 0", got)
	}
}

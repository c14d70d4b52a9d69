package model

import (
	"testing"

	"candledash/internal/timeframe"
)

func testConfig() Config {
	return Config{
		Pairs: []Pair{"AAAUSDT", "BBBUSDT"},
		Indicators: []IndicatorSetting{
			{Kind: Volatility, Enabled: true, Timeframes: []timeframe.Timeframe{timeframe.M5, timeframe.M15}},
			{Kind: RSI, Enabled: true, Timeframes: []timeframe.Timeframe{timeframe.M1}, RSI: RSIConfig{Period: 14}},
			{Kind: RSI, Enabled: false, Timeframes: []timeframe.Timeframe{timeframe.H1}},
		},
	}
}

func TestIndexLookupDenseAndBounded(t *testing.T) {
	il := NewIndexLookup(testConfig())

	// stride = 3 enabled (kind,tf) pairs: vol/5m, vol/15m, rsi/1m
	if il.pairStride != 3 {
		t.Fatalf("pairStride = %d, want 3", il.pairStride)
	}

	seen := make(map[int]bool)
	for _, p := range []Pair{"AAAUSDT", "BBBUSDT"} {
		for _, key := range []struct {
			kind IndicatorKind
			tf   timeframe.Timeframe
		}{
			{Volatility, timeframe.M5}, {Volatility, timeframe.M15}, {RSI, timeframe.M1},
		} {
			idx, ok := il.Index(p, key.kind, key.tf)
			if !ok {
				t.Fatalf("Index(%v,%v,%v) not ok", p, key.kind, key.tf)
			}
			if idx >= il.Len() {
				t.Fatalf("idx %d >= Len() %d", idx, il.Len())
			}
			if seen[idx] {
				t.Fatalf("duplicate slot index %d", idx)
			}
			seen[idx] = true
		}
	}
}

func TestIndexLookupRejectsDisabledAndUnknown(t *testing.T) {
	il := NewIndexLookup(testConfig())

	if _, ok := il.Index("AAAUSDT", RSI, timeframe.H1); ok {
		t.Fatal("disabled RSI/1h should not resolve")
	}
	if _, ok := il.Index("ZZZUSDT", Volatility, timeframe.M5); ok {
		t.Fatal("pair not in config should not resolve")
	}
	if _, ok := il.Index("AAAUSDT", Volatility, timeframe.D1); ok {
		t.Fatal("timeframe not listed for kind should not resolve")
	}
}

package indicator

import (
	"testing"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// Low at the period's first minute, high arriving in the period's final
// (still-forming) minute: the reading is positive with the full range.
func TestVolatilitySignFlip(t *testing.T) {
	periodStart := timeframe.M5.Floor(primeReferenceTS())

	v := NewVolatility(timeframe.M5)
	v.Prime(model.HistoryEntry{TF: timeframe.M5}, periodStart)

	bars := []model.Bar{
		{OpenTime: periodStart + 0, Open: 100, High: 100, Low: 90, Close: 95, Closed: true},
		{OpenTime: periodStart + 60_000, Open: 95, High: 105, Low: 95, Close: 100, Closed: true},
		{OpenTime: periodStart + 120_000, Open: 100, High: 108, Low: 100, Close: 105, Closed: true},
		{OpenTime: periodStart + 180_000, Open: 105, High: 112, Low: 104, Close: 110, Closed: true},
	}
	var last model.IndicatorValue
	var ok bool
	for _, b := range bars {
		last, ok = v.Update(b)
	}
	if !ok {
		t.Fatal("expected emission on intermediate bars")
	}
	if last.Volatility <= 0 {
		t.Fatalf("expected positive volatility before the high bar, got %v", last.Volatility)
	}

	// the high prints in the final, still-open minute of the period
	val, ok := v.Update(model.Bar{OpenTime: periodStart + 240_000, Open: 110, High: 130, Low: 109, Close: 125, Closed: false})
	if !ok {
		t.Fatal("expected emission")
	}
	if val.Volatility <= 0 {
		t.Fatalf("volatility = %v, want positive (high after low)", val.Volatility)
	}
	want := float32(truncate4dp((130.0 - 90.0) / 90.0 * 100))
	if val.Volatility != want {
		t.Fatalf("volatility = %v, want %v", val.Volatility, want)
	}
}

func TestVolatilityNoAggregateUsesLastBar(t *testing.T) {
	periodStart := timeframe.M1.Floor(primeReferenceTS())
	v := NewVolatility(timeframe.M1)
	v.Prime(model.HistoryEntry{TF: timeframe.M1}, periodStart)

	val, ok := v.Update(model.Bar{OpenTime: periodStart, Open: 100, High: 110, Low: 95, Close: 105, Closed: false})
	if !ok {
		t.Fatal("expected emission from the single latest bar")
	}
	if val.Volatility <= 0 {
		t.Fatalf("close >= open should give positive sign, got %v", val.Volatility)
	}
}

func TestVolatilityOutOfOrderRejected(t *testing.T) {
	periodStart := timeframe.M5.Floor(primeReferenceTS())
	v := NewVolatility(timeframe.M5)
	v.Prime(model.HistoryEntry{TF: timeframe.M5}, periodStart)

	v.Update(model.Bar{OpenTime: periodStart + 60_000, Open: 100, High: 105, Low: 99, Close: 102, Closed: true})
	lenBefore := v.window.Len()

	_, ok := v.Update(model.Bar{OpenTime: periodStart, Open: 1, High: 1, Low: 1, Close: 1})
	if ok {
		t.Fatal("out-of-order bar should not emit")
	}
	if v.window.Len() != lenBefore {
		t.Fatalf("window length changed on out-of-order bar: %d -> %d", lenBefore, v.window.Len())
	}
}

func TestVolatilityIdempotentReplace(t *testing.T) {
	periodStart := timeframe.M5.Floor(primeReferenceTS())
	v := NewVolatility(timeframe.M5)
	v.Prime(model.HistoryEntry{TF: timeframe.M5}, periodStart)

	v.Update(model.Bar{OpenTime: periodStart, Open: 100, High: 101, Low: 99, Close: 100, Closed: false})
	lenAfterFirst := v.window.Len()

	val, ok := v.Update(model.Bar{OpenTime: periodStart, Open: 100, High: 120, Low: 99, Close: 115, Closed: false})
	if !ok {
		t.Fatal("expected emission on amendment")
	}
	if v.window.Len() != lenAfterFirst {
		t.Fatalf("window length changed on amendment: %d -> %d", lenAfterFirst, v.window.Len())
	}
	if val.Volatility <= 0 {
		t.Fatalf("amended bar should report positive volatility, got %v", val.Volatility)
	}
}

package indicator

import (
	"math"

	"candledash/internal/model"
	"candledash/internal/ringbuf"
	"candledash/internal/timeframe"
)

// aggregate is the open/high/low summary of the closed 1m bars in the
// current higher-TF period, excluding the still-open current 1m bar.
type aggregate struct {
	open   float64
	high   float64
	highTS int64
	low    float64
	lowTS  int64
}

// Volatility emits a percent range reading over a higher timeframe built
// from 1m bars, with a sign derived from whether the period's high or low
// printed first.
type Volatility struct {
	tf timeframe.Timeframe

	stage  Stage
	warmup *ringbuf.Ring[model.Bar]
	window *ringbuf.Ring[model.Bar]

	periodStart int64
}

// NewVolatility constructs a Volatility calculator for one (pair, timeframe) slot.
func NewVolatility(tf timeframe.Timeframe) *Volatility {
	return &Volatility{
		tf:     tf,
		stage:  StageNew,
		warmup: ringbuf.New[model.Bar](tf.Minutes()),
	}
}

func (v *Volatility) Stage() Stage { return v.stage }

func (v *Volatility) Update(bar model.Bar) (model.IndicatorValue, bool) {
	switch v.stage {
	case StageNew:
		v.stage = StageWarmUp
		bufferWarmupBar(v.warmup, bar)
		return model.IndicatorValue{}, false
	case StageWarmUp:
		bufferWarmupBar(v.warmup, bar)
		return model.IndicatorValue{}, false
	}

	newStart := v.tf.Floor(bar.OpenTime)
	priorTail, hadTail := v.window.Back()
	if hadTail && bar.OpenTime < priorTail.OpenTime {
		return model.IndicatorValue{}, false // out-of-order: silently dropped
	}
	isNewMinute := !hadTail || bar.OpenTime > priorTail.OpenTime
	applyLiveBar(v.window, bar)

	if isNewMinute && hadTail && newStart != v.periodStart {
		ringbuf.RetainByOpenTime(v.window, func(openTime int64) bool { return openTime >= newStart })
		v.periodStart = newStart
	} else if isNewMinute && !hadTail {
		v.periodStart = newStart
	}

	// emission reads straight off the window, so an in-place amendment to
	// the tail (same open_time, isNewMinute == false) is reflected too —
	// only the closed-period aggregate's membership needs a genuine new
	// minute to change.
	val, ok := emit(v.window)
	if !ok {
		return model.IndicatorValue{}, false
	}
	return model.IndicatorValue{Kind: model.Volatility, Volatility: val}, true
}

func (v *Volatility) Prime(entry model.HistoryEntry, referenceTS int64) {
	periodStart := v.tf.Floor(referenceTS)
	v.periodStart = periodStart
	v.window = reconstructWindow(v.tf.Minutes(), periodStart, entry.OneMinute, v.warmup)
	v.warmup.Clear()
	v.stage = StageReady
}

// closedAggregate folds every bar in window except the most recent one into
// an aggregate, skipping any that are not yet closed.
func closedAggregate(window *ringbuf.Ring[model.Bar]) (aggregate, bool) {
	var agg aggregate
	found := false
	window.IterWithoutLast(func(b model.Bar) bool {
		if !b.Closed {
			return true
		}
		if !found {
			agg = aggregate{open: b.Open, high: b.High, highTS: b.OpenTime, low: b.Low, lowTS: b.OpenTime}
			found = true
			return true
		}
		if b.High > agg.high {
			agg.high = b.High
			agg.highTS = b.OpenTime
		}
		if b.Low < agg.low {
			agg.low = b.Low
			agg.lowTS = b.OpenTime
		}
		return true
	})
	return agg, found
}

// emit computes the percent reading for the current window contents.
func emit(window *ringbuf.Ring[model.Bar]) (float32, bool) {
	last, ok := window.Back()
	if !ok {
		return 0, false
	}

	var high, low float64
	var sign float64

	if agg, haveAgg := closedAggregate(window); haveAgg {
		high = math.Max(agg.high, last.High)
		low = math.Min(agg.low, last.Low)
		if agg.highTS > agg.lowTS {
			sign = 1
		} else {
			sign = -1
		}
	} else {
		high = last.High
		low = last.Low
		if last.Close >= last.Open {
			sign = 1
		} else {
			sign = -1
		}
	}

	if low == 0 {
		return 0, false
	}
	raw := (high - low) / low * 100 * sign
	return float32(truncate4dp(raw)), true
}

func truncate4dp(x float64) float64 {
	const factor = 10000.0
	return math.Trunc(x*factor) / factor
}

package indicator

import (
	"sort"

	"candledash/internal/model"
	"candledash/internal/ringbuf"
	"candledash/internal/timeframe"
)

// RSI computes the Relative Strength Index with Wilder's smoothing over a
// higher timeframe built from 1m bars. Seeding is a simple mean of the first
// period's diffs; every later close applies one smoothing step. Live bars
// only ever preview the next value — the averages mutate exclusively on a
// period rollover.
type RSI struct {
	tf     timeframe.Timeframe
	period int
	source model.BarSource

	stage  Stage
	warmup *ringbuf.Ring[model.Bar]
	window *ringbuf.Ring[model.Bar]

	periodStart int64
	havePrev    bool
	prevClose   float64
	avgGain     float64
	avgLoss     float64
}

// NewRSI constructs an RSI calculator for one (pair, timeframe) slot.
func NewRSI(tf timeframe.Timeframe, cfg model.RSIConfig) *RSI {
	period := cfg.Period
	if period <= 0 {
		period = 14
	}
	return &RSI{
		tf:     tf,
		period: period,
		source: cfg.Source,
		stage:  StageNew,
		warmup: ringbuf.New[model.Bar](tf.Minutes()),
	}
}

func (r *RSI) Stage() Stage { return r.stage }

func (r *RSI) Update(bar model.Bar) (model.IndicatorValue, bool) {
	switch r.stage {
	case StageNew:
		r.stage = StageWarmUp
		bufferWarmupBar(r.warmup, bar)
		return model.IndicatorValue{}, false
	case StageWarmUp:
		bufferWarmupBar(r.warmup, bar)
		return model.IndicatorValue{}, false
	}

	newStart := r.tf.Floor(bar.OpenTime)
	priorTail, hadTail := r.window.Back()
	if hadTail && bar.OpenTime < priorTail.OpenTime {
		return model.IndicatorValue{}, false // out-of-order: silently dropped
	}
	isPush := !hadTail || bar.OpenTime > priorTail.OpenTime
	applyLiveBar(r.window, bar)

	if isPush && hadTail && newStart != r.periodStart {
		r.rollover(priorTail)
		ringbuf.RetainByOpenTime(r.window, func(openTime int64) bool { return openTime >= newStart })
		r.periodStart = newStart
	} else if isPush && !hadTail {
		r.periodStart = newStart
	}

	if !r.havePrev {
		return model.IndicatorValue{}, false
	}

	last, ok := r.window.Back()
	if !ok {
		return model.IndicatorValue{}, false
	}
	rsi := r.peek(r.source.Project(last))
	return model.IndicatorValue{Kind: model.RSI, RSI: float32(rsi)}, true
}

// rollover applies one permanent Wilder step using the just-closed period's
// last 1m bar.
func (r *RSI) rollover(justClosed model.Bar) {
	if !r.havePrev {
		return
	}
	price := r.source.Project(justClosed)
	diff := price - r.prevClose
	gain, loss := 0.0, 0.0
	if diff > 0 {
		gain = diff
	} else {
		loss = -diff
	}
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.prevClose = price
}

// peek computes RSI from the current last price against the stored
// previous-period averages without mutating them, so an amended open bar can
// re-preview the value any number of times.
func (r *RSI) peek(lastPrice float64) float64 {
	diff := lastPrice - r.prevClose
	gain, loss := 0.0, 0.0
	if diff > 0 {
		gain = diff
	} else {
		loss = -diff
	}
	p := float64(r.period)
	ag := (r.avgGain*(p-1) + gain) / p
	al := (r.avgLoss*(p-1) + loss) / p
	if al == 0 {
		return 100.0
	}
	rs := ag / al
	return 100.0 - 100.0/(1.0+rs)
}

func (r *RSI) Prime(entry model.HistoryEntry, referenceTS int64) {
	periodStart := r.tf.Floor(referenceTS)
	r.periodStart = periodStart
	r.window = reconstructWindow(r.tf.Minutes(), periodStart, entry.OneMinute, r.warmup)
	r.warmup.Clear()

	closes := priorPeriodCloses(entry.SameTF, periodStart, r.tf, r.source)
	if len(closes) < r.period+1 {
		r.stage = StageReady
		r.havePrev = false
		return
	}

	prevClose := closes[0]
	var avgGain, avgLoss float64
	count := 0
	for _, price := range closes[1:] {
		diff := price - prevClose
		prevClose = price
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		count++
		if count <= r.period {
			avgGain += gain
			avgLoss += loss
			if count == r.period {
				avgGain /= float64(r.period)
				avgLoss /= float64(r.period)
			}
			continue
		}
		p := float64(r.period)
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	r.prevClose = prevClose
	r.avgGain = avgGain
	r.avgLoss = avgLoss
	r.havePrev = true
	r.stage = StageReady
}

// priorPeriodCloses returns, in chronological order, the projected prices of
// bars strictly before the current period (open_time <= periodStart - T).
func priorPeriodCloses(bars []model.Bar, periodStart int64, tf timeframe.Timeframe, source model.BarSource) []float64 {
	cutoff := periodStart - tf.Millis()
	sorted := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if b.OpenTime <= cutoff {
			sorted = append(sorted, b)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime < sorted[j].OpenTime })

	out := make([]float64, len(sorted))
	for i, b := range sorted {
		out[i] = source.Project(b)
	}
	return out
}

package indicator

import (
	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// New constructs the calculator for kind at tf, using setting's extras when
// relevant (currently only RSI has any). The engine calls this lazily, once
// per (pair, timeframe, kind) key, on the first live bar for that key.
func New(kind model.IndicatorKind, tf timeframe.Timeframe, setting model.IndicatorSetting) Calculator {
	switch kind {
	case model.RSI:
		return NewRSI(tf, setting.RSI)
	default:
		return NewVolatility(tf)
	}
}

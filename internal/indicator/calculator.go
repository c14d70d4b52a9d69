// Package indicator implements the per-(pair, timeframe, kind) stateful
// calculators: Volatility and RSI. Each calculator is a small state machine
// over {New -> WarmUp -> Ready} and is owned by exactly one goroutine (the
// engine dispatcher); nothing here is safe for concurrent use.
package indicator

import "candledash/internal/model"

// Stage is a calculator's position in its {New -> WarmUp -> Ready} lifecycle.
// Transitions are strictly monotonic forward; a Reboot discards the instance
// rather than reversing its stage.
type Stage int

const (
	StageNew Stage = iota
	StageWarmUp
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageWarmUp:
		return "warmup"
	case StageReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Calculator is the contract every indicator implementation satisfies.
type Calculator interface {
	// Update is called once per incoming live 1m bar for this calculator's
	// (pair, timeframe). ok is false when there is no output yet (still New
	// or WarmUp).
	Update(bar model.Bar) (value model.IndicatorValue, ok bool)

	// Prime installs historical state from a HistoryEntry and transitions
	// the calculator to Ready. referenceTS is the HistoryBundle's reference
	// timestamp, used to locate the current higher-TF period. Calling Prime
	// more than once is the caller's mistake — by contract the engine primes
	// a calculator exactly once per warmup cycle.
	Prime(entry model.HistoryEntry, referenceTS int64)

	// Stage reports the calculator's current lifecycle stage.
	Stage() Stage
}

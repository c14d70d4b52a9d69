// Package engine implements the dispatcher: the central single-goroutine
// owner of every calculator instance, the warmup/reboot state machine, and
// the batched flush to the presentation sink.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"candledash/internal/indicator"
	"candledash/internal/metrics"
	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// FlushInterval is the fixed batching tick for the presentation sink.
const FlushInterval = 2 * time.Second

// calcKey identifies one calculator instance.
type calcKey struct {
	pair model.Pair
	tf   timeframe.Timeframe
	kind model.IndicatorKind
}

// Engine is the Dispatcher actor.
type Engine struct {
	m   *metrics.Metrics
	log *slog.Logger

	cfg     model.Config
	haveCfg bool
	index   *model.IndexLookup

	calculators map[calcKey]indicator.Calculator

	// requested tracks pairs for which a HistoryRequest has already been
	// issued since the last Reboot, so a pair's later live bars don't
	// re-request warmup before its bundle arrives.
	requested map[model.Pair]bool
	// primed tracks pairs whose HistoryBundle has been applied since the
	// last Reboot. Presentation flushes are withheld until every pair in
	// the active config is primed.
	primed map[model.Pair]bool

	pending []model.Slot

	// stateMu guards only the fields Snapshot reads, so the GET /engine/state
	// introspection endpoint can read a consistent view from outside the Run
	// goroutine without slowing down the hot path.
	stateMu sync.RWMutex
	state   State
}

// State is a point-in-time snapshot of the Engine's warmup progress, used by
// the introspection HTTP endpoint.
type State struct {
	HaveConfig       bool
	Pairs            []model.Pair
	CalculatorCount  int
	PairsPrimed      int
	PairsAwaitingBar int
}

// Snapshot returns the Engine's current State. Safe to call from any
// goroutine.
func (e *Engine) Snapshot() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) publishState() {
	primed := 0
	for _, p := range e.cfg.Pairs {
		if e.primed[p] {
			primed++
		}
	}
	awaiting := 0
	for _, p := range e.cfg.Pairs {
		if !e.requested[p] {
			awaiting++
		}
	}
	e.stateMu.Lock()
	e.state = State{
		HaveConfig:       e.haveCfg,
		Pairs:            append([]model.Pair(nil), e.cfg.Pairs...),
		CalculatorCount:  len(e.calculators),
		PairsPrimed:      primed,
		PairsAwaitingBar: awaiting,
	}
	e.stateMu.Unlock()
}

// New constructs an Engine with no active configuration. It emits nothing
// and drops every event until its first Config arrives.
func New(m *metrics.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		m:           m,
		log:         log,
		calculators: make(map[calcKey]indicator.Calculator),
		requested:   make(map[model.Pair]bool),
		primed:      make(map[model.Pair]bool),
	}
}

// Run consumes BarEvent, Config, Reboot, and HistoryBundle messages and
// produces HistoryRequest and batched result messages, until ctx is
// cancelled or an input channel closes. On exit it flushes any pending
// results best-effort.
func (e *Engine) Run(
	ctx context.Context,
	barEvents <-chan model.BarEvent,
	configs <-chan model.Config,
	reboots <-chan model.Reboot,
	bundles <-chan model.HistoryBundle,
	historyRequests chan<- model.HistoryRequest,
	results chan<- []model.Slot,
) {
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.flush(results)
			return

		case c, ok := <-configs:
			if !ok {
				e.flush(results)
				return
			}
			e.handleConfig(c)
			e.reboot("config updated")
			e.publishState()

		case r, ok := <-reboots:
			if !ok {
				e.flush(results)
				return
			}
			e.reboot(r.Reason)
			e.publishState()

		case b, ok := <-bundles:
			if !ok {
				e.flush(results)
				return
			}
			e.handleBundle(b)
			e.publishState()

		case ev, ok := <-barEvents:
			if !ok {
				e.flush(results)
				return
			}
			e.handleBarEvent(ctx, ev, historyRequests)
			e.publishState()

		case <-ticker.C:
			e.flush(results)
		}
	}
}

// handleConfig installs a new active configuration and its derived index.
// The caller is responsible for following this with a reboot.
func (e *Engine) handleConfig(c model.Config) {
	e.cfg = c
	e.haveCfg = true
	e.index = model.NewIndexLookup(c)
}

// reboot discards every calculator and re-arms the warmup tracking sets
// from the active config. Calculator stages never move backwards; the
// instance is thrown away instead.
func (e *Engine) reboot(reason string) {
	e.calculators = make(map[calcKey]indicator.Calculator)
	e.requested = make(map[model.Pair]bool)
	e.primed = make(map[model.Pair]bool)
	e.pending = nil
	e.m.RebootsTotal.WithLabelValues(reason).Inc()
	e.log.Info("engine: reboot", "reason", reason)
}

// handleBarEvent feeds a live 1m bar to every enabled calculator for its
// pair, requesting warmup on first sight of the pair, and appends results
// to the pending batch only once every configured pair is primed.
func (e *Engine) handleBarEvent(ctx context.Context, ev model.BarEvent, historyRequests chan<- model.HistoryRequest) {
	if !e.haveCfg {
		return
	}
	if !e.pairConfigured(ev.Pair) {
		return
	}
	e.m.BarEventsTotal.Inc()

	if !e.requested[ev.Pair] {
		e.requested[ev.Pair] = true
		req := model.HistoryRequest{
			ID:          uuid.NewString(),
			Pair:        ev.Pair,
			ReferenceTS: time.Now().UnixMilli(),
		}
		e.m.HistoryRequestsTotal.Inc()
		select {
		case historyRequests <- req:
		case <-ctx.Done():
			return
		}
	}

	allPrimed := e.allPrimed()

	for _, setting := range e.cfg.Indicators {
		if !setting.Enabled {
			continue
		}
		for _, tf := range setting.Timeframes {
			key := calcKey{pair: ev.Pair, tf: tf, kind: setting.Kind}
			calc, ok := e.calculators[key]
			if !ok {
				calc = indicator.New(setting.Kind, tf, setting)
				e.calculators[key] = calc
			}

			value, ok := calc.Update(ev.Bar)
			if !ok || !allPrimed {
				continue
			}
			idx, ok := e.index.Index(ev.Pair, setting.Kind, tf)
			if !ok {
				continue
			}
			e.pending = append(e.pending, model.Slot{Index: idx, Value: value})
		}
	}

	e.m.CalculatorsActive.Set(float64(len(e.calculators)))
}

// handleBundle primes every calculator named by the bundle's entries. A key
// with no live calculator (destroyed by an intervening Reboot) is skipped;
// the pair is still marked primed since this bundle has been fully consumed.
func (e *Engine) handleBundle(b model.HistoryBundle) {
	if !e.haveCfg || !e.pairConfigured(b.Pair) {
		return
	}
	for _, entry := range b.Entries {
		key := calcKey{pair: b.Pair, tf: entry.TF, kind: entry.Kind}
		calc, ok := e.calculators[key]
		if !ok {
			continue
		}
		calc.Prime(entry, b.ReferenceTS)
	}
	e.primed[b.Pair] = true
}

// flush sends the pending batch to results, non-blocking: a lagging
// presentation consumer must never stall indicator emission, so a full
// channel drops the batch instead.
func (e *Engine) flush(results chan<- []model.Slot) {
	if len(e.pending) == 0 {
		return
	}
	batch := e.pending
	e.pending = nil

	select {
	case results <- batch:
		e.m.PresentationFlushes.Inc()
		e.m.DispatchBatchSize.Observe(float64(len(batch)))
	default:
		e.log.Warn("engine: presentation channel full, dropping batch", "size", len(batch))
	}
}

func (e *Engine) pairConfigured(pair model.Pair) bool {
	for _, p := range e.cfg.Pairs {
		if p == pair {
			return true
		}
	}
	return false
}

func (e *Engine) allPrimed() bool {
	for _, p := range e.cfg.Pairs {
		if !e.primed[p] {
			return false
		}
	}
	return true
}

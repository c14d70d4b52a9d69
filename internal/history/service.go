// Package history implements the warmup backfill service: it fulfills
// HistoryRequest messages by paginating the exchange REST adapter, packages
// the result as a HistoryBundle, and returns it to the engine.
package history

import (
	"context"
	"log/slog"
	"time"

	"candledash/internal/historycache"
	"candledash/internal/metrics"
	"candledash/internal/model"
	"candledash/internal/timeframe"
	"candledash/pkg/exchange"
)

// Service fulfills HistoryRequest messages. It holds no per-pair state of
// its own — every request is handled independently in a short-lived
// goroutine so a slow pair never blocks the receive loop.
type Service struct {
	client  exchange.Client
	cache   *historycache.Cache
	breaker *circuitBreaker
	metrics *metrics.Metrics
	log     *slog.Logger

	pageSize int
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithCache attaches an opportunistic page cache.
func WithCache(c *historycache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithBreaker overrides the default circuit breaker thresholds.
func WithBreaker(maxFailures int, resetTimeout time.Duration) Option {
	return func(s *Service) { s.breaker = newCircuitBreaker(maxFailures, resetTimeout) }
}

// New constructs a Service. client is the exchange REST adapter, injected
// at construction and owned by this service.
func New(client exchange.Client, m *metrics.Metrics, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client:   client,
		metrics:  m,
		log:      log,
		breaker:  newCircuitBreaker(5, 10*time.Second),
		pageSize: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes HistoryRequest and Config messages and produces
// HistoryBundle messages until ctx is cancelled or requests is closed. Each
// request is handled in its own goroutine.
func (s *Service) Run(ctx context.Context, requests <-chan model.HistoryRequest, configs <-chan model.Config, bundles chan<- model.HistoryBundle) {
	var cfg model.Config
	var haveCfg bool

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-configs:
			if !ok {
				configs = nil
				continue
			}
			cfg = c
			haveCfg = true
		case req, ok := <-requests:
			if !ok {
				return
			}
			if !haveCfg {
				s.log.Warn("history request dropped: no config yet", "pair", req.Pair)
				continue
			}
			go s.handle(ctx, cfg, req, bundles)
		}
	}
}

// handle builds and emits one HistoryBundle for req, or logs a warning and
// emits nothing if the fetch fails. A failed bundle is not retried here;
// the next Reboot re-initiates the warmup cycle.
func (s *Service) handle(ctx context.Context, cfg model.Config, req model.HistoryRequest, bundles chan<- model.HistoryBundle) {
	started := time.Now()

	tMax := largestEnabledTimeframe(cfg)
	oneMinStart := tMax.Floor(req.ReferenceTS) - int64(tMax.Minutes()+100)*60_000

	oneMinute, err := s.fetchAll(ctx, req.Pair, timeframe.M1, oneMinStart, req.ReferenceTS)
	if err != nil {
		s.log.Warn("history: 1m backfill failed", "request_id", req.ID, "pair", req.Pair, "error", err)
		s.metrics.HistoryFailuresTotal.Inc()
		return
	}

	var entries []model.HistoryEntry
	for _, setting := range cfg.Indicators {
		if !setting.Enabled {
			continue
		}
		for _, tf := range setting.Timeframes {
			entry := model.HistoryEntry{Kind: setting.Kind, TF: tf, OneMinute: oneMinute}

			if setting.Kind == model.RSI {
				period := setting.RSI.Period
				if period <= 0 {
					period = 14
				}
				sameStart := tf.Floor(req.ReferenceTS) - int64(period+50)*tf.Millis()
				sameTF, err := s.fetchAll(ctx, req.Pair, tf, sameStart, req.ReferenceTS)
				if err != nil {
					s.log.Warn("history: same-tf backfill failed", "request_id", req.ID, "pair", req.Pair, "tf", tf, "error", err)
					s.metrics.HistoryFailuresTotal.Inc()
					return
				}
				entry.SameTF = sameTF
			}

			entries = append(entries, entry)
		}
	}

	select {
	case bundles <- model.HistoryBundle{RequestID: req.ID, Pair: req.Pair, ReferenceTS: req.ReferenceTS, Entries: entries}:
		s.metrics.ObserveWarmup(time.Since(started))
	case <-ctx.Done():
	}
}

// fetchAll paginates FetchKlines in batches of up to pageSize bars until
// the last returned bar's close covers "now" or a page comes back empty,
// guarded by the circuit breaker and an opportunistic cache lookup per page.
func (s *Service) fetchAll(ctx context.Context, pair model.Pair, tf timeframe.Timeframe, startTime, now int64) ([]model.Bar, error) {
	var out []model.Bar
	cursor := startTime

	for {
		page, cached := s.cache.Get(ctx, pair, tf, cursor)
		if !cached {
			var fetchErr error
			err := s.breaker.execute(func() error {
				var err error
				page, err = s.client.FetchKlines(ctx, pair, tf, cursor, s.pageSize)
				fetchErr = err
				return err
			})
			s.metrics.CircuitBreakerState.Set(float64(s.breaker.currentState()))
			if err != nil {
				if err == errCircuitOpen {
					s.metrics.CircuitBreakerTrips.Inc()
				}
				return nil, coalesce(fetchErr, err)
			}
			s.cache.Set(ctx, pair, tf, cursor, page)
		}

		if len(page) == 0 {
			break
		}
		out = append(out, page...)

		last := page[len(page)-1]
		if last.OpenTime+tf.Millis() >= now {
			break
		}
		cursor = last.OpenTime + tf.Millis()
	}

	return out, nil
}

func coalesce(primary, fallback error) error {
	if primary != nil {
		return primary
	}
	return fallback
}

// largestEnabledTimeframe returns the widest timeframe enabled across every
// indicator in cfg, used to size the single shared 1m pull. Falls back to
// M1 if nothing is enabled.
func largestEnabledTimeframe(cfg model.Config) timeframe.Timeframe {
	best := timeframe.M1
	for _, setting := range cfg.Indicators {
		if !setting.Enabled {
			continue
		}
		for _, tf := range setting.Timeframes {
			if tf.Minutes() > best.Minutes() {
				best = tf
			}
		}
	}
	return best
}

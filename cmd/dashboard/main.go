// Command dashboard wires the four core actors (engine, history service,
// live feed, presentation hub) together and exposes the operational HTTP
// surface: /healthz, /metrics, POST /config, GET /engine/state, /ws.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"candledash/internal/config"
	"candledash/internal/engine"
	"candledash/internal/history"
	"candledash/internal/historycache"
	"candledash/internal/livefeed"
	"candledash/internal/logger"
	"candledash/internal/metrics"
	"candledash/internal/model"
	"candledash/internal/presentation"
	"candledash/pkg/exchange"
)

func main() {
	log := logger.New("dashboard")

	boot, err := config.Load()
	if err != nil {
		log.Error("config load failed, refusing to start", "error", err)
		os.Exit(1)
	}

	initialCfg, err := boot.ActiveConfig()
	if err != nil {
		log.Error("initial config is invalid, refusing to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	restClient := exchange.NewRESTClient(exchange.Config{
		BaseURL:           boot.RESTBaseURL,
		RequestsPerMinute: boot.RESTRequestsPerMin,
	})
	restClient.OnWait = m.RESTRateLimitWaits.Inc
	restClient.OnRequest = func(d time.Duration) { m.RESTRequestDuration.Observe(d.Seconds()) }

	var cache *historycache.Cache
	if boot.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: boot.RedisAddr, Password: boot.RedisPassword})
		cache = historycache.New(rdb, 30*time.Second)
		log.Info("history cache enabled", "addr", boot.RedisAddr)
	}

	histSvc := history.New(restClient, m, logger.New("history"), history.WithCache(cache))
	feed := livefeed.New(livefeed.Config{BaseURL: boot.WSBaseURL, ReconnectDelay: boot.ReconnectDelay}, m, logger.New("livefeed"))
	eng := engine.New(m, logger.New("engine"))
	hub := presentation.NewHub(m, logger.New("presentation"))

	barEvents := make(chan model.BarEvent, boot.QueueCapacity)
	reboots := make(chan model.Reboot, boot.QueueCapacity)
	historyRequests := make(chan model.HistoryRequest, boot.QueueCapacity)
	bundles := make(chan model.HistoryBundle, boot.QueueCapacity)
	results := make(chan []model.Slot, boot.QueueCapacity)

	engineConfigs := make(chan model.Config, 1)
	historyConfigs := make(chan model.Config, 1)
	livefeedConfigs := make(chan model.Config, 1)

	go histSvc.Run(ctx, historyRequests, historyConfigs, bundles)
	go feed.Run(ctx, livefeedConfigs, barEvents, reboots)
	go eng.Run(ctx, barEvents, engineConfigs, reboots, bundles, historyRequests, results)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-results:
				if !ok {
					return
				}
				hub.Publish(batch)
			}
		}
	}()

	go sampleQueueSaturation(ctx, m, barEvents, reboots, historyRequests, bundles, results)

	broadcastConfig(initialCfg, engineConfigs, historyConfigs, livefeedConfigs)

	metricsSrv := metrics.NewServer(boot.MetricsAddr, m)
	metricsSrv.Start()
	log.Info("metrics server listening", "addr", boot.MetricsAddr)

	apiSrv := newAPIServer(boot.PresentationAddr, hub, eng, engineConfigs, historyConfigs, livefeedConfigs, log)
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("presentation server error", "error", err)
		}
	}()
	log.Info("presentation server listening", "addr", boot.PresentationAddr)

	log.Info("candledash running", "pairs", initialCfg.Pairs)

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	metricsSrv.Stop(shutCtx)
	apiSrv.Shutdown(shutCtx)

	log.Info("shutdown complete")
}

// sampleQueueSaturation periodically reports each bounded queue's len/cap
// as a gauge, making backpressure visible before a queue actually fills.
func sampleQueueSaturation(
	ctx context.Context,
	m *metrics.Metrics,
	barEvents chan model.BarEvent,
	reboots chan model.Reboot,
	historyRequests chan model.HistoryRequest,
	bundles chan model.HistoryBundle,
	results chan []model.Slot,
) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetChannelSaturation("bar_events", len(barEvents), cap(barEvents))
			m.SetChannelSaturation("reboots", len(reboots), cap(reboots))
			m.SetChannelSaturation("history_requests", len(historyRequests), cap(historyRequests))
			m.SetChannelSaturation("history_bundles", len(bundles), cap(bundles))
			m.SetChannelSaturation("presentation_results", len(results), cap(results))
		}
	}
}

// broadcastConfig fans one Config out to every actor that needs it. Each
// actor's config channel is capacity 1 and drained on every reconfiguration,
// so a pending stale config is replaced rather than queued.
func broadcastConfig(cfg model.Config, targets ...chan model.Config) {
	for _, ch := range targets {
		select {
		case <-ch:
		default:
		}
		ch <- cfg
	}
}

// newAPIServer builds the presentation WS endpoint plus the operational
// surface: live config reload and dispatcher introspection.
func newAPIServer(addr string, hub *presentation.Hub, eng *engine.Engine, engineConfigs, historyConfigs, livefeedConfigs chan model.Config, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	mux.HandleFunc("/engine/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(eng.Snapshot())
	})

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var ind config.InitialIndicators
		if err := json.NewDecoder(r.Body).Decode(&ind); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		cfg, err := config.BuildConfig(ind)
		if err != nil {
			http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(cfg.Pairs) == 0 {
			http.Error(w, "config: no pairs configured", http.StatusBadRequest)
			return
		}
		broadcastConfig(cfg, engineConfigs, historyConfigs, livefeedConfigs)
		log.Warn("config reloaded via HTTP", "pairs", len(cfg.Pairs))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "pairs": len(cfg.Pairs)})
	})

	return &http.Server{Addr: addr, Handler: mux}
}

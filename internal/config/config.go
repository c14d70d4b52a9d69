// Package config is the only place in this module that imports viper. It
// reads the process bootstrap configuration — websocket/REST endpoints,
// queue capacities, server addresses — and the initial active indicator
// settings, then hands the core plain structs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// Bootstrap holds every setting needed to wire the four actors together,
// independent of the active indicator configuration.
type Bootstrap struct {
	WSBaseURL          string
	RESTBaseURL        string
	RESTRequestsPerMin int
	RedisAddr          string
	RedisPassword      string
	MetricsAddr        string
	PresentationAddr   string
	ReconnectDelay     time.Duration
	QueueCapacity      int

	Indicators InitialIndicators
}

// InitialIndicators is the viper-facing shape of the starting Config,
// before translation into model.Config: an ordered pair list plus
// per-indicator enablement, timeframes, and extras.
type InitialIndicators struct {
	Pairs []string

	RSIEnabled    bool
	RSITimeframes []string
	RSIPeriod     int
	RSISource     string

	VolatilityEnabled    bool
	VolatilityTimeframes []string
}

// Load reads configuration from a config file (name "candledash", type
// yaml, searched in the given paths) with environment variable overrides,
// and validates the result. A missing config file is not fatal — every
// setting has a default — but an empty pair list is: the process refuses
// to start streaming with nothing to stream.
func Load(searchPaths ...string) (*Bootstrap, error) {
	v := viper.New()
	v.SetConfigName("candledash")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	if len(searchPaths) == 0 {
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CANDLEDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var b Bootstrap
	if err := v.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wsbaseurl", "wss://stream.binance.com:9443/stream")
	v.SetDefault("restbaseurl", "https://api.binance.com")
	v.SetDefault("restrequestspermin", 1200)
	v.SetDefault("redisaddr", "")
	v.SetDefault("redispassword", "")
	v.SetDefault("metricsaddr", ":9090")
	v.SetDefault("presentationaddr", ":9091")
	v.SetDefault("reconnectdelay", 5*time.Second)
	v.SetDefault("queuecapacity", 1024)

	v.SetDefault("indicators.pairs", []string{"BTCUSDT"})
	v.SetDefault("indicators.rsienabled", true)
	v.SetDefault("indicators.rsitimeframes", []string{"5m", "15m"})
	v.SetDefault("indicators.rsiperiod", 14)
	v.SetDefault("indicators.rsisource", "close")
	v.SetDefault("indicators.volatilityenabled", true)
	v.SetDefault("indicators.volatilitytimeframes", []string{"5m", "1h"})
}

// validate rejects a configuration with no pairs, or an empty pair entry
// after normalization.
func (b *Bootstrap) validate() error {
	if len(b.Indicators.Pairs) == 0 {
		return fmt.Errorf("config: no pairs configured")
	}
	for _, p := range b.Indicators.Pairs {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("config: empty pair entry in configured pair list")
		}
	}
	if b.QueueCapacity <= 0 {
		return fmt.Errorf("config: queue capacity must be positive")
	}
	return nil
}

// ActiveConfig translates the bootstrap's initial indicator settings into a
// model.Config, the shape the Engine actually consumes.
func (b *Bootstrap) ActiveConfig() (model.Config, error) {
	return BuildConfig(b.Indicators)
}

// BuildConfig translates an InitialIndicators payload into a model.Config.
// Exported so cmd/dashboard's POST /config live-reload endpoint can reuse
// the exact same translation the bootstrap path uses.
func BuildConfig(ind InitialIndicators) (model.Config, error) {
	pairs := make([]model.Pair, len(ind.Pairs))
	for i, p := range ind.Pairs {
		pairs[i] = model.NewPair(p)
	}

	cfg := model.Config{Pairs: pairs}

	if ind.VolatilityEnabled {
		tfs, err := parseTimeframes(ind.VolatilityTimeframes)
		if err != nil {
			return model.Config{}, err
		}
		cfg.Indicators = append(cfg.Indicators, model.IndicatorSetting{
			Kind: model.Volatility, Enabled: true, Timeframes: tfs,
		})
	}

	if ind.RSIEnabled {
		tfs, err := parseTimeframes(ind.RSITimeframes)
		if err != nil {
			return model.Config{}, err
		}
		source, err := parseSource(ind.RSISource)
		if err != nil {
			return model.Config{}, err
		}
		cfg.Indicators = append(cfg.Indicators, model.IndicatorSetting{
			Kind: model.RSI, Enabled: true, Timeframes: tfs,
			RSI: model.RSIConfig{Period: ind.RSIPeriod, Source: source},
		})
	}

	return cfg, nil
}

func parseTimeframes(tags []string) ([]timeframe.Timeframe, error) {
	out := make([]timeframe.Timeframe, 0, len(tags))
	for _, tag := range tags {
		tf, ok := timeframe.ParseTag(tag)
		if !ok {
			return nil, fmt.Errorf("config: unknown timeframe tag %q", tag)
		}
		out = append(out, tf)
	}
	return out, nil
}

func parseSource(raw string) (model.BarSource, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "close":
		return model.SourceClose, nil
	case "open":
		return model.SourceOpen, nil
	case "high":
		return model.SourceHigh, nil
	case "low":
		return model.SourceLow, nil
	default:
		return 0, fmt.Errorf("config: unknown RSI source %q", raw)
	}
}

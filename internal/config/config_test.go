package config

import (
	"testing"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	b, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.RESTBaseURL == "" || b.WSBaseURL == "" {
		t.Fatalf("expected default endpoints, got %+v", b)
	}
	if len(b.Indicators.Pairs) == 0 {
		t.Fatal("expected a default pair list")
	}
}

func TestValidateRejectsEmptyPairList(t *testing.T) {
	b := &Bootstrap{QueueCapacity: 1024}
	if err := b.validate(); err == nil {
		t.Fatal("expected an error for an empty pair list")
	}
}

func TestActiveConfigTranslation(t *testing.T) {
	b := &Bootstrap{
		Indicators: InitialIndicators{
			Pairs:                []string{"btcusdt", " ethusdt "},
			RSIEnabled:           true,
			RSITimeframes:        []string{"5m"},
			RSIPeriod:            21,
			RSISource:            "High",
			VolatilityEnabled:    true,
			VolatilityTimeframes: []string{"1h"},
		},
	}

	cfg, err := b.ActiveConfig()
	if err != nil {
		t.Fatalf("ActiveConfig: %v", err)
	}

	if len(cfg.Pairs) != 2 || cfg.Pairs[0] != model.Pair("BTCUSDT") {
		t.Fatalf("unexpected pairs: %+v", cfg.Pairs)
	}
	if len(cfg.Indicators) != 2 {
		t.Fatalf("expected 2 indicator settings, got %d", len(cfg.Indicators))
	}
	for _, setting := range cfg.Indicators {
		if setting.Kind == model.RSI {
			if setting.RSI.Period != 21 || setting.RSI.Source != model.SourceHigh {
				t.Errorf("unexpected RSI settings: %+v", setting.RSI)
			}
			if len(setting.Timeframes) != 1 || setting.Timeframes[0] != timeframe.M5 {
				t.Errorf("unexpected RSI timeframes: %+v", setting.Timeframes)
			}
		}
	}
}

func TestActiveConfigRejectsUnknownTimeframe(t *testing.T) {
	b := &Bootstrap{
		Indicators: InitialIndicators{
			Pairs:                []string{"BTCUSDT"},
			VolatilityEnabled:    true,
			VolatilityTimeframes: []string{"3m"},
		},
	}
	if _, err := b.ActiveConfig(); err == nil {
		t.Fatal("expected an error for an unknown timeframe tag")
	}
}

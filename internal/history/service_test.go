package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"candledash/internal/logger"
	"candledash/internal/metrics"
	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// fakeClient is a deterministic exchange.Client stand-in: it synthesizes
// closed bars from startTime up to its fixed "now", so pagination in
// fetchAll terminates the same way it does against the real adapter.
type fakeClient struct {
	now   int64
	calls int
}

func (f *fakeClient) FetchKlines(ctx context.Context, pair model.Pair, tf timeframe.Timeframe, startTime int64, limit int) ([]model.Bar, error) {
	f.calls++
	var bars []model.Bar
	for ts := tf.Floor(startTime); ts+tf.Millis() <= f.now && len(bars) < limit; ts += tf.Millis() {
		bars = append(bars, model.Bar{OpenTime: ts, Open: 100, High: 101, Low: 99, Close: 100, Closed: true})
	}
	return bars, nil
}

func TestServiceBuildsBundleForEnabledIndicators(t *testing.T) {
	now := timeframe.M1.Floor(time.Now().UnixMilli())
	client := &fakeClient{now: now}

	svc := New(client, metrics.New(), logger.Discard())

	cfg := model.Config{
		Pairs: []model.Pair{"AAAUSDT"},
		Indicators: []model.IndicatorSetting{
			{Kind: model.RSI, Enabled: true, Timeframes: []timeframe.Timeframe{timeframe.M5}, RSI: model.RSIConfig{Period: 14}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requests := make(chan model.HistoryRequest, 1)
	configs := make(chan model.Config, 1)
	bundles := make(chan model.HistoryBundle, 1)

	go svc.Run(ctx, requests, configs, bundles)

	configs <- cfg
	time.Sleep(10 * time.Millisecond)
	requests <- model.HistoryRequest{ID: "r1", Pair: "AAAUSDT", ReferenceTS: now}

	select {
	case bundle := <-bundles:
		require.Equal(t, model.Pair("AAAUSDT"), bundle.Pair)
		require.Len(t, bundle.Entries, 1)
		require.Equal(t, model.RSI, bundle.Entries[0].Kind)
		require.NotEmpty(t, bundle.Entries[0].OneMinute)
		require.NotEmpty(t, bundle.Entries[0].SameTF)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for bundle")
	}
}

func TestServiceDropsRequestsBeforeConfig(t *testing.T) {
	client := &fakeClient{now: time.Now().UnixMilli()}
	svc := New(client, metrics.New(), logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requests := make(chan model.HistoryRequest, 1)
	configs := make(chan model.Config, 1)
	bundles := make(chan model.HistoryBundle, 1)

	go svc.Run(ctx, requests, configs, bundles)

	requests <- model.HistoryRequest{ID: "r1", Pair: "AAAUSDT", ReferenceTS: time.Now().UnixMilli()}

	select {
	case <-bundles:
		t.Fatal("expected no bundle before a config has been received")
	case <-time.After(100 * time.Millisecond):
	}
}

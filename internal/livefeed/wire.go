package livefeed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// envelope is the inbound wire frame: a "data" object carrying a "k"
// (kline) object with string-encoded numeric fields.
type envelope struct {
	Data struct {
		K kline `json:"k"`
	} `json:"data"`
}

type kline struct {
	Symbol   string `json:"s"`
	Interval string `json:"i"`
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	Closed   bool   `json:"x"`
}

// decodeFrame parses one wire frame into a pair, timeframe, and Bar. An
// unknown interval tag is reported via ok=false so the caller can silently
// drop the message rather than treating it as a hard decode error.
func decodeFrame(raw []byte) (pair model.Pair, tf timeframe.Timeframe, bar model.Bar, ok bool, err error) {
	var env envelope
	if err = json.Unmarshal(raw, &env); err != nil {
		return pair, tf, bar, false, fmt.Errorf("livefeed: decode envelope: %w", err)
	}

	k := env.Data.K
	tf, known := timeframe.ParseTag(k.Interval)
	if !known {
		return pair, tf, bar, false, nil
	}

	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return pair, tf, bar, false, fmt.Errorf("livefeed: decode open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return pair, tf, bar, false, fmt.Errorf("livefeed: decode high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return pair, tf, bar, false, fmt.Errorf("livefeed: decode low: %w", err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return pair, tf, bar, false, fmt.Errorf("livefeed: decode close: %w", err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return pair, tf, bar, false, fmt.Errorf("livefeed: decode volume: %w", err)
	}

	return model.NewPair(k.Symbol), tf, model.Bar{
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		OpenTime: k.OpenTime,
		Closed:   k.Closed,
	}, true, nil
}

// encodeFrame is the inverse of decodeFrame, used by the round-trip test.
func encodeFrame(pair model.Pair, tf timeframe.Timeframe, bar model.Bar) []byte {
	k := kline{
		Symbol:   pair.String(),
		Interval: tf.Tag(),
		OpenTime: bar.OpenTime,
		Open:     strconv.FormatFloat(bar.Open, 'f', -1, 64),
		High:     strconv.FormatFloat(bar.High, 'f', -1, 64),
		Low:      strconv.FormatFloat(bar.Low, 'f', -1, 64),
		Close:    strconv.FormatFloat(bar.Close, 'f', -1, 64),
		Volume:   strconv.FormatFloat(bar.Volume, 'f', -1, 64),
		Closed:   bar.Closed,
	}
	var env envelope
	env.Data.K = k
	raw, _ := json.Marshal(env)
	return raw
}

// Package livefeed implements the websocket client that subscribes to the
// configured pairs' one-minute bar streams and emits BarEvent/Reboot to the
// engine, cycling through {Idle -> Connecting -> Streaming -> Reconnecting}
// as the connection comes and goes.
package livefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"candledash/internal/metrics"
	"candledash/internal/model"
)

// State is the live feed's position in its connection lifecycle.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

// Config configures a Feed.
type Config struct {
	// BaseURL is the websocket endpoint base, e.g.
	// "wss://stream.binance.com:9443/stream".
	BaseURL string
	// ReconnectDelay is the fixed wait before a reconnect attempt.
	// Defaults to 5s.
	ReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
}

// Feed is the Live Feed actor.
type Feed struct {
	cfg Config
	m   *metrics.Metrics
	log *slog.Logger

	state int32 // State, accessed atomically for State() readers
}

// New constructs a Feed.
func New(cfg Config, m *metrics.Metrics, log *slog.Logger) *Feed {
	cfg.defaults()
	return &Feed{cfg: cfg, m: m, log: log}
}

// State reports the feed's current lifecycle state.
func (f *Feed) State() State {
	return State(atomic.LoadInt32(&f.state))
}

func (f *Feed) setState(s State) {
	atomic.StoreInt32(&f.state, int32(s))
}

// errConfigsClosed signals a clean shutdown: the config channel closing is
// how the process tells the feed to stop, not a transport failure.
var errConfigsClosed = errors.New("livefeed: config channel closed")

// frame is one decoded wire message, or a decode error to warn-and-drop.
type frame struct {
	pair model.Pair
	bar  model.Bar
	ok   bool
	err  error
}

// Run drives the feed's connection lifecycle until ctx is cancelled or
// configs closes. It subscribes to the pairs named by the most recently
// received Config, emits BarEvent for every decoded 1m bar, and emits
// Reboot on first connect and on any transport failure. A new Config
// delivered while Streaming triggers a silent resubscribe with no Reboot:
// the engine already reboots itself on every Config it receives, and a
// second Reboot from here would only double the rewarm.
func (f *Feed) Run(ctx context.Context, configs <-chan model.Config, barEvents chan<- model.BarEvent, reboots chan<- model.Reboot) {
	f.setState(StateIdle)

	var cfg model.Config
	haveCfg := false
	firstStreamEmitted := false

	for {
		if !haveCfg || len(cfg.Pairs) == 0 {
			select {
			case <-ctx.Done():
				f.setState(StateIdle)
				return
			case c, ok := <-configs:
				if !ok {
					f.setState(StateIdle)
					return
				}
				cfg = c
				haveCfg = true
			}
			continue
		}

		f.setState(StateConnecting)
		streamURL, err := subscribeURL(f.cfg.BaseURL, cfg.Pairs)
		if err != nil {
			f.log.Error("livefeed: bad subscribe URL", "error", err)
			f.setState(StateIdle)
			return
		}

		newCfg, restarted, err := f.runOnce(ctx, streamURL, configs, barEvents, &firstStreamEmitted, reboots)
		if ctx.Err() != nil || errors.Is(err, errConfigsClosed) {
			f.setState(StateIdle)
			return
		}
		if restarted {
			cfg = newCfg
			continue // silent restart: no Reboot, loop redials immediately
		}

		f.m.WSReconnectsTotal.Inc()
		f.emitReboot(reboots, fmt.Sprintf("ws: %v", err))
		f.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			f.setState(StateIdle)
			return
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

func (f *Feed) emitReboot(reboots chan<- model.Reboot, reason string) {
	select {
	case reboots <- model.Reboot{Reason: reason}:
	default:
		// Reboot channel saturated: the engine is already behind. Dropping
		// this signal is safe because the next live bar after the eventual
		// Reboot still (re)triggers warmup for its pair.
	}
}

// runOnce dials once and reads frames, selecting between the next stream
// frame and the next Config message until the connection fails, ctx is
// cancelled, or a new Config arrives. restarted is true only for the
// silent-resubscribe path.
func (f *Feed) runOnce(ctx context.Context, streamURL string, configs <-chan model.Config, barEvents chan<- model.BarEvent, firstStreamEmitted *bool, reboots chan<- model.Reboot) (newCfg model.Config, restarted bool, err error) {
	dialer := websocket.DefaultDialer
	conn, _, dialErr := dialer.DialContext(ctx, streamURL, nil)
	if dialErr != nil {
		return model.Config{}, false, fmt.Errorf("connect: %w", dialErr)
	}
	defer conn.Close()

	conn.SetPingHandler(func(payload string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

	f.setState(StateStreaming)
	if !*firstStreamEmitted {
		*firstStreamEmitted = true
		f.emitReboot(reboots, "ws starting")
	}
	f.log.Info("livefeed: connected", "url", streamURL)

	frames := make(chan frame, 256)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				close(frames)
				return
			}
			pair, _, bar, ok, decodeErr := decodeFrame(raw)
			select {
			case frames <- frame{pair: pair, bar: bar, ok: ok, err: decodeErr}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return model.Config{}, false, ctx.Err()

		case c, ok := <-configs:
			if !ok {
				return model.Config{}, false, errConfigsClosed
			}
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "restart"))
			return c, true, nil

		case fr, ok := <-frames:
			if !ok {
				return model.Config{}, false, fmt.Errorf("read: %w", <-readErr)
			}
			if fr.err != nil {
				f.m.WSDecodeErrorsTotal.Inc()
				f.log.Warn("livefeed: decode error", "error", fr.err)
				continue
			}
			if !fr.ok {
				continue // unknown timeframe tag: silently dropped
			}
			select {
			case barEvents <- model.BarEvent{Pair: fr.pair, Bar: fr.bar}:
			case <-ctx.Done():
				return model.Config{}, false, ctx.Err()
			}
		}
	}
}

// subscribeURL builds a combined-stream subscription URL for every pair's
// 1m kline stream, matching the multiplexed-stream shape the section 6
// wire contract implies (one envelope per frame, each carrying one kline).
func subscribeURL(base string, pairs []model.Pair) (string, error) {
	if _, err := url.Parse(base); err != nil {
		return "", err
	}
	streams := make([]string, len(pairs))
	for i, p := range pairs {
		streams[i] = strings.ToLower(p.String()) + "@kline_1m"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "streams=" + strings.Join(streams, "/"), nil
}

package indicator

import (
	"candledash/internal/model"
	"candledash/internal/ringbuf"
)

// applyLiveBar folds an incoming 1m bar into window using the open-time
// rules shared by every calculator: empty pushes, a later open_time pushes,
// an equal open_time replaces the tail only while the tail is still open,
// and anything older is silently dropped.
func applyLiveBar(window *ringbuf.Ring[model.Bar], bar model.Bar) {
	tail, ok := window.Back()
	switch {
	case !ok:
		window.Push(bar)
	case bar.OpenTime > tail.OpenTime:
		window.Push(bar)
	case bar.SameBucket(tail):
		if !tail.Closed {
			window.ReplaceLast(bar)
		}
	default:
		// older than the tail: drop
	}
}

// bufferWarmupBar is the WarmUp-stage counterpart of applyLiveBar: it keeps a
// pre-priming ring deduplicated the same way, so that Prime can prefer
// anything already observed live over the corresponding historical bar for
// the same open_time.
func bufferWarmupBar(buf *ringbuf.Ring[model.Bar], bar model.Bar) {
	applyLiveBar(buf, bar)
}

// reconstructWindow builds a calculator's Ready-stage 1m window out of the
// last `minutes` one-minute open-times, preferring any bar already
// accumulated during WarmUp (warm) over the corresponding historical bar
// (hist) for the same open_time.
func reconstructWindow(minutes int, periodStart int64, hist []model.Bar, warm *ringbuf.Ring[model.Bar]) *ringbuf.Ring[model.Bar] {
	window := ringbuf.New[model.Bar](minutes)

	byOpenTime := make(map[int64]model.Bar, len(hist))
	for _, b := range hist {
		if b.OpenTime >= periodStart {
			byOpenTime[b.OpenTime] = b
		}
	}
	warm.Iter(func(b model.Bar) bool {
		if b.OpenTime >= periodStart {
			byOpenTime[b.OpenTime] = b
		}
		return true
	})

	for ot := periodStart; ot < periodStart+int64(minutes)*60_000; ot += 60_000 {
		if b, ok := byOpenTime[ot]; ok {
			window.Push(b)
		}
	}
	return window
}

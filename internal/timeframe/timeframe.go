// Package timeframe provides the closed set of supported bar intervals and
// the pure arithmetic used to align timestamps to them.
package timeframe

// Timeframe identifies one of the supported bar intervals. The zero value is
// M1; values outside the exported constants are not valid (see Valid).
type Timeframe int

const (
	M1 Timeframe = iota
	M5
	M15
	M30
	H1
	H4
	D1
)

// All lists every supported timeframe in ascending window order.
var All = []Timeframe{M1, M5, M15, M30, H1, H4, D1}

const minuteMillis int64 = 60_000

var minutesByTF = map[Timeframe]int{
	M1:  1,
	M5:  5,
	M15: 15,
	M30: 30,
	H1:  60,
	H4:  240,
	D1:  1440,
}

var tagByTF = map[Timeframe]string{
	M1:  "1m",
	M5:  "5m",
	M15: "15m",
	M30: "30m",
	H1:  "1h",
	H4:  "4h",
	D1:  "1d",
}

var tfByTag map[string]Timeframe

func init() {
	tfByTag = make(map[string]Timeframe, len(tagByTF))
	for tf, tag := range tagByTF {
		tfByTag[tag] = tf
	}
}

// Minutes returns the window length in minutes.
func (tf Timeframe) Minutes() int {
	return minutesByTF[tf]
}

// Millis returns the window length in milliseconds.
func (tf Timeframe) Millis() int64 {
	return int64(tf.Minutes()) * minuteMillis
}

// Tag returns the short textual tag used on the wire, e.g. "5m".
func (tf Timeframe) Tag() string {
	return tagByTF[tf]
}

// String satisfies fmt.Stringer with the same value as Tag.
func (tf Timeframe) String() string {
	return tf.Tag()
}

// Valid reports whether tf is one of the supported constants.
func (tf Timeframe) Valid() bool {
	_, ok := minutesByTF[tf]
	return ok
}

// ParseTag resolves a wire tag ("1m", "5m", ...) to a Timeframe.
// The second return value is false for unknown tags.
func ParseTag(tag string) (Timeframe, bool) {
	tf, ok := tfByTag[tag]
	return tf, ok
}

// Floor returns the largest multiple of tf's window (in milliseconds) that is
// less than or equal to ts, where ts is milliseconds since epoch.
func (tf Timeframe) Floor(ts int64) int64 {
	w := tf.Millis()
	if w <= 0 {
		return ts
	}
	rem := ts % w
	if rem < 0 {
		rem += w
	}
	return ts - rem
}
